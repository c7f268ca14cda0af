package geofence

import "math"

const (
	// MinDrawRadius is the smallest circle the drawer will produce, in meters
	MinDrawRadius = 50.0
	// InitialDrawRadius is the preview radius right after the anchor click
	InitialDrawRadius = 100.0
)

// DrawState is the state of the two-click drawing tool
type DrawState int

const (
	StateIdle DrawState = iota
	StateDrawing
	StateComplete
)

func (s DrawState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	case StateComplete:
		return "complete"
	}
	return "unknown"
}

// Drawer turns map clicks and pointer movement into a zone.
//
// The first click fixes the anchor and starts a live preview, pointer
// movement reshapes the preview, and the second click freezes it. Once
// complete the shape stays put until Cancel or SetKind.
type Drawer struct {
	kind   Kind
	state  DrawState
	anchor Point
	shape  *Zone
}

// NewDrawer creates an idle drawer for the given shape kind
func NewDrawer(kind Kind) *Drawer {
	return &Drawer{kind: kind}
}

// EditDrawer opens an existing zone for editing. The drawer starts complete
// with the zone as its shape.
func EditDrawer(z Zone) *Drawer {
	d := &Drawer{kind: z.Kind, state: StateComplete}
	shape := z
	d.shape = &shape
	if z.Kind == KindCircle {
		d.anchor = z.Center
	} else {
		d.anchor = z.Start
	}
	return d
}

func (d *Drawer) Kind() Kind       { return d.kind }
func (d *Drawer) State() DrawState { return d.state }
func (d *Drawer) IsDrawing() bool  { return d.state == StateDrawing }
func (d *Drawer) IsComplete() bool { return d.state == StateComplete }

// Shape returns the current preview or final shape, if any
func (d *Drawer) Shape() (Zone, bool) {
	if d.shape == nil {
		return Zone{}, false
	}
	return *d.shape, true
}

// SetKind switches the shape kind and discards whatever was drawn
func (d *Drawer) SetKind(kind Kind) {
	d.kind = kind
	d.Cancel()
}

// Cancel returns the drawer to idle from any state
func (d *Drawer) Cancel() {
	d.state = StateIdle
	d.anchor = Point{}
	d.shape = nil
}

// Click handles a map click. It reports whether the click changed state.
func (d *Drawer) Click(p Point) bool {
	if !d.kind.Valid() || !p.Finite() {
		return false
	}
	switch d.state {
	case StateIdle:
		d.anchor = p
		d.state = StateDrawing
		var z Zone
		if d.kind == KindCircle {
			z = Circle(p, InitialDrawRadius)
		} else {
			z = Rectangle(p, p)
		}
		d.shape = &z
		return true
	case StateDrawing:
		d.state = StateComplete
		return true
	}
	return false
}

// Move handles pointer movement. Only a drawing drawer reacts.
func (d *Drawer) Move(p Point) bool {
	if d.state != StateDrawing || !p.Finite() {
		return false
	}
	var z Zone
	if d.kind == KindCircle {
		z = Circle(d.anchor, math.Max(MinDrawRadius, DistanceMeters(d.anchor, p)))
	} else {
		z = Rectangle(d.anchor, p)
	}
	d.shape = &z
	return true
}
