package attendance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/geofence"
	"github.com/arnavshah/attendance-api-go/pkg/geolocation"
)

var ErrMarkInFlight = errors.New("a mark for this assignment is already being sent")

// MarkRequest is what gets sent to the backend
type MarkRequest struct {
	AssignmentID uint           `json:"assignment_id"`
	Kind         Kind           `json:"kind"`
	Position     geofence.Point `json:"position"`
}

// MarkStore persists marks. The REST client implements it.
type MarkStore interface {
	CreateMark(ctx context.Context, req MarkRequest) (Mark, error)
	ListMarks(ctx context.Context, workerID uint) ([]Mark, error)
}

// Locator supplies the current position. *geolocation.Tracker satisfies it.
type Locator interface {
	Position(ctx context.Context) (geofence.Point, error)
}

// Marker runs the mark workflow for one worker's device
type Marker struct {
	store   MarkStore
	locator Locator
	now     func() time.Time
	loc     *time.Location

	mu       sync.Mutex
	marks    []Mark
	inflight map[uint]bool
}

func NewMarker(store MarkStore, locator Locator) *Marker {
	return &Marker{
		store:    store,
		locator:  locator,
		now:      time.Now,
		inflight: make(map[uint]bool),
	}
}

// Load replaces the local marks with what the backend has for workerID
func (m *Marker) Load(ctx context.Context, workerID uint) error {
	marks, err := m.store.ListMarks(ctx, workerID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.marks = marks
	m.mu.Unlock()
	return nil
}

// Marks returns a copy of the local marks
func (m *Marker) Marks() []Mark {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Mark, len(m.marks))
	copy(out, m.marks)
	return out
}

// SetLocation makes the marker work out "today" in loc, which must be the
// backend's timezone. The device's local zone is used until it is set.
func (m *Marker) SetLocation(loc *time.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loc = loc
}

// Eligibility evaluates an assignment at pos against the local marks
func (m *Marker) Eligibility(pos *geofence.Point, a Assignment) Eligibility {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if m.loc != nil {
		now = now.In(m.loc)
	}
	return Evaluate(pos, a, m.marks, now)
}

// InFlight reports whether a mark for the assignment is being sent
func (m *Marker) InFlight(assignmentID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight[assignmentID]
}

// Mark records an entry or exit for the assignment. Only one mark per
// assignment may be in flight; the local marks change only once the backend
// has confirmed.
func (m *Marker) Mark(ctx context.Context, a Assignment, kind Kind) (Mark, error) {
	if !kind.Valid() {
		return Mark{}, ErrUnknownKind
	}

	m.mu.Lock()
	if m.inflight[a.ID] {
		m.mu.Unlock()
		return Mark{}, ErrMarkInFlight
	}
	m.inflight[a.ID] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, a.ID)
		m.mu.Unlock()
	}()

	pos, err := m.locator.Position(ctx)
	if err != nil {
		if errors.Is(err, geolocation.ErrUnavailable) {
			return Mark{}, ErrNoPosition
		}
		return Mark{}, err
	}

	if err := m.Eligibility(&pos, a).Check(kind); err != nil {
		return Mark{}, err
	}

	saved, err := m.store.CreateMark(ctx, MarkRequest{AssignmentID: a.ID, Kind: kind, Position: pos})
	if err != nil {
		return Mark{}, err
	}

	m.mu.Lock()
	m.marks = append(m.marks, saved)
	m.mu.Unlock()
	return saved, nil
}
