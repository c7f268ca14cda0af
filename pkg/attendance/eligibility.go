package attendance

import (
	"errors"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/geofence"
	"github.com/arnavshah/attendance-api-go/pkg/schedule"
)

// Kind of attendance mark
type Kind string

const (
	KindEntry Kind = "entry"
	KindExit  Kind = "exit"
)

func (k Kind) Valid() bool { return k == KindEntry || k == KindExit }

var (
	ErrNoPosition    = errors.New("current position is unknown")
	ErrOutsideZone   = errors.New("you must be inside the assigned zone to mark attendance")
	ErrAlreadyMarked = errors.New("entry already marked today")
	ErrEntryMissing  = errors.New("entry must be marked before exit")
	ErrDayComplete   = errors.New("attendance for today is already complete")
	ErrUnknownKind   = errors.New("mark kind must be entry or exit")
)

// Mark is a recorded entry or exit
type Mark struct {
	ID           uint           `json:"id"`
	WorkerID     uint           `json:"worker_id"`
	AssignmentID uint           `json:"assignment_id"`
	Kind         Kind           `json:"kind"`
	Position     geofence.Point `json:"position"`
	At           time.Time      `json:"at"`
}

// Assignment ties a worker to a zone on a weekly schedule
type Assignment struct {
	ID       uint
	WorkerID uint
	ZoneID   uint
	Zone     geofence.Zone
	Schedule schedule.Schedule
}

// IsInside checks a possibly unknown position against a zone
func IsInside(pos *geofence.Point, z geofence.Zone) bool {
	if pos == nil {
		return false
	}
	return z.Contains(*pos)
}

// SameDay reports whether a and b fall on the same calendar day in loc
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// DayKey is the calendar day of t in its own location, as YYYY-MM-DD
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DayState is what has been marked for an assignment on one day
type DayState struct {
	HasEntry bool `json:"has_entry"`
	HasExit  bool `json:"has_exit"`
}

// Complete is true once both entry and exit exist
func (d DayState) Complete() bool { return d.HasEntry && d.HasExit }

// TodayState looks at the marks of one assignment on now's calendar day.
// Anything that isn't an exit counts as an entry.
func TodayState(marks []Mark, assignmentID uint, now time.Time) DayState {
	var st DayState
	for _, m := range marks {
		if m.AssignmentID != assignmentID || !SameDay(m.At, now, now.Location()) {
			continue
		}
		if m.Kind == KindExit {
			st.HasExit = true
		} else {
			st.HasEntry = true
		}
	}
	return st
}

// Eligibility is the outcome of evaluating an assignment at a position
type Eligibility struct {
	Position *geofence.Point `json:"position"`
	Inside   bool            `json:"inside"`
	Entry    bool            `json:"entry_allowed"`
	Exit     bool            `json:"exit_allowed"`
	State    DayState        `json:"today"`

	// informational, never gating
	ScheduledToday bool `json:"scheduled_today"`
	InWindow       bool `json:"in_window"`
}

// Evaluate decides which marks may be recorded right now
func Evaluate(pos *geofence.Point, a Assignment, marks []Mark, now time.Time) Eligibility {
	st := TodayState(marks, a.ID, now)
	inside := IsInside(pos, a.Zone)
	return Eligibility{
		Position:       pos,
		Inside:         inside,
		Entry:          inside && !st.HasEntry,
		Exit:           inside && st.HasEntry && !st.HasExit,
		State:          st,
		ScheduledToday: a.Schedule.ActiveOn(now),
		InWindow:       a.Schedule.InMarkingWindow(now),
	}
}

// Allowed reports whether kind may be marked
func (e Eligibility) Allowed(kind Kind) bool {
	return e.Check(kind) == nil
}

// Check explains why kind may not be marked, or returns nil when it may.
// Day-state reasons win over position reasons so a finished day reads as
// finished even away from the zone.
func (e Eligibility) Check(kind Kind) error {
	switch kind {
	case KindEntry:
		if e.State.HasEntry {
			if e.State.HasExit {
				return ErrDayComplete
			}
			return ErrAlreadyMarked
		}
	case KindExit:
		if e.State.HasExit {
			return ErrDayComplete
		}
		if !e.State.HasEntry {
			return ErrEntryMissing
		}
	default:
		return ErrUnknownKind
	}
	if e.Position == nil {
		return ErrNoPosition
	}
	if !e.Inside {
		return ErrOutsideZone
	}
	return nil
}
