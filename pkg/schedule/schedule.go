package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoDays        = errors.New("at least one weekday is required")
	ErrUnknownDay    = errors.New("unknown weekday")
	ErrBadClock      = errors.New("time must be HH:MM or HH:MM:SS")
	ErrExitNotAfter  = errors.New("exit time must be after entry time")
	ErrWindowReverse = errors.New("marking window end must be after its start")
)

// Weekdays is a set of days of the week, one bit per time.Weekday
type Weekdays uint8

var dayKeys = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// Spanish keys are accepted on input for data created by the older front-end
var dayAliases = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
	"dom": time.Sunday, "lun": time.Monday, "mar": time.Tuesday, "mie": time.Wednesday,
	"jue": time.Thursday, "vie": time.Friday, "sab": time.Saturday,
}

// ParseWeekdays parses a comma separated list such as "mon,wed,fri"
func ParseWeekdays(s string) (Weekdays, error) {
	var w Weekdays
	for _, part := range strings.Split(s, ",") {
		key := strings.ToLower(strings.TrimSpace(part))
		if key == "" {
			continue
		}
		d, ok := dayAliases[key]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownDay, part)
		}
		w = w.With(d)
	}
	if w == 0 {
		return 0, ErrNoDays
	}
	return w, nil
}

// With returns the set with d added
func (w Weekdays) With(d time.Weekday) Weekdays {
	return w | 1<<uint(d)
}

// Has checks if d is in the set
func (w Weekdays) Has(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

// Days lists the days in the set, Monday first
func (w Weekdays) Days() []time.Weekday {
	var out []time.Weekday
	for i := 1; i <= 7; i++ {
		d := time.Weekday(i % 7)
		if w.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (w Weekdays) String() string {
	days := w.Days()
	keys := make([]string, 0, len(days))
	for _, d := range days {
		keys = append(keys, dayKeys[d])
	}
	return strings.Join(keys, ",")
}

// Clock is a time of day measured from midnight
type Clock time.Duration

// NewClock builds a clock from hours and minutes
func NewClock(hour, minute int) Clock {
	return Clock(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseClock parses "HH:MM" or "HH:MM:SS"
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, ErrBadClock
	}
	limits := []int{23, 59, 59}
	var vals [3]int
	for i, p := range parts {
		if len(p) != 2 {
			return 0, ErrBadClock
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, ErrBadClock
		}
		vals[i] = v
	}
	return Clock(time.Duration(vals[0])*time.Hour +
		time.Duration(vals[1])*time.Minute +
		time.Duration(vals[2])*time.Second), nil
}

// ClockOf returns the time of day of t in its own location
func ClockOf(t time.Time) Clock {
	h, m, s := t.Clock()
	return Clock(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

func (c Clock) String() string {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// Schedule is the weekly attendance plan of an assignment
type Schedule struct {
	Days       Weekdays
	Entry      Clock
	Exit       Clock
	WindowFrom *Clock
	WindowTo   *Clock
}

// Validate checks the schedule is usable
func (s Schedule) Validate() error {
	if s.Days == 0 {
		return ErrNoDays
	}
	if s.Exit <= s.Entry {
		return ErrExitNotAfter
	}
	if s.WindowFrom != nil && s.WindowTo != nil && *s.WindowTo <= *s.WindowFrom {
		return ErrWindowReverse
	}
	return nil
}

// ActiveOn checks if the schedule applies on t's weekday
func (s Schedule) ActiveOn(t time.Time) bool {
	return s.Days.Has(t.Weekday())
}

// MarkingWindow returns the time range in which marks are expected. The
// override window wins when set, otherwise the whole entry..exit shift.
func (s Schedule) MarkingWindow() (from, to Clock) {
	from, to = s.Entry, s.Exit
	if s.WindowFrom != nil {
		from = *s.WindowFrom
	}
	if s.WindowTo != nil {
		to = *s.WindowTo
	}
	return from, to
}

// InMarkingWindow checks if t falls on a scheduled day inside the marking window
func (s Schedule) InMarkingWindow(t time.Time) bool {
	if !s.ActiveOn(t) {
		return false
	}
	from, to := s.MarkingWindow()
	c := ClockOf(t)
	return c >= from && c <= to
}

// Overlap checks if two time ranges overlap
func Overlap(aStart, aEnd, bStart, bEnd Clock) bool {
	return aStart < bEnd && bStart < aEnd
}

// Overlaps checks if two schedules share a weekday with intersecting shifts
func (s Schedule) Overlaps(other Schedule) bool {
	if s.Days&other.Days == 0 {
		return false
	}
	return Overlap(s.Entry, s.Exit, other.Entry, other.Exit)
}

// Entry pairs a schedule with the id of the assignment that owns it
type Entry struct {
	ID       uint
	Schedule Schedule
}

// Conflict explains why a candidate schedule clashes with an existing one
type Conflict struct {
	AssignmentID uint     `json:"assignment_id"`
	Reasons      []string `json:"reasons"`
}

// Conflicts returns the existing schedules of a worker that clash with the
// candidate. The candidate's own id is skipped so updates don't conflict
// with themselves.
func Conflicts(existing []Entry, candidate Entry) []Conflict {
	var out []Conflict
	for _, e := range existing {
		if e.ID == candidate.ID || !e.Schedule.Overlaps(candidate.Schedule) {
			continue
		}
		shared := e.Schedule.Days & candidate.Schedule.Days
		out = append(out, Conflict{
			AssignmentID: e.ID,
			Reasons: []string{
				fmt.Sprintf("shares days %s", shared),
				fmt.Sprintf("shift %s-%s overlaps %s-%s",
					e.Schedule.Entry, e.Schedule.Exit, candidate.Schedule.Entry, candidate.Schedule.Exit),
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignmentID < out[j].AssignmentID })
	return out
}
