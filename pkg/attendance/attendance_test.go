package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/geofence"
	"github.com/arnavshah/attendance-api-go/pkg/geolocation"
	"github.com/arnavshah/attendance-api-go/pkg/schedule"
)

var (
	center  = geofence.Point{Lat: -16.5, Lng: -68.15}
	inside  = geofence.Point{Lat: -16.5005, Lng: -68.15}
	outside = geofence.Point{Lat: -16.51, Lng: -68.15}
	monday  = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
)

func testAssignment() Assignment {
	days, _ := schedule.ParseWeekdays("mon,tue,wed,thu,fri")
	return Assignment{
		ID:       1,
		WorkerID: 7,
		ZoneID:   3,
		Zone:     geofence.Circle(center, 100),
		Schedule: schedule.Schedule{
			Days:  days,
			Entry: schedule.NewClock(8, 0),
			Exit:  schedule.NewClock(17, 0),
		},
	}
}

func TestEvaluate_DayProgression(t *testing.T) {
	a := testAssignment()
	pos := inside

	e := Evaluate(&pos, a, nil, monday)
	if !e.Inside || !e.Entry || e.Exit {
		t.Errorf("No marks: expected only entry, got %+v", e)
	}
	if !e.ScheduledToday || !e.InWindow {
		t.Errorf("Expected monday 09:00 to be scheduled and in window")
	}

	marks := []Mark{{AssignmentID: 1, Kind: KindEntry, At: monday.Add(-time.Hour)}}
	e = Evaluate(&pos, a, marks, monday)
	if e.Entry || !e.Exit {
		t.Errorf("After entry: expected only exit, got %+v", e)
	}
	if !errors.Is(e.Check(KindEntry), ErrAlreadyMarked) {
		t.Errorf("Expected ErrAlreadyMarked, got %v", e.Check(KindEntry))
	}

	marks = append(marks, Mark{AssignmentID: 1, Kind: KindExit, At: monday})
	e = Evaluate(&pos, a, marks, monday)
	if e.Entry || e.Exit || !e.State.Complete() {
		t.Errorf("After both: expected neither, got %+v", e)
	}
	if !errors.Is(e.Check(KindExit), ErrDayComplete) {
		t.Errorf("Expected ErrDayComplete, got %v", e.Check(KindExit))
	}
}

func TestEvaluate_OtherDaysAndAssignments(t *testing.T) {
	a := testAssignment()
	pos := inside
	marks := []Mark{
		{AssignmentID: 1, Kind: KindEntry, At: monday.AddDate(0, 0, -1)},
		{AssignmentID: 2, Kind: KindEntry, At: monday},
	}
	e := Evaluate(&pos, a, marks, monday)
	if !e.Entry || e.State.HasEntry {
		t.Errorf("Expected yesterday's and other assignment's marks to be ignored, got %+v", e)
	}
}

func TestTodayState_UnknownKindCountsAsEntry(t *testing.T) {
	marks := []Mark{{AssignmentID: 1, Kind: "checkin", At: monday}}
	st := TodayState(marks, 1, monday)
	if !st.HasEntry || st.HasExit {
		t.Errorf("Expected a non-exit mark to count as entry, got %+v", st)
	}
}

func TestTodayState_UsesNowLocation(t *testing.T) {
	// 23:30 UTC on the 1st is already the 2nd in UTC+2
	loc := time.FixedZone("UTC+2", 2*3600)
	marks := []Mark{{AssignmentID: 1, Kind: KindEntry, At: time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)}}
	now := time.Date(2024, 1, 2, 8, 0, 0, 0, loc)
	if !TodayState(marks, 1, now).HasEntry {
		t.Errorf("Expected the mark to fall on the 2nd in UTC+2")
	}
}

func TestEligibility_Check(t *testing.T) {
	a := testAssignment()
	out := outside
	tests := []struct {
		name string
		pos  *geofence.Point
		kind Kind
		want error
	}{
		{"no position", nil, KindEntry, ErrNoPosition},
		{"outside", &out, KindEntry, ErrOutsideZone},
		{"exit before entry", &out, KindExit, ErrEntryMissing},
		{"unknown kind", &out, "lunch", ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Evaluate(tt.pos, a, nil, monday)
			if err := e.Check(tt.kind); !errors.Is(err, tt.want) {
				t.Errorf("Check(%s) = %v, want %v", tt.kind, err, tt.want)
			}
			if e.Allowed(tt.kind) {
				t.Errorf("Expected %s not to be allowed", tt.kind)
			}
		})
	}
}

func TestIsInside(t *testing.T) {
	p := inside
	if IsInside(nil, geofence.Circle(center, 100)) {
		t.Errorf("Expected nil position to be outside")
	}
	if IsInside(&p, geofence.Zone{Kind: "polygon"}) {
		t.Errorf("Expected invalid zone to contain nothing")
	}
	if !IsInside(&p, geofence.Circle(center, 100)) {
		t.Errorf("Expected position inside circle")
	}
}

type fakeStore struct {
	mu      sync.Mutex
	saved   []Mark
	listed  []Mark
	fail    error
	block   chan struct{}
	entered chan struct{}
	now     time.Time
}

func (f *fakeStore) CreateMark(ctx context.Context, req MarkRequest) (Mark, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.fail != nil {
		return Mark{}, f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m := Mark{ID: uint(len(f.saved) + 1), AssignmentID: req.AssignmentID, Kind: req.Kind, Position: req.Position, At: f.now}
	f.saved = append(f.saved, m)
	return m, nil
}

func (f *fakeStore) ListMarks(ctx context.Context, workerID uint) ([]Mark, error) {
	return f.listed, f.fail
}

func newTestMarker(store MarkStore, src geolocation.Source) *Marker {
	m := NewMarker(store, geolocation.NewTracker(src, time.Minute))
	m.now = func() time.Time { return monday }
	return m
}

func TestMarker_EntryThenExit(t *testing.T) {
	store := &fakeStore{now: monday}
	m := newTestMarker(store, geolocation.StaticSource{Fix: geolocation.Fix{Position: inside}})
	a := testAssignment()
	ctx := context.Background()

	if _, err := m.Mark(ctx, a, KindExit); !errors.Is(err, ErrEntryMissing) {
		t.Fatalf("Expected ErrEntryMissing, got %v", err)
	}
	if _, err := m.Mark(ctx, a, KindEntry); err != nil {
		t.Fatalf("Mark entry: %v", err)
	}
	if _, err := m.Mark(ctx, a, KindEntry); !errors.Is(err, ErrAlreadyMarked) {
		t.Errorf("Expected second entry to be rejected, got %v", err)
	}
	if _, err := m.Mark(ctx, a, KindExit); err != nil {
		t.Fatalf("Mark exit: %v", err)
	}
	if len(store.saved) != 2 || len(m.Marks()) != 2 {
		t.Errorf("Expected two marks saved and kept locally, got %d/%d", len(store.saved), len(m.Marks()))
	}
}

func TestMarker_FailureLeavesLocalStateAlone(t *testing.T) {
	store := &fakeStore{now: monday, fail: errors.New("boom")}
	m := newTestMarker(store, geolocation.StaticSource{Fix: geolocation.Fix{Position: inside}})

	if _, err := m.Mark(context.Background(), testAssignment(), KindEntry); err == nil || err.Error() != "boom" {
		t.Fatalf("Expected store error, got %v", err)
	}
	if len(m.Marks()) != 0 {
		t.Errorf("Expected no local marks after a failed save")
	}
	if m.InFlight(1) {
		t.Errorf("Expected in-flight flag to be cleared")
	}
}

func TestMarker_NoPositionAndOutside(t *testing.T) {
	store := &fakeStore{now: monday}
	m := newTestMarker(store, geolocation.StaticSource{Err: geolocation.ErrUnavailable})
	if _, err := m.Mark(context.Background(), testAssignment(), KindEntry); !errors.Is(err, ErrNoPosition) {
		t.Errorf("Expected ErrNoPosition, got %v", err)
	}

	m = newTestMarker(store, geolocation.StaticSource{Fix: geolocation.Fix{Position: outside}})
	if _, err := m.Mark(context.Background(), testAssignment(), KindEntry); !errors.Is(err, ErrOutsideZone) {
		t.Errorf("Expected ErrOutsideZone, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Errorf("Expected nothing sent to the store")
	}
}

func TestMarker_InFlightGuard(t *testing.T) {
	store := &fakeStore{now: monday, block: make(chan struct{}), entered: make(chan struct{}, 1)}
	m := newTestMarker(store, geolocation.StaticSource{Fix: geolocation.Fix{Position: inside}})
	a := testAssignment()

	done := make(chan error, 1)
	go func() {
		_, err := m.Mark(context.Background(), a, KindEntry)
		done <- err
	}()
	<-store.entered

	if !m.InFlight(a.ID) {
		t.Errorf("Expected assignment to be in flight")
	}
	if _, err := m.Mark(context.Background(), a, KindEntry); !errors.Is(err, ErrMarkInFlight) {
		t.Errorf("Expected ErrMarkInFlight, got %v", err)
	}

	close(store.block)
	if err := <-done; err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if len(store.saved) != 1 {
		t.Errorf("Expected exactly one mark saved, got %d", len(store.saved))
	}
}

func TestMarker_Load(t *testing.T) {
	store := &fakeStore{listed: []Mark{{ID: 9, AssignmentID: 1, Kind: KindEntry, At: monday}}}
	m := newTestMarker(store, geolocation.StaticSource{Fix: geolocation.Fix{Position: inside}})
	if err := m.Load(context.Background(), 7); err != nil {
		t.Fatalf("Load: %v", err)
	}
	pos := inside
	if e := m.Eligibility(&pos, testAssignment()); e.Entry || !e.Exit {
		t.Errorf("Expected loaded entry to allow only exit, got %+v", e)
	}
}

func TestMarker_SetLocationFollowsBackendDay(t *testing.T) {
	laPaz := time.FixedZone("BOT", -4*3600)
	entry := time.Date(2024, 1, 1, 8, 0, 0, 0, laPaz)
	store := &fakeStore{listed: []Mark{{ID: 1, AssignmentID: 1, Kind: KindEntry, At: entry}}}
	m := newTestMarker(store, geolocation.StaticSource{Fix: geolocation.Fix{Position: inside}})
	// 21:00 in La Paz is already Tuesday 01:00 in UTC
	m.now = func() time.Time { return time.Date(2024, 1, 1, 21, 0, 0, 0, laPaz) }
	if err := m.Load(context.Background(), 7); err != nil {
		t.Fatalf("Load: %v", err)
	}
	pos := inside

	if err := m.Eligibility(&pos, testAssignment()).Check(KindExit); err != nil {
		t.Errorf("Device day: expected exit to be allowed, got %v", err)
	}

	m.SetLocation(time.UTC)
	e := m.Eligibility(&pos, testAssignment())
	if !errors.Is(e.Check(KindExit), ErrEntryMissing) {
		t.Errorf("UTC day: expected ErrEntryMissing, got %v", e.Check(KindExit))
	}
	if !e.Entry {
		t.Errorf("UTC day: expected a fresh entry to be allowed, got %+v", e)
	}
}
