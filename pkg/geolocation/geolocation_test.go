package geolocation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/geofence"
)

func TestTracker_PositionRequestsFreshFix(t *testing.T) {
	var calls int32
	src := SourceFunc(func(ctx context.Context) (Fix, error) {
		atomic.AddInt32(&calls, 1)
		return Fix{Position: geofence.Point{Lat: -16.5, Lng: -68.15}}, nil
	})
	tr := NewTracker(src, time.Minute)

	if _, ok := tr.Last(); ok {
		t.Fatalf("Expected no cached fix before the first request")
	}

	p, err := tr.Position(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != -16.5 {
		t.Errorf("Unexpected position %v", p)
	}

	// cached and fresh: no new request
	if _, err := tr.Position(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected 1 source call, got %d", n)
	}
}

func TestTracker_StaleFixRefreshes(t *testing.T) {
	var calls int32
	src := SourceFunc(func(ctx context.Context) (Fix, error) {
		atomic.AddInt32(&calls, 1)
		return Fix{}, nil
	})
	tr := NewTracker(src, time.Second)
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	_, _ = tr.Position(context.Background())
	now = now.Add(2 * time.Second)
	_, _ = tr.Position(context.Background())

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Expected a refresh for the stale fix, got %d calls", n)
	}
}

func TestTracker_Unavailable(t *testing.T) {
	tr := NewTracker(StaticSource{Err: ErrUnavailable}, time.Minute)
	if _, err := tr.Position(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if _, ok := tr.Last(); ok {
		t.Errorf("Failed requests must not populate the cache")
	}
}

func TestTracker_WatchAndCancel(t *testing.T) {
	var n int64
	src := SourceFunc(func(ctx context.Context) (Fix, error) {
		i := atomic.AddInt64(&n, 1)
		return Fix{Position: geofence.Point{Lat: float64(i)}}, nil
	})
	tr := NewTracker(src, 0)

	sub := tr.Watch(context.Background(), 5*time.Millisecond)

	select {
	case f := <-sub.C:
		if f.Position.Lat < 1 {
			t.Errorf("Unexpected fix %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatalf("Expected a fix from the watch")
	}

	sub.Cancel()
	sub.Cancel()

	select {
	case <-sub.Done():
	default:
		t.Fatalf("Expected watch to be stopped after Cancel")
	}
	for range sub.C {
		// drain; channel must be closed
	}
	if _, ok := tr.Last(); !ok {
		t.Errorf("Expected watch to cache fixes")
	}
}

func TestTracker_WatchStopsWithContext(t *testing.T) {
	tr := NewTracker(StaticSource{Err: ErrUnavailable}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	sub := tr.Watch(ctx, time.Millisecond)
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatalf("Expected watch to stop when its context ends")
	}
	if !errors.Is(sub.Err(), ErrUnavailable) && !errors.Is(sub.Err(), context.Canceled) {
		t.Errorf("Unexpected subscription error %v", sub.Err())
	}
}

func TestTracker_WatchClampsInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		var n int64
		src := SourceFunc(func(ctx context.Context) (Fix, error) {
			atomic.AddInt64(&n, 1)
			return Fix{Position: geofence.Point{Lat: 1}}, nil
		})
		sub := NewTracker(src, 0).Watch(context.Background(), interval)

		select {
		case <-sub.C:
		case <-time.After(time.Second):
			t.Fatalf("interval %v: expected a fix from the watch", interval)
		}
		time.Sleep(5 * MinWatchInterval)
		sub.Cancel()
		if got := atomic.LoadInt64(&n); got > 10 {
			t.Errorf("interval %v: expected polling to be throttled, got %d reads", interval, got)
		}
	}
}
