package geolocation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arnavshah/attendance-api-go/pkg/geofence"
)

// ErrUnavailable is returned when the device cannot or will not report a position
var ErrUnavailable = errors.New("geolocation unavailable")

// Fix is a single position reading
type Fix struct {
	Position geofence.Point
	Accuracy float64 // meters, 0 when unknown
	At       time.Time
}

// Source is the device's one-shot position capability
type Source interface {
	Current(ctx context.Context) (Fix, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) (Fix, error)

func (f SourceFunc) Current(ctx context.Context) (Fix, error) { return f(ctx) }

// StaticSource always reports the same fix, or Err when set
type StaticSource struct {
	Fix Fix
	Err error
}

func (s StaticSource) Current(ctx context.Context) (Fix, error) {
	if s.Err != nil {
		return Fix{}, s.Err
	}
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	f := s.Fix
	if f.At.IsZero() {
		f.At = time.Now()
	}
	return f, nil
}

// Tracker caches the latest fix from a source
type Tracker struct {
	src    Source
	maxAge time.Duration
	now    func() time.Time

	mu   sync.RWMutex
	last *Fix
}

// NewTracker creates a tracker. Cached fixes older than maxAge are treated as
// stale and a fresh one is requested.
func NewTracker(src Source, maxAge time.Duration) *Tracker {
	return &Tracker{src: src, maxAge: maxAge, now: time.Now}
}

// Last returns the most recent fix, if any
func (t *Tracker) Last() (Fix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return Fix{}, false
	}
	return *t.last, true
}

func (t *Tracker) store(f Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil || !f.At.Before(t.last.At) {
		t.last = &f
	}
}

// Refresh requests a fresh fix from the source and caches it
func (t *Tracker) Refresh(ctx context.Context) (Fix, error) {
	f, err := t.src.Current(ctx)
	if err != nil {
		return Fix{}, err
	}
	if f.At.IsZero() {
		f.At = t.now()
	}
	t.store(f)
	return f, nil
}

// Position returns the cached position when fresh, otherwise blocks for a
// new fix.
func (t *Tracker) Position(ctx context.Context) (geofence.Point, error) {
	if f, ok := t.Last(); ok && (t.maxAge <= 0 || t.now().Sub(f.At) <= t.maxAge) {
		return f.Position, nil
	}
	f, err := t.Refresh(ctx)
	if err != nil {
		return geofence.Point{}, err
	}
	return f.Position, nil
}

// Subscription is a continuous position watch. The view that created it owns
// it and must Cancel it on teardown.
type Subscription struct {
	C <-chan Fix

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
	err    error
}

// Cancel stops the watch and waits for it to wind down. Safe to call more
// than once.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed once the watch has stopped
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports the last source error seen by the watch
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// MinWatchInterval is the shortest polling interval Watch accepts
const MinWatchInterval = 10 * time.Millisecond

// Watch polls the source every interval, caching and publishing each fix.
// Intervals below MinWatchInterval are raised to it. Slow consumers miss
// intermediate fixes rather than stall the watch.
func (t *Tracker) Watch(ctx context.Context, interval time.Duration) *Subscription {
	if interval < MinWatchInterval {
		interval = MinWatchInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Fix, 1)
	sub := &Subscription{C: ch, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			f, err := t.Refresh(ctx)
			sub.mu.Lock()
			sub.err = err
			sub.mu.Unlock()
			if err == nil {
				select {
				case ch <- f:
				default:
					// drop the stale one and publish the newest
					select {
					case <-ch:
					default:
					}
					select {
					case ch <- f:
					default:
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return sub
}
