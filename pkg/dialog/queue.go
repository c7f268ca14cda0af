package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNothingShowing = errors.New("no prompt is showing")
	ErrNotShowing     = errors.New("prompt is not the one showing")
)

// Kind tells the consumer which buttons to render
type Kind string

const (
	KindAlert   Kind = "alert"
	KindConfirm Kind = "confirm"
)

// State of the queue as seen by its consumer
type State int

const (
	StateIdle State = iota
	StateShowing
)

func (s State) String() string {
	if s == StateShowing {
		return "showing"
	}
	return "idle"
}

// Prompt is one queued alert or confirm
type Prompt struct {
	ID          string
	Kind        Kind
	Title       string
	Message     string
	ConfirmText string
	CancelText  string

	answer chan bool
}

// Option customises a prompt
type Option func(*Prompt)

func WithTitle(title string) Option { return func(p *Prompt) { p.Title = title } }

func WithConfirmText(text string) Option { return func(p *Prompt) { p.ConfirmText = text } }

func WithCancelText(text string) Option { return func(p *Prompt) { p.CancelText = text } }

// Queue is a single-consumer FIFO of prompts. Producers block in Alert or
// Confirm until the consumer resolves their prompt; the consumer pulls the
// showing prompt with Next and answers it with Resolve. Only one prompt is
// showing at a time.
type Queue struct {
	mu      sync.Mutex
	pending []*Prompt
	active  *Prompt
	wake    chan struct{}
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Alert queues a message and waits until it is acknowledged
func (q *Queue) Alert(ctx context.Context, message any, opts ...Option) error {
	p := newPrompt(KindAlert, message, "Notice", "OK", "")
	_, err := q.ask(ctx, p, opts)
	return err
}

// Confirm queues a yes/no question and returns the answer
func (q *Queue) Confirm(ctx context.Context, message any, opts ...Option) (bool, error) {
	p := newPrompt(KindConfirm, message, "Confirm", "Yes", "No")
	return q.ask(ctx, p, opts)
}

func newPrompt(kind Kind, message any, title, confirm, cancel string) *Prompt {
	msg := ""
	if message != nil {
		msg = fmt.Sprint(message)
	}
	return &Prompt{
		ID:          uuid.NewString(),
		Kind:        kind,
		Title:       title,
		Message:     msg,
		ConfirmText: confirm,
		CancelText:  cancel,
		answer:      make(chan bool, 1),
	}
}

func (q *Queue) ask(ctx context.Context, p *Prompt, opts []Option) (bool, error) {
	for _, opt := range opts {
		opt(p)
	}

	q.mu.Lock()
	q.pending = append(q.pending, p)
	q.mu.Unlock()
	q.signal()

	select {
	case ok := <-p.answer:
		return ok, nil
	case <-ctx.Done():
		q.withdraw(p)
		// the consumer may have answered while we were giving up
		select {
		case ok := <-p.answer:
			return ok, nil
		default:
		}
		return false, ctx.Err()
	}
}

// withdraw drops a prompt whose producer stopped waiting
func (q *Queue) withdraw(p *Prompt) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, pp := range q.pending {
		if pp == p {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
	if q.active == p {
		q.active = nil
		q.signalLocked()
	}
}

func (q *Queue) signal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.signalLocked()
}

func (q *Queue) signalLocked() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Next returns the prompt that is showing, promoting the head of the queue
// when idle. It blocks until there is something to show.
func (q *Queue) Next(ctx context.Context) (*Prompt, error) {
	for {
		q.mu.Lock()
		if q.active == nil && len(q.pending) > 0 {
			q.active = q.pending[0]
			q.pending = q.pending[1:]
		}
		active := q.active
		q.mu.Unlock()

		if active != nil {
			return active, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		}
	}
}

// Resolve answers the showing prompt and moves the queue on. Alerts always
// resolve true.
func (q *Queue) Resolve(id string, ok bool) error {
	q.mu.Lock()
	p := q.active
	if p == nil {
		q.mu.Unlock()
		return ErrNothingShowing
	}
	if p.ID != id {
		q.mu.Unlock()
		return ErrNotShowing
	}
	q.active = nil
	if len(q.pending) > 0 {
		q.signalLocked()
	}
	q.mu.Unlock()

	if p.Kind == KindAlert {
		ok = true
	}
	p.answer <- ok
	return nil
}

// State reports whether a prompt is showing
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active != nil {
		return StateShowing
	}
	return StateIdle
}

// Len is the number of prompts waiting behind the showing one
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
