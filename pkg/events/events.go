package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind tells what happened to a plan request
type Kind string

const (
	PlanComputed   Kind = "plan.computed"
	PlanInfeasible Kind = "plan.infeasible"
	PlanFailed     Kind = "plan.failed"
	ServerStopping Kind = "server.stopping"
)

// Event is the outcome of one plan request. Scenario, Problem and Plan are
// empty when they do not apply.
type Event struct {
	ID       string
	Kind     Kind
	At       time.Time
	Scenario string
	Problem  string
	Plan     string
	Message  string
}

// New creates an event stamped with a fresh ID and the current time
func New(kind Kind, msg string) *Event {
	return &Event{
		ID:      uuid.New().String(),
		Kind:    kind,
		At:      time.Now(),
		Message: msg,
	}
}

// Fields returns the identifiers set on the event, keyed by name
func (e *Event) Fields() map[string]string {
	out := make(map[string]string, 3)
	for k, v := range map[string]string{"scenario": e.Scenario, "problem": e.Problem, "plan": e.Plan} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Subscription receives the events published after it was opened
type Subscription struct {
	feed    *Feed
	ch      chan *Event
	dropped atomic.Int64
}

// C returns the channel delivering the events. It is closed by Close or
// when the feed closes.
func (s *Subscription) C() <-chan *Event { return s.ch }

// Dropped returns how many events missed the subscription because its
// buffer was full
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close detaches the subscription from the feed. Closing twice is a no-op.
func (s *Subscription) Close() {
	s.feed.remove(s)
}

// Feed hands every published event to the open subscriptions without
// blocking the publisher
type Feed struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewFeed creates a feed whose subscriptions buffer up to buffer events
func NewFeed(buffer int) *Feed {
	if buffer < 1 {
		buffer = 1
	}
	return &Feed{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe opens a subscription. On a closed feed the subscription is
// returned already closed.
func (f *Feed) Subscribe() *Subscription {
	s := &Subscription{feed: f, ch: make(chan *Event, f.buffer)}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(s.ch)
		return s
	}
	f.subs[s] = struct{}{}
	return s
}

// Publish delivers the event to every subscription with room left. It is
// a no-op once the feed is closed.
func (f *Feed) Publish(ev *Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
		}
	}
}

// Close closes every subscription. Closing twice is a no-op.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for s := range f.subs {
		delete(f.subs, s)
		close(s.ch)
	}
}

// Len returns the number of open subscriptions
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) remove(s *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[s]; ok {
		delete(f.subs, s)
		close(s.ch)
	}
}
