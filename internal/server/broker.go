package server

import (
	"sync"

	"github.com/foodshed/siteplan/internal/optimizer"
)

// broker fans optimizer events out to SSE subscribers, buffering the full
// event history per run so a client that connects mid-run still sees every
// event from the start.
type broker struct {
	mu   sync.Mutex
	runs map[string]*runStream
}

type runStream struct {
	events []optimizer.Event
	subs   map[chan optimizer.Event]struct{}
	closed bool
}

func newBroker() *broker {
	return &broker{runs: make(map[string]*runStream)}
}

// publish records an event for the run and delivers it to attached
// subscribers. Slow subscribers are dropped rather than blocking the
// pipeline goroutine.
func (b *broker) publish(runID string, ev optimizer.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rs := b.stream(runID)
	rs.events = append(rs.events, ev)
	for ch := range rs.subs {
		select {
		case ch <- ev:
		default:
			delete(rs.subs, ch)
			close(ch)
		}
	}
}

// subscribe returns the buffered history plus a live channel. The channel
// is closed when the run finishes. The caller must invoke the returned
// cancel func when done.
func (b *broker) subscribe(runID string) ([]optimizer.Event, <-chan optimizer.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rs := b.stream(runID)
	history := make([]optimizer.Event, len(rs.events))
	copy(history, rs.events)

	ch := make(chan optimizer.Event, 64)
	if rs.closed {
		close(ch)
		return history, ch, func() {}
	}
	rs.subs[ch] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := rs.subs[ch]; ok {
			delete(rs.subs, ch)
			close(ch)
		}
	}
	return history, ch, cancel
}

// finish marks the run's stream complete and closes live subscribers. The
// buffered history stays available for late subscribers.
func (b *broker) finish(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rs := b.stream(runID)
	rs.closed = true
	for ch := range rs.subs {
		delete(rs.subs, ch)
		close(ch)
	}
}

func (b *broker) stream(runID string) *runStream {
	rs, ok := b.runs[runID]
	if !ok {
		rs = &runStream{subs: make(map[chan optimizer.Event]struct{})}
		b.runs[runID] = rs
	}
	return rs
}
