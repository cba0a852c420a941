package jobs

import (
	"context"
	"sync"
)

// Watch streams a job's events over a channel: an init snapshot first, then
// live events in publish order. The channel closes after a terminal event or
// when ctx is done. Delivery never blocks the publisher; a slow reader only
// delays itself.
func (s *Store) Watch(ctx context.Context, id string) (<-chan Event, error) {
	mb := &mailbox{notify: make(chan struct{}, 1)}
	push := func(t EventType) func(Job) {
		return func(j Job) { mb.put(Event{Type: t, Job: j}) }
	}

	snap, unsubscribe, ok := s.Subscribe(id, Listener{
		OnProgress: push(EventProgress),
		OnComplete: push(EventComplete),
		OnError:    push(EventError),
	})
	if !ok {
		return nil, ErrNotFound
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer unsubscribe()

		first := []Event{{Type: EventInit, Job: snap}}
		// A job that already finished gets its terminal event right after init.
		switch snap.Status {
		case StatusCompleted:
			first = append(first, Event{Type: EventComplete, Job: snap})
		case StatusFailed:
			first = append(first, Event{Type: EventError, Job: snap})
		}
		for _, ev := range first {
			if !send(ctx, out, ev) || ev.Terminal() {
				return
			}
		}

		for {
			for _, ev := range mb.drain() {
				if !send(ctx, out, ev) || ev.Terminal() {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-mb.notify:
			}
		}
	}()
	return out, nil
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// mailbox is an unbounded FIFO with a wakeup signal.
type mailbox struct {
	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
}

func (m *mailbox) put(ev Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}
