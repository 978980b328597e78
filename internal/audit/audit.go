// Package audit captures an append-only trail of domain mutations. Events are
// handed to a buffered channel and persisted by a background worker so request
// handling never blocks on the audit sink.
package audit

import (
	"context"
	"sync"
	"time"
)

// Event records one domain mutation. Keep it transport-agnostic so stores and
// sinks can fan out.
type Event struct {
	Timestamp time.Time
	ActorID   int64
	Action    string // e.g. "user.created", "post.created", "follow.deleted"
	Subject   string
	Detail    string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actorID int64) ([]Event, error)
}

// MemoryStore keeps events in memory, primarily for tests and the
// zero-config deployment path.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByActor(_ context.Context, actorID int64) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.ActorID == actorID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Publisher queues events for the worker. A nil Publisher discards events so
// services can emit unconditionally.
type Publisher struct {
	inbox chan Event
}

func NewPublisher(buffer int) *Publisher {
	return &Publisher{inbox: make(chan Event, buffer)}
}

// Emit enqueues an event, stamping the timestamp when unset. Events are
// dropped rather than blocking the request when the buffer is full.
func (p *Publisher) Emit(_ context.Context, event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
	default:
	}
}

// Worker drains the publisher's inbox into the store.
type Worker struct {
	store Store
	inbox <-chan Event
}

func NewWorker(store Store, publisher *Publisher) *Worker {
	return &Worker{store: store, inbox: publisher.inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}
