package service

import (
	"context"

	"github.com/jdziat/versioned-jobs/pkg/core"
)

// OnUpdate registers a callback for committed updates.
func (s *Service) OnUpdate(fn func(context.Context, *core.Job)) {
	s.mu.Lock()
	s.onUpdate = append(s.onUpdate, fn)
	s.mu.Unlock()
}

// OnConflict registers a callback for writes rejected by the version guard.
func (s *Service) OnConflict(fn func(context.Context, *core.ConcurrentModificationError)) {
	s.mu.Lock()
	s.onConflict = append(s.onConflict, fn)
	s.mu.Unlock()
}

// Events returns a channel for receiving job events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (s *Service) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	s.mu.Lock()
	s.eventSubs = append(s.eventSubs, ch)
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed; callers must stop reading before calling Unsubscribe.
func (s *Service) Unsubscribe(ch <-chan core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.eventSubs {
		if sub == ch {
			s.eventSubs = append(s.eventSubs[:i], s.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit sends an event to all subscribers, dropping it for any subscriber
// whose buffer is full.
func (s *Service) Emit(e core.Event) {
	s.mu.RLock()
	subs := make([]chan core.Event, len(s.eventSubs))
	copy(subs, s.eventSubs)
	s.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Service) callUpdateHooks(ctx context.Context, job *core.Job) {
	s.mu.RLock()
	hooks := make([]func(context.Context, *core.Job), len(s.onUpdate))
	copy(hooks, s.onUpdate)
	s.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job)
	}
}

func (s *Service) callConflictHooks(ctx context.Context, cm *core.ConcurrentModificationError) {
	s.mu.RLock()
	hooks := make([]func(context.Context, *core.ConcurrentModificationError), len(s.onConflict))
	copy(hooks, s.onConflict)
	s.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, cm)
	}
}
