// ABOUTME: Optimistic apply/rollback helper for single-field mutations
// ABOUTME: Suppresses repeat triggers while a mutation is outstanding

package mutate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrInFlight is returned when a mutation for an entity is requested while
// a prior one for the same entity is still outstanding. The local state is
// left untouched.
var ErrInFlight = errors.New("mutation already in flight for entity")

// Mutation is the command form of an optimistic single-field update: apply
// the new value locally, and restore the captured snapshot on failure.
type Mutation struct {
	Apply    func()
	Rollback func()
}

// Field builds a Mutation for a single value accessed through get/set. The
// prior value is snapshotted when the mutation is built, before Apply runs.
func Field[T any](get func() T, set func(T), newValue T) Mutation {
	prior := get()
	return Mutation{
		Apply:    func() { set(newValue) },
		Rollback: func() { set(prior) },
	}
}

// Tracker runs optimistic mutations and suppresses concurrent ones per
// entity, preventing state thrash from rapid repeated triggers.
type Tracker struct {
	mu       sync.Mutex
	inflight map[string]bool
	logger   *slog.Logger
}

// NewTracker creates a tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		inflight: make(map[string]bool),
		logger:   logger.With("component", "mutate"),
	}
}

// Do applies m locally, runs the remote call, and rolls back to the prior
// snapshot if the remote call fails. While the call is outstanding, further
// mutations for entityID return ErrInFlight without touching state.
func (t *Tracker) Do(ctx context.Context, entityID string, m Mutation, remote func(context.Context) error) error {
	t.mu.Lock()
	if t.inflight[entityID] {
		t.mu.Unlock()
		return ErrInFlight
	}
	t.inflight[entityID] = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.inflight, entityID)
		t.mu.Unlock()
	}()

	m.Apply()
	if err := remote(ctx); err != nil {
		t.logger.Debug("rolling back optimistic mutation", "entity_id", entityID, "error", err)
		m.Rollback()
		return err
	}
	return nil
}
