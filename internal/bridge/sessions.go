package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/sandevgo/termbridge/pkg/log"
)

// Factory builds a fresh, unstarted supervisor for a session key. The
// key lets the factory tag the child process with its session identity.
type Factory func(key string) *Supervisor

// session is one registry slot. Its own mutex serializes creation and
// restart for the key, so a slow or stuck Start wedges only this
// session, never the registry.
type session struct {
	mu  sync.Mutex
	sup *Supervisor
}

// Registry maps a transport-supplied session key (WebSocket connection
// id, chat id, or the shared default) to exactly one supervisor.
// Entries are created lazily and restarted lazily: callers always get a
// supervisor whose child is running.
type Registry struct {
	factory Factory

	// mu guards the map only. Starting a child happens under the
	// per-session lock; sessions stay fully independent.
	mu       sync.Mutex
	sessions map[string]*session
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*session),
	}
}

// GetOrCreate returns the live supervisor for key, spawning or
// respawning its child as needed. A start failure propagates and leaves
// no entry behind.
func (r *Registry) GetOrCreate(ctx context.Context, key string) (*Supervisor, error) {
	r.mu.Lock()
	ent, ok := r.sessions[key]
	if !ok {
		ent = &session{}
		r.sessions[key] = ent
	}
	r.mu.Unlock()

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.sup != nil {
		if ent.sup.Alive() {
			return ent.sup, nil
		}
		// Reap the dead child, then reuse the supervisor.
		_ = ent.sup.Stop()
		if err := ent.sup.Start(ctx); err != nil {
			r.remove(key, ent)
			return nil, err
		}
		log.FromCtx(ctx).Info().Str("session", key).Msg("terminal session restarted")
		return ent.sup, nil
	}

	sup := r.factory(key)
	if err := sup.Start(ctx); err != nil {
		r.remove(key, ent)
		return nil, err
	}
	ent.sup = sup
	log.FromCtx(ctx).Info().Str("session", key).Msg("terminal session created")
	return sup, nil
}

// remove drops the entry unless another caller already replaced it.
func (r *Registry) remove(key string, ent *session) {
	r.mu.Lock()
	if r.sessions[key] == ent {
		delete(r.sessions, key)
	}
	r.mu.Unlock()
}

// Release stops the session's child and removes the mapping. Used when
// a stateful transport connection closes; unknown keys are a no-op.
func (r *Registry) Release(ctx context.Context, key string) {
	r.mu.Lock()
	ent, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if !ok {
		return
	}

	ent.mu.Lock()
	sup := ent.sup
	ent.sup = nil
	ent.mu.Unlock()

	if sup == nil {
		return
	}
	if err := sup.Stop(); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("session", key).Msg("failed to stop terminal session")
	} else {
		log.FromCtx(ctx).Info().Str("session", key).Msg("terminal session released")
	}
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops every session. Used at shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	var errs []error
	for _, ent := range entries {
		ent.mu.Lock()
		sup := ent.sup
		ent.sup = nil
		ent.mu.Unlock()

		if sup == nil {
			continue
		}
		if err := sup.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
