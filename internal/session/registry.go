// internal/session/registry.go
//
// Registry of live sessions keyed by player.
// Sessions are restored from the store the first time a player is seen in this
// process and kept in memory afterwards; every mutation is still written through
// to the store, so dropping a live session loses nothing.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hiddenpicture/internal/store"
)

// Registry owns the live sessions.
type Registry struct {
	store store.Store
	opts  Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry constructs an empty registry backed by st.
func NewRegistry(st store.Store, opts Options) *Registry {
	return &Registry{store: st, opts: opts, sessions: make(map[string]*Session)}
}

// Open returns the live session for player, restoring it from the store on
// first use. A record that cannot be decoded is deleted and an empty session
// with a warning status is returned instead.
//
// The store is read without holding the registry lock; when two requests race
// on a new player the first inserted session wins.
func (r *Registry) Open(ctx context.Context, player string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[player]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err := r.restore(ctx, player)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if live, ok := r.sessions[player]; ok {
		return live, nil
	}
	r.sessions[player] = s
	return s, nil
}

// restore builds a session from the saved record, clearing records that are
// unreadable either as JSON or as an image.
func (r *Registry) restore(ctx context.Context, player string) (*Session, error) {
	s := New(player, r.store, r.opts)
	rec, err := r.store.Load(ctx, store.Key(player))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s, nil
	case errors.Is(err, store.ErrCorrupt):
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	default:
		if err = s.Restore(rec); err == nil {
			log.Debug().Str("player", player).Int("points", len(rec.Points)).Msg("session restored")
			return s, nil
		}
	}

	log.Warn().Err(err).Str("player", player).Msg("discarding unreadable saved game")
	if derr := r.store.Delete(ctx, store.Key(player)); derr != nil {
		return nil, fmt.Errorf("delete corrupt session: %w", derr)
	}
	s = New(player, r.store, r.opts)
	s.setStatus(LevelWarning, msgRestoreReset)
	return s, nil
}

// Reset deletes the player's saved game and drops the live session.
// The next Open starts from an empty session.
func (r *Registry) Reset(ctx context.Context, player string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[player]; ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.retired = true
	}
	if err := r.store.Delete(ctx, store.Key(player)); err != nil {
		return Status{}, fmt.Errorf("delete session: %w", err)
	}
	delete(r.sessions, player)
	return Status{Level: LevelInfo, Text: msgReset}, nil
}

// Move hands the game saved under from over to to, unless to already has a
// saved game. Used when an anonymous player signs in. Reports whether a game
// was moved.
//
// A live from session is retired under its own lock, so a request still
// holding it cannot write the old record back.
func (r *Registry) Move(ctx context.Context, from, to string) (bool, error) {
	if from == "" || to == "" || from == to {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.store.Load(ctx, store.Key(to)); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrCorrupt) {
		return false, err
	}

	var rec *store.Record
	live, ok := r.sessions[from]
	if ok {
		live.mu.Lock()
		defer live.mu.Unlock()
		snap, err := live.snapshotLocked()
		if err != nil {
			return false, err
		}
		if snap.ImageSnapshot == "" {
			return false, nil
		}
		rec = snap
	} else {
		loaded, err := r.store.Load(ctx, store.Key(from))
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrCorrupt) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		rec = loaded
	}

	if err := r.store.Save(ctx, store.Key(to), rec); err != nil {
		return false, fmt.Errorf("save moved session: %w", err)
	}
	if ok {
		live.retired = true
	}
	if err := r.store.Delete(ctx, store.Key(from)); err != nil {
		log.Warn().Err(err).Str("player", from).Msg("delete moved session")
	}
	delete(r.sessions, from)
	delete(r.sessions, to)
	return true, nil
}

// Sweep drops live sessions idle for longer than idle and returns how many
// were dropped. Their saved state stays in the store.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, key)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(idle); n > 0 {
				log.Debug().Int("dropped", n).Msg("idle sessions swept")
			}
		}
	}
}

// Live reports how many sessions are held in memory.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
