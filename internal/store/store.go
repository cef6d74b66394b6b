// internal/store/store.go
//
// Persistence interface for hidden picture game state.
//
// A Record is the whole saved session: the encoded canvas snapshot, the draw
// region (absent in records written before regions were persisted) and the point
// list including found flags. Records are JSON-encoded by every backend so the
// stored shape is the same everywhere:
//
//   { "imageSnapshot": "data:image/png;base64,...",
//     "drawRegion": {"x":0,"y":100,"width":800,"height":400} | null,
//     "points": [ ... ] }

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/robalobadob/hiddenpicture/internal/game"
)

// KeyPrefix namespaces every stored session.
const KeyPrefix = "hiddenPictureGame_state"

// ErrNotFound is returned by Load when no record exists for the key.
var ErrNotFound = errors.New("not found")

// ErrCorrupt is returned by Load when the stored payload is not a valid record.
var ErrCorrupt = errors.New("corrupt record")

// Record is one persisted session.
type Record struct {
	ImageSnapshot string       `json:"imageSnapshot"`
	DrawRegion    *game.Region `json:"drawRegion"`
	Points        []game.Point `json:"points"`
}

// Store defines the persistence interface for game sessions.
// Implementations may be backed by memory (this package), SQLite or Redis.
type Store interface {
	// Save persists or replaces the record under key.
	Save(ctx context.Context, key string, rec *Record) error

	// Load retrieves the record under key, or ErrNotFound.
	Load(ctx context.Context, key string) (*Record, error)

	// Delete removes the record under key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// Key builds the storage key for a player.
func Key(player string) string { return KeyPrefix + ":" + player }

func encode(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("nil record")
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

func decode(b []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &rec, nil
}
