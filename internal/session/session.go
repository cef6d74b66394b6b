// internal/session/session.go
//
// Per-player hidden picture session.
// Responsibilities:
//   - Own the canvas, draw region and point list for one player.
//   - Load an image (blocking decode), generate points, hit-test clicks.
//   - Persist the whole state through store.Store after every mutation.
//   - Restore a saved record, including the legacy "no region" shape.
//
// Notes:
//   - Every exported method takes the session lock; callers never see partial state.
//   - The canvas is the saved snapshot, so found rings persist with it.

package session

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hiddenpicture/internal/game"
	"github.com/robalobadob/hiddenpicture/internal/raster"
	"github.com/robalobadob/hiddenpicture/internal/store"
)

// Options configures new sessions.
type Options struct {
	CanvasWidth  int
	CanvasHeight int
	Params       game.Params
	RingWidth    float64
	Rand         game.Rand // nil uses the shared math/rand/v2 source
}

// DefaultOptions returns an 800×600 canvas with the stock parameters.
func DefaultOptions() Options {
	return Options{
		CanvasWidth:  800,
		CanvasHeight: 600,
		Params:       game.DefaultParams(),
		RingWidth:    3,
	}
}

// ClickResult describes the outcome of a canvas click.
type ClickResult struct {
	Hit       bool   `json:"hit"`
	Index     int    `json:"index"` // -1 on miss
	PointID   string `json:"pointId,omitempty"`
	Remaining int    `json:"remaining"`
	Cleared   bool   `json:"cleared"` // this hit found the last point
}

// Session is the engine context for one player.
type Session struct {
	mu sync.Mutex

	key   string
	store store.Store
	opts  Options
	rnd   game.Rand

	canvas *raster.Canvas
	region *game.Region
	points []game.Point
	loaded bool
	status Status
	used   time.Time

	// retired sessions were reset or moved away; they no longer write to the store
	retired bool
}

// New constructs an empty session persisted under player key.
func New(key string, st store.Store, opts Options) *Session {
	rnd := opts.Rand
	if rnd == nil {
		rnd = sharedRand{}
	}
	return &Session{
		key:    key,
		store:  st,
		opts:   opts,
		rnd:    rnd,
		canvas: raster.NewCanvas(opts.CanvasWidth, opts.CanvasHeight),
		points: []game.Point{},
		used:   time.Now(),
	}
}

// sharedRand adapts the goroutine-safe top-level math/rand/v2 functions.
type sharedRand struct{}

func (sharedRand) Float64() float64 { return rand.Float64() }

// Key returns the player key.
func (s *Session) Key() string { return s.key }

// Loaded reports whether an image has been decoded and drawn.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// LoadImage decodes r, draws it letterboxed, clears the points and persists.
// It returns only after decoding finished, so Generate and Click may follow
// immediately. On a decode failure the previous state is kept.
func (s *Session) LoadImage(ctx context.Context, r io.Reader) (Status, error) {
	img, format, err := raster.Decode(r)
	if err != nil {
		return s.setStatus(LevelError, msgDecode), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	region := s.canvas.DrawFitted(img)
	s.region = &region
	s.points = []game.Point{}
	s.loaded = true

	b := img.Bounds()
	log.Debug().Str("player", s.key).Str("format", format).
		Int("width", b.Dx()).Int("height", b.Dy()).
		Interface("region", region).Msg("image loaded")

	if err := s.persist(ctx); err != nil {
		return s.status, err
	}
	return s.setStatusLocked(LevelSuccess, msgUploaded), nil
}

// Generate replaces the point list with n freshly drawn points (clamped to
// 1..10) and captures a preview crop for each.
//
// ErrNoImage leaves the state untouched. ErrRegionTooSmall empties the point list.
func (s *Session) Generate(ctx context.Context, n int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if !s.loaded {
		return s.setStatusLocked(LevelWarning, msgNoImage), game.ErrNoImage
	}
	points, err := game.GeneratePoints(s.rnd, *s.region, n, s.opts.Params)
	if err != nil {
		s.points = []game.Point{}
		if perr := s.persist(ctx); perr != nil {
			log.Warn().Err(perr).Str("player", s.key).Msg("persist after failed generate")
		}
		return s.setStatusLocked(LevelError, msgTooSmall), err
	}

	for i := range points {
		crop := s.canvas.Crop(points[i].X, points[i].Y, points[i].PreviewSize)
		url, err := raster.DataURL(crop)
		if err != nil {
			return s.status, fmt.Errorf("preview %d: %w", i, err)
		}
		points[i].Preview = url
	}
	s.points = points

	log.Debug().Str("player", s.key).Int("count", len(points)).Msg("points generated")

	if err := s.persist(ctx); err != nil {
		return s.status, err
	}
	return s.setStatusLocked(LevelInfo, fmt.Sprintf(msgGenerated, len(points))), nil
}

// Click hit-tests a canvas-space click. A hit marks the first matching unfound
// point, draws its ring and persists; a miss changes nothing but the status.
func (s *Session) Click(ctx context.Context, x, y float64) (ClickResult, Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	idx := game.HitTest(s.points, x, y)
	if idx < 0 {
		res := ClickResult{Index: -1, Remaining: game.Remaining(s.points)}
		return res, s.setStatusLocked(LevelError, msgMiss), nil
	}

	pt := &s.points[idx]
	pt.Found = true
	s.canvas.Ring(pt.X, pt.Y, s.opts.Params.HitRadius, s.opts.RingWidth, raster.RingColor)

	res := ClickResult{
		Hit:       true,
		Index:     idx,
		PointID:   pt.ID,
		Remaining: game.Remaining(s.points),
	}
	res.Cleared = res.Remaining == 0

	if err := s.persist(ctx); err != nil {
		return res, s.status, err
	}
	if res.Cleared {
		return res, s.setStatusLocked(LevelSuccess, msgCleared), nil
	}
	return res, s.setStatusLocked(LevelSuccess, msgHit), nil
}

// CanvasPNG encodes the current canvas pixels.
func (s *Session) CanvasPNG() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.PNG()
}

// Snapshot builds the persisted record for the current state.
func (s *Session) Snapshot() (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Restore replaces the session state with rec.
//
// With a region, the snapshot already holds the fitted image and is drawn over
// the whole canvas. A snapshot of another size is fitted instead, and the
// region and points are mapped into the fitted frame. Without a region (older
// records) the snapshot is treated as the source image and fitted again. A
// record with no snapshot leaves the session empty. Decode failures return an
// error wrapping game.ErrDecode and leave the session untouched.
func (s *Session) Restore(rec *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec == nil || rec.ImageSnapshot == "" {
		return nil
	}
	img, err := raster.DecodeDataURL(rec.ImageSnapshot)
	if err != nil {
		return err
	}

	points := append([]game.Point{}, rec.Points...)
	b := img.Bounds()
	saved := game.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	switch {
	case rec.DrawRegion == nil:
		region := s.canvas.DrawFitted(img)
		s.region = &region
	case saved == s.canvas.Size():
		s.canvas.DrawStretched(img)
		region := *rec.DrawRegion
		s.region = &region
	default:
		// saved under another canvas size: fit the old canvas and move
		// region and points along with its pixels
		frame := s.canvas.DrawFitted(img)
		region := game.RebaseRegion(*rec.DrawRegion, saved, frame)
		s.region = &region
		for i := range points {
			points[i].X, points[i].Y = game.Rebase(points[i].X, points[i].Y, saved, frame)
		}
	}
	s.points = points
	s.loaded = true
	s.setStatusLocked(LevelInfo, msgRestored)
	return nil
}

// Status returns the most recent status message.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) snapshotLocked() (*store.Record, error) {
	rec := &store.Record{Points: append([]game.Point{}, s.points...)}
	if !s.loaded {
		return rec, nil
	}
	url, err := s.canvas.DataURL()
	if err != nil {
		return nil, err
	}
	rec.ImageSnapshot = url
	if s.region != nil {
		region := *s.region
		rec.DrawRegion = &region
	}
	return rec, nil
}

func (s *Session) persist(ctx context.Context) error {
	if s.retired {
		return nil
	}
	rec, err := s.snapshotLocked()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := s.store.Save(ctx, store.Key(s.key), rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Session) setStatus(level Level, text string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setStatusLocked(level, text)
}

func (s *Session) setStatusLocked(level Level, text string) Status {
	s.status = Status{Level: level, Text: text}
	return s.status
}

func (s *Session) touch() { s.used = time.Now() }

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}
