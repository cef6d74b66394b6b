// internal/game/types.go
//
// Core type definitions for the hidden picture engine.
// Defines:
//   - Region: the letterboxed rectangle of the canvas covered by the image.
//   - Size: plain width/height pair for canvases and display surfaces.
//   - Point: a hidden target with its preview clue and found flag.
//   - Params: hit radius, padding and preview size used by generation.

package game

import "errors"

const (
	DefaultHitRadius   = 40.0
	DefaultPadding     = 20.0
	DefaultPreviewSize = 80.0

	MinPoints     = 1
	MaxPoints     = 10
	DefaultPoints = 5
)

// Sentinel errors surfaced to players through the status channel.
var (
	// ErrNoImage is returned when points are requested before an image is loaded.
	ErrNoImage = errors.New("no image loaded")
	// ErrRegionTooSmall is returned when the draw region minus margins has no area.
	ErrRegionTooSmall = errors.New("image region too small for points")
	// ErrDecode wraps any failure to decode an uploaded or stored image.
	ErrDecode = errors.New("image decode failed")
)

// Region is the sub-rectangle of the canvas where the image is rendered.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a single hidden target.
//
// X and Y are canvas-space coordinates of the centre. Preview is a PNG data URL
// cropped from the canvas at generation time; PreviewSize is its side length and
// also the side of the square that counts as a hit.
type Point struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Found       bool    `json:"found"`
	Preview     string  `json:"previewDataUrl,omitempty"`
	PreviewSize float64 `json:"previewSize"`
}

// Params tunes point generation.
type Params struct {
	HitRadius   float64 // radius of the found ring
	Padding     float64 // extra inset past the hit radius
	PreviewSize float64 // side of the preview square
}

// DefaultParams returns the stock generation parameters.
func DefaultParams() Params {
	return Params{
		HitRadius:   DefaultHitRadius,
		Padding:     DefaultPadding,
		PreviewSize: DefaultPreviewSize,
	}
}

// Margin is the inset applied to the draw region before sampling point centres.
func (p Params) Margin() float64 { return p.HitRadius + p.Padding }
