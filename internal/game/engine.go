// internal/game/engine.go
//
// Pure coordinate math for the hidden picture game.
// Responsibilities:
//   - Fit an image into a fixed canvas, preserving aspect ratio (letterboxing).
//   - Shrink the fitted region by the generation margin.
//   - Generate N uniform random point centres inside the shrunk region.
//   - Hit-test a canvas click against the unfound points' preview squares.
//
// Notes:
//   - Nothing here touches pixels or storage; the session package does that.
//   - Points are not checked for overlap. Overlapping previews are allowed and the
//     first point in generation order wins a shared click.

package game

import (
	"github.com/google/uuid"
)

// Rand is the random source used by GeneratePoints.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// FitRegion scales an image of imgW×imgH uniformly so it fits inside a
// canvasW×canvasH canvas and centres it on the axis with slack.
//
// A relatively wider image spans the full canvas width; otherwise it spans the
// full height. Degenerate inputs yield the zero Region.
func FitRegion(imgW, imgH, canvasW, canvasH float64) Region {
	if imgW <= 0 || imgH <= 0 || canvasW <= 0 || canvasH <= 0 {
		return Region{}
	}
	canvasRatio := canvasW / canvasH
	imageRatio := imgW / imgH

	var w, h float64
	if imageRatio > canvasRatio {
		w = canvasW
		h = w / imageRatio
	} else {
		h = canvasH
		w = h * imageRatio
	}
	// float error must never push the region outside the canvas
	w = min(w, canvasW)
	h = min(h, canvasH)

	return Region{
		X:      (canvasW - w) / 2,
		Y:      (canvasH - h) / 2,
		Width:  w,
		Height: h,
	}
}

// ClampCount bounds a requested point count to [MinPoints, MaxPoints].
func ClampCount(n int) int {
	return max(MinPoints, min(n, MaxPoints))
}

// SafeArea returns r shrunk by margin on every side.
// ErrRegionTooSmall is returned when the result has zero or negative extent.
func SafeArea(r Region, margin float64) (Region, error) {
	safe := Region{
		X:      r.X + margin,
		Y:      r.Y + margin,
		Width:  r.Width - 2*margin,
		Height: r.Height - 2*margin,
	}
	if safe.Width <= 0 || safe.Height <= 0 {
		return Region{}, ErrRegionTooSmall
	}
	return safe, nil
}

// GeneratePoints draws n independent uniform centres inside region shrunk by
// p.Margin(). n is clamped with ClampCount. On ErrRegionTooSmall no points are
// produced. Preview images are left empty for the caller to fill in.
func GeneratePoints(rnd Rand, region Region, n int, p Params) ([]Point, error) {
	safe, err := SafeArea(region, p.Margin())
	if err != nil {
		return nil, err
	}
	n = ClampCount(n)

	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, Point{
			ID:          uuid.NewString(),
			X:           safe.X + rnd.Float64()*safe.Width,
			Y:           safe.Y + rnd.Float64()*safe.Height,
			PreviewSize: p.PreviewSize,
		})
	}
	return points, nil
}

// HitTest returns the index of the first unfound point whose preview square
// contains (x, y), edges included, or -1 if there is none.
func HitTest(points []Point, x, y float64) int {
	for i, pt := range points {
		if pt.Found {
			continue
		}
		half := previewSize(pt) / 2
		if x >= pt.X-half && x <= pt.X+half && y >= pt.Y-half && y <= pt.Y+half {
			return i
		}
	}
	return -1
}

// Remaining counts the points not yet found.
func Remaining(points []Point) int {
	n := 0
	for _, pt := range points {
		if !pt.Found {
			n++
		}
	}
	return n
}

// ToCanvas converts a click measured in display pixels into canvas pixels,
// scaling each axis by canvas/display. A zero display size means the click is
// already in canvas space.
func ToCanvas(x, y float64, display, canvas Size) (float64, float64) {
	if display.Width <= 0 || display.Height <= 0 {
		return x, y
	}
	return x * canvas.Width / display.Width, y * canvas.Height / display.Height
}

// Rebase maps canvas coordinates from a surface of size from onto frame, the
// region that surface now occupies. Used when a saved canvas is restored onto a
// canvas of another size.
func Rebase(x, y float64, from Size, frame Region) (float64, float64) {
	if from.Width <= 0 || from.Height <= 0 {
		return x, y
	}
	return frame.X + x*frame.Width/from.Width, frame.Y + y*frame.Height/from.Height
}

// RebaseRegion applies Rebase to both corners of r.
func RebaseRegion(r Region, from Size, frame Region) Region {
	x0, y0 := Rebase(r.X, r.Y, from, frame)
	x1, y1 := Rebase(r.X+r.Width, r.Y+r.Height, from, frame)
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// previewSize falls back to the default for records saved without a size.
func previewSize(pt Point) float64 {
	if pt.PreviewSize > 0 {
		return pt.PreviewSize
	}
	return DefaultPreviewSize
}
