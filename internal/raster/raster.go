// internal/raster/raster.go
//
// Pixel-level work for the hidden picture game.
// Responsibilities:
//   - Decode uploaded or stored images (PNG, JPEG, GIF, BMP, WebP).
//   - Own the fixed-size canvas the image is letterboxed into.
//   - Crop square preview clues and draw the "found" ring marker.
//   - Encode the canvas or a crop as PNG bytes / data URLs for storage.
//
// Coordinates are canvas pixels, matching internal/game. Float inputs are rounded
// to the nearest pixel and clipped to the canvas.

package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/robalobadob/hiddenpicture/internal/game"
)

const dataURLPrefix = "data:image/png;base64,"

// RingColor is the colour of the found marker (#27ae60).
var RingColor = color.RGBA{R: 0x27, G: 0xae, B: 0x60, A: 0xff}

// Decode reads any registered image format. Errors wrap game.ErrDecode.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", game.ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", fmt.Errorf("%w: empty image", game.ErrDecode)
	}
	return img, format, nil
}

// Canvas is a fixed-size drawing surface.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas allocates a transparent w×h canvas.
func NewCanvas(w, h int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() game.Size {
	b := c.img.Bounds()
	return game.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// Image exposes the backing pixels. Callers must not retain it across mutations.
func (c *Canvas) Image() image.Image { return c.img }

// Clear resets every pixel to transparent.
func (c *Canvas) Clear() {
	draw.Draw(c.img, c.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// DrawFitted clears the canvas and draws img scaled into its letterboxed
// region, which is returned.
func (c *Canvas) DrawFitted(img image.Image) game.Region {
	c.Clear()
	size := c.Size()
	b := img.Bounds()
	region := game.FitRegion(float64(b.Dx()), float64(b.Dy()), size.Width, size.Height)
	dst := c.pixelRect(region)
	if !dst.Empty() {
		xdraw.CatmullRom.Scale(c.img, dst, img, b, xdraw.Over, nil)
	}
	return region
}

// DrawStretched clears the canvas and scales img over the whole surface.
// Used to restore a saved canvas snapshot.
func (c *Canvas) DrawStretched(img image.Image) {
	c.Clear()
	if img.Bounds().Eq(c.img.Bounds()) {
		draw.Draw(c.img, c.img.Bounds(), img, img.Bounds().Min, draw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(c.img, c.img.Bounds(), img, img.Bounds(), xdraw.Src, nil)
}

// Crop copies the size×size square centred on (cx, cy). Parts outside the
// canvas stay transparent.
func (c *Canvas) Crop(cx, cy, size float64) *image.RGBA {
	n := int(math.Round(size))
	out := image.NewRGBA(image.Rect(0, 0, n, n))
	origin := image.Pt(int(math.Round(cx-size/2)), int(math.Round(cy-size/2)))
	src := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(n, n))}.Intersect(c.img.Bounds())
	if src.Empty() {
		return out
	}
	draw.Draw(out, src.Sub(origin), c.img, src.Min, draw.Src)
	return out
}

// Ring strokes a circle of the given radius and line width centred on (cx, cy).
func (c *Canvas) Ring(cx, cy, radius, width float64, col color.Color) {
	half := width / 2
	outer := radius + half
	bounds := image.Rect(
		int(math.Floor(cx-outer)), int(math.Floor(cy-outer)),
		int(math.Ceil(cx+outer))+1, int(math.Ceil(cy+outer))+1,
	).Intersect(c.img.Bounds())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// sample pixel centres
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			if math.Abs(d-radius) <= half {
				c.img.Set(x, y, col)
			}
		}
	}
}

// PNG encodes the whole canvas.
func (c *Canvas) PNG() ([]byte, error) { return EncodePNG(c.img) }

// DataURL encodes the whole canvas as a PNG data URL.
func (c *Canvas) DataURL() (string, error) { return DataURL(c.img) }

// pixelRect rounds a float region to whole pixels inside the canvas.
func (c *Canvas) pixelRect(r game.Region) image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.X+r.Width)), int(math.Round(r.Y+r.Height)),
	).Intersect(c.img.Bounds())
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL encodes img as a "data:image/png;base64," URL.
func DataURL(img image.Image) (string, error) {
	b, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(b), nil
}

// DecodeDataURL decodes a base64 image data URL of any registered format.
// A bare base64 payload without the "data:" header is accepted too.
func DecodeDataURL(s string) (image.Image, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, body, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: malformed data url", game.ErrDecode)
		}
		payload = body
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrDecode, err)
	}
	img, _, err := Decode(bytes.NewReader(raw))
	return img, err
}
