package raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/robalobadob/hiddenpicture/internal/game"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

var red = color.RGBA{R: 255, A: 255}

func TestDecodeFormats(t *testing.T) {
	src := solid(16, 8, red)

	pngBytes, err := EncodePNG(src)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, src, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}

	for name, data := range map[string][]byte{"png": pngBytes, "jpeg": jpg.Bytes()} {
		img, format, err := Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: Decode: %v", name, err)
		}
		if format != name {
			t.Errorf("format = %q, want %q", format, name)
		}
		if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
			t.Errorf("%s: bounds = %v", name, b)
		}
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode(strings.NewReader("not an image"))
	if !errors.Is(err, game.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestDrawFittedLetterboxes(t *testing.T) {
	c := NewCanvas(800, 600)
	region := c.DrawFitted(solid(1600, 800, red))

	want := game.Region{X: 0, Y: 100, Width: 800, Height: 400}
	if region != want {
		t.Fatalf("region = %+v, want %+v", region, want)
	}
	img := c.Image()
	if _, _, _, a := img.At(400, 50).RGBA(); a != 0 {
		t.Errorf("letterbox band is not transparent")
	}
	if r, _, _, a := img.At(400, 300).RGBA(); r == 0 || a == 0 {
		t.Errorf("image area not drawn")
	}
}

func TestCropCentredAndClipped(t *testing.T) {
	c := NewCanvas(200, 200)
	c.DrawStretched(solid(200, 200, red))

	crop := c.Crop(100, 100, 80)
	if b := crop.Bounds(); b.Dx() != 80 || b.Dy() != 80 {
		t.Fatalf("crop bounds = %v", b)
	}
	if got := crop.RGBAAt(40, 40); got != red {
		t.Errorf("centre pixel = %v, want red", got)
	}

	edge := c.Crop(0, 0, 80)
	if got := edge.RGBAAt(10, 10); got.A != 0 {
		t.Errorf("outside-canvas pixel = %v, want transparent", got)
	}
	if got := edge.RGBAAt(60, 60); got != red {
		t.Errorf("inside-canvas pixel = %v, want red", got)
	}
}

func TestRing(t *testing.T) {
	c := NewCanvas(200, 200)
	c.Ring(100, 100, 40, 3, RingColor)
	img := c.Image().(*image.RGBA)

	if got := img.RGBAAt(140, 100); got != RingColor {
		t.Errorf("pixel on ring = %v, want %v", got, RingColor)
	}
	if got := img.RGBAAt(100, 100); got.A != 0 {
		t.Errorf("centre pixel = %v, want transparent", got)
	}
	if got := img.RGBAAt(150, 100); got.A != 0 {
		t.Errorf("pixel outside ring = %v, want transparent", got)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	c := NewCanvas(32, 24)
	c.DrawStretched(solid(32, 24, red))
	url, err := c.DataURL()
	if err != nil {
		t.Fatalf("DataURL: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %.30s", url)
	}
	img, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("bounds = %v", b)
	}
}

func TestDecodeDataURLMalformed(t *testing.T) {
	for _, s := range []string{
		"data:image/png,notbase64header",
		"data:image/png;base64,!!!",
		"data:image/png;base64,aGVsbG8=",
	} {
		if _, err := DecodeDataURL(s); !errors.Is(err, game.ErrDecode) {
			t.Errorf("DecodeDataURL(%q) err = %v, want ErrDecode", s, err)
		}
	}
}
