package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestProcessScalesLargeImages(t *testing.T) {
	out, err := Process(encodePNG(t, 3840, 1920))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Width != 1920 || out.Height != 960 {
		t.Fatalf("expected 1920x960, got %dx%d", out.Width, out.Height)
	}
	if _, format, err := image.Decode(bytes.NewReader(out.Data)); err != nil || format != "jpeg" {
		t.Fatalf("expected jpeg output, got %q err=%v", format, err)
	}
	if out.GPS != nil {
		t.Fatal("png has no exif, expected nil GPS")
	}
}

func TestProcessKeepsSmallImages(t *testing.T) {
	out, err := Process(encodePNG(t, 640, 480))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Width != 640 || out.Height != 480 {
		t.Fatalf("expected 640x480, got %dx%d", out.Width, out.Height)
	}
}

func TestProcessPortrait(t *testing.T) {
	out, err := Process(encodePNG(t, 1000, 4000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Width != 480 || out.Height != 1920 {
		t.Fatalf("expected 480x1920, got %dx%d", out.Width, out.Height)
	}
}

func TestProcessRejectsGarbage(t *testing.T) {
	if _, err := Process([]byte("definitely not an image")); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if _, err := Process(nil); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage for empty input, got %v", err)
	}
}
