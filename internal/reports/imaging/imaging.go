// Package imaging normalises report photos before storage and classification.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxDimension bounds both sides of a stored photo.
	MaxDimension = 1920
	// JPEGQuality is the re-encode quality for stored photos.
	JPEGQuality = 85
	// ContentType of every processed photo.
	ContentType = "image/jpeg"
)

// ErrInvalidImage is returned when the upload cannot be decoded as an image.
var ErrInvalidImage = errors.New("invalid image")

// GPS is a coordinate read from photo metadata.
type GPS struct {
	Latitude  float64
	Longitude float64
}

// Processed is a photo ready for storage.
type Processed struct {
	Data   []byte
	Width  int
	Height int
	// GPS is set when the original carried EXIF coordinates.
	GPS *GPS
}

// Process verifies raw, scales it to fit MaxDimension x MaxDimension keeping
// the aspect ratio, and re-encodes it as JPEG.
func Process(raw []byte) (*Processed, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidImage
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	scaled := fit(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	b := scaled.Bounds()
	return &Processed{
		Data:   buf.Bytes(),
		Width:  b.Dx(),
		Height: b.Dy(),
		GPS:    ReadGPS(raw),
	}, nil
}

// ReadGPS extracts EXIF GPS coordinates, or nil when absent or unreadable.
func ReadGPS(raw []byte) *GPS {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	lat, lon, err := x.LatLong()
	if err != nil {
		return nil
	}
	if lat == 0 && lon == 0 {
		return nil
	}
	return &GPS{Latitude: lat, Longitude: lon}
}

func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
