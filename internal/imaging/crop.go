package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrEmptyRegion is returned when a region covers no pixels of the frame.
var ErrEmptyRegion = errors.New("region covers no pixels")

// Region is a rectangle expressed in fractions of the frame size, measured
// from the top-left corner. X and W are fractions of the width, Y and H of
// the height.
type Region struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
	W float64 `json:"w" mapstructure:"w"`
	H float64 `json:"h" mapstructure:"h"`
}

// DefaultPlateRegion is the band where a plate sits in a hand-held shot:
// almost the full width, from 35% to 75% of the height.
var DefaultPlateRegion = Region{X: 0.08, Y: 0.35, W: 0.84, H: 0.40}

// FullFrame covers the whole frame.
var FullFrame = Region{X: 0, Y: 0, W: 1, H: 1}

// Validate reports whether r lies inside the unit square and has an area.
func (r Region) Validate() error {
	if r.W <= 0 || r.H <= 0 {
		return fmt.Errorf("region width and height must be positive, got %gx%g", r.W, r.H)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.W > 1+1e-9 || r.Y+r.H > 1+1e-9 {
		return fmt.Errorf("region (%g,%g %gx%g) exceeds the frame", r.X, r.Y, r.W, r.H)
	}
	return nil
}

// Rect maps r onto concrete pixel bounds, clipped to b.
func (r Region) Rect(b image.Rectangle) image.Rectangle {
	w := float64(b.Dx())
	h := float64(b.Dy())

	rect := image.Rect(
		b.Min.X+int(math.Round(r.X*w)),
		b.Min.Y+int(math.Round(r.Y*h)),
		b.Min.X+int(math.Round((r.X+r.W)*w)),
		b.Min.Y+int(math.Round((r.Y+r.H)*h)),
	)
	return rect.Intersect(b)
}

// CropRegion returns the part of img covered by r. The result's bounds start
// at (0,0).
func CropRegion(img image.Image, r Region) (image.Image, error) {
	rect := r.Rect(img.Bounds())
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}
	return imaging.Crop(img, rect), nil
}

// UpscaleToHeight enlarges img so it is at least minHeight pixels tall,
// preserving the aspect ratio. Tesseract reads small glyphs poorly, so low
// resolution crops are enlarged before recognition. Images that are already
// tall enough are returned unchanged.
func UpscaleToHeight(img image.Image, minHeight int) image.Image {
	if minHeight <= 0 || img.Bounds().Dy() >= minHeight {
		return img
	}
	return imaging.Resize(img, 0, minHeight, imaging.Lanczos)
}
