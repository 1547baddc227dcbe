package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// PreprocessOptions selects the adjustments applied before recognition.
type PreprocessOptions struct {
	// Grayscale drops color information.
	Grayscale bool `json:"grayscale" mapstructure:"grayscale"`

	// Contrast is a relative change in [-1, 1]; 0 leaves contrast alone.
	Contrast float64 `json:"contrast" mapstructure:"contrast"`

	// Sharpen applies a 3x3 sharpening kernel.
	Sharpen bool `json:"sharpen" mapstructure:"sharpen"`

	// AutoInvert inverts the image when its mean lightness is below
	// InvertBelow, turning light-on-dark plates into dark-on-light text.
	AutoInvert  bool    `json:"auto_invert" mapstructure:"auto_invert"`
	InvertBelow float64 `json:"invert_below" mapstructure:"invert_below"`
}

// DefaultPreprocess is tuned for printed plates under mixed lighting.
var DefaultPreprocess = PreprocessOptions{
	Grayscale:   true,
	Contrast:    0.3,
	Sharpen:     false,
	AutoInvert:  true,
	InvertBelow: 0.45,
}

// Preprocess applies opts to img and returns a new image. img is not modified.
//
// Order matters: inversion is decided on the original colors, then contrast
// and sharpening, then the grayscale conversion.
func Preprocess(img image.Image, opts PreprocessOptions) image.Image {
	out := img

	if opts.AutoInvert && MeanLightness(out) < opts.InvertBelow {
		out = effect.Invert(out)
	}
	if opts.Contrast != 0 {
		out = adjust.Contrast(out, opts.Contrast)
	}
	if opts.Sharpen {
		out = effect.Sharpen(out)
	}
	if opts.Grayscale {
		out = effect.Grayscale(out)
	}

	return out
}

// sampleStep bounds the work of whole-image statistics: at most about
// 100x100 samples are read regardless of resolution.
func sampleStep(b image.Rectangle) int {
	step := b.Dx() / 100
	if s := b.Dy() / 100; s > step {
		step = s
	}
	if step < 1 {
		step = 1
	}
	return step
}

// MeanLightness returns the average CIE L* of img in [0, 1], computed on a
// sparse sampling grid. An empty image returns 0.
func MeanLightness(img image.Image) float64 {
	b := img.Bounds()
	step := sampleStep(b)

	var sum float64
	var n int
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				// fully transparent pixel
				continue
			}
			l, _, _ := c.Lab()
			sum += l
			n++
		}
	}

	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// edgeLevel is the Sobel magnitude above which a pixel counts as an edge.
const edgeLevel = 96

// EdgeDensity returns the fraction of pixels of img lying on a strong edge,
// in [0, 1]. Text produces dense short edges; an empty road or sky produces
// almost none, which lets the extractor skip recognition on such frames.
func EdgeDensity(img image.Image) float64 {
	edges := effect.Sobel(img)
	b := edges.Bounds()
	if b.Empty() {
		return 0
	}

	var strong int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if edges.GrayAt(x, y).Y >= edgeLevel {
				strong++
			}
		}
	}

	return float64(strong) / float64(b.Dx()*b.Dy())
}
