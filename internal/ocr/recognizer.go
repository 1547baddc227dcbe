package ocr

import (
	"context"
	"errors"
	"image"
)

// ErrUnavailable is returned when no OCR engine is compiled in or the engine
// could not be initialized.
var ErrUnavailable = errors.New("ocr engine unavailable")

// DefaultLanguage is the Tesseract language used when none is configured.
const DefaultLanguage = "eng"

// DefaultWhitelist restricts recognition to characters that appear on plates.
const DefaultWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-"

// Bounds represents a rectangular bounding box in pixel coordinates of the
// image passed to the recognizer.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Height returns the vertical extent of the box.
func (b Bounds) Height() int {
	return b.Y2 - b.Y1
}

// Fragment is one piece of recognized text.
type Fragment struct {
	Text string `json:"text"`

	// Confidence is the engine's certainty in [0, 1].
	Confidence float64 `json:"confidence"`

	Bounds Bounds `json:"bounds"`
}

// Recognizer reads text fragments from an image.
//
// Implementations must honor ctx cancellation before starting expensive work
// and must not retain img after returning.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]Fragment, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, img image.Image) ([]Fragment, error)

// Recognize calls f(ctx, img).
func (f RecognizerFunc) Recognize(ctx context.Context, img image.Image) ([]Fragment, error) {
	return f(ctx, img)
}

// Options configures a TesseractRecognizer.
type Options struct {
	// Language is a Tesseract language code; empty means DefaultLanguage.
	Language string

	// Whitelist limits the characters Tesseract may emit. Empty disables
	// the restriction.
	Whitelist string

	// TessdataPrefix overrides the directory holding *.traineddata files.
	// Empty uses the system default (TESSDATA_PREFIX or the install path).
	TessdataPrefix string
}

// Info describes the OCR subsystem for diagnostics.
type Info struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Backend   string `json:"backend"`
	Error     string `json:"error,omitempty"`
}
