//go:build !cgo

package ocr

import (
	"context"
	"image"
)

// TesseractRecognizer is unavailable in builds without cgo.
type TesseractRecognizer struct{}

// NewTesseract always fails with ErrUnavailable when cgo is disabled.
func NewTesseract(Options) (*TesseractRecognizer, error) {
	return nil, ErrUnavailable
}

// Recognize always fails with ErrUnavailable.
func (*TesseractRecognizer) Recognize(context.Context, image.Image) ([]Fragment, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (*TesseractRecognizer) Close() error { return nil }

// Probe reports that no OCR engine is compiled in.
func Probe() Info {
	return Info{
		Available: false,
		Backend:   "none",
		Error:     "built without cgo; Tesseract requires cgo",
	}
}
