//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer recognizes words with Tesseract.
//
// A single gosseract client is reused across calls; Recognize serializes
// access to it, so one TesseractRecognizer processes one image at a time.
type TesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
	opts   Options
}

// NewTesseract creates a recognizer configured with opts. The Tesseract
// engine itself is initialized lazily on the first Recognize call.
func NewTesseract(opts Options) (*TesseractRecognizer, error) {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}

	client := gosseract.NewClient()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(opts.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	// Plates are short isolated words, not paragraphs.
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &TesseractRecognizer{client: client, opts: opts}, nil
}

// Recognize returns one fragment per recognized word, in Tesseract's reading
// order. Bounds are in the pixel coordinates of img.
func (r *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	offset := img.Bounds().Min

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil, ErrUnavailable
	}
	if err := r.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	fragments := make([]Fragment, 0, len(boxes))
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		fragments = append(fragments, Fragment{
			Text:       word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X + offset.X,
				Y1: box.Box.Min.Y + offset.Y,
				X2: box.Box.Max.X + offset.X,
				Y2: box.Box.Max.Y + offset.Y,
			},
		})
	}

	return fragments, nil
}

// Close releases the Tesseract engine. Recognize fails with ErrUnavailable
// afterwards.
func (r *TesseractRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// Probe reports whether Tesseract can be used in this build and which
// version is linked.
func Probe() Info {
	client := gosseract.NewClient()
	defer client.Close()

	return Info{
		Available: true,
		Version:   client.Version(),
		Backend:   "gosseract",
	}
}
