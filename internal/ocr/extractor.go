package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ironsheep/plate-gate/internal/imaging"
)

// DefaultMinTextHeight is the smallest fragment height kept, as a fraction of
// the full frame height. Shorter fragments are usually stickers or noise.
const DefaultMinTextHeight = 0.04

// upscaleHeight is the minimum crop height handed to the recognizer.
const upscaleHeight = 96

// ExtractorOptions tunes an Extractor.
type ExtractorOptions struct {
	// Region is the part of the frame searched for text.
	Region imaging.Region

	// MinTextHeight drops fragments shorter than this fraction of the full
	// frame height.
	MinTextHeight float64

	// MinEdgeDensity skips recognition when the region's edge density is
	// below it. 0 disables the check.
	MinEdgeDensity float64

	Preprocess imaging.PreprocessOptions
}

// DefaultExtractorOptions returns the tuning used by the scanning session.
func DefaultExtractorOptions() ExtractorOptions {
	return ExtractorOptions{
		Region:        imaging.DefaultPlateRegion,
		MinTextHeight: DefaultMinTextHeight,
		Preprocess:    imaging.DefaultPreprocess,
	}
}

// Extractor produces the raw text of a frame's plate region.
type Extractor struct {
	rec  Recognizer
	opts ExtractorOptions
	log  zerolog.Logger
}

// NewExtractor creates an Extractor around rec.
func NewExtractor(rec Recognizer, opts ExtractorOptions, log zerolog.Logger) *Extractor {
	return &Extractor{
		rec:  rec,
		opts: opts,
		log:  log.With().Str("component", "extractor").Logger(),
	}
}

// Extract returns the text fragments found in the region of interest of img,
// joined with single spaces in recognizer order. It returns "" when nothing
// usable was found or recognition failed.
func (e *Extractor) Extract(ctx context.Context, img image.Image) string {
	fragments, err := e.Fragments(ctx, img)
	if err != nil {
		e.log.Debug().Err(err).Msg("Text extraction failed")
		return ""
	}

	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, " ")
}

// Fragments runs the extraction steps and returns the kept fragments with
// their bounds mapped back to img's coordinates.
func (e *Extractor) Fragments(ctx context.Context, img image.Image) ([]Fragment, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}
	frameHeight := float64(img.Bounds().Dy())

	roi := e.opts.Region.Rect(img.Bounds())
	crop, err := imaging.CropRegion(img, e.opts.Region)
	if err != nil {
		return nil, err
	}

	if e.opts.MinEdgeDensity > 0 {
		if d := imaging.EdgeDensity(crop); d < e.opts.MinEdgeDensity {
			e.log.Debug().Float64("edge_density", d).Msg("Skipping frame without text-like edges")
			return nil, nil
		}
	}

	prepared := imaging.Preprocess(crop, e.opts.Preprocess)
	prepared = imaging.UpscaleToHeight(prepared, upscaleHeight)
	scale := float64(prepared.Bounds().Dy()) / float64(crop.Bounds().Dy())

	found, err := e.rec.Recognize(ctx, prepared)
	if err != nil {
		return nil, err
	}

	kept := make([]Fragment, 0, len(found))
	for _, f := range found {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		if float64(f.Bounds.Height())/scale/frameHeight < e.opts.MinTextHeight {
			continue
		}
		f.Text = text
		f.Bounds = Bounds{
			X1: roi.Min.X + int(float64(f.Bounds.X1)/scale),
			Y1: roi.Min.Y + int(float64(f.Bounds.Y1)/scale),
			X2: roi.Min.X + int(float64(f.Bounds.X2)/scale),
			Y2: roi.Min.Y + int(float64(f.Bounds.Y2)/scale),
		}
		kept = append(kept, f)
	}

	return kept, nil
}
