package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/plate-gate/internal/imaging"
)

// whiteFrame returns a white frame of the given size.
func whiteFrame(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

// fragment builds a fragment of the given pixel height at the top-left.
func fragment(text string, height int) Fragment {
	return Fragment{Text: text, Confidence: 0.9, Bounds: Bounds{X1: 0, Y1: 0, X2: 10 * len(text), Y2: height}}
}

// stubRecognizer returns a fixed result and records the image it was given.
type stubRecognizer struct {
	fragments []Fragment
	err       error
	calls     int
	got       image.Image
}

func (s *stubRecognizer) Recognize(ctx context.Context, img image.Image) ([]Fragment, error) {
	s.calls++
	s.got = img
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fragments, s.err
}

func TestExtract_JoinsFragmentsInOrder(t *testing.T) {
	rec := &stubRecognizer{fragments: []Fragment{
		fragment("PARKING", 30),
		fragment("ABC-1234", 40),
		fragment("ZONE", 30),
	}}
	e := NewExtractor(rec, DefaultExtractorOptions(), zerolog.Nop())

	got := e.Extract(context.Background(), whiteFrame(1000, 500))

	assert.Equal(t, "PARKING ABC-1234 ZONE", got)
}

func TestExtract_CropsToRegion(t *testing.T) {
	rec := &stubRecognizer{}
	e := NewExtractor(rec, DefaultExtractorOptions(), zerolog.Nop())

	e.Extract(context.Background(), whiteFrame(1000, 500))

	require.Equal(t, 1, rec.calls)
	b := rec.got.Bounds()
	assert.Equal(t, 840, b.Dx())
	assert.Equal(t, 200, b.Dy())
}

func TestExtract_DropsShortFragments(t *testing.T) {
	tests := []struct {
		name      string
		width     int
		height    int
		fragments []Fragment
		want      string
	}{
		{
			// 500px frame, no upscale: 20px is 0.04, 19px is below.
			name:      "full resolution",
			width:     1000,
			height:    500,
			fragments: []Fragment{fragment("TALL", 20), fragment("SHORT", 19)},
			want:      "TALL",
		},
		{
			// 100px frame: 40px crop is upscaled to 96px, factor 2.4.
			name:      "upscaled crop",
			width:     200,
			height:    100,
			fragments: []Fragment{fragment("AB1234", 12), fragment("NOISE", 7)},
			want:      "AB1234",
		},
		{
			name:      "blank fragments skipped",
			width:     1000,
			height:    500,
			fragments: []Fragment{fragment("  ", 40), fragment("XYZ9876", 40)},
			want:      "XYZ9876",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stubRecognizer{fragments: tt.fragments}
			e := NewExtractor(rec, DefaultExtractorOptions(), zerolog.Nop())
			assert.Equal(t, tt.want, e.Extract(context.Background(), whiteFrame(tt.width, tt.height)))
		})
	}
}

func TestExtract_FailuresYieldEmpty(t *testing.T) {
	t.Run("recognizer error", func(t *testing.T) {
		rec := &stubRecognizer{err: errors.New("engine crashed")}
		e := NewExtractor(rec, DefaultExtractorOptions(), zerolog.Nop())
		assert.Equal(t, "", e.Extract(context.Background(), whiteFrame(400, 200)))
	})

	t.Run("unavailable engine", func(t *testing.T) {
		rec := RecognizerFunc(func(context.Context, image.Image) ([]Fragment, error) {
			return nil, ErrUnavailable
		})
		e := NewExtractor(rec, DefaultExtractorOptions(), zerolog.Nop())
		assert.Equal(t, "", e.Extract(context.Background(), whiteFrame(400, 200)))
	})

	t.Run("nil image", func(t *testing.T) {
		rec := &stubRecognizer{}
		e := NewExtractor(rec, DefaultExtractorOptions(), zerolog.Nop())
		assert.Equal(t, "", e.Extract(context.Background(), nil))
		assert.Zero(t, rec.calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rec := &stubRecognizer{fragments: []Fragment{fragment("ABC1234", 40)}}
		e := NewExtractor(rec, DefaultExtractorOptions(), zerolog.Nop())
		assert.Equal(t, "", e.Extract(ctx, whiteFrame(400, 200)))
	})
}

func TestExtract_EdgeDensityGate(t *testing.T) {
	opts := DefaultExtractorOptions()
	opts.MinEdgeDensity = 0.05

	rec := &stubRecognizer{fragments: []Fragment{fragment("ABC1234", 40)}}
	e := NewExtractor(rec, opts, zerolog.Nop())

	assert.Equal(t, "", e.Extract(context.Background(), whiteFrame(1000, 500)))
	assert.Zero(t, rec.calls, "uniform frame should not reach the recognizer")

	busy := whiteFrame(1000, 500)
	for y := 0; y < 500; y++ {
		for x := 0; x < 1000; x++ {
			if (x/4)%2 == 0 {
				busy.Set(x, y, color.Black)
			}
		}
	}
	assert.Equal(t, "ABC1234", e.Extract(context.Background(), busy))
	assert.Equal(t, 1, rec.calls)
}

func TestFragments_MapsBoundsToFrame(t *testing.T) {
	rec := &stubRecognizer{fragments: []Fragment{
		{Text: "ABC1234", Bounds: Bounds{X1: 10, Y1: 20, X2: 110, Y2: 60}},
	}}
	e := NewExtractor(rec, DefaultExtractorOptions(), zerolog.Nop())

	got, err := e.Fragments(context.Background(), whiteFrame(1000, 500))
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Region starts at (80,175) in a 1000x500 frame.
	assert.Equal(t, Bounds{X1: 90, Y1: 195, X2: 190, Y2: 235}, got[0].Bounds)
}

func TestFragments_CustomRegion(t *testing.T) {
	opts := DefaultExtractorOptions()
	opts.Region = imaging.FullFrame
	rec := &stubRecognizer{}
	e := NewExtractor(rec, opts, zerolog.Nop())

	_, err := e.Fragments(context.Background(), whiteFrame(300, 150))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 150), rec.got.Bounds())
}
