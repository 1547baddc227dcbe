package sampler

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/plate-gate/internal/imaging"
	"github.com/ironsheep/plate-gate/internal/timeutil"
)

// DefaultFPS is the playback rate of a frame directory.
const DefaultFPS = 30

// Playback replays image files as a camera would deliver them: one frame per
// tick, in the order given.
type Playback struct {
	Paths []string
	FPS   float64

	// Cache is optional; without it every file is decoded on each pass.
	Cache *imaging.ImageCache

	Clock timeutil.Clock
	Log   zerolog.Logger
}

// NewDirectoryPlayback lists the frames of dir in lexical order.
func NewDirectoryPlayback(dir string, fps float64, clock timeutil.Clock, log zerolog.Logger) (*Playback, error) {
	paths, err := imaging.ListFrames(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image frames in %s", dir)
	}
	return &Playback{
		Paths: paths,
		FPS:   fps,
		Cache: imaging.NewImageCache(),
		Clock: clock,
		Log:   log,
	}, nil
}

// Play sends one frame per tick on out and closes out when every path has
// been sent or ctx is done. Files that fail to decode are logged and skipped
// without consuming a sequence number.
func (p *Playback) Play(ctx context.Context, out chan<- Frame) error {
	defer close(out)

	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	fps := p.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}

	ticker := clock.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	var seq uint64
	for _, path := range p.Paths {
		img, err := p.load(path)
		if err != nil {
			p.Log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable frame")
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}

		seq++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- Frame{Seq: seq, Image: img, At: clock.Now()}:
		}
	}

	p.Log.Debug().Uint64("frames", seq).Msg("Playback finished")
	return nil
}

func (p *Playback) load(path string) (image.Image, error) {
	if p.Cache != nil {
		return p.Cache.Load(path)
	}
	return imaging.Decode(path)
}
