package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/plate-gate/internal/config"
	"github.com/ironsheep/plate-gate/internal/gate"
	"github.com/ironsheep/plate-gate/internal/imaging"
	"github.com/ironsheep/plate-gate/internal/logging"
	"github.com/ironsheep/plate-gate/internal/ocr"
	"github.com/ironsheep/plate-gate/internal/parkingapi"
	"github.com/ironsheep/plate-gate/internal/plate"
	"github.com/ironsheep/plate-gate/internal/sampler"
	"github.com/ironsheep/plate-gate/internal/server"
	"github.com/ironsheep/plate-gate/internal/session"
	"github.com/ironsheep/plate-gate/internal/timeutil"
)

// app is the wired process: configuration, logger, backend client and OCR
// engine.
type app struct {
	cfg  *config.Config
	opts options
	mode gate.Mode
	log  zerolog.Logger
	api  *parkingapi.Client

	tess    *ocr.TesseractRecognizer
	tessErr error
}

func newApp(opts options) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.pretty {
		cfg.Log.Pretty = true
	}
	if opts.auto != "" {
		v, err := strconv.ParseBool(opts.auto)
		if err != nil {
			return nil, fmt.Errorf("--auto: %w", err)
		}
		cfg.AutoSubmit = v
	}

	mode, err := gate.ParseMode(opts.mode)
	if err != nil {
		return nil, err
	}
	if opts.gateID > 0 {
		if mode == gate.ModeOut {
			cfg.DefaultGateOut = opts.gateID
		} else {
			cfg.DefaultGateIn = opts.gateID
		}
	}

	logger := logging.New(logging.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log.Logger = logger

	api, err := parkingapi.New(cfg.BaseURL,
		parkingapi.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		parkingapi.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, opts: opts, mode: mode, log: logger, api: api}
	a.tess, a.tessErr = ocr.NewTesseract(cfg.Recognizer())
	if a.tessErr != nil {
		logger.Warn().Err(a.tessErr).Msg("OCR engine unavailable")
	}

	logger.Debug().
		Str("version", Version).
		Str("commit", GitCommit).
		Str("base_url", cfg.BaseURL).
		Str("mode", string(mode)).
		Int("gate", cfg.GateFor(mode)).
		Bool("auto_submit", cfg.AutoSubmit).
		Msg("plate-gate starting")
	return a, nil
}

// recognizer returns the OCR engine or the reason it could not start.
func (a *app) recognizer() (ocr.Recognizer, error) {
	if a.tess == nil {
		return nil, fmt.Errorf("%w: %v", ocr.ErrUnavailable, a.tessErr)
	}
	return a.tess, nil
}

func (a *app) close() {
	if a.tess != nil {
		a.tess.Close()
		a.tess = nil
	}
}

func (a *app) serve(ctx context.Context) error {
	opts := server.Options{
		Name:           "plate-gate",
		Version:        Version,
		Extractor:      a.cfg.Extractor(),
		API:            a.api,
		Session:        a.cfg.Session(a.mode),
		DefaultGateIn:  a.cfg.DefaultGateIn,
		DefaultGateOut: a.cfg.DefaultGateOut,
		Log:            a.log,
	}
	if rec, err := a.recognizer(); err == nil {
		opts.Recognizer = rec
	}
	return server.New(opts).Run(ctx)
}

// scan replays a frame directory through one session and writes every
// session event to stdout as a JSON line.
func (a *app) scan(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("scan needs exactly one frame directory")
	}
	rec, err := a.recognizer()
	if err != nil {
		return err
	}

	clock := timeutil.RealClock{}
	fps := a.opts.fps
	if fps <= 0 {
		fps = sampler.DefaultFPS
	}
	pb, err := sampler.NewDirectoryPlayback(args[0], fps, clock, a.log)
	if err != nil {
		return err
	}

	sess := session.New(a.cfg.Session(a.mode), session.Deps{
		Extractor: ocr.NewExtractor(rec, a.cfg.Extractor(), a.log),
		Backend:   a.api,
		Clock:     clock,
		Log:       a.log,
	})

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		writeEvents(os.Stdout, sess.Events())
	}()

	frames := make(chan sampler.Frame)
	go func() {
		if err := pb.Play(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn().Err(err).Msg("Playback stopped")
		}
	}()

	runErr := sess.Run(ctx, frames)
	snap := sess.Snapshot()
	sess.Close()
	<-printed

	a.log.Info().
		Str("session", snap.ID).
		Uint64("processed", snap.Processed).
		Str("winner", snap.Vote.Winner).
		Int("count", snap.Vote.Count).
		Str("state", snap.State.String()).
		Uint64("dropped_events", snap.DroppedEvents).
		Msg("Scan finished")
	return runErr
}

func writeEvents(w io.Writer, events <-chan session.Event) {
	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			log.Warn().Err(err).Msg("Failed to write event")
		}
	}
}

func (a *app) ocr(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("ocr needs exactly one image path")
	}
	rec, err := a.recognizer()
	if err != nil {
		return err
	}
	img, err := imaging.Decode(args[0])
	if err != nil {
		return err
	}

	text := ocr.NewExtractor(rec, a.cfg.Extractor(), a.log).Extract(ctx, img)
	fmt.Println(text)
	if c, ok := plate.PickBest(text); ok {
		fmt.Printf("candidate: %s (score %d)\n", c.Text, c.Score)
	} else {
		fmt.Println("candidate: none")
	}
	return nil
}

func score(w io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("score needs text to score")
	}
	text := strings.Join(args, " ")
	for _, tok := range plate.Tokens(text) {
		b := plate.Explain(plate.Normalize(tok))
		if b.Rejected {
			fmt.Fprintf(w, "%-12s rejected\n", b.Token)
			continue
		}
		fmt.Fprintf(w, "%-12s %3d  %s\n", b.Token, b.Total, b.Layout)
	}
	if c, ok := plate.PickBest(text); ok {
		fmt.Fprintf(w, "best: %s (score %d)\n", c.Text, c.Score)
	} else {
		fmt.Fprintln(w, "best: none")
	}
	return nil
}
