package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ironsheep/plate-gate/internal/gate"
	"github.com/ironsheep/plate-gate/internal/plate"
	"github.com/ironsheep/plate-gate/internal/sampler"
	"github.com/ironsheep/plate-gate/internal/stabilize"
	"github.com/ironsheep/plate-gate/internal/timeutil"
)

// Defaults for Config.
const (
	DefaultForwardInterval = 120 * time.Millisecond
	DefaultCooldown        = 3 * time.Second
	DefaultEventBuffer     = 64
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")

	// ErrRunning is returned when Run is called while already running.
	ErrRunning = errors.New("session already running")

	// ErrNoCandidate is returned by SubmitManual when no plate has been read.
	ErrNoCandidate = errors.New("no plate candidate to submit")

	// ErrNothingPending is returned by ConfirmCreateVehicle when the last
	// outcome was not a vehicle-not-found.
	ErrNothingPending = errors.New("no unregistered vehicle awaiting confirmation")
)

// TextExtractor reads the raw plate-region text of a frame. It returns "" on
// failure. *ocr.Extractor implements it.
type TextExtractor interface {
	Extract(ctx context.Context, img image.Image) string
}

// Config holds the per-session settings. Zero values take defaults.
type Config struct {
	Mode       gate.Mode
	GateID     int
	AutoSubmit bool

	RecognizeInterval time.Duration
	ForwardInterval   time.Duration
	BufferCapacity    int
	MinWinCount       int
	SubmitThrottle    time.Duration
	Cooldown          time.Duration

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

// DefaultConfig returns a check-in session at gate 1 with auto-submit on.
func DefaultConfig() Config {
	return Config{
		Mode:              gate.ModeIn,
		GateID:            gate.DefaultGateIn,
		AutoSubmit:        true,
		RecognizeInterval: sampler.DefaultInterval,
		ForwardInterval:   DefaultForwardInterval,
		BufferCapacity:    stabilize.DefaultCapacity,
		MinWinCount:       gate.DefaultMinWinCount,
		SubmitThrottle:    gate.DefaultThrottle,
		Cooldown:          DefaultCooldown,
		EventBuffer:       DefaultEventBuffer,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.GateID <= 0 {
		if c.Mode == gate.ModeOut {
			c.GateID = gate.DefaultGateOut
		} else {
			c.GateID = gate.DefaultGateIn
		}
	}
	if c.RecognizeInterval <= 0 {
		c.RecognizeInterval = d.RecognizeInterval
	}
	if c.ForwardInterval <= 0 {
		c.ForwardInterval = d.ForwardInterval
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = d.BufferCapacity
	}
	if c.MinWinCount <= 0 {
		c.MinWinCount = d.MinWinCount
	}
	if c.SubmitThrottle <= 0 {
		c.SubmitThrottle = d.SubmitThrottle
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}

// Deps are the collaborators a session drives.
type Deps struct {
	Extractor TextExtractor
	Backend   gate.Backend
	Clock     timeutil.Clock
	Log       zerolog.Logger
}

// Session is one scanning session. All methods are safe for concurrent use.
type Session struct {
	id        string
	cfg       Config
	clock     timeutil.Clock
	log       zerolog.Logger
	extractor TextExtractor
	sampler   *sampler.Sampler
	gate      *gate.Gate

	events  chan Event
	dropped atomic.Uint64
	running atomic.Bool

	mu            sync.Mutex
	gen           uint64
	submitGen     uint64
	state         State
	paused        bool
	closed        bool
	stab          *stabilize.Stabilizer
	best          plate.Candidate
	vote          stabilize.Result
	lastForward   time.Time
	cooldownUntil time.Time
	pending       *gate.Outcome
	lastOutcome   *gate.Outcome
	processed     uint64
	cancel        context.CancelFunc
}

// New creates an idle session.
func New(cfg Config, deps Deps) *Session {
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}

	id := uuid.NewString()
	log := deps.Log.With().Str("session_id", id).Logger()

	s := &Session{
		id:        id,
		cfg:       cfg,
		clock:     deps.Clock,
		log:       log,
		extractor: deps.Extractor,
		sampler:   sampler.New(cfg.RecognizeInterval, deps.Clock, log),
		gate: gate.New(deps.Backend, gate.Config{
			Mode:        cfg.Mode,
			GateID:      cfg.GateID,
			AutoSubmit:  cfg.AutoSubmit,
			MinWinCount: cfg.MinWinCount,
			Throttle:    cfg.SubmitThrottle,
		}, deps.Clock, log),
		events: make(chan Event, cfg.EventBuffer),
		stab:   stabilize.New(cfg.BufferCapacity),
	}
	s.gate.OnOutcome(s.autoOutcome)

	log.Info().
		Str("mode", string(cfg.Mode)).
		Int("gate_id", cfg.GateID).
		Bool("auto_submit", cfg.AutoSubmit).
		Msg("Scanning session created")
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Gate exposes the submission gate for mode, gate and auto-submit changes.
func (s *Session) Gate() *gate.Gate {
	return s.gate
}

// Events returns the event channel. It is closed by Close.
func (s *Session) Events() <-chan Event {
	return s.events
}

// DroppedEvents counts events discarded because the channel was full.
func (s *Session) DroppedEvents() uint64 {
	return s.dropped.Load()
}

// Run feeds frames through the sampler until frames is closed, ctx is done or
// the session is closed. It waits for outstanding extractions and automatic
// submissions before returning. A Close during Run is not an error.
func (s *Session) Run(ctx context.Context, frames <-chan sampler.Frame) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Debug().Msg("Scanning started")
	err := s.sampler.Run(runCtx, frames, s.ProcessFrame)
	s.gate.Wait()

	s.mu.Lock()
	s.cancel = nil
	closed := s.closed
	s.mu.Unlock()

	s.log.Debug().Err(err).Msg("Scanning stopped")
	if closed || (errors.Is(err, context.Canceled) && ctx.Err() == nil) {
		return nil
	}
	return err
}

// ProcessFrame recognizes one frame and advances the session. Run calls it
// for every sampled frame; offline callers may call it directly to bypass
// sampling. Frames are ignored while paused, submitting or cooling down.
func (s *Session) ProcessFrame(ctx context.Context, f sampler.Frame) {
	gen, ok := s.admit()
	if !ok {
		return
	}

	text := ""
	if s.extractor != nil {
		text = s.extractor.Extract(ctx, f.Image)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		s.log.Debug().Uint64("seq", f.Seq).Msg("Discarding stale extraction")
		return
	}
	s.processed++
	s.observeLocked(ctx, f.Seq, text)
}

// admit checks whether a frame may be processed and returns the generation
// it belongs to.
func (s *Session) admit() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.paused {
		return 0, false
	}
	s.expireCooldownLocked()
	if s.state == Submitting || s.state == AwaitingConfirmation {
		return 0, false
	}
	return s.gen, true
}

// ObserveText runs raw extracted text through the forward gate, scorer,
// stabilizer and gate as if it came from a frame.
func (s *Session) ObserveText(ctx context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.paused {
		return
	}
	s.expireCooldownLocked()
	if s.state == Submitting || s.state == AwaitingConfirmation {
		return
	}
	s.observeLocked(ctx, 0, text)
}

func (s *Session) observeLocked(ctx context.Context, seq uint64, text string) {
	if text == "" {
		return
	}

	now := s.clock.Now()
	if !s.lastForward.IsZero() && now.Sub(s.lastForward) < s.cfg.ForwardInterval {
		return
	}
	s.lastForward = now
	s.emitLocked(Event{Kind: EventText, Seq: seq, Text: text})

	cand, ok := plate.PickBest(text)
	if !ok {
		s.best = plate.Candidate{}
		s.setStateLocked(Idle)
		return
	}

	s.best = cand
	s.vote = s.stab.Observe(cand.Text)
	vote := s.vote
	s.emitLocked(Event{Kind: EventCandidate, Seq: seq, Candidate: &cand, Vote: &vote})

	if s.vote.Count >= s.cfg.MinWinCount {
		s.setStateLocked(Stable)
	} else {
		s.setStateLocked(HasCandidate)
	}

	// The gate's outcome callback takes s.mu, so it cannot run before the
	// state below is set.
	if s.gate.MaybeAutoSubmit(ctx, s.vote.Winner, s.vote.Count) {
		s.submitGen = s.gen
		s.emitLocked(Event{Kind: EventSubmitting, Seq: seq, Plate: plate.WireFormat(s.vote.Winner)})
		s.setStateLocked(Submitting)
	}
}

// SubmitManual submits the latest best reading, or the vote winner when the
// last frame had no candidate, regardless of auto-submit and vote count. It
// waits for the backend's answer.
func (s *Session) SubmitManual(ctx context.Context) (gate.Outcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return gate.Outcome{}, ErrClosed
	}
	p := s.best.Text
	if p == "" {
		p = s.vote.Winner
	}
	if p == "" {
		s.mu.Unlock()
		return gate.Outcome{}, ErrNoCandidate
	}
	gen := s.beginSubmitLocked(p)
	s.mu.Unlock()

	o := s.gate.Submit(ctx, p)
	s.finish(gen, o)
	return o, nil
}

// SubmitPlate submits a plate typed by the operator, bypassing recognition.
func (s *Session) SubmitPlate(ctx context.Context, plateNo string) (gate.Outcome, error) {
	p := plate.WireFormat(plateNo)
	if p == "" {
		return gate.Outcome{}, ErrNoCandidate
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return gate.Outcome{}, ErrClosed
	}
	gen := s.beginSubmitLocked(p)
	s.mu.Unlock()

	o := s.gate.Submit(ctx, p)
	s.finish(gen, o)
	return o, nil
}

// ConfirmCreateVehicle registers the plate of the pending vehicle-not-found
// outcome and repeats its request once.
func (s *Session) ConfirmCreateVehicle(ctx context.Context) (gate.Outcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return gate.Outcome{}, ErrClosed
	}
	if s.pending == nil {
		s.mu.Unlock()
		return gate.Outcome{}, ErrNothingPending
	}
	failed := *s.pending
	s.pending = nil
	gen := s.beginSubmitLocked(failed.Plate)
	s.mu.Unlock()

	s.log.Info().Str("plate", failed.Plate).Msg("Operator confirmed vehicle creation")
	o := s.gate.CreateVehicleAndRetry(ctx, failed)
	s.finish(gen, o)
	return o, nil
}

// DismissPending drops a pending vehicle-not-found outcome without creating
// the vehicle.
func (s *Session) DismissPending() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

func (s *Session) beginSubmitLocked(p string) uint64 {
	s.submitGen = s.gen
	s.emitLocked(Event{Kind: EventSubmitting, Plate: p})
	s.setStateLocked(Submitting)
	return s.gen
}

func (s *Session) autoOutcome(o gate.Outcome) {
	s.mu.Lock()
	gen := s.submitGen
	s.mu.Unlock()
	s.finish(gen, o)
}

// finish records a submission outcome and starts the cool-down. Outcomes
// from an earlier generation are discarded.
func (s *Session) finish(gen uint64, o gate.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		s.log.Debug().Str("plate", o.Plate).Stringer("outcome", o.Kind).Msg("Discarding stale outcome")
		return
	}

	out := o
	s.lastOutcome = &out
	if o.Kind == gate.VehicleNotFound {
		pending := o
		s.pending = &pending
	} else {
		s.pending = nil
	}
	s.emitLocked(Event{Kind: EventOutcome, Plate: o.Plate, Outcome: &out})

	s.cooldownUntil = s.clock.Now().Add(s.cfg.Cooldown)
	s.setStateLocked(AwaitingConfirmation)
}

// expireCooldownLocked returns to Idle with an empty buffer once the
// cool-down has elapsed.
func (s *Session) expireCooldownLocked() {
	if s.state != AwaitingConfirmation {
		return
	}
	if s.clock.Now().Before(s.cooldownUntil) {
		return
	}
	s.endCooldownLocked()
}

func (s *Session) endCooldownLocked() {
	s.stab.Reset()
	s.best = plate.Candidate{}
	s.vote = stabilize.Result{}
	s.cooldownUntil = time.Time{}
	s.setStateLocked(Idle)
}

// Pause stops processing frames. Frames delivered while paused are dropped.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.paused {
		return
	}
	s.paused = true
	s.log.Info().Msg("Scanning paused")
}

// Resume restarts frame processing. A running cool-down ends immediately.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.paused = false
	if s.state == AwaitingConfirmation {
		s.endCooldownLocked()
	}
	s.log.Info().Msg("Scanning resumed")
}

// Reset discards the buffer, the candidate, any pending confirmation and the
// submission throttle, and returns to Idle. Work already in flight is
// discarded when it completes.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.discardLocked()
	s.setStateLocked(Idle)
	s.log.Info().Msg("Session reset")
}

func (s *Session) discardLocked() {
	s.gen++
	s.stab.Reset()
	s.best = plate.Candidate{}
	s.vote = stabilize.Result{}
	s.pending = nil
	s.lastForward = time.Time{}
	s.cooldownUntil = time.Time{}
	s.gate.ResetThrottle()
	s.sampler.Reset()
}

// Close tears the session down: it stops Run, discards all state and closes
// the Events channel. Results that arrive afterwards are ignored. Close is
// idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	s.discardLocked()
	s.setStateLocked(Closed)
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	close(s.events)

	s.log.Info().Uint64("dropped_events", s.dropped.Load()).Msg("Scanning session closed")
	return nil
}

// Wait blocks until automatic submissions already started have finished.
func (s *Session) Wait() {
	s.gate.Wait()
}

// State returns the current state, applying an expired cool-down first.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireCooldownLocked()
	return s.state
}

// Snapshot returns a copy of the session's observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireCooldownLocked()

	snap := Snapshot{
		ID:            s.id,
		State:         s.state,
		Paused:        s.paused,
		Best:          s.best,
		Vote:          s.vote,
		Buffer:        s.stab.Snapshot(),
		Gate:          s.gate.State(),
		CooldownUntil: s.cooldownUntil,
		Processed:     s.processed,
		InFlight:      s.sampler.InFlight(),
		DroppedEvents: s.dropped.Load(),
	}
	if s.pending != nil {
		p := *s.pending
		snap.Pending = &p
	}
	if s.lastOutcome != nil {
		o := *s.lastOutcome
		snap.LastOutcome = &o
	}
	return snap
}

func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	prev := s.state
	s.state = next
	s.log.Debug().Stringer("from", prev).Stringer("to", next).Msg("State changed")
	s.emitLocked(Event{Kind: EventStateChanged, From: prev})
}

// emitLocked publishes ev without blocking. It must be called with s.mu held
// and before the channel is closed.
func (s *Session) emitLocked(ev Event) {
	if s.closed {
		return
	}
	ev.SessionID = s.id
	ev.At = s.clock.Now()
	ev.State = s.state
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}
