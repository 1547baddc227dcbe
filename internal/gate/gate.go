// Package gate decides when a stabilized plate is submitted to the parking
// backend and turns the backend's answer into an Outcome.
//
// Automatic submission fires only for a plate read consistently (MinWinCount
// of the recent observations) and never more than once per Throttle window.
// The throttle timestamp is recorded before the request is sent, so a slow or
// failing backend cannot cause a burst of repeated submissions.
package gate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/plate-gate/internal/parkingapi"
	"github.com/ironsheep/plate-gate/internal/plate"
	"github.com/ironsheep/plate-gate/internal/timeutil"
)

// Defaults for Config.
const (
	DefaultMinWinCount = 4
	DefaultThrottle    = 1200 * time.Millisecond
	DefaultGateIn      = 1
	DefaultGateOut     = 2
)

// Backend is the part of the parking API the gate calls.
// *parkingapi.Client implements it.
type Backend interface {
	CheckIn(ctx context.Context, plateNo string, gateID int, snapshotPath *string) (*parkingapi.InOutResponse, error)
	CheckOut(ctx context.Context, plateNo string, gateID int, snapshotPath *string) (*parkingapi.InOutResponse, error)
	CreateVehicle(ctx context.Context, plateNo string) (*parkingapi.Vehicle, error)
}

// Config holds the initial submission state and the auto-submit thresholds.
type Config struct {
	Mode        Mode
	GateID      int
	AutoSubmit  bool
	MinWinCount int
	Throttle    time.Duration
}

// State is a snapshot of the submission state.
type State struct {
	Mode         Mode      `json:"mode"`
	GateID       int       `json:"gate_id"`
	AutoSubmit   bool      `json:"auto_submit"`
	LastSubmitAt time.Time `json:"last_submit_at"`
}

// Gate issues check-in/check-out requests. It is safe for concurrent use.
type Gate struct {
	backend     Backend
	clock       timeutil.Clock
	log         zerolog.Logger
	minWinCount int
	throttle    time.Duration

	mu        sync.Mutex
	state     State
	onOutcome func(Outcome)

	inflight sync.WaitGroup
}

// New creates a Gate. Zero thresholds in cfg take their defaults and an
// empty mode means ModeIn.
func New(backend Backend, cfg Config, clock timeutil.Clock, log zerolog.Logger) *Gate {
	if cfg.MinWinCount <= 0 {
		cfg.MinWinCount = DefaultMinWinCount
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeIn
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Gate{
		backend:     backend,
		clock:       clock,
		log:         log.With().Str("component", "gate").Logger(),
		minWinCount: cfg.MinWinCount,
		throttle:    cfg.Throttle,
		state: State{
			Mode:       cfg.Mode,
			GateID:     cfg.GateID,
			AutoSubmit: cfg.AutoSubmit,
		},
	}
}

// OnOutcome registers fn to receive the outcome of every automatic
// submission. fn runs on the request goroutine.
func (g *Gate) OnOutcome(fn func(Outcome)) {
	g.mu.Lock()
	g.onOutcome = fn
	g.mu.Unlock()
}

// State returns a snapshot of the submission state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SetMode switches between check-in and check-out.
func (g *Gate) SetMode(m Mode) {
	g.mu.Lock()
	g.state.Mode = m
	g.mu.Unlock()
}

// SetGateID changes the gate reported to the backend.
func (g *Gate) SetGateID(id int) {
	g.mu.Lock()
	g.state.GateID = id
	g.mu.Unlock()
}

// SetAutoSubmit enables or disables automatic submission.
func (g *Gate) SetAutoSubmit(on bool) {
	g.mu.Lock()
	g.state.AutoSubmit = on
	g.mu.Unlock()
}

// ResetThrottle forgets the last submission time.
func (g *Gate) ResetThrottle() {
	g.mu.Lock()
	g.state.LastSubmitAt = time.Time{}
	g.mu.Unlock()
}

// MinWinCount is the vote count a plate needs before auto-submit.
func (g *Gate) MinWinCount() int {
	return g.minWinCount
}

// MaybeAutoSubmit submits winner when auto-submit is on, winCount reaches
// MinWinCount and the throttle window has passed. The request runs on its
// own goroutine; its Outcome goes to the OnOutcome callback. It reports
// whether a request was started.
func (g *Gate) MaybeAutoSubmit(ctx context.Context, winner string, winCount int) bool {
	winner = plate.WireFormat(winner)

	g.mu.Lock()
	if !g.state.AutoSubmit || winner == "" || winCount < g.minWinCount {
		g.mu.Unlock()
		return false
	}
	now := g.clock.Now()
	if !g.state.LastSubmitAt.IsZero() && now.Sub(g.state.LastSubmitAt) <= g.throttle {
		g.mu.Unlock()
		return false
	}
	g.state.LastSubmitAt = now
	mode, gateID := g.state.Mode, g.state.GateID
	notify := g.onOutcome
	g.mu.Unlock()

	g.log.Info().
		Str("plate", winner).
		Int("votes", winCount).
		Str("mode", string(mode)).
		Int("gate_id", gateID).
		Msg("Auto-submitting stable plate")

	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		o := g.send(ctx, mode, winner, gateID)
		o.Auto = true
		if notify != nil {
			notify(o)
		}
	}()
	return true
}

// Submit sends plateNo immediately with the current mode and gate,
// regardless of auto-submit and vote count. It records the throttle
// timestamp like an automatic submission and waits for the answer.
func (g *Gate) Submit(ctx context.Context, plateNo string) Outcome {
	plateNo = plate.WireFormat(plateNo)

	g.mu.Lock()
	g.state.LastSubmitAt = g.clock.Now()
	mode, gateID := g.state.Mode, g.state.GateID
	g.mu.Unlock()

	g.log.Info().Str("plate", plateNo).Str("mode", string(mode)).Int("gate_id", gateID).Msg("Manual submit")
	return g.send(ctx, mode, plateNo, gateID)
}

// CreateVehicleAndRetry registers the plate of a VehicleNotFound outcome and
// repeats its request exactly once, with the same mode and gate. A vehicle
// that already exists is not an error.
func (g *Gate) CreateVehicleAndRetry(ctx context.Context, failed Outcome) Outcome {
	plateNo := plate.WireFormat(failed.Plate)

	g.mu.Lock()
	g.state.LastSubmitAt = g.clock.Now()
	g.mu.Unlock()

	if _, err := g.backend.CreateVehicle(ctx, plateNo); err != nil && !parkingapi.IsConflict(err) {
		g.log.Warn().Err(err).Str("plate", plateNo).Msg("Vehicle creation failed")
		o := classify(failed.Mode, plateNo, failed.GateID, nil, err)
		if o.Kind == VehicleNotFound {
			o.Kind = Failed
		}
		o.Message = "Could not register vehicle: " + o.Message
		return o
	}

	g.log.Info().Str("plate", plateNo).Msg("Vehicle created, retrying")
	return g.send(ctx, failed.Mode, plateNo, failed.GateID)
}

// Wait blocks until every automatic submission has delivered its outcome.
func (g *Gate) Wait() {
	g.inflight.Wait()
}

func (g *Gate) send(ctx context.Context, mode Mode, plateNo string, gateID int) Outcome {
	var (
		resp *parkingapi.InOutResponse
		err  error
	)
	if mode == ModeOut {
		resp, err = g.backend.CheckOut(ctx, plateNo, gateID, nil)
	} else {
		resp, err = g.backend.CheckIn(ctx, plateNo, gateID, nil)
	}

	o := classify(mode, plateNo, gateID, resp, err)

	ev := g.log.Info()
	if o.Kind != Success {
		ev = g.log.Warn().Err(err)
	}
	ev.Str("plate", plateNo).
		Str("mode", string(mode)).
		Int("gate_id", gateID).
		Stringer("outcome", o.Kind).
		Msg("Submission finished")

	return o
}
