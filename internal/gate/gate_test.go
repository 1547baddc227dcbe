package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/plate-gate/internal/parkingapi"
	"github.com/ironsheep/plate-gate/internal/parkingapi/parkingapitest"
	"github.com/ironsheep/plate-gate/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	gate    *Gate
	clock   *timeutil.MockClock
	backend *parkingapitest.Backend

	mu       sync.Mutex
	outcomes []Outcome
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	backend := parkingapitest.New()
	t.Cleanup(backend.Close)

	client, err := parkingapi.New(backend.URL())
	require.NoError(t, err)

	f := &fixture{clock: timeutil.NewMockClock(epoch), backend: backend}
	f.gate = New(client, cfg, f.clock, zerolog.Nop())
	f.gate.OnOutcome(func(o Outcome) {
		f.mu.Lock()
		f.outcomes = append(f.outcomes, o)
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) delivered() []Outcome {
	f.gate.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Outcome(nil), f.outcomes...)
}

func autoConfig() Config {
	return Config{Mode: ModeIn, GateID: 1, AutoSubmit: true}
}

func TestMaybeAutoSubmit_FiresAtMinWinCount(t *testing.T) {
	f := newFixture(t, autoConfig())
	f.backend.AddVehicle("ABC1234")

	assert.False(t, f.gate.MaybeAutoSubmit(context.Background(), "ABC1234", 3))
	f.gate.Wait()
	assert.Empty(t, f.backend.CallsTo("/api/parking/in"), "winCount 3 must not submit")

	assert.True(t, f.gate.MaybeAutoSubmit(context.Background(), "ABC1234", 4))

	out := f.delivered()
	require.Len(t, out, 1)
	assert.Equal(t, Success, out[0].Kind)
	assert.True(t, out[0].Auto)

	calls := f.backend.CallsTo("/api/parking/in")
	require.Len(t, calls, 1)
	var body parkingapi.CheckRequest
	require.NoError(t, json.Unmarshal([]byte(calls[0].Body), &body))
	assert.Equal(t, "ABC1234", body.PlateNo)
	assert.Equal(t, 1, body.GateID)
}

func TestMaybeAutoSubmit_Throttle(t *testing.T) {
	f := newFixture(t, autoConfig())
	f.backend.AddVehicle("ABC1234")
	ctx := context.Background()

	require.True(t, f.gate.MaybeAutoSubmit(ctx, "ABC1234", 4))

	f.clock.Advance(600 * time.Millisecond)
	assert.False(t, f.gate.MaybeAutoSubmit(ctx, "ABC1234", 5))

	f.clock.Advance(600 * time.Millisecond)
	assert.False(t, f.gate.MaybeAutoSubmit(ctx, "ABC1234", 6), "exactly 1.2s is still inside the window")

	f.clock.Advance(time.Millisecond)
	assert.True(t, f.gate.MaybeAutoSubmit(ctx, "ABC1234", 6))

	f.delivered()
	assert.Len(t, f.backend.CallsTo("/api/parking/in"), 2)
}

func TestMaybeAutoSubmit_Disabled(t *testing.T) {
	cfg := autoConfig()
	cfg.AutoSubmit = false
	f := newFixture(t, cfg)

	assert.False(t, f.gate.MaybeAutoSubmit(context.Background(), "ABC1234", 10))
	assert.False(t, f.gate.MaybeAutoSubmit(context.Background(), "", 10))

	f.gate.SetAutoSubmit(true)
	assert.False(t, f.gate.MaybeAutoSubmit(context.Background(), "", 10), "empty winner never submits")
	f.delivered()
	assert.Empty(t, f.backend.Calls())
}

func TestMaybeAutoSubmit_ThrottleRecordedOnFailure(t *testing.T) {
	f := newFixture(t, autoConfig())
	f.backend.FailNext("/api/parking/in", http.StatusInternalServerError, "database down")
	ctx := context.Background()

	require.True(t, f.gate.MaybeAutoSubmit(ctx, "ABC1234", 4))
	out := f.delivered()
	require.Len(t, out, 1)
	assert.Equal(t, Failed, out[0].Kind)
	assert.Equal(t, "HTTP 500: database down", out[0].Message)

	assert.False(t, f.gate.MaybeAutoSubmit(ctx, "ABC1234", 4))
	assert.Equal(t, epoch, f.gate.State().LastSubmitAt)
}

func TestSubmit_ManualBypassesChecks(t *testing.T) {
	cfg := autoConfig()
	cfg.AutoSubmit = false
	f := newFixture(t, cfg)
	f.backend.AddVehicle("XYZ9876")

	f.gate.SetMode(ModeIn)
	o := f.gate.Submit(context.Background(), "xyz-9876")
	require.Equal(t, Success, o.Kind, o.Message)
	assert.False(t, o.Auto)
	assert.Equal(t, "XYZ9876", o.Plate)
	assert.Equal(t, epoch, f.gate.State().LastSubmitAt)

	f.gate.SetMode(ModeOut)
	f.gate.SetGateID(2)
	o = f.gate.Submit(context.Background(), "XYZ9876")
	require.Equal(t, Success, o.Kind, o.Message)
	require.NotNil(t, o.Response)
	assert.NotEmpty(t, o.Response.CheckoutTime)

	calls := f.backend.CallsTo("/api/parking/out")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"plateNo":"XYZ9876","gateId":2}`, calls[0].Body)
}

func TestSubmit_Classification(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(b *parkingapitest.Backend)
		mode    Mode
		want    OutcomeKind
		message string
	}{
		{
			name: "vehicle not found",
			mode: ModeIn,
			want: VehicleNotFound,
		},
		{
			name: "already checked in",
			prepare: func(b *parkingapitest.Backend) {
				b.FailNext("/api/parking/in", http.StatusConflict, "Vehicle already checked in")
			},
			mode:    ModeIn,
			want:    Conflict,
			message: "Vehicle is already in the lot (open session exists).",
		},
		{
			name: "no open session",
			prepare: func(b *parkingapitest.Backend) {
				b.AddVehicle("ABC1234")
			},
			mode:    ModeOut,
			want:    Conflict,
			message: "No open session for this vehicle; nothing to check out.",
		},
		{
			name: "malformed success",
			prepare: func(b *parkingapitest.Backend) {
				b.FailNextRaw("/api/parking/in", http.StatusOK, "not json")
			},
			mode: ModeIn,
			want: Ambiguous,
		},
		{
			name: "server error",
			prepare: func(b *parkingapitest.Backend) {
				b.FailNext("/api/parking/in", http.StatusServiceUnavailable, "maintenance")
			},
			mode:    ModeIn,
			want:    Failed,
			message: "HTTP 503: maintenance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, autoConfig())
			if tt.prepare != nil {
				tt.prepare(f.backend)
			}
			f.gate.SetMode(tt.mode)

			o := f.gate.Submit(context.Background(), "ABC1234")

			assert.Equal(t, tt.want, o.Kind, o.Message)
			if tt.message != "" {
				assert.Equal(t, tt.message, o.Message)
			}
			if tt.want != Success {
				assert.Error(t, o.Err)
			}
		})
	}
}

func TestVehicleNotFound_NoAutomaticRetry(t *testing.T) {
	f := newFixture(t, autoConfig())
	f.backend.FailNext("/api/parking/in", http.StatusNotFound, "Vehicle not found")

	require.True(t, f.gate.MaybeAutoSubmit(context.Background(), "NEW1234", 4))
	out := f.delivered()

	require.Len(t, out, 1)
	assert.Equal(t, VehicleNotFound, out[0].Kind)
	assert.Len(t, f.backend.CallsTo("/api/parking/in"), 1)
	assert.Empty(t, f.backend.CallsTo("/api/vehicles"))
}

func TestCreateVehicleAndRetry(t *testing.T) {
	f := newFixture(t, autoConfig())
	ctx := context.Background()

	failed := f.gate.Submit(ctx, "NEW1234")
	require.Equal(t, VehicleNotFound, failed.Kind)

	o := f.gate.CreateVehicleAndRetry(ctx, failed)
	require.Equal(t, Success, o.Kind, o.Message)
	assert.Equal(t, ModeIn, o.Mode)

	_, ok := f.backend.Vehicle("NEW1234")
	assert.True(t, ok)
	assert.True(t, f.backend.HasOpenSession("NEW1234"))
	assert.Len(t, f.backend.CallsTo("/api/parking/in"), 2)
}

func TestCreateVehicleAndRetry_ExistingVehicle(t *testing.T) {
	f := newFixture(t, autoConfig())
	f.backend.AddVehicle("RACE123")

	o := f.gate.CreateVehicleAndRetry(context.Background(), Outcome{Mode: ModeIn, Plate: "RACE123", GateID: 1})
	assert.Equal(t, Success, o.Kind, o.Message)
}

func TestCreateVehicleAndRetry_CreateFails(t *testing.T) {
	f := newFixture(t, autoConfig())
	f.backend.FailNext("/api/vehicles", http.StatusInternalServerError, "insert failed")

	o := f.gate.CreateVehicleAndRetry(context.Background(), Outcome{Mode: ModeIn, Plate: "NEW1234", GateID: 1})

	assert.Equal(t, Failed, o.Kind)
	assert.Equal(t, "Could not register vehicle: HTTP 500: insert failed", o.Message)
	assert.Empty(t, f.backend.CallsTo("/api/parking/in"), "no retry when creation fails")
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"in": ModeIn, " OUT ": ModeOut, "In": ModeIn} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("sideways")
	assert.Error(t, err)
}

func TestOutcomeKind_JSON(t *testing.T) {
	b, err := json.Marshal(Outcome{Mode: ModeIn, Plate: "ABC1234", Kind: VehicleNotFound})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"vehicle_not_found"`)
	assert.Equal(t, "OutcomeKind(42)", OutcomeKind(42).String())
}
