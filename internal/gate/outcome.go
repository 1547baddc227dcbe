package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/plate-gate/internal/parkingapi"
)

// Mode selects the request a submission issues.
type Mode string

// Submission modes.
const (
	ModeIn  Mode = "IN"
	ModeOut Mode = "OUT"
)

// ParseMode accepts "in"/"out" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeIn:
		return ModeIn, nil
	case ModeOut:
		return ModeOut, nil
	}
	return "", fmt.Errorf("invalid mode %q: want IN or OUT", s)
}

// OutcomeKind classifies the result of a submission.
type OutcomeKind int

// Outcome kinds.
const (
	// Success: the backend accepted the request.
	Success OutcomeKind = iota
	// VehicleNotFound: the plate is not registered. The caller may offer
	// CreateVehicleAndRetry.
	VehicleNotFound
	// Conflict: the request contradicts parking state (already inside, or
	// nothing to check out). Not retried.
	Conflict
	// Failed: any other HTTP or network error. Not retried.
	Failed
	// Ambiguous: the backend answered 2xx but the reply could not be read,
	// so success is unknown.
	Ambiguous
)

var kindNames = [...]string{
	Success:         "success",
	VehicleNotFound: "vehicle_not_found",
	Conflict:        "conflict",
	Failed:          "failed",
	Ambiguous:       "ambiguous",
}

func (k OutcomeKind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (k *OutcomeKind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = OutcomeKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", b)
}

// Outcome is the result of one check-in or check-out attempt.
type Outcome struct {
	Mode     Mode                      `json:"mode"`
	Plate    string                    `json:"plate"`
	GateID   int                       `json:"gate_id"`
	Kind     OutcomeKind               `json:"kind"`
	Auto     bool                      `json:"auto"`
	Response *parkingapi.InOutResponse `json:"response,omitempty"`
	Message  string                    `json:"message"`
	Err      error                     `json:"-"`
}

// OK reports whether the backend accepted the request.
func (o Outcome) OK() bool {
	return o.Kind == Success
}

// classify builds the outcome of a request from its response and error.
func classify(mode Mode, plateNo string, gateID int, resp *parkingapi.InOutResponse, err error) Outcome {
	o := Outcome{Mode: mode, Plate: plateNo, GateID: gateID, Response: resp, Err: err}

	var de *parkingapi.DecodeError
	switch {
	case err == nil:
		o.Kind = Success
		o.Message = successMessage(mode, plateNo, gateID, resp)
	case parkingapi.IsVehicleNotFound(err):
		o.Kind = VehicleNotFound
		o.Message = fmt.Sprintf("Vehicle %s is not registered.", plateNo)
	case errors.As(err, &de):
		o.Kind = Ambiguous
		o.Message = "The server replied but the reply could not be read; check recent events before retrying."
	case parkingapi.IsConflict(err):
		o.Kind = Conflict
		o.Message = parkingapi.FriendlyMessage(err)
	default:
		o.Kind = Failed
		o.Message = parkingapi.FriendlyMessage(err)
	}
	return o
}

func successMessage(mode Mode, plateNo string, gateID int, resp *parkingapi.InOutResponse) string {
	if mode == ModeOut {
		msg := fmt.Sprintf("Checked out %s at gate %d.", plateNo, gateID)
		if resp != nil && resp.FeeAmount != nil {
			msg += fmt.Sprintf(" Fee %.0f (%s).", *resp.FeeAmount, resp.FeeStatus)
		}
		return msg
	}
	msg := fmt.Sprintf("Checked in %s at gate %d.", plateNo, gateID)
	if resp != nil && resp.MonthlyFree {
		msg += " Monthly pass."
	}
	return msg
}
