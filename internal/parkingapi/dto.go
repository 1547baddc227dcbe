package parkingapi

import "strings"

// CheckRequest is the body of a check-in or check-out call.
type CheckRequest struct {
	PlateNo      string  `json:"plateNo"`
	GateID       int     `json:"gateId"`
	SnapshotPath *string `json:"snapshotPath,omitempty"`
}

// InOutResponse is returned by both check-in and check-out. Fields the
// backend omits for one direction are left at their zero value.
type InOutResponse struct {
	EventID      int64    `json:"eventId"`
	SessionID    int64    `json:"sessionId"`
	PlateNoRaw   string   `json:"plateNoRaw"`
	PlateNoNorm  string   `json:"plateNoNorm"`
	MonthlyFree  bool     `json:"monthlyFree"`
	FeeStatus    string   `json:"feeStatus"`
	FeeAmount    *float64 `json:"feeAmount"`
	CheckinTime  string   `json:"checkinTime"`
	CheckoutTime string   `json:"checkoutTime"`
}

// CheckMonthlyResponse reports whether a plate holds an active monthly pass.
type CheckMonthlyResponse struct {
	MonthlyActive bool   `json:"monthlyActive"`
	Plate         string `json:"plate"`
}

// Vehicle is a registered plate.
type Vehicle struct {
	ID        int64  `json:"id"`
	PlateNo   string `json:"plateNo"`
	CreatedAt string `json:"createdAt"`
}

// Event is one gate passage recorded by the backend.
type Event struct {
	ID            int64    `json:"id"`
	EventType     string   `json:"eventType,omitempty"`
	EventTime     string   `json:"eventTime,omitempty"`
	GateID        *int     `json:"gateId,omitempty"`
	VehicleID     *int64   `json:"vehicleId,omitempty"`
	PlateNoRaw    string   `json:"plateNoRaw,omitempty"`
	PlateNoNorm   string   `json:"plateNoNorm,omitempty"`
	OCRConfidence *float64 `json:"ocrConfidence,omitempty"`
	SnapshotPath  string   `json:"snapshotPath,omitempty"`
	Status        string   `json:"status,omitempty"`
	HandledBy     *int64   `json:"handledBy,omitempty"`
	Note          string   `json:"note,omitempty"`
}

// ParkingSession spans a check-in and, once closed, its check-out.
type ParkingSession struct {
	ID              int64    `json:"id"`
	VehicleID       int64    `json:"vehicleId"`
	CheckinEventID  *int64   `json:"checkinEventId,omitempty"`
	CheckoutEventID *int64   `json:"checkoutEventId,omitempty"`
	CheckinTime     string   `json:"checkinTime,omitempty"`
	CheckoutTime    string   `json:"checkoutTime,omitempty"`
	FeeAmount       *float64 `json:"feeAmount,omitempty"`
	FeeStatus       string   `json:"feeStatus,omitempty"`
	PaidAt          string   `json:"paidAt,omitempty"`
}

// IsOpen reports whether the vehicle is still inside. The backend sends
// either null or an empty string for an open session.
func (s ParkingSession) IsOpen() bool {
	return strings.TrimSpace(s.CheckoutTime) == ""
}

// Monthly subscription statuses accepted by SetMonthlyStatus.
const (
	MonthlyActive    = "ACTIVE"
	MonthlySuspended = "SUSPENDED"
	MonthlyExpired   = "EXPIRED"
)

// MonthlySubscription is a monthly pass bound to a vehicle.
type MonthlySubscription struct {
	ID        int64   `json:"id"`
	VehicleID int64   `json:"vehicleId"`
	StartDate string  `json:"startDate,omitempty"`
	EndDate   string  `json:"endDate,omitempty"`
	Status    string  `json:"status,omitempty"`
	PlanName  string  `json:"planName,omitempty"`
	Price     float64 `json:"price,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// MonthlyCreateRequest creates a subscription. Dates are yyyy-MM-dd.
type MonthlyCreateRequest struct {
	VehicleID int64   `json:"vehicleId"`
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	PlanName  string  `json:"planName"`
	Price     float64 `json:"price"`
}

type vehicleRequest struct {
	PlateNo string `json:"plateNo"`
}

type monthlyStatusRequest struct {
	Status string `json:"status"`
}

// ErrorPayload is the error body the backend sends with non-2xx responses.
// Every field is optional.
type ErrorPayload struct {
	Timestamp string `json:"timestamp,omitempty"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Path      string `json:"path,omitempty"`
}
