// Package parkingapitest runs an in-memory parking backend over HTTP for
// tests of code that talks to the parking REST API.
//
// The fake keeps vehicles, sessions, events and monthly subscriptions in
// memory and enforces the rules a real backend enforces: unknown plates are
// rejected with 404 "Vehicle not found", a second check-in of the same plate
// and a check-out without an open session are rejected with 409. Tests can
// also queue canned failures for any path with FailNext.
package parkingapitest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/plate-gate/internal/parkingapi"
)

// HourlyFee is charged per started hour for vehicles without a monthly pass.
const HourlyFee = 5000

// Call is one request received by the backend.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type failure struct {
	status int
	body   string
}

// Backend is a fake parking server. Create it with New and stop it with
// Close.
type Backend struct {
	server *httptest.Server

	mu       sync.Mutex
	nextID   int64
	vehicles map[int64]*parkingapi.Vehicle
	sessions []*parkingapi.ParkingSession
	events   []parkingapi.Event
	monthly  []*parkingapi.MonthlySubscription
	calls    []Call
	failures map[string][]failure

	// SingleMonthlyObject makes the subscription list endpoint answer with
	// a bare object when a vehicle has exactly one subscription.
	SingleMonthlyObject bool

	// Now supplies timestamps; it defaults to time.Now.
	Now func() time.Time
}

// New starts a backend on a local port.
func New() *Backend {
	gin.SetMode(gin.TestMode)

	b := &Backend{
		vehicles: make(map[int64]*parkingapi.Vehicle),
		failures: make(map[string][]failure),
		Now:      time.Now,
	}

	r := gin.New()
	r.Use(gin.Recovery(), b.record)

	api := r.Group("/api")
	{
		parking := api.Group("/parking")
		parking.POST("/in", b.checkIn)
		parking.POST("/out", b.checkOut)
		parking.GET("/check-monthly", b.checkMonthly)
		parking.GET("/events/recent", b.recentEvents)
		parking.GET("/sessions/recent", b.recentSessions)

		vehicles := api.Group("/vehicles")
		vehicles.GET("", b.listVehicles)
		vehicles.POST("", b.createVehicle)
		vehicles.PUT("/:id", b.updateVehicle)
		vehicles.DELETE("/:id", b.deleteVehicle)

		monthly := api.Group("/monthly-subscriptions")
		monthly.POST("", b.createMonthly)
		monthly.GET("", b.listMonthly)
		monthly.GET("/active", b.activeMonthly)
		monthly.PUT("/:id/extend", b.extendMonthly)
		monthly.PUT("/:id/status", b.setMonthlyStatus)
		monthly.PUT("/:id/cancel", b.cancelMonthly)
	}

	b.server = httptest.NewServer(r)
	return b
}

// URL is the backend's base URL.
func (b *Backend) URL() string {
	return b.server.URL
}

// Close shuts the server down.
func (b *Backend) Close() {
	b.server.Close()
}

// AddVehicle registers plateNo directly, bypassing HTTP.
func (b *Backend) AddVehicle(plateNo string) parkingapi.Vehicle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.addVehicleLocked(plateNo)
}

// AddMonthly gives vehicleID an ACTIVE subscription covering today.
func (b *Backend) AddMonthly(vehicleID int64, planName string) parkingapi.MonthlySubscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := b.Now()
	m := &parkingapi.MonthlySubscription{
		ID:        b.id(),
		VehicleID: vehicleID,
		StartDate: today.AddDate(0, 0, -1).Format(dateLayout),
		EndDate:   today.AddDate(0, 1, 0).Format(dateLayout),
		Status:    parkingapi.MonthlyActive,
		PlanName:  planName,
		CreatedAt: b.timestamp(),
	}
	b.monthly = append(b.monthly, m)
	return *m
}

// FailNext makes the next request to path answer with status and message
// instead of being handled. Multiple failures for a path are served in
// order.
func (b *Backend) FailNext(path string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	body := fmt.Sprintf(`{"status":%d,"error":%q,"message":%q,"path":%q}`,
		status, http.StatusText(status), message, path)
	b.failures[path] = append(b.failures[path], failure{status: status, body: body})
}

// FailNextRaw is like FailNext but sends body verbatim.
func (b *Backend) FailNextRaw(path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = append(b.failures[path], failure{status: status, body: body})
}

// Calls returns every request received so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsTo returns the requests received for path.
func (b *Backend) CallsTo(path string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Vehicle returns the registered vehicle with plateNo.
func (b *Backend) Vehicle(plateNo string) (parkingapi.Vehicle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v := b.vehicleByPlateLocked(plateNo); v != nil {
		return *v, true
	}
	return parkingapi.Vehicle{}, false
}

// HasOpenSession reports whether plateNo is currently checked in.
func (b *Backend) HasOpenSession(plateNo string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.vehicleByPlateLocked(plateNo)
	return v != nil && b.openSessionLocked(v.ID) != nil
}

const dateLayout = "2006-01-02"

func (b *Backend) id() int64 {
	b.nextID++
	return b.nextID
}

func (b *Backend) timestamp() string {
	return b.Now().UTC().Format(time.RFC3339)
}

func (b *Backend) addVehicleLocked(plateNo string) *parkingapi.Vehicle {
	v := &parkingapi.Vehicle{ID: b.id(), PlateNo: plateNo, CreatedAt: b.timestamp()}
	b.vehicles[v.ID] = v
	return v
}

func (b *Backend) vehicleByPlateLocked(plateNo string) *parkingapi.Vehicle {
	for _, v := range b.vehicles {
		if strings.EqualFold(v.PlateNo, plateNo) {
			return v
		}
	}
	return nil
}

func (b *Backend) openSessionLocked(vehicleID int64) *parkingapi.ParkingSession {
	for _, s := range b.sessions {
		if s.VehicleID == vehicleID && s.IsOpen() {
			return s
		}
	}
	return nil
}

func (b *Backend) activeMonthlyLocked(vehicleID int64) *parkingapi.MonthlySubscription {
	today := b.Now().Format(dateLayout)
	for _, m := range b.monthly {
		if m.VehicleID == vehicleID && m.Status == parkingapi.MonthlyActive &&
			m.StartDate <= today && today <= m.EndDate {
			return m
		}
	}
	return nil
}

// record logs the call and serves a queued failure when there is one.
func (b *Backend) record(c *gin.Context) {
	body, _ := c.GetRawData()
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	b.mu.Lock()
	b.calls = append(b.calls, Call{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.RawQuery,
		Body:   string(body),
	})
	queue := b.failures[c.Request.URL.Path]
	var f *failure
	if len(queue) > 0 {
		f = &queue[0]
		b.failures[c.Request.URL.Path] = queue[1:]
	}
	b.mu.Unlock()

	if f != nil {
		c.Data(f.status, "application/json", []byte(f.body))
		c.Abort()
		return
	}
	c.Next()
}

func (b *Backend) fail(c *gin.Context, status int, message string) {
	c.JSON(status, parkingapi.ErrorPayload{
		Timestamp: b.timestamp(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      c.Request.URL.Path,
	})
}

func (b *Backend) checkIn(c *gin.Context) {
	var req parkingapi.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlateNo == "" {
		b.fail(c, http.StatusBadRequest, "plateNo and gateId are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	v := b.vehicleByPlateLocked(req.PlateNo)
	if v == nil {
		b.fail(c, http.StatusNotFound, "Vehicle not found: "+req.PlateNo)
		return
	}
	if b.openSessionLocked(v.ID) != nil {
		b.fail(c, http.StatusConflict, "Vehicle already checked in (open session exists)")
		return
	}

	ev := b.eventLocked("IN", req, v.ID)
	monthlyFree := b.activeMonthlyLocked(v.ID) != nil
	feeStatus := "UNPAID"
	if monthlyFree {
		feeStatus = "FREE"
	}
	s := &parkingapi.ParkingSession{
		ID:             b.id(),
		VehicleID:      v.ID,
		CheckinEventID: &ev.ID,
		CheckinTime:    ev.EventTime,
		FeeStatus:      feeStatus,
	}
	b.sessions = append(b.sessions, s)

	c.JSON(http.StatusOK, parkingapi.InOutResponse{
		EventID:     ev.ID,
		SessionID:   s.ID,
		PlateNoRaw:  req.PlateNo,
		PlateNoNorm: v.PlateNo,
		MonthlyFree: monthlyFree,
		FeeStatus:   feeStatus,
		CheckinTime: s.CheckinTime,
	})
}

func (b *Backend) checkOut(c *gin.Context) {
	var req parkingapi.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PlateNo == "" {
		b.fail(c, http.StatusBadRequest, "plateNo and gateId are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	v := b.vehicleByPlateLocked(req.PlateNo)
	if v == nil {
		b.fail(c, http.StatusNotFound, "Vehicle not found: "+req.PlateNo)
		return
	}
	s := b.openSessionLocked(v.ID)
	if s == nil {
		b.fail(c, http.StatusConflict, "No open session for vehicle "+v.PlateNo)
		return
	}

	ev := b.eventLocked("OUT", req, v.ID)
	s.CheckoutEventID = &ev.ID
	s.CheckoutTime = ev.EventTime

	fee := 0.0
	if s.FeeStatus != "FREE" {
		in, _ := time.Parse(time.RFC3339, s.CheckinTime)
		out, _ := time.Parse(time.RFC3339, s.CheckoutTime)
		hours := int(out.Sub(in).Hours()) + 1
		fee = float64(hours * HourlyFee)
	}
	s.FeeAmount = &fee

	c.JSON(http.StatusOK, parkingapi.InOutResponse{
		EventID:      ev.ID,
		SessionID:    s.ID,
		PlateNoRaw:   req.PlateNo,
		PlateNoNorm:  v.PlateNo,
		MonthlyFree:  s.FeeStatus == "FREE",
		FeeStatus:    s.FeeStatus,
		FeeAmount:    s.FeeAmount,
		CheckinTime:  s.CheckinTime,
		CheckoutTime: s.CheckoutTime,
	})
}

func (b *Backend) eventLocked(kind string, req parkingapi.CheckRequest, vehicleID int64) parkingapi.Event {
	gate := req.GateID
	vid := vehicleID
	ev := parkingapi.Event{
		ID:          b.id(),
		EventType:   kind,
		EventTime:   b.timestamp(),
		GateID:      &gate,
		VehicleID:   &vid,
		PlateNoRaw:  req.PlateNo,
		PlateNoNorm: strings.ToUpper(req.PlateNo),
		Status:      "OK",
	}
	if req.SnapshotPath != nil {
		ev.SnapshotPath = *req.SnapshotPath
	}
	b.events = append(b.events, ev)
	return ev
}

func (b *Backend) checkMonthly(c *gin.Context) {
	p := c.Query("plate")

	b.mu.Lock()
	defer b.mu.Unlock()

	v := b.vehicleByPlateLocked(p)
	if v == nil {
		b.fail(c, http.StatusNotFound, "Vehicle not found: "+p)
		return
	}
	c.JSON(http.StatusOK, parkingapi.CheckMonthlyResponse{
		MonthlyActive: b.activeMonthlyLocked(v.ID) != nil,
		Plate:         v.PlateNo,
	})
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || n <= 0 {
		return 50
	}
	return n
}

func (b *Backend) recentEvents(c *gin.Context) {
	limit := queryLimit(c)

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]parkingapi.Event, 0, limit)
	for i := len(b.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, b.events[i])
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) recentSessions(c *gin.Context) {
	limit := queryLimit(c)

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]parkingapi.ParkingSession, 0, limit)
	for i := len(b.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *b.sessions[i])
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) listVehicles(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]parkingapi.Vehicle, 0, len(b.vehicles))
	for _, v := range b.vehicles {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (b *Backend) createVehicle(c *gin.Context) {
	var req struct {
		PlateNo string `json:"plateNo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PlateNo == "" {
		b.fail(c, http.StatusBadRequest, "plateNo is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.vehicleByPlateLocked(req.PlateNo) != nil {
		b.fail(c, http.StatusConflict, "Vehicle already exists: "+req.PlateNo)
		return
	}
	c.JSON(http.StatusOK, *b.addVehicleLocked(req.PlateNo))
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil
}

func (b *Backend) updateVehicle(c *gin.Context) {
	id, ok := pathID(c)
	var req struct {
		PlateNo string `json:"plateNo"`
	}
	if err := c.ShouldBindJSON(&req); !ok || err != nil || req.PlateNo == "" {
		b.fail(c, http.StatusBadRequest, "invalid vehicle update")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	v, found := b.vehicles[id]
	if !found {
		b.fail(c, http.StatusNotFound, "Vehicle not found: "+c.Param("id"))
		return
	}
	v.PlateNo = req.PlateNo
	c.JSON(http.StatusOK, *v)
}

func (b *Backend) deleteVehicle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		b.fail(c, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, found := b.vehicles[id]; !found {
		b.fail(c, http.StatusNotFound, "Vehicle not found: "+c.Param("id"))
		return
	}
	delete(b.vehicles, id)
	c.Status(http.StatusNoContent)
}

func (b *Backend) createMonthly(c *gin.Context) {
	var req parkingapi.MonthlyCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		b.fail(c, http.StatusBadRequest, "invalid subscription")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, found := b.vehicles[req.VehicleID]; !found {
		b.fail(c, http.StatusNotFound, "Vehicle not found: "+strconv.FormatInt(req.VehicleID, 10))
		return
	}
	m := &parkingapi.MonthlySubscription{
		ID:        b.id(),
		VehicleID: req.VehicleID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    parkingapi.MonthlyActive,
		PlanName:  req.PlanName,
		Price:     req.Price,
		CreatedAt: b.timestamp(),
	}
	b.monthly = append(b.monthly, m)
	c.JSON(http.StatusOK, *m)
}

func (b *Backend) listMonthly(c *gin.Context) {
	vid, err := strconv.ParseInt(c.Query("vehicleId"), 10, 64)
	if err != nil {
		b.fail(c, http.StatusBadRequest, "vehicleId is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := []parkingapi.MonthlySubscription{}
	for _, m := range b.monthly {
		if m.VehicleID == vid {
			out = append(out, *m)
		}
	}
	if b.SingleMonthlyObject && len(out) == 1 {
		c.JSON(http.StatusOK, out[0])
		return
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) activeMonthly(c *gin.Context) {
	vid, err := strconv.ParseInt(c.Query("vehicleId"), 10, 64)
	if err != nil {
		b.fail(c, http.StatusBadRequest, "vehicleId is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.activeMonthlyLocked(vid)
	if m == nil {
		b.fail(c, http.StatusNotFound, "No active subscription")
		return
	}
	c.JSON(http.StatusOK, *m)
}

// monthlyByIDLocked resolves the :id path parameter, answering 400/404 itself.
func (b *Backend) monthlyByIDLocked(c *gin.Context) *parkingapi.MonthlySubscription {
	id, ok := pathID(c)
	if !ok {
		b.fail(c, http.StatusBadRequest, "invalid subscription id")
		return nil
	}
	for _, m := range b.monthly {
		if m.ID == id {
			return m
		}
	}
	b.fail(c, http.StatusNotFound, "Subscription not found: "+c.Param("id"))
	return nil
}

func (b *Backend) extendMonthly(c *gin.Context) {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || days <= 0 {
		b.fail(c, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.monthlyByIDLocked(c)
	if m == nil {
		return
	}
	end, err := time.Parse(dateLayout, m.EndDate)
	if err != nil {
		end = b.Now()
	}
	m.EndDate = end.AddDate(0, 0, days).Format(dateLayout)
	c.JSON(http.StatusOK, *m)
}

func (b *Backend) setMonthlyStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		b.fail(c, http.StatusBadRequest, "status is required")
		return
	}
	switch req.Status {
	case parkingapi.MonthlyActive, parkingapi.MonthlySuspended, parkingapi.MonthlyExpired:
	default:
		b.fail(c, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.monthlyByIDLocked(c)
	if m == nil {
		return
	}
	m.Status = req.Status
	c.JSON(http.StatusOK, *m)
}

func (b *Backend) cancelMonthly(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.monthlyByIDLocked(c)
	if m == nil {
		return
	}
	m.Status = "CANCELLED"
	c.JSON(http.StatusOK, *m)
}
