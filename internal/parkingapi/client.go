package parkingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/plate-gate/internal/plate"
)

// DefaultTimeout bounds a single request when no HTTP client is supplied.
const DefaultTimeout = 10 * time.Second

// DefaultRecentLimit is the page size of the recent events/sessions lists.
const DefaultRecentLimit = 50

// HTTPDoer sends HTTP requests. *http.Client satisfies it; tests substitute
// their own.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the parking backend. It is safe for concurrent use.
type Client struct {
	base *url.URL
	http HTTPDoer
	log  zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(d HTTPDoer) Option {
	return func(c *Client) { c.http = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "parkingapi").Logger() }
}

// New creates a client for the backend at baseURL (scheme and host, with an
// optional path prefix).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	c := &Client{
		base: u,
		http: &http.Client{Timeout: DefaultTimeout},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// CheckIn records a vehicle entering through gateID.
func (c *Client) CheckIn(ctx context.Context, plateNo string, gateID int, snapshotPath *string) (*InOutResponse, error) {
	return c.inOut(ctx, "/api/parking/in", plateNo, gateID, snapshotPath)
}

// CheckOut records a vehicle leaving through gateID.
func (c *Client) CheckOut(ctx context.Context, plateNo string, gateID int, snapshotPath *string) (*InOutResponse, error) {
	return c.inOut(ctx, "/api/parking/out", plateNo, gateID, snapshotPath)
}

func (c *Client) inOut(ctx context.Context, path, plateNo string, gateID int, snapshotPath *string) (*InOutResponse, error) {
	body := CheckRequest{
		PlateNo:      plate.WireFormat(plateNo),
		GateID:       gateID,
		SnapshotPath: snapshotPath,
	}
	var resp InOutResponse
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckMonthly reports whether plateNo has an active monthly pass. An
// unknown plate is not an error: it simply has no pass.
func (c *Client) CheckMonthly(ctx context.Context, plateNo string) (*CheckMonthlyResponse, error) {
	p := plate.WireFormat(plateNo)
	q := url.Values{"plate": {p}}

	var resp CheckMonthlyResponse
	err := c.do(ctx, http.MethodGet, "/api/parking/check-monthly", q, nil, &resp)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) || IsVehicleNotFound(err) {
			return &CheckMonthlyResponse{MonthlyActive: false, Plate: p}, nil
		}
		return nil, err
	}
	return &resp, nil
}

// RecentEvents lists the latest gate events, newest first. A non-positive
// limit means DefaultRecentLimit.
func (c *Client) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	var events []Event
	if err := c.do(ctx, http.MethodGet, "/api/parking/events/recent", limitQuery(limit), nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// RecentSessions lists the latest parking sessions, newest first.
func (c *Client) RecentSessions(ctx context.Context, limit int) ([]ParkingSession, error) {
	var sessions []ParkingSession
	if err := c.do(ctx, http.MethodGet, "/api/parking/sessions/recent", limitQuery(limit), nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// ListVehicles returns every registered vehicle.
func (c *Client) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	var vehicles []Vehicle
	if err := c.do(ctx, http.MethodGet, "/api/vehicles", nil, nil, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// CreateVehicle registers plateNo.
func (c *Client) CreateVehicle(ctx context.Context, plateNo string) (*Vehicle, error) {
	var v Vehicle
	body := vehicleRequest{PlateNo: plate.WireFormat(plateNo)}
	if err := c.do(ctx, http.MethodPost, "/api/vehicles", nil, body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVehicle changes the plate of vehicle id.
func (c *Client) UpdateVehicle(ctx context.Context, id int64, plateNo string) (*Vehicle, error) {
	var v Vehicle
	body := vehicleRequest{PlateNo: plate.WireFormat(plateNo)}
	if err := c.do(ctx, http.MethodPut, "/api/vehicles/"+strconv.FormatInt(id, 10), nil, body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DeleteVehicle removes vehicle id.
func (c *Client) DeleteVehicle(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/vehicles/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

// CreateMonthly creates a monthly subscription.
func (c *Client) CreateMonthly(ctx context.Context, req MonthlyCreateRequest) (*MonthlySubscription, error) {
	var m MonthlySubscription
	if err := c.do(ctx, http.MethodPost, "/api/monthly-subscriptions", nil, req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMonthly returns the subscriptions of a vehicle. Some backends answer
// with a bare object when there is exactly one; both shapes are accepted.
func (c *Client) ListMonthly(ctx context.Context, vehicleID int64) ([]MonthlySubscription, error) {
	q := url.Values{"vehicleId": {strconv.FormatInt(vehicleID, 10)}}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/monthly-subscriptions", q, nil, &raw); err != nil {
		return nil, err
	}

	var list []MonthlySubscription
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var one MonthlySubscription
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, &DecodeError{Raw: string(raw), Err: err}
	}
	return []MonthlySubscription{one}, nil
}

// ActiveMonthly returns the subscription active today for a vehicle, or nil
// when there is none.
func (c *Client) ActiveMonthly(ctx context.Context, vehicleID int64) (*MonthlySubscription, error) {
	q := url.Values{"vehicleId": {strconv.FormatInt(vehicleID, 10)}}

	var m MonthlySubscription
	err := c.do(ctx, http.MethodGet, "/api/monthly-subscriptions/active", q, nil, &m)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ExtendMonthly pushes the end date of subscription id by days.
func (c *Client) ExtendMonthly(ctx context.Context, id int64, days int) (*MonthlySubscription, error) {
	q := url.Values{"days": {strconv.Itoa(days)}}
	return c.monthlyAction(ctx, http.MethodPut, id, "/extend", q, nil)
}

// SetMonthlyStatus changes the status of subscription id. See the Monthly*
// constants for accepted values.
func (c *Client) SetMonthlyStatus(ctx context.Context, id int64, status string) (*MonthlySubscription, error) {
	return c.monthlyAction(ctx, http.MethodPut, id, "/status", nil, monthlyStatusRequest{Status: status})
}

// CancelMonthly cancels subscription id.
func (c *Client) CancelMonthly(ctx context.Context, id int64) (*MonthlySubscription, error) {
	return c.monthlyAction(ctx, http.MethodPut, id, "/cancel", nil, nil)
}

func (c *Client) monthlyAction(ctx context.Context, method string, id int64, suffix string, q url.Values, body any) (*MonthlySubscription, error) {
	var m MonthlySubscription
	path := "/api/monthly-subscriptions/" + strconv.FormatInt(id, 10) + suffix
	if err := c.do(ctx, method, path, q, body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Ping checks that the backend answers. Only the status code is inspected.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/vehicles", nil, nil, nil)
}

// do sends one request and decodes a 2xx body into out. A nil out discards
// the body. Errors are always one of *HTTPError, *DecodeError, *NetworkError
// or wrap ErrInvalidURL.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.base.JoinPath(path)
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("url", u.String()).Msg("Request failed")
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}
	raw := string(data)

	c.log.Debug().
		Str("method", method).
		Str("url", u.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		he := &HTTPError{Status: resp.StatusCode, RawBody: raw}
		var payload ErrorPayload
		if json.Unmarshal(data, &payload) == nil {
			he.Payload = &payload
		}
		return he
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Raw: raw, Err: err}
	}
	return nil
}
