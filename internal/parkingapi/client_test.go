package parkingapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/plate-gate/internal/parkingapi"
	"github.com/ironsheep/plate-gate/internal/parkingapi/parkingapitest"
)

// newClient starts a fake backend and returns a client pointed at it.
func newClient(t *testing.T) (*parkingapi.Client, *parkingapitest.Backend) {
	t.Helper()
	backend := parkingapitest.New()
	t.Cleanup(backend.Close)

	client, err := parkingapi.New(backend.URL())
	require.NoError(t, err)
	return client, backend
}

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://host", "://missing"} {
		_, err := parkingapi.New(raw)
		assert.ErrorIs(t, err, parkingapi.ErrInvalidURL, "base URL %q", raw)
	}
}

func TestCheckIn_SendsWireFormat(t *testing.T) {
	client, backend := newClient(t)
	backend.AddVehicle("ABC1234")

	resp, err := client.CheckIn(context.Background(), "abc-1234", 1, nil)
	require.NoError(t, err)

	assert.Equal(t, "ABC1234", resp.PlateNoNorm)
	assert.Equal(t, "UNPAID", resp.FeeStatus)
	assert.NotZero(t, resp.SessionID)

	calls := backend.CallsTo("/api/parking/in")
	require.Len(t, calls, 1)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(calls[0].Body), &body))
	assert.Equal(t, "ABC1234", body["plateNo"])
	assert.EqualValues(t, 1, body["gateId"])
	assert.NotContains(t, body, "snapshotPath")
}

func TestCheckInOut_RoundTrip(t *testing.T) {
	client, backend := newClient(t)
	v := backend.AddVehicle("XYZ9876")
	backend.AddMonthly(v.ID, "Standard")
	ctx := context.Background()

	snap := "/snapshots/1.jpg"
	in, err := client.CheckIn(ctx, "XYZ9876", 1, &snap)
	require.NoError(t, err)
	assert.True(t, in.MonthlyFree)

	_, err = client.CheckIn(ctx, "XYZ9876", 1, nil)
	assert.True(t, parkingapi.IsConflict(err), "second check-in should conflict: %v", err)

	out, err := client.CheckOut(ctx, "XYZ9876", 2, nil)
	require.NoError(t, err)
	require.NotNil(t, out.FeeAmount)
	assert.Zero(t, *out.FeeAmount)
	assert.NotEmpty(t, out.CheckoutTime)

	_, err = client.CheckOut(ctx, "XYZ9876", 2, nil)
	assert.True(t, parkingapi.IsConflict(err))
	assert.Equal(t, "No open session for this vehicle; nothing to check out.", parkingapi.FriendlyMessage(err))

	events, err := client.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "OUT", events[0].EventType)
	assert.Equal(t, snap, events[1].SnapshotPath)

	sessions, err := client.RecentSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].IsOpen())
}

func TestCheckIn_VehicleNotFound(t *testing.T) {
	client, _ := newClient(t)

	_, err := client.CheckIn(context.Background(), "NEW1234", 1, nil)
	require.Error(t, err)

	var he *parkingapi.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusNotFound, he.Status)
	require.NotNil(t, he.Payload)
	assert.Equal(t, "HTTP 404: Vehicle not found: NEW1234", err.Error())
	assert.True(t, parkingapi.IsVehicleNotFound(err))
}

func TestCheckMonthly(t *testing.T) {
	client, backend := newClient(t)
	v := backend.AddVehicle("MON1234")
	backend.AddMonthly(v.ID, "Gold")
	ctx := context.Background()

	resp, err := client.CheckMonthly(ctx, "mon-1234")
	require.NoError(t, err)
	assert.True(t, resp.MonthlyActive)
	assert.Equal(t, "plate=MON1234", backend.CallsTo("/api/parking/check-monthly")[0].Query)

	resp, err = client.CheckMonthly(ctx, "UNK0000")
	require.NoError(t, err, "unknown plate is not an error")
	assert.False(t, resp.MonthlyActive)
	assert.Equal(t, "UNK0000", resp.Plate)

	backend.FailNext("/api/parking/check-monthly", http.StatusInternalServerError, "Vehicle not found")
	resp, err = client.CheckMonthly(ctx, "MON1234")
	require.NoError(t, err)
	assert.False(t, resp.MonthlyActive)

	backend.FailNext("/api/parking/check-monthly", http.StatusInternalServerError, "database down")
	_, err = client.CheckMonthly(ctx, "MON1234")
	assert.Error(t, err)
}

func TestVehicleCRUD(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	v, err := client.CreateVehicle(ctx, "ab-12345")
	require.NoError(t, err)
	assert.Equal(t, "AB12345", v.PlateNo)

	_, err = client.CreateVehicle(ctx, "AB12345")
	assert.True(t, parkingapi.IsStatus(err, http.StatusConflict))

	v, err = client.UpdateVehicle(ctx, v.ID, "CD-67890")
	require.NoError(t, err)
	assert.Equal(t, "CD67890", v.PlateNo)

	list, err := client.ListVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, client.DeleteVehicle(ctx, v.ID))
	err = client.DeleteVehicle(ctx, v.ID)
	assert.True(t, parkingapi.IsStatus(err, http.StatusNotFound))
}

func TestMonthlyLifecycle(t *testing.T) {
	client, backend := newClient(t)
	v := backend.AddVehicle("SUB1234")
	ctx := context.Background()

	none, err := client.ActiveMonthly(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	m, err := client.CreateMonthly(ctx, parkingapi.MonthlyCreateRequest{
		VehicleID: v.ID,
		StartDate: "2000-01-01",
		EndDate:   "2999-12-31",
		PlanName:  "Monthly",
		Price:     300000,
	})
	require.NoError(t, err)
	assert.Equal(t, parkingapi.MonthlyActive, m.Status)

	active, err := client.ActiveMonthly(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, m.ID, active.ID)

	m, err = client.ExtendMonthly(ctx, m.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, "3000-01-30", m.EndDate)

	m, err = client.SetMonthlyStatus(ctx, m.ID, parkingapi.MonthlySuspended)
	require.NoError(t, err)
	assert.Equal(t, parkingapi.MonthlySuspended, m.Status)

	m, err = client.CancelMonthly(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", m.Status)
}

func TestListMonthly_AcceptsSingleObject(t *testing.T) {
	client, backend := newClient(t)
	v := backend.AddVehicle("ONE1234")
	backend.AddMonthly(v.ID, "Solo")
	ctx := context.Background()

	list, err := client.ListMonthly(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	backend.SingleMonthlyObject = true
	list, err = client.ListMonthly(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Solo", list[0].PlanName)

	backend.FailNextRaw("/api/monthly-subscriptions", http.StatusOK, `"nonsense"`)
	_, err = client.ListMonthly(ctx, v.ID)
	var de *parkingapi.DecodeError
	assert.True(t, errors.As(err, &de))
}

func TestDecodeError(t *testing.T) {
	client, backend := newClient(t)
	backend.FailNextRaw("/api/vehicles", http.StatusOK, `<html>proxy login</html>`)

	_, err := client.ListVehicles(context.Background())

	var de *parkingapi.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "<html>proxy login</html>", de.Raw)
}

func TestHTTPError_NonJSONBody(t *testing.T) {
	client, backend := newClient(t)
	backend.FailNextRaw("/api/vehicles", http.StatusBadGateway, "upstream down")

	err := client.Ping(context.Background())

	var he *parkingapi.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Nil(t, he.Payload)
	assert.Equal(t, "HTTP 502: upstream down", err.Error())
}

func TestPing(t *testing.T) {
	client, _ := newClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

type failingDoer struct{ err error }

func (f failingDoer) Do(*http.Request) (*http.Response, error) { return nil, f.err }

func TestNetworkError(t *testing.T) {
	cause := errors.New("connection refused")
	client, err := parkingapi.New("http://10.0.0.1:8080", parkingapi.WithHTTPClient(failingDoer{err: cause}))
	require.NoError(t, err)

	_, err = client.CheckIn(context.Background(), "ABC1234", 1, nil)

	var ne *parkingapi.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.ErrorIs(t, err, cause)
	assert.False(t, parkingapi.IsVehicleNotFound(err))
	assert.Equal(t, "Cannot reach the parking server: connection refused", parkingapi.FriendlyMessage(err))
}

func TestBaseURLWithPrefix(t *testing.T) {
	backend := parkingapitest.New()
	t.Cleanup(backend.Close)

	client, err := parkingapi.New(backend.URL() + "/")
	require.NoError(t, err)
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "/api/vehicles", backend.Calls()[0].Path)
}
