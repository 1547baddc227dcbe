// Package parkingapi is a typed client for the parking backend's REST API.
//
// The backend owns all business rules (fees, monthly passes, open sessions);
// this client only moves requests and responses. Plate numbers are always
// sent in wire format: upper-case letters and digits with hyphens removed.
//
// # Errors
//
// Every failed call returns one of:
//   - *HTTPError: the backend answered with a non-2xx status. Payload holds
//     the decoded error body when there was one.
//   - *DecodeError: a 2xx answer whose body did not match the expected shape.
//   - *NetworkError: no answer at all (refused, timed out, cancelled).
//   - an error wrapping ErrInvalidURL.
//
// IsVehicleNotFound and IsConflict classify HTTP errors the way the gate
// needs; FriendlyMessage renders any error for an operator.
//
// The parkingapitest sub-package provides an in-memory backend for tests.
package parkingapi
