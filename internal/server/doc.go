// Package server implements the MCP (Model Context Protocol) server for the
// plate recognition pipeline and the parking backend.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Plate text:
//   - plate_normalize: Normalized and wire forms of a plate string
//   - plate_pick_best: Best plate candidate in recognized text, with scores
//
// Recognition:
//   - plate_ocr: Read the plate region of one image
//   - plate_scan: Run a scanning session over a frame sequence
//   - ocr_status: OCR engine availability
//
// Parking operations:
//   - parking_check_in, parking_check_out: Submit a plate at a gate
//   - vehicle_create, vehicle_list: Vehicle registry
//   - parking_events_recent, parking_sessions_recent: Recent activity
//   - monthly_check: Monthly pass lookup
//
// Check-in and check-out results are gate outcomes: a rejected request is a
// successful tool call whose outcome kind explains the rejection
// (vehicle_not_found, conflict, failed, ambiguous).
//
// # Image Caching
//
// Frames loaded by plate_ocr and plate_scan are cached by path for the
// duration of one tool call, so a scan that repeats a frame decodes it once.
// Nothing stays decoded between calls.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
package server
