package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ironsheep/plate-gate/internal/gate"
	"github.com/ironsheep/plate-gate/internal/imaging"
	"github.com/ironsheep/plate-gate/internal/ocr"
	"github.com/ironsheep/plate-gate/internal/parkingapi"
	"github.com/ironsheep/plate-gate/internal/plate"
	"github.com/ironsheep/plate-gate/internal/sampler"
	"github.com/ironsheep/plate-gate/internal/session"
)

// errNoBackend is returned by parking tools when no backend is configured.
var errNoBackend = errors.New("parking backend not configured")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "plate_scan", "parking_check_in").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Debug().Err(err).Str("tool", params.Name).Msg("Tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Plate text
	case "plate_normalize":
		return s.handlePlateNormalize(args)
	case "plate_pick_best":
		return s.handlePlatePickBest(args)

	// Recognition
	case "plate_ocr":
		return s.handlePlateOCR(ctx, args)
	case "plate_scan":
		return s.handlePlateScan(ctx, args)
	case "ocr_status":
		return ocr.Probe(), nil

	// Parking operations
	case "parking_check_in":
		return s.handleCheck(ctx, gate.ModeIn, args)
	case "parking_check_out":
		return s.handleCheck(ctx, gate.ModeOut, args)
	case "vehicle_create":
		return s.handleVehicleCreate(ctx, args)
	case "vehicle_list":
		return s.handleVehicleList(ctx)
	case "parking_events_recent":
		return s.handleEventsRecent(ctx, args)
	case "parking_sessions_recent":
		return s.handleSessionsRecent(ctx, args)
	case "monthly_check":
		return s.handleMonthlyCheck(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Plate text ===

type textArgs struct {
	Text string `json:"text"`
}

// NormalizeResult is returned by plate_normalize.
type NormalizeResult struct {
	Normalized string `json:"normalized"`
	Wire       string `json:"wire"`
}

func (s *Server) handlePlateNormalize(args json.RawMessage) (interface{}, error) {
	var a textArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return NormalizeResult{
		Normalized: plate.Normalize(a.Text),
		Wire:       plate.WireFormat(a.Text),
	}, nil
}

// PickBestResult is returned by plate_pick_best and embedded in plate_ocr.
type PickBestResult struct {
	Found     bool              `json:"found"`
	Candidate *plate.Candidate  `json:"candidate,omitempty"`
	Tokens    []plate.Breakdown `json:"tokens"`
}

func pickBest(text string) PickBestResult {
	res := PickBestResult{Tokens: []plate.Breakdown{}}
	for _, tok := range plate.Tokens(text) {
		res.Tokens = append(res.Tokens, plate.Explain(plate.Normalize(tok)))
	}
	if c, ok := plate.PickBest(text); ok {
		res.Found = true
		res.Candidate = &c
	}
	return res
}

func (s *Server) handlePlatePickBest(args json.RawMessage) (interface{}, error) {
	var a textArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return pickBest(a.Text), nil
}

// === Recognition ===

type plateOCRArgs struct {
	Path   string          `json:"path"`
	Region *imaging.Region `json:"region"`
}

// OCRResult is returned by plate_ocr.
type OCRResult struct {
	Text      string         `json:"text"`
	Fragments []ocr.Fragment `json:"fragments"`
	PickBestResult
}

func (s *Server) extractor(region *imaging.Region) (*ocr.Extractor, error) {
	if s.opts.Recognizer == nil {
		return nil, ocr.ErrUnavailable
	}
	opts := s.opts.Extractor
	if opts.Region == (imaging.Region{}) {
		opts.Region = imaging.DefaultPlateRegion
	}
	if region != nil {
		if err := region.Validate(); err != nil {
			return nil, err
		}
		opts.Region = *region
	}
	return ocr.NewExtractor(s.opts.Recognizer, opts, s.log), nil
}

func (s *Server) handlePlateOCR(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a plateOCRArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	ext, err := s.extractor(a.Region)
	if err != nil {
		return nil, err
	}
	defer s.cache.Evict(a.Path)
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	fragments, err := ext.Fragments(ctx, img)
	if err != nil {
		return nil, err
	}
	if fragments == nil {
		fragments = []ocr.Fragment{}
	}

	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, f.Text)
	}
	text := strings.Join(parts, " ")
	return OCRResult{Text: text, Fragments: fragments, PickBestResult: pickBest(text)}, nil
}

type plateScanArgs struct {
	Paths           []string `json:"paths"`
	Mode            string   `json:"mode"`
	GateID          int      `json:"gate_id"`
	Submit          bool     `json:"submit"`
	CreateIfMissing bool     `json:"create_if_missing"`
}

// ScanFrame reports what one frame contributed to a scan.
type ScanFrame struct {
	Path      string           `json:"path"`
	Text      string           `json:"text,omitempty"`
	Candidate *plate.Candidate `json:"candidate,omitempty"`
	Skipped   bool             `json:"skipped,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// ScanResult is returned by plate_scan.
type ScanResult struct {
	SessionID string        `json:"session_id"`
	Frames    []ScanFrame   `json:"frames"`
	Winner    string        `json:"winner,omitempty"`
	Count     int           `json:"count"`
	Stable    bool          `json:"stable"`
	State     session.State `json:"state"`
	Outcome   *gate.Outcome `json:"outcome,omitempty"`
}

func (s *Server) handlePlateScan(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a plateScanArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Paths) == 0 {
		return nil, errors.New("paths is required")
	}
	mode := gate.ModeIn
	if a.Mode != "" {
		m, err := gate.ParseMode(a.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	if a.Submit && s.opts.API == nil {
		return nil, errNoBackend
	}
	ext, err := s.extractor(nil)
	if err != nil {
		return nil, err
	}

	cfg := s.opts.Session
	cfg.Mode = mode
	cfg.GateID = s.gateID(mode, a.GateID)
	cfg.AutoSubmit = a.Submit
	// Stills are not rate-limited; every frame counts.
	cfg.ForwardInterval = time.Nanosecond
	cfg.EventBuffer = 8*len(a.Paths) + 8

	var backend gate.Backend
	if s.opts.API != nil {
		backend = s.opts.API
	}
	sess := session.New(cfg, session.Deps{Extractor: ext, Backend: backend, Log: s.log})
	defer sess.Close()

	// Frames repeat within one scan, not across calls.
	defer func() {
		for _, path := range a.Paths {
			s.cache.Evict(path)
		}
	}()

	res := ScanResult{SessionID: sess.ID(), Frames: make([]ScanFrame, 0, len(a.Paths))}
	for i, path := range a.Paths {
		frame := ScanFrame{Path: path}
		img, err := s.cache.Load(path)
		if err != nil {
			frame.Error = err.Error()
			res.Frames = append(res.Frames, frame)
			continue
		}

		st := sess.State()
		frame.Skipped = st == session.Submitting || st == session.AwaitingConfirmation

		sess.ProcessFrame(ctx, sampler.Frame{Seq: uint64(i + 1), Image: img, At: time.Now()})
		sess.Wait()

		for _, ev := range drainEvents(sess) {
			switch ev.Kind {
			case session.EventText:
				frame.Text = ev.Text
			case session.EventCandidate:
				frame.Candidate = ev.Candidate
			case session.EventOutcome:
				res.Outcome = ev.Outcome
			}
		}
		res.Frames = append(res.Frames, frame)
	}

	if a.CreateIfMissing && res.Outcome != nil && res.Outcome.Kind == gate.VehicleNotFound {
		o, err := sess.ConfirmCreateVehicle(ctx)
		if err != nil {
			return nil, err
		}
		res.Outcome = &o
		drainEvents(sess)
	}

	snap := sess.Snapshot()
	res.Winner = snap.Vote.Winner
	res.Count = snap.Vote.Count
	res.Stable = snap.Vote.Count >= sess.Config().MinWinCount
	res.State = snap.State
	if res.Outcome == nil {
		res.Outcome = snap.LastOutcome
	}
	return res, nil
}

func drainEvents(sess *session.Session) []session.Event {
	var out []session.Event
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// === Parking operations ===

func (s *Server) gateID(mode gate.Mode, requested int) int {
	if requested > 0 {
		return requested
	}
	if mode == gate.ModeOut {
		return s.opts.DefaultGateOut
	}
	return s.opts.DefaultGateIn
}

type checkArgs struct {
	Plate           string `json:"plate"`
	GateID          int    `json:"gate_id"`
	CreateIfMissing bool   `json:"create_if_missing"`
}

func (s *Server) handleCheck(ctx context.Context, mode gate.Mode, args json.RawMessage) (interface{}, error) {
	var a checkArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.opts.API == nil {
		return nil, errNoBackend
	}
	if plate.WireFormat(a.Plate) == "" {
		return nil, errors.New("plate is required")
	}

	g := gate.New(s.opts.API, gate.Config{Mode: mode, GateID: s.gateID(mode, a.GateID)}, nil, s.log)
	o := g.Submit(ctx, a.Plate)
	if o.Kind == gate.VehicleNotFound && a.CreateIfMissing {
		o = g.CreateVehicleAndRetry(ctx, o)
	}
	return o, nil
}

type plateArgs struct {
	Plate string `json:"plate"`
}

func (s *Server) handleVehicleCreate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a plateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.opts.API == nil {
		return nil, errNoBackend
	}
	if plate.WireFormat(a.Plate) == "" {
		return nil, errors.New("plate is required")
	}
	return s.opts.API.CreateVehicle(ctx, a.Plate)
}

func (s *Server) handleVehicleList(ctx context.Context) (interface{}, error) {
	if s.opts.API == nil {
		return nil, errNoBackend
	}
	return s.opts.API.ListVehicles(ctx)
}

type limitArgs struct {
	Limit int `json:"limit"`
}

func (a limitArgs) value() int {
	if a.Limit <= 0 {
		return parkingapi.DefaultRecentLimit
	}
	return a.Limit
}

func (s *Server) handleEventsRecent(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a limitArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.opts.API == nil {
		return nil, errNoBackend
	}
	return s.opts.API.RecentEvents(ctx, a.value())
}

func (s *Server) handleSessionsRecent(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a limitArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.opts.API == nil {
		return nil, errNoBackend
	}
	return s.opts.API.RecentSessions(ctx, a.value())
}

func (s *Server) handleMonthlyCheck(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a plateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.opts.API == nil {
		return nil, errNoBackend
	}
	return s.opts.API.CheckMonthly(ctx, a.Plate)
}
