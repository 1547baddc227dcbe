package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var plateProperty = map[string]interface{}{
	"type":        "string",
	"description": "Plate number; hyphens and separators are removed before sending",
}

var gateIDProperty = map[string]interface{}{
	"type":        "integer",
	"description": "Gate identifier. Defaults to the configured gate for the mode",
}

var limitProperty = map[string]interface{}{
	"type":        "integer",
	"description": "Maximum number of rows. Default 50",
	"default":     50,
}

var regionProperty = map[string]interface{}{
	"type":        "object",
	"description": "Region of interest as fractions of the frame, origin top-left. Defaults to the configured plate band",
	"properties": map[string]interface{}{
		"x": map[string]interface{}{"type": "number"},
		"y": map[string]interface{}{"type": "number"},
		"w": map[string]interface{}{"type": "number"},
		"h": map[string]interface{}{"type": "number"},
	},
}

var createIfMissingProperty = map[string]interface{}{
	"type":        "boolean",
	"description": "Register an unknown vehicle and retry once. Default false",
	"default":     false,
}

func checkTool(name, description string) Tool {
	return Tool{
		Name:        name,
		Description: description,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"plate":             plateProperty,
				"gate_id":           gateIDProperty,
				"create_if_missing": createIfMissingProperty,
			},
			"required": []string{"plate"},
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Plate text
		{
			Name:        "plate_normalize",
			Description: "Normalize plate text: keep letters, digits and hyphens, upper-case. Also returns the hyphen-free form sent to the backend.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Raw plate text",
					},
				},
				"required": []string{"text"},
			},
		},
		{
			Name:        "plate_pick_best",
			Description: "Score every token of recognized text and return the most plate-like one, with a per-token score breakdown.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Raw recognized text, e.g. 'PARKING ABC-1234 ZONE'",
					},
				},
				"required": []string{"text"},
			},
		},

		// Recognition
		{
			Name:        "plate_ocr",
			Description: "Read the text in an image's plate region and pick the best plate candidate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"region": regionProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "plate_scan",
			Description: "Run a scanning session over a sequence of frames (in order) and return the stabilized plate. With submit=true the stable plate is checked in or out like at the gate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"paths": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Absolute paths to the frames, oldest first",
					},
					"mode": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"IN", "OUT"},
						"description": "Submission mode. Default IN",
					},
					"gate_id": gateIDProperty,
					"submit": map[string]interface{}{
						"type":        "boolean",
						"description": "Auto-submit a stable plate. Default false",
						"default":     false,
					},
					"create_if_missing": createIfMissingProperty,
				},
				"required": []string{"paths"},
			},
		},
		{
			Name:        "ocr_status",
			Description: "Report whether the OCR engine is available and its version.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Parking operations
		checkTool("parking_check_in", "Check a vehicle into the lot."),
		checkTool("parking_check_out", "Check a vehicle out of the lot; the response carries the fee."),
		{
			Name:        "vehicle_create",
			Description: "Register a vehicle by plate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"plate": plateProperty,
				},
				"required": []string{"plate"},
			},
		},
		{
			Name:        "vehicle_list",
			Description: "List registered vehicles.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "parking_events_recent",
			Description: "List the most recent check-in and check-out events, newest first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": limitProperty,
				},
			},
		},
		{
			Name:        "parking_sessions_recent",
			Description: "List the most recent parking sessions, newest first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": limitProperty,
				},
			},
		},
		{
			Name:        "monthly_check",
			Description: "Check whether a plate has an active monthly pass.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"plate": plateProperty,
				},
				"required": []string{"plate"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
