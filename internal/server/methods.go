package server

// Method represents a JSON-RPC method definition
type Method struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	ParamsSchema map[string]interface{} `json:"paramsSchema"`
}

func noParams() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// GetMethodDefinitions returns all callable methods
func GetMethodDefinitions() []Method {
	return []Method{
		// Scan control
		{
			Name:        "scan/start",
			Description: "Start a scanning round for a list of expected numbers. An empty list scans open world and accepts any well-formed number that is not a year. Closes and saves a still-open previous round.",
			ParamsSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"expected": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string", "pattern": "^[0-9]+$"},
						"description": "Numbers to look for, as digit strings",
					},
					"display": map[string]interface{}{
						"type":        "object",
						"description": "Viewport that event positions are projected into: width, height, offset_x, offset_y, flip_y",
					},
					"exclusion_band": map[string]interface{}{
						"type":        "number",
						"description": "Height of the bottom display band where labels are not emitted. Keeps the current band (exclusion_band_height from tuning) when omitted",
						"minimum":     0,
					},
				},
			},
		},
		{
			Name:         "scan/stop",
			Description:  "Stop the engine and clear its tracks. The round stays open and can still be finished.",
			ParamsSchema: noParams(),
		},
		{
			Name:         "scan/finish",
			Description:  "Stop the engine, close the current round and return its numbers, collected numbers and missing numbers.",
			ParamsSchema: noParams(),
		},
		{
			Name:         "scan/missing",
			Description:  "Close the current round and start a follow-up round that looks only for its missing numbers.",
			ParamsSchema: noParams(),
		},

		// Frames
		{
			Name:        "frame/submit",
			Description: "Run one camera frame through the engine. Events are sent as notifications before the response.",
			ParamsSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the frame image",
					},
					"timestamp": map[string]interface{}{
						"type":        "string",
						"format":      "date-time",
						"description": "Capture time (RFC 3339). Defaults to the server clock",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "frame/describe",
			Description: "Return the dimensions and format of a frame image.",
			ParamsSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the frame image",
					},
				},
				"required": []string{"path"},
			},
		},

		// Inspection
		{
			Name:         "tracks/list",
			Description:  "Evict stale tracks and list the live ones with their display regions.",
			ParamsSchema: noParams(),
		},
		{
			Name:         "engine/stats",
			Description:  "Engine counters, detector and tracker latency, and the current round.",
			ParamsSchema: noParams(),
		},

		// Sessions
		{
			Name:        "session/get",
			Description: "Return a round by id. Without an id, returns the current round or the latest saved one.",
			ParamsSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "string",
						"description": "Session UUID",
					},
				},
			},
		},
		{
			Name:        "session/list",
			Description: "List saved rounds, newest first.",
			ParamsSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of rounds. Default 20, 0 for all",
						"default":     20,
					},
				},
			},
		},
	}
}
