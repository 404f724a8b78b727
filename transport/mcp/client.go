package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
	"github.com/wricardo/mcp-training/racinggame/game/service"
)

var log = log15.New("module", "mcp")

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Two-Player Racing",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Two-Player Racing - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Drive the grey car around the track and cross the finish line going forward.
Each level waits for a key press before the clock starts.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: manage races
- race_state: positions, speed, heading, level and laps
- step: hold controls for a number of ticks (max 600 per call)
- start_level: press the start key without moving
- reset_race: back to level 1, lap history kept
- add_waypoint: record a point on the second car's path
- lap_history: recorded laps and the best lap
- list_configs: available tracks
- race_instructions: full rules and driving tips

NOTE: Pass 'intent' on step to say what the controls are meant to do; it is logged with the step.`),
	)

	c.registerTools()
}

func sessionProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func controlsProp(car string) map[string]interface{} {
	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "string",
			"enum": []string{"forward", "backward", "left", "right"},
		},
		"description": fmt.Sprintf("Controls held by the %s for every tick", car),
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new race session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Config to race on (optional, see list_configs)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active race sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Race operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "race_state",
		Description: "Get the current race state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleRaceState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step",
		Description: "Advance the race by a number of ticks while holding controls",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"ticks": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Ticks to run (default 1, max %d)", service.MaxStepTicks),
				},
				"player": controlsProp("grey player car"),
				"second": controlsProp("red second car"),
				"key_down": map[string]interface{}{
					"type":        "boolean",
					"description": "Press a key on the first tick, starting a waiting level",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset the race before stepping",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "What this step should achieve, logged with the step",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_level",
		Description: "Start the current level if it is waiting for a key press",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleStartLevel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_race",
		Description: "Reset both cars and the game to level 1. Lap history is kept.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "add_waypoint",
		Description: "Record a waypoint on the second car's path",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"x":          map[string]interface{}{"type": "number", "description": "X in track pixels"},
				"y":          map[string]interface{}{"type": "number", "description": "Y in track pixels"},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleAddWaypoint)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "lap_history",
		Description: "Get recorded laps with pagination and the best lap",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Laps per page (default 20)",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Sort order (default desc)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleLapHistory)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available race configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "race_instructions",
		Description: "Get the complete race rules, controls and driving tips",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRaceInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// controlsArg reads a list of held controls, accepting an array or a
// comma separated string
func controlsArg(v interface{}) engine.Controls {
	var names []string
	if s, ok := v.(string); ok {
		names = strings.Split(s, ",")
	} else {
		names = cast.ToStringSlice(v)
	}

	var ctl engine.Controls
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "forward", "up":
			ctl.Forward = true
		case "backward", "down":
			ctl.Backward = true
		case "left":
			ctl.Left = true
		case "right":
			ctl.Right = true
		}
	}
	return ctl
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	configID := cast.ToString(args["config_id"])
	if configID == "" {
		configID = cast.ToString(args["config_name"])
	}

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall("POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s", session.ID, session.ConfigName, formatRaceState(session.RaceState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall("GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		level, laps := 0, 0
		if s.RaceState != nil {
			level, laps = s.RaceState.Info.Level, s.RaceState.TotalLaps
		}
		fmt.Fprintf(&b, "- %s (Config: %s, Level: %d, Laps: %d, Created: %s)\n",
			s.ID, s.ConfigName, level, laps, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := cast.ToString(request.GetArguments()["session_id"])

	var session service.SessionInfo
	if err := c.apiCall("GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleRaceState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := cast.ToString(request.GetArguments()["session_id"])

	var state engine.RaceState
	if err := c.apiCall("GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRaceState(&state)), nil
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := cast.ToString(args["session_id"])

	if intent := cast.ToString(args["intent"]); intent != "" {
		log.Debug("step", "session", sessionID, "intent", intent)
	}

	ticks, err := cast.ToIntE(args["ticks"])
	if err != nil && args["ticks"] != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid ticks: %v", args["ticks"])), nil
	}

	req := service.StepRequest{
		Input: engine.Input{
			Player:  controlsArg(args["player"]),
			Second:  controlsArg(args["second"]),
			KeyDown: cast.ToBool(args["key_down"]),
		},
		Ticks: ticks,
		Reset: cast.ToBool(args["reset"]),
	}

	var result service.StepResult
	if err := c.apiCall("POST", sessionPath(sessionID, "/step"), req, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleStartLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := cast.ToString(request.GetArguments()["session_id"])

	var state engine.RaceState
	if err := c.apiCall("POST", sessionPath(sessionID, "/start"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRaceState(&state)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := cast.ToString(request.GetArguments()["session_id"])

	var response struct {
		Message string            `json:"message"`
		State   *engine.RaceState `json:"state"`
	}

	if err := c.apiCall("POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("%s\n\n%s", response.Message, formatRaceState(response.State))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleAddWaypoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := cast.ToString(args["session_id"])

	x, errX := cast.ToFloat64E(args["x"])
	y, errY := cast.ToFloat64E(args["y"])
	if errX != nil || errY != nil {
		return mcp.NewToolResultError("x and y must be numbers"), nil
	}

	var state engine.RaceState
	if err := c.apiCall("POST", sessionPath(sessionID, "/waypoints"), engine.Point{X: x, Y: y}, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Waypoint (%.0f, %.0f) added. Second car path has %d point(s).", x, y, len(state.Second.Path))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleLapHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := cast.ToString(args["session_id"])

	params := url.Values{}
	if page := cast.ToInt(args["page"]); page > 0 {
		params.Set("page", cast.ToString(page))
	}
	if limit := cast.ToInt(args["limit"]); limit > 0 {
		params.Set("limit", cast.ToString(limit))
	}
	if order := cast.ToString(args["order"]); order != "" {
		params.Set("order", order)
	}

	path := sessionPath(sessionID, "/laps")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall("GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall("GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (config_id: %s)\n  %s\n  Track: %s, Levels: %d, FPS: %d\n\n",
			config.Name, config.ConfigID, config.Description, config.TrackKind, config.Levels, config.FPS)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleRaceInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := fmt.Sprintf(`Two-Player Racing - Complete Instructions

OBJECTIVE:
Complete laps with the grey player car. A lap counts when the car touches the
finish line while moving forward. Touching it in reverse bounces the car back
with a wrong-way message.

LEVELS:
• Every level starts waiting. Send key_down (or call start_level) to start it.
• The level clock runs from the start key. Lap times are measured in ticks.
• Some configs advance a level on each lap; after the last level the game is finished.

CONTROLS (held for every tick of a step):
• forward: accelerate up to the car's max speed
• backward: brake, then reverse down to minus max speed
• left / right: rotate by the car's rotation speed (both at once cancel out)
• nothing held: the car coasts, losing half its acceleration per tick

TRACK:
• Coordinates are pixels, y grows downward. Heading 0 points up, positive headings turn left.
• Hitting the border reverses the car's speed and halves it.
• The red second car resets both cars when it reaches the finish line.

STEPPING:
• step runs up to %d ticks per call and stops early while waiting or when the game is finished.
• key_down only applies to the first tick of a step.
• Check race_state between steps; speed and heading carry over.

DRIVING TIPS:
• Short steps (10-30 ticks) make corrections easy.
• Turn before braking: rotation does not need speed.
• A bounce costs half your speed, so ease off near walls.

Good luck on the circuit!`, service.MaxStepTicks)

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nConfig: %s\nCreated: %s\nLast accessed: %s\n\n",
		session.ID, session.ConfigName,
		session.CreatedAt.Format(time.RFC3339), session.LastAccessedAt.Format(time.RFC3339))
	b.WriteString(formatRaceState(session.RaceState))
	return b.String()
}

func formatCar(name string, car engine.Car) string {
	return fmt.Sprintf("%s: pos=(%.1f, %.1f) heading=%.0f° speed=%.2f/%.1f",
		name, car.X, car.Y, car.Heading, car.Speed, car.MaxSpeed)
}

func formatRaceState(state *engine.RaceState) string {
	if state == nil {
		return "No race state available"
	}

	var b strings.Builder
	b.WriteString("=== RACE STATE ===\n")
	fmt.Fprintf(&b, "Config: %s  Tick: %d\n", state.ConfigName, state.Tick)
	fmt.Fprintf(&b, "Level: %d/%d  Laps: %d\n", state.Info.Level, state.Info.Levels, state.TotalLaps)

	switch {
	case state.Finished:
		b.WriteString("Status: GAME FINISHED\n")
	case state.Waiting:
		b.WriteString("Status: WAITING (send key_down or start_level)\n")
	default:
		fmt.Fprintf(&b, "Status: RACING (level time %.1fs)\n", state.LevelTime)
	}

	b.WriteString(formatCar("Player", state.Player) + "\n")
	b.WriteString(formatCar("Second", state.Second) + "\n")
	if n := len(state.Second.Path); n > 0 {
		fmt.Fprintf(&b, "Second car waypoints: %d\n", n)
	}
	if state.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", state.Message)
	}
	return b.String()
}

func formatStepResult(result *service.StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticks: %d/%d", result.TicksExecuted, result.TicksRequested)
	if result.Truncated {
		fmt.Fprintf(&b, " (truncated to %d)", result.Limit)
	}
	if result.StoppedReason != "" {
		fmt.Fprintf(&b, " stopped: %s", result.StoppedReason)
	}
	fmt.Fprintf(&b, "\nMoved: (%.1f, %.1f) -> (%.1f, %.1f)", result.StartPos.X, result.StartPos.Y, result.EndPos.X, result.EndPos.Y)
	if result.LapDelta > 0 {
		fmt.Fprintf(&b, "  +%d lap(s)", result.LapDelta)
	}
	b.WriteString("\n")

	if len(result.Events) > 0 {
		b.WriteString("\nEvents:\n")
		for _, ev := range result.Events {
			fmt.Fprintf(&b, "  [%d] %s", ev.Tick, ev.Type)
			if ev.Car != "" {
				fmt.Fprintf(&b, " %s", ev.Car)
			}
			if ev.Message != "" {
				fmt.Fprintf(&b, ": %s", ev.Message)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n" + formatRaceState(result.RaceState))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lap History (page %d/%d, total laps: %d):\n\n", history.Page, history.TotalPages, history.TotalLaps)
	for _, lap := range history.Laps {
		fmt.Fprintf(&b, "%d. level %d  %d ticks  %s\n", lap.LapNumber, lap.Level, lap.Ticks, lap.Duration.Round(time.Millisecond))
	}
	if len(history.Laps) == 0 {
		b.WriteString("No laps recorded yet.\n")
	}
	if history.BestLap != nil {
		fmt.Fprintf(&b, "\nBest lap: #%d, %d ticks (%s)\n", history.BestLap.LapNumber, history.BestLap.Ticks, history.BestLap.Duration.Round(time.Millisecond))
	}
	return b.String()
}
