// Package mcp exposes the race REST API as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes one HTTP request
// against the API server, and the JSON response is rendered as text for
// the agent.
//
// MCP Tools:
//   - create_session, get_session, list_sessions: manage races
//   - race_state: car positions, speed, heading, level and laps
//   - step: hold controls for up to service.MaxStepTicks ticks
//   - start_level: press the start key on a waiting level
//   - reset_race: back to level 1, lap history kept
//   - add_waypoint: record a point on the second car's path
//   - lap_history: paginated laps and the best lap
//   - list_configs: available track configurations
//   - race_instructions: rules, controls and driving tips
//
// Arguments are coerced with spf13/cast, so agents may send numbers as
// strings and controls either as an array or a comma separated string.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
