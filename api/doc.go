// Package api provides the HTTP REST API for race sessions.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"config_id": "sprint"}, empty for the default)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/unified - Several sessions at once (?sessionIds=a,b or ?configName=x)
//   - GET /api/sessions/{id} - Session info with race state and config
//   - DELETE /api/sessions/{id} - Delete a session
//
// Race:
//   - GET /api/sessions/{id}/state - Current race state
//   - POST /api/sessions/{id}/step - Run ticks with held controls
//   - POST /api/sessions/{id}/start - Start the waiting level
//   - POST /api/sessions/{id}/reset - Back to level 1, laps kept
//   - POST /api/sessions/{id}/waypoints - Record a second-car waypoint ({"x":..,"y":..})
//   - GET /api/sessions/{id}/laps - Lap history (?page=&limit=&order=)
//
// Configuration:
//   - GET /api/configs - List configurations
//   - POST /api/configs - Save a configuration (id from "config_id" or the slugged name)
//   - GET /api/configs/{name} - Load one configuration
//
// Other:
//   - GET /api/health
//   - GET /ws?session={id} - WebSocket stream of state_update messages
//
// Step request:
//
//	{
//	  "input": {"key_down": true, "player": {"forward": true, "left": false},
//	            "second": {"forward": true}, "clicks": [{"x": 300, "y": 120}]},
//	  "ticks": 30,
//	  "reset": false
//	}
//
// key_down and clicks apply to the first tick only. Ticks default to 1 and
// are capped at service.MaxStepTicks; the step stops early when the race
// waits for a level start or the game has finished.
//
// Errors:
//
// Errors are returned as {"error": "message"}. Unknown sessions or configs
// map to 404, invalid input or configs to 400, anything else to 500.
package api
