// Package websocket pushes race state to browsers watching a session.
//
// A central Hub tracks clients per session ID. Each connection gets a read
// pump, which only keeps the socket alive, and a write pump that forwards
// queued messages and pings.
//
// Message Protocol:
//
// Every message is one JSON text frame:
//
//	{"session_id": "ab12", "event": "state_update", "race_state": {...}}
//
// The API server broadcasts a state_update after each step, start, reset or
// waypoint. Custom events carry a free-form data field instead.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
// Clients whose send buffer fills up are dropped rather than blocking the
// broadcaster.
package websocket
