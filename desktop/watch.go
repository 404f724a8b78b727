package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/racinggame/game/service"
	hub "github.com/wricardo/mcp-training/racinggame/transport/websocket"
)

// fetchSession gets a session, with its race config, from the server
func fetchSession(client *http.Client, serverURL, sessionID string) (*service.SessionInfo, error) {
	endpoint := fmt.Sprintf("%s/api/sessions/%s", strings.TrimSuffix(serverURL, "/"), url.PathEscape(sessionID))
	resp, err := client.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session %s: server returned %d", sessionID, resp.StatusCode)
	}

	var info service.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	if info.RaceConfig == nil {
		return nil, fmt.Errorf("session %s has no race config", sessionID)
	}
	return &info, nil
}

// wsURL turns the server's http(s) URL into the session's websocket URL
func wsURL(serverURL, sessionID string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("session", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// watcher streams a session's state updates into a Game
type watcher struct {
	serverURL string
	sessionID string
	game      *Game
}

// run connects and forwards state updates until done is closed, reconnecting
// after a dropped connection
func (w *watcher) run(done <-chan struct{}) {
	endpoint, err := wsURL(w.serverURL, w.sessionID)
	if err != nil {
		log.Error("bad server URL", "url", w.serverURL, "err", err)
		return
	}

	for {
		if err := w.listen(endpoint, done); err != nil {
			log.Warn("websocket disconnected", "session", w.sessionID, "err", err)
		}
		select {
		case <-done:
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (w *watcher) listen(endpoint string, done <-chan struct{}) error {
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info("websocket connected", "session", w.sessionID)

	go func() {
		<-done
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		w.handle(message)
	}
}

// handle applies one websocket message
func (w *watcher) handle(message []byte) {
	var msg hub.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug("websocket JSON parse error", "err", err)
		return
	}
	if msg.RaceState == nil {
		if msg.Event != "" {
			log.Info("race event", "session", msg.SessionID, "event", msg.Event)
		}
		return
	}
	w.game.SetState(msg.RaceState)
}
