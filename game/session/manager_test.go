package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/racinggame/game/engine"
	"github.com/wricardo/mcp-training/racinggame/game/track"
)

var (
	testTrackOnce sync.Once
	testTrack     *engine.Track
	testTrackErr  error
)

func createTestConfig() *engine.RaceConfig {
	config := engine.DefaultRaceConfig()
	config.Name = "Test Config"
	config.Description = "Test configuration"
	return config
}

// createTestTrack builds the default circuit once and shares it across tests
func createTestTrack(t *testing.T) *engine.Track {
	t.Helper()
	testTrackOnce.Do(func() {
		testTrack, testTrackErr = track.Build(engine.DefaultRaceConfig(), "")
	})
	if testTrackErr != nil {
		t.Fatalf("Failed to build track: %v", testTrackErr)
	}
	return testTrack
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	tr := createTestTrack(t)

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := manager.Create("test-session", "classic", config, tr)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID != "test-session" {
			t.Errorf("Expected session ID 'test-session', got '%s'", session.ID)
		}
		if session.ConfigID != "classic" {
			t.Errorf("Expected config id 'classic', got '%s'", session.ConfigID)
		}
		if session.Race == nil {
			t.Fatal("Expected race to be initialized")
		}
		if !session.Race.State().Waiting {
			t.Error("Expected a new race to wait for a key press")
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		session, err := manager.Create("", "classic", config, tr)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character session ID, got %q", session.ID)
		}
	})

	t.Run("duplicate session ID", func(t *testing.T) {
		_, err := manager.Create("test-session", "classic", config, tr)
		if err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("case-insensitive duplicate check", func(t *testing.T) {
		_, err := manager.Create("TEST-SESSION", "classic", config, tr)
		if err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists for case variant, got %v", err)
		}
	})

	t.Run("path-like ID", func(t *testing.T) {
		for _, id := range []string{"../up", `a\b`, "a/b"} {
			if _, err := manager.Create(id, "classic", config, tr); err != ErrInvalidSessionID {
				t.Errorf("Create(%q): expected ErrInvalidSessionID, got %v", id, err)
			}
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		invalidConfig := createTestConfig()
		invalidConfig.Name = ""
		if _, err := manager.Create("invalid-test", "classic", invalidConfig, tr); err == nil {
			t.Error("Expected error for invalid config")
		}
	})
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	created, _ := manager.Create("get-test", "classic", createTestConfig(), createTestTrack(t))

	t.Run("get existing session", func(t *testing.T) {
		session, err := manager.Get("get-test")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if session != created {
			t.Errorf("Expected the created session")
		}
	})

	t.Run("case-insensitive get", func(t *testing.T) {
		session, err := manager.Get("GET-TEST")
		if err != nil {
			t.Fatalf("Failed to get session with different case: %v", err)
		}
		if session != created {
			t.Errorf("Expected same session regardless of case")
		}
	})

	t.Run("get non-existent session", func(t *testing.T) {
		_, err := manager.Get("non-existent")
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	tr := createTestTrack(t)

	first, err := manager.GetOrCreate("new-session", "classic", config, tr)
	if err != nil {
		t.Fatalf("Failed to get or create session: %v", err)
	}
	second, err := manager.GetOrCreate("new-session", "classic", config, tr)
	if err != nil {
		t.Fatalf("Failed to get existing session: %v", err)
	}
	if first != second {
		t.Error("Expected the existing session to be returned")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", manager.Count())
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	tr := createTestTrack(t)

	manager.Create("delete-test", "classic", config, tr)

	t.Run("delete existing session", func(t *testing.T) {
		if err := manager.Delete("delete-test"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if _, err := manager.Get("delete-test"); err != ErrSessionNotFound {
			t.Error("Expected session to be deleted")
		}
	})

	t.Run("delete non-existent session", func(t *testing.T) {
		if err := manager.Delete("non-existent"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("case-insensitive delete", func(t *testing.T) {
		manager.Create("case-test", "classic", config, tr)
		if err := manager.Delete("CASE-TEST"); err != nil {
			t.Fatalf("Failed to delete with different case: %v", err)
		}
		if _, err := manager.Get("case-test"); err != ErrSessionNotFound {
			t.Error("Expected session to be deleted regardless of case")
		}
	})
}

func TestManager_List(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	tr := createTestTrack(t)

	want := map[string]bool{"list-1": false, "list-2": false, "list-3": false}
	for id := range want {
		if _, err := manager.Create(id, "classic", config, tr); err != nil {
			t.Fatalf("Failed to create %s: %v", id, err)
		}
	}

	for _, s := range manager.List() {
		want[s.ID] = true
	}
	for id, found := range want {
		if !found {
			t.Errorf("Session %s not found in list", id)
		}
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	tr := createTestTrack(t)

	active, _ := manager.Create("active", "classic", config, tr)
	expired, _ := manager.Create("expired", "classic", config, tr)

	expired.LastAccessedAt = time.Now().Add(-2 * time.Hour)
	active.LastAccessedAt = time.Now()

	if deleted := manager.CleanupExpiredSessions(time.Hour); deleted != 1 {
		t.Errorf("Expected 1 session to be deleted, got %d", deleted)
	}
	if _, err := manager.Get("expired"); err != ErrSessionNotFound {
		t.Error("Expected expired session to be deleted")
	}
	if _, err := manager.Get("active"); err != nil {
		t.Error("Expected active session to still exist")
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	session, _ := manager.Create("access-test", "classic", createTestConfig(), createTestTrack(t))
	originalTime := session.LastAccessedAt

	time.Sleep(10 * time.Millisecond)

	if err := manager.UpdateLastAccessed("access-test"); err != nil {
		t.Fatalf("Failed to update last accessed: %v", err)
	}

	updated, _ := manager.Get("access-test")
	if !updated.LastAccessedAt.After(originalTime) {
		t.Error("Expected LastAccessedAt to be updated")
	}

	if err := manager.UpdateLastAccessed("missing"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	tr := createTestTrack(t)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := ""
			if n%2 == 0 {
				id = fmt.Sprintf("racer-%d", n)
			}
			session, err := manager.Create(id, "classic", config, tr)
			if err != nil {
				errs <- err
				return
			}
			if _, err := manager.Get(session.ID); err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected error during concurrent access: %v", err)
	}
	if manager.Count() != 100 {
		t.Errorf("Expected 100 sessions, got %d", manager.Count())
	}
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	tr := createTestTrack(t)

	session1, _ := manager.Create("iso-1", "classic", config, tr)
	session2, _ := manager.Create("iso-2", "classic", config, tr)

	session1.Race.Tick(engine.Input{KeyDown: true, Player: engine.Controls{Forward: true}})
	for i := 0; i < 5; i++ {
		session1.Race.Tick(engine.Input{Player: engine.Controls{Forward: true}})
	}

	p1 := session1.Race.Player()
	p2 := session2.Race.Player()
	if p2.Y != config.Player.Start.Y || p2.Speed != 0 {
		t.Errorf("Session 2 should not be affected by session 1, got %+v", p2.Position())
	}
	if p1.Y == p2.Y {
		t.Error("Sessions should have independent race state")
	}
	if !session2.Race.State().Waiting {
		t.Error("Session 2 should still be waiting")
	}
}

func TestManager_SessionIDGeneration(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	tr := createTestTrack(t)

	generatedIDs := make(map[string]bool)
	for i := 0; i < 50; i++ {
		session, err := manager.Create("", "classic", config, tr)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if generatedIDs[session.ID] {
			t.Errorf("Duplicate session ID generated: %s", session.ID)
		}
		generatedIDs[session.ID] = true
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got %d", len(session.ID))
		}
	}
}
