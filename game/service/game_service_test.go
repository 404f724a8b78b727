package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/racinggame/game/engine"
	"github.com/wricardo/mcp-training/racinggame/game/service"
	"github.com/wricardo/mcp-training/racinggame/game/session"
	"github.com/wricardo/mcp-training/racinggame/game/track"
)

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	sessions map[string]*service.Session
	saves    int
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
	}
}

func (m *MockSessionManager) Create(id, configID string, config *engine.RaceConfig, tr *engine.Track) (*service.Session, error) {
	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("t%03d", len(m.sessions)+1)
	}

	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	session := &service.Session{
		ID:             id,
		ConfigID:       configID,
		Race:           engine.NewRace(config, tr, nil),
		Config:         config,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}

	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	session, exists := m.sessions[id]
	if !exists {
		return nil, service.ErrSessionNotFound
	}
	return session, nil
}

func (m *MockSessionManager) List() []*service.Session {
	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return service.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	if session, exists := m.sessions[id]; exists {
		session.LastAccessedAt = time.Now()
		return nil
	}
	return service.ErrSessionNotFound
}

func (m *MockSessionManager) Save(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return service.ErrSessionNotFound
	}
	m.saves++
	return nil
}

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	configs map[string]*engine.RaceConfig
}

func NewMockConfigManager() *MockConfigManager {
	classic := engine.DefaultRaceConfig()
	sprint := engine.DefaultRaceConfig()
	sprint.Name = "Sprint"
	sprint.Levels = 2
	sprint.AdvanceLevelOnLap = true

	return &MockConfigManager{
		configs: map[string]*engine.RaceConfig{
			"classic": classic,
			"sprint":  sprint,
		},
	}
}

func (m *MockConfigManager) LoadConfig(name string) (*engine.RaceConfig, error) {
	config, exists := m.configs[name]
	if !exists {
		return nil, service.ErrConfigNotFound
	}
	return config, nil
}

func (m *MockConfigManager) ListConfigs() ([]*service.ConfigInfo, error) {
	var result []*service.ConfigInfo
	for id, config := range m.configs {
		result = append(result, &service.ConfigInfo{
			Filename:    id + ".json",
			ConfigID:    id,
			Name:        config.Name,
			Description: config.Description,
			Levels:      config.Levels,
			FPS:         config.FPS,
			TrackKind:   "shape",
		})
	}
	return result, nil
}

func (m *MockConfigManager) GetDefault() *engine.RaceConfig {
	return m.configs["classic"]
}

func (m *MockConfigManager) DefaultID() string {
	return "classic"
}

func (m *MockConfigManager) SaveConfig(name string, config *engine.RaceConfig) error {
	if err := engine.ValidateRaceConfig(config); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidConfig, err)
	}
	m.configs[name] = config
	return nil
}

func (m *MockConfigManager) BuildTrack(name string) (*engine.Track, error) {
	config, err := m.LoadConfig(name)
	if err != nil {
		return nil, err
	}
	return track.Build(config, "")
}

func newTestService() (service.RaceService, *MockSessionManager) {
	sessions := NewMockSessionManager()
	return service.NewRaceService(sessions, NewMockConfigManager()), sessions
}

func TestRaceService_CreateSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name       string
		configName string
		wantConfig string
		wantErr    error
	}{
		{"default config", "", "classic", nil},
		{"named config", "sprint", "sprint", nil},
		{"unknown config", "nope", "", service.ErrConfigNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := svc.CreateSession(ctx, tt.configName)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}
			if info.ConfigName != tt.wantConfig {
				t.Errorf("expected config %s, got %s", tt.wantConfig, info.ConfigName)
			}
			if info.RaceState == nil || !info.RaceState.Waiting {
				t.Error("new session should be waiting for a level start")
			}
		})
	}
}

func TestRaceService_Step(t *testing.T) {
	svc, sessions := newTestService()
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	t.Run("waiting without key down", func(t *testing.T) {
		result, err := svc.Step(ctx, info.ID, service.StepRequest{
			Input: engine.Input{Player: engine.Controls{Forward: true}},
			Ticks: 10,
		})
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if result.TicksExecuted != 1 || result.StoppedReason != "waiting" {
			t.Errorf("expected 1 tick stopped on waiting, got %d (%s)", result.TicksExecuted, result.StoppedReason)
		}
		if result.EndPos != result.StartPos {
			t.Error("car should not move while waiting")
		}
	})

	t.Run("key down starts and drives", func(t *testing.T) {
		saves := sessions.saves
		result, err := svc.Step(ctx, info.ID, service.StepRequest{
			Input: engine.Input{KeyDown: true, Player: engine.Controls{Forward: true}},
			Ticks: 10,
		})
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if result.TicksExecuted != 10 {
			t.Errorf("expected 10 ticks, got %d", result.TicksExecuted)
		}
		if result.EndPos.Y >= result.StartPos.Y {
			t.Errorf("car should move up: start %v end %v", result.StartPos, result.EndPos)
		}
		if len(result.Events) == 0 || result.Events[0].Type != engine.EventLevelStarted {
			t.Errorf("expected level_started event first, got %+v", result.Events)
		}
		if sessions.saves != saves+1 {
			t.Error("step should auto-save the session")
		}
	})

	t.Run("truncated", func(t *testing.T) {
		result, err := svc.Step(ctx, info.ID, service.StepRequest{Ticks: service.MaxStepTicks + 50})
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if !result.Truncated || result.Limit != service.MaxStepTicks {
			t.Errorf("expected truncation at %d, got %+v", service.MaxStepTicks, result)
		}
		if result.TicksExecuted > service.MaxStepTicks {
			t.Errorf("executed %d ticks", result.TicksExecuted)
		}
	})

	t.Run("negative ticks", func(t *testing.T) {
		_, err := svc.Step(ctx, info.ID, service.StepRequest{Ticks: -1})
		if !errors.Is(err, service.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := svc.Step(ctx, "zzzz", service.StepRequest{})
		if !errors.Is(err, service.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("reset first", func(t *testing.T) {
		result, err := svc.Step(ctx, info.ID, service.StepRequest{Reset: true})
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if result.Events[0].Type != engine.EventReset {
			t.Errorf("expected reset event, got %s", result.Events[0].Type)
		}
		if !result.RaceState.Waiting {
			t.Error("reset race should wait for a start")
		}
	})
}

func TestRaceService_StartResetWaypoint(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	info, _ := svc.CreateSession(ctx, "")

	state, err := svc.StartLevel(ctx, info.ID)
	if err != nil {
		t.Fatalf("StartLevel failed: %v", err)
	}
	if !state.Info.Started || state.Waiting {
		t.Error("level should be started")
	}

	state, err = svc.AddWaypoint(ctx, info.ID, engine.Point{X: 10, Y: 20})
	if err != nil {
		t.Fatalf("AddWaypoint failed: %v", err)
	}
	if len(state.Second.Path) != 1 || state.Second.Path[0] != (engine.Point{X: 10, Y: 20}) {
		t.Errorf("unexpected path %v", state.Second.Path)
	}

	state, err = svc.Reset(ctx, info.ID)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if state.Info.Level != 1 || state.Info.Started {
		t.Errorf("reset should return to level 1 awaiting start, got %+v", state.Info)
	}
	if len(state.Second.Path) != 0 {
		t.Error("reset should clear the waypoint path")
	}

	if _, err := svc.GetRaceState(ctx, "nope"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRaceService_GetLapHistory(t *testing.T) {
	svc, sessions := newTestService()
	ctx := context.Background()
	info, _ := svc.CreateSession(ctx, "")

	sess := sessions.sessions[info.ID]
	state := sess.Race.State()
	for i := 1; i <= 25; i++ {
		state.Laps = append(state.Laps, engine.LapRecord{
			ID:        fmt.Sprintf("lap%d", i),
			Car:       engine.CarPlayer,
			Level:     1,
			Ticks:     int64(1000 - i),
			LapNumber: i,
		})
	}
	state.TotalLaps = 25
	if err := sess.Race.SetState(state); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	tests := []struct {
		name      string
		opts      service.HistoryOptions
		wantLen   int
		wantFirst int
		wantNext  bool
	}{
		{"defaults desc", service.HistoryOptions{}, 20, 25, true},
		{"page 3 of 10", service.HistoryOptions{Page: 3, Limit: 10}, 5, 5, false},
		{"asc", service.HistoryOptions{Limit: 10, Order: "asc"}, 10, 1, true},
		{"past the end", service.HistoryOptions{Page: 9, Limit: 10, Order: "asc"}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history, err := svc.GetLapHistory(ctx, info.ID, tt.opts)
			if err != nil {
				t.Fatalf("GetLapHistory failed: %v", err)
			}
			if len(history.Laps) != tt.wantLen {
				t.Fatalf("expected %d laps, got %d", tt.wantLen, len(history.Laps))
			}
			if tt.wantLen > 0 && history.Laps[0].LapNumber != tt.wantFirst {
				t.Errorf("expected first lap %d, got %d", tt.wantFirst, history.Laps[0].LapNumber)
			}
			if history.HasNext != tt.wantNext {
				t.Errorf("expected has_next %v", tt.wantNext)
			}
			if history.TotalLaps != 25 {
				t.Errorf("expected 25 total laps, got %d", history.TotalLaps)
			}
			if history.BestLap == nil || history.BestLap.LapNumber != 25 {
				t.Errorf("expected lap 25 as best, got %+v", history.BestLap)
			}
		})
	}
}

func TestRaceService_ListAndDeleteSessions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, _ := svc.CreateSession(ctx, "")
	svc.CreateSession(ctx, "sprint")

	sessions, err := svc.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	if err := svc.DeleteSession(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if err := svc.DeleteSession(ctx, a.ID); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second delete, got %v", err)
	}
	if _, err := svc.GetSession(ctx, a.ID); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRaceService_SaveConfig(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cfg := engine.DefaultRaceConfig()
	cfg.Name = "Custom"
	if err := svc.SaveConfig(ctx, "custom", cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if _, err := svc.CreateSession(ctx, "custom"); err != nil {
		t.Errorf("session from saved config failed: %v", err)
	}

	bad := engine.DefaultRaceConfig()
	bad.FPS = 0
	if err := svc.SaveConfig(ctx, "bad", bad); !errors.Is(err, service.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if err := svc.SaveConfig(ctx, "", cfg); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

// cancelAfter is a context whose Err starts failing after n calls
type cancelAfter struct {
	context.Context
	mu sync.Mutex
	n  int
}

func (c *cancelAfter) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n <= 0 {
		return context.Canceled
	}
	c.n--
	return nil
}

func TestRaceService_StepCancelledKeepsProgress(t *testing.T) {
	svc, sessions := newTestService()
	info, err := svc.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	saves := sessions.saves
	ctx := &cancelAfter{Context: context.Background(), n: 5}
	_, err = svc.Step(ctx, info.ID, service.StepRequest{
		Input: engine.Input{KeyDown: true, Player: engine.Controls{Forward: true}},
		Ticks: 50,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sessions.saves != saves+1 {
		t.Error("a cancelled step should still save the ticks it played")
	}

	state, err := svc.GetRaceState(context.Background(), info.ID)
	if err != nil {
		t.Fatalf("GetRaceState failed: %v", err)
	}
	if state.Tick != 5 {
		t.Errorf("expected the 5 ticks before cancellation to stick, got tick %d", state.Tick)
	}
}

// Run with -race: readers share the service read lock while the session
// manager updates access times.
func TestRaceService_ConcurrentReads(t *testing.T) {
	svc := service.NewRaceService(session.NewManager(), NewMockConfigManager())
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		info, err := svc.CreateSession(ctx, "")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		ids[i] = info.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := svc.GetRaceState(ctx, ids[(w+i)%len(ids)]); err != nil {
					errs <- err
					return
				}
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				list, err := svc.ListSessions(ctx)
				if err != nil {
					errs <- err
					return
				}
				for _, info := range list {
					if info.LastAccessedAt.IsZero() {
						errs <- fmt.Errorf("session %s has no access time", info.ID)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
