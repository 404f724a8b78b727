package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
)

var log = log15.New("module", "service")

// raceServiceImpl implements the RaceService interface
type raceServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	mu       sync.RWMutex
	now      func() time.Time
}

// NewRaceService creates a new race service instance
func NewRaceService(sessions SessionManager, configs ConfigManager) RaceService {
	return &raceServiceImpl{
		sessions: sessions,
		configs:  configs,
		now:      time.Now,
	}
}

// CreateSession creates a new race session
func (s *raceServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	configID := configName
	var config *engine.RaceConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s': %w. Available configs: %v", configName, err, configIDs)
				}
				return nil, fmt.Errorf("config '%s': %w. Use /api/configs to list available configurations", configName, err)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
		configID = s.configs.DefaultID()
	}

	track, err := s.configs.BuildTrack(configID)
	if err != nil {
		return nil, fmt.Errorf("failed to build track for %s: %w", configID, err)
	}

	// Let session manager generate a proper 4-character ID
	session, err := s.sessions.Create("", configID, config, track)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info("session created", "session", session.ID, "config", configID)
	return sessionInfo(session), nil
}

func sessionInfo(session *Session) *SessionInfo {
	return &SessionInfo{
		ID:             session.ID,
		ConfigName:     session.ConfigID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		RaceState:      session.Race.State(),
		RaceConfig:     session.Config,
	}
}

// GetSession retrieves session information
func (s *raceServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sessionInfo(session), nil
}

// ListSessions returns all active sessions
func (s *raceServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *raceServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	log.Info("session deleted", "session", sessionID)
	return nil
}

// Step advances a race by up to MaxStepTicks ticks. It stops early when the
// race is waiting for a level start or the game is finished.
func (s *raceServiceImpl) Step(ctx context.Context, sessionID string, req StepRequest) (*StepResult, error) {
	if req.Ticks < 0 {
		return nil, fmt.Errorf("%w: ticks must not be negative, got %d", ErrInvalidInput, req.Ticks)
	}
	if req.Ticks == 0 {
		req.Ticks = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	race := sess.Race

	result := &StepResult{
		TicksRequested: req.Ticks,
		Events:         []RaceEvent{},
	}

	if req.Reset {
		race.Reset()
		result.Events = append(result.Events, RaceEvent{
			Type:      engine.EventReset,
			Message:   "Race reset to level 1",
			Tick:      race.State().Tick,
			Timestamp: s.now(),
		})
	}

	ticks := req.Ticks
	if ticks > MaxStepTicks {
		result.Truncated = true
		result.Limit = MaxStepTicks
		ticks = MaxStepTicks
	}

	start := race.State()
	result.StartPos = start.Player.Position()

	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			// keep the ticks already played
			s.save(sessionID, "step cancelled")
			log.Debug("step cancelled", "session", sessionID, "ticks", result.TicksExecuted, "err", err)
			return nil, err
		}

		in := req.Input
		if i > 0 {
			// one-shot inputs only apply to the first tick
			in.KeyDown = false
			in.Clicks = nil
		}

		tick := race.Tick(in)
		result.TicksExecuted++
		result.Events = append(result.Events, s.convertEvents(tick.Events)...)

		if tick.Finished {
			result.StoppedReason = "game_finished"
			break
		}
		if tick.Waiting {
			result.StoppedReason = "waiting"
			break
		}
	}

	end := race.State()
	result.RaceState = end
	result.EndPos = end.Player.Position()
	result.LapDelta = end.TotalLaps - start.TotalLaps

	log.Debug("step", "session", sessionID, "ticks", result.TicksExecuted, "requested", req.Ticks,
		"stop", result.StoppedReason, "x", end.Player.X, "y", end.Player.Y, "speed", end.Player.Speed)

	s.save(sessionID, "step")
	return result, nil
}

// StartLevel starts the waiting level of a session
func (s *raceServiceImpl) StartLevel(ctx context.Context, sessionID string) (*engine.RaceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	if sess.Race.StartLevel() {
		log.Info("level started", "session", sessionID, "level", sess.Race.Info().Level)
	}

	s.save(sessionID, "start")
	return sess.Race.State(), nil
}

// Reset resets a race session to level 1
func (s *raceServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.RaceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	state := sess.Race.Reset()
	s.save(sessionID, "reset")
	return state, nil
}

// AddWaypoint records a waypoint on the second car's path
func (s *raceServiceImpl) AddWaypoint(ctx context.Context, sessionID string, point engine.Point) (*engine.RaceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Race.AddWaypoint(point)
	s.save(sessionID, "waypoint")
	return sess.Race.State(), nil
}

// GetRaceState retrieves the current race state
func (s *raceServiceImpl) GetRaceState(ctx context.Context, sessionID string) (*engine.RaceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Race.State(), nil
}

// GetLapHistory returns paginated lap history
func (s *raceServiceImpl) GetLapHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Race.Laps()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	laps := []engine.LapRecord{}
	if opts.Order == "desc" {
		// most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			laps = append(laps, history[i])
		}
	} else if start < total {
		laps = append(laps, history[start:end]...)
	}

	var best *engine.LapRecord
	for i := range history {
		if best == nil || history[i].Ticks < best.Ticks {
			best = &history[i]
		}
	}

	return &HistoryResponse{
		Laps:        laps,
		TotalLaps:   total,
		BestLap:     best,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available race configurations
func (s *raceServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific race configuration
func (s *raceServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.RaceConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a race configuration to disk
func (s *raceServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.RaceConfig) error {
	if configName == "" {
		return fmt.Errorf("%w: config name is required", ErrInvalidInput)
	}
	return s.configs.SaveConfig(configName, config)
}

// getSession looks a session up and refreshes its access time
func (s *raceServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	if err := s.sessions.UpdateLastAccessed(sessionID); err != nil {
		log.Warn("failed to update last access", "session", sessionID, "err", err)
	}
	return sess, nil
}

// save persists a session after a mutation; failures are logged, not returned
func (s *raceServiceImpl) save(sessionID, op string) {
	if err := s.sessions.Save(sessionID); err != nil {
		log.Warn("failed to persist session", "session", sessionID, "op", op, "err", err)
	}
}

func (s *raceServiceImpl) convertEvents(events []engine.Event) []RaceEvent {
	out := make([]RaceEvent, 0, len(events))
	for _, e := range events {
		out = append(out, RaceEvent{
			Type:      e.Type,
			Car:       e.Car,
			Message:   e.Message,
			Tick:      e.Tick,
			Timestamp: s.now(),
			Position:  e.Position,
		})
	}
	return out
}
