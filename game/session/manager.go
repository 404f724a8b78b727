package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
	"github.com/wricardo/mcp-training/racinggame/game/service"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

var log = log15.New("module", "session")

// Manager owns the live races, keyed by lower-cased session ID. With a
// persistence backend every race is written through on create and access,
// and races missing from memory are loaded on demand.
//
// Session fields are guarded by mu. Get and List hand out copies, so
// callers may read them while another goroutine touches the access time.
// The copies share the *engine.Race, which the caller must synchronize.
type Manager struct {
	mu          sync.RWMutex
	races       map[string]*service.Session
	persistence SessionPersistence
}

// NewManager creates an in-memory session manager
func NewManager() *Manager {
	return NewManagerWithPersistence(nil)
}

// NewManagerWithPersistence creates a session manager backed by persistence
func NewManagerWithPersistence(persistence SessionPersistence) *Manager {
	return &Manager{
		races:       make(map[string]*service.Session),
		persistence: persistence,
	}
}

func key(id string) string { return strings.ToLower(id) }

// snapshot copies a session. Callers hold m.mu.
func snapshot(s *service.Session) *service.Session {
	c := *s
	return &c
}

// lookup finds a live race. Callers hold m.mu.
func (m *Manager) lookup(id string) (*service.Session, bool) {
	s, ok := m.races[key(id)]
	return s, ok
}

// persist writes a race through to storage, logging failures
func (m *Manager) persist(s *service.Session, why string) {
	if m.persistence == nil {
		return
	}
	if err := m.persistence.Save(s); err != nil {
		log.Warn("failed to persist session", "session", s.ID, "on", why, "err", err)
	}
}

// Create starts a race on config and track under id, generating an ID when
// id is empty. IDs are unique regardless of case.
func (m *Manager) Create(id, configID string, config *engine.RaceConfig, track *engine.Track) (*service.Session, error) {
	if err := engine.ValidateRaceConfig(config); err != nil {
		return nil, fmt.Errorf("failed to create race: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case id == "":
		id = m.generateUniqueID()
	case strings.ContainsAny(id, `/\.`):
		return nil, ErrInvalidSessionID
	}
	if _, taken := m.lookup(id); taken {
		return nil, ErrSessionAlreadyExists
	}

	now := time.Now()
	s := &service.Session{
		ID:             id,
		ConfigID:       configID,
		Race:           engine.NewRace(config, track, engine.SystemClock{}),
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.races[key(id)] = s
	m.persist(s, "create")

	log.Debug("race created", "session", id, "config", configID)
	return s, nil
}

// Get returns a race by ID, loading it from persistence when it is not live
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	s, ok := m.lookup(id)
	if ok {
		s = snapshot(s)
	}
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	if m.persistence == nil || !m.persistence.Exists(id) {
		return nil, ErrSessionNotFound
	}

	s, err := m.persistence.Load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if live, ok := m.lookup(id); ok {
		// loaded concurrently
		return snapshot(live), nil
	}
	m.races[key(id)] = s
	return snapshot(s), nil
}

// GetOrCreate returns the race for id, starting one when it does not exist
func (m *Manager) GetOrCreate(id, configID string, config *engine.RaceConfig, track *engine.Track) (*service.Session, error) {
	s, err := m.Get(id)
	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, configID, config, track)
	}
	return s, err
}

// List returns copies of the live races in no particular order
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*service.Session, 0, len(m.races))
	for _, s := range m.races {
		out = append(out, snapshot(s))
	}
	return out
}

// Delete ends a race and removes its stored copy
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, live := m.lookup(id)
	delete(m.races, key(id))

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}
	if !live {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory drops a live race, leaving any stored copy in place
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(id); !ok {
		return ErrSessionNotFound
	}
	delete(m.races, key(id))
	return nil
}

// UpdateLastAccessed marks a race as used now
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.lookup(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.LastAccessedAt = time.Now()
	m.persist(s, "access")
	return nil
}

// Save writes one live race to persistence. Without persistence it is a no-op.
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	s, ok := m.lookup(id)
	if ok {
		s = snapshot(s)
	}
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	return m.persistence.Save(s)
}

// CleanupExpiredSessions drops live races idle for longer than maxAge and
// returns how many were dropped. Stored copies are kept.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for k, s := range m.races {
		if s.LastAccessedAt.Before(cutoff) {
			delete(m.races, k)
			removed++
		}
	}
	return removed
}

// Count returns the number of live races
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.races)
}

// generateSessionID returns 4 random hex characters
func (m *Manager) generateSessionID() string {
	b := make([]byte, 2)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// generateUniqueID retries until the ID is unused in memory and on disk.
// Callers hold m.mu.
func (m *Manager) generateUniqueID() string {
	for {
		id := m.generateSessionID()
		if _, taken := m.lookup(id); taken {
			continue
		}
		if m.persistence != nil && m.persistence.Exists(id) {
			continue
		}
		return id
	}
}

// LoadPersistedSessions brings every stored race into memory. Races that
// fail to load are logged and skipped.
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if _, live := m.lookup(id); live {
			continue
		}
		s, err := m.persistence.Load(id)
		if err != nil {
			log.Warn("failed to load persisted session", "session", id, "err", err)
			continue
		}
		m.races[key(id)] = s
		loaded++
	}

	if loaded > 0 {
		log.Info("loaded persisted sessions", "count", loaded)
	}
	return nil
}

// SaveAllSessions writes every live race to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	failed := 0
	for _, s := range m.List() {
		if err := m.persistence.Save(s); err != nil {
			log.Warn("failed to save session", "session", s.ID, "err", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to save %d sessions", failed)
	}
	return nil
}
