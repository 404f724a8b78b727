package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/inconshreveable/log15/v3"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
	"github.com/wricardo/mcp-training/racinggame/game/service"
	"github.com/wricardo/mcp-training/racinggame/game/track"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = service.ErrInvalidConfig
)

// DefaultConfigID names the built-in config used when the directory has none
const DefaultConfigID = "default"

// extensions are tried in order when resolving a config name
var extensions = []string{".json", ".yaml", ".yml"}

var log = log15.New("module", "config")

// Manager handles race configuration loading and caching
type Manager struct {
	configDir     string
	defaultID     string
	defaultConfig *engine.RaceConfig
	configs       map[string]*engine.RaceConfig
	tracks        map[string]*engine.Track
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	// Ensure config directory exists
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.RaceConfig),
		tracks:    make(map[string]*engine.Track),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// Dir returns the directory configs and their assets are read from
func (m *Manager) Dir() string {
	return m.configDir
}

// LoadConfig loads a configuration by name. The name may carry a .json,
// .yaml or .yml extension; without one each is tried in turn.
func (m *Manager) LoadConfig(name string) (*engine.RaceConfig, error) {
	name = trimExtension(name)

	m.mu.RLock()
	if config, exists := m.configs[name]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[name]; exists {
		return config, nil
	}

	path, err := m.resolve(name)
	if err != nil {
		if name == DefaultConfigID && m.defaultConfig != nil {
			return m.defaultConfig, nil
		}
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := engine.ParseRaceConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := engine.ValidateRaceConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m.configs[name] = config
	return config, nil
}

// resolve finds the file backing a config name
func (m *Manager) resolve(name string) (string, error) {
	for _, ext := range extensions {
		path := filepath.Join(m.configDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrConfigNotFound
}

// ListConfigs returns information about all available configurations
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() || !hasConfigExtension(entry.Name()) {
			continue
		}

		name := trimExtension(entry.Name())
		if seen[name] {
			continue
		}
		seen[name] = true

		config, err := m.LoadConfig(name)
		if err != nil {
			log.Debug("skipping invalid config", "file", entry.Name(), "err", err)
			continue
		}

		kind := "shape"
		if config.Track.UsesImages() {
			kind = "image"
		}

		configs = append(configs, &service.ConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    name, // This is the identifier to use for session creation
			Name:        config.Name,
			Description: config.Description,
			Levels:      config.Levels,
			FPS:         config.FPS,
			TrackKind:   kind,
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// ConfigIDs returns the id of every config file in the directory, valid or
// not, sorted
func (m *Manager) ConfigIDs() ([]string, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var ids []string
	seen := map[string]bool{}
	for _, entry := range entries {
		if entry.IsDir() || !hasConfigExtension(entry.Name()) {
			continue
		}
		id := trimExtension(entry.Name())
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.RaceConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// DefaultID returns the config id of the default configuration
func (m *Manager) DefaultID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultID
}

// SetDefault sets the default configuration by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	m.defaultID = trimExtension(name)
	return nil
}

// RefreshCache drops every cached config and track and reloads the default
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.RaceConfig)
	m.tracks = make(map[string]*engine.Track)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// loadDefaultConfig prefers classic, then the first valid config, then the
// built-in circuit
func (m *Manager) loadDefaultConfig() error {
	id := "classic"
	config, err := m.LoadConfig(id)
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			m.setDefault(DefaultConfigID, m.createMinimalConfig())
			return nil
		}

		id = configs[0].ConfigID
		config, err = m.LoadConfig(id)
		if err != nil {
			m.setDefault(DefaultConfigID, m.createMinimalConfig())
			return nil
		}
	}

	m.setDefault(id, config)
	return nil
}

func (m *Manager) setDefault(id string, config *engine.RaceConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = id
	m.defaultConfig = config
}

// SaveConfig validates a configuration and writes it as JSON
func (m *Manager) SaveConfig(name string, config *engine.RaceConfig) error {
	if config != nil {
		engine.ApplyDefaults(config)
	}
	if err := engine.ValidateRaceConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	name = trimExtension(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: bad config name %q", ErrInvalidConfig, name)
	}

	configPath := filepath.Join(m.configDir, name+".json")

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[name] = config
	delete(m.tracks, name)
	m.mu.Unlock()

	log.Info("config saved", "config", name, "path", configPath)
	return nil
}

// BuildTrack returns the collision track for a config, building it on first use
func (m *Manager) BuildTrack(name string) (*engine.Track, error) {
	name = trimExtension(name)

	m.mu.RLock()
	if t, ok := m.tracks[name]; ok {
		m.mu.RUnlock()
		return t, nil
	}
	m.mu.RUnlock()

	config, err := m.LoadConfig(name)
	if err != nil {
		return nil, err
	}

	t, err := track.Build(config, m.configDir)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}

	m.mu.Lock()
	m.tracks[name] = t
	m.mu.Unlock()

	log.Debug("track built", "config", name, "width", t.Width, "height", t.Height)
	return t, nil
}

// createMinimalConfig creates the built-in circuit
func (m *Manager) createMinimalConfig() *engine.RaceConfig {
	config := engine.DefaultRaceConfig()
	config.Name = DefaultConfigID
	config.Description = "Built-in rectangular circuit"
	return config
}

func hasConfigExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func trimExtension(name string) string {
	if hasConfigExtension(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
