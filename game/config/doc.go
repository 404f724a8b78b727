// Package config provides race configuration management.
//
// The config package handles:
//   - Loading race configurations from JSON and YAML files
//   - Validation through engine.ValidateRaceConfig
//   - Default configuration management
//   - Configuration discovery and listing
//   - Building and caching the collision track of each configuration
//
// Configuration Format:
//
// Race configurations are stored as .json, .yaml or .yml files in the configs
// directory. The file name without extension is the config id used to create
// sessions. Each configuration defines:
//   - The track, as image assets or as outer/inner polygons
//   - Both cars' start positions and tuning
//   - Level count, frame rate and whether a lap advances the level
//   - Messages shown to players
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	raceConfig, err := manager.LoadConfig("sprint")
//	track, err := manager.BuildTrack("sprint")
//
//	// List available configurations
//	configs, err := manager.ListConfigs()
//
// When the directory holds no valid configuration the manager falls back to
// a built-in rectangular circuit with the id "default".
package config
