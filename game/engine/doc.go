// Package engine provides the core simulation for the two-player racing game.
//
// The engine package implements the game mechanics including:
//   - Kinematic car movement (rotation, throttle, drag, bounce)
//   - Pixel-mask collision against track borders and the finish line
//   - The level/timer state machine (GameInfo)
//   - Per-tick orchestration of both cars (Race)
//   - A fixed-rate frame loop driven by pluggable input and render collaborators
//   - Race configuration loading and validation
//
// Core Types:
//
// Car is the kinematic entity. Both the player car and the second car are
// plain Car values that differ only by sprite and start position. GameInfo
// tracks the current level and whether its timer is running. Race owns two
// cars, a GameInfo and a Track, and advances them one tick at a time.
//
// Usage:
//
//	cfg := engine.DefaultRaceConfig()
//	track, err := track.Build(cfg, "configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	race := engine.NewRace(cfg, track, engine.SystemClock{})
//	race.Tick(engine.Input{KeyDown: true})
//	race.Tick(engine.Input{Player: engine.Controls{Forward: true}})
//	state := race.State()
//
// Game Rules:
//
// Each car accelerates, brakes and turns under keyboard control. Touching the
// track border bounces a car back at half speed. Crossing the finish line
// forward completes a lap and sends both cars back to the grid; crossing it
// in reverse bounces the player car. Nothing moves until a key is pressed to
// start the level.
package engine
