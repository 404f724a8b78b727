// Command desktop is the two-player racing window.
//
// By default it races locally: arrows drive the grey car, WASD the red one,
// left clicks record waypoints for the red car, any key starts a level and
// Escape quits. With --watch it instead follows a server session over the
// websocket and draws every state update.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/inconshreveable/log15/v3"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/racinggame/game/config"
	"github.com/wricardo/mcp-training/racinggame/game/engine"
	"github.com/wricardo/mcp-training/racinggame/game/track"
)

var log = log15.New("module", "desktop")

func main() {
	cmd := &cli.Command{
		Name:  "desktop",
		Usage: "Two-player racing window",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing race configurations", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "config", Usage: "Config to race on (default config when empty)"},
			&cli.StringFlag{Name: "watch", Usage: "Session ID to watch instead of racing locally"},
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "Server URL for --watch"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Crit("desktop failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	lvl := log15.LvlInfo
	if cmd.Bool("debug") {
		lvl = log15.LvlDebug
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))

	if sessionID := cmd.String("watch"); sessionID != "" {
		return runWatch(cmd.String("server"), sessionID, cmd.String("config-dir"))
	}
	return runLocal(cmd.String("config-dir"), cmd.String("config"))
}

func runLocal(configDir, name string) error {
	manager, err := config.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}
	if name == "" {
		name = manager.DefaultID()
	}

	cfg, err := manager.LoadConfig(name)
	if err != nil {
		return err
	}
	t, err := manager.BuildTrack(name)
	if err != nil {
		return err
	}
	layers, err := track.LoadLayers(cfg, t, manager.Dir())
	if err != nil {
		return err
	}

	clock := newTickClock(time.Now(), cfg.FPS)
	race := engine.NewRace(cfg, t, clock)
	game := NewLocalGame(race, clock, layers)

	log.Info("racing", "config", name, "fps", cfg.FPS, "size", fmt.Sprintf("%dx%d", t.Width, t.Height))
	return runWindow(game, cfg.Name, cfg.FPS)
}

func runWatch(serverURL, sessionID, configDir string) error {
	info, err := fetchSession(&http.Client{Timeout: 10 * time.Second}, serverURL, sessionID)
	if err != nil {
		return err
	}

	cfg := info.RaceConfig
	t, err := track.Build(cfg, configDir)
	if err != nil {
		return err
	}
	layers, err := track.LoadLayers(cfg, t, configDir)
	if err != nil {
		return err
	}

	game := NewWatchGame(t, layers)
	if info.RaceState != nil {
		game.SetState(info.RaceState)
	}

	done := make(chan struct{})
	defer close(done)
	w := &watcher{serverURL: serverURL, sessionID: info.ID, game: game}
	go w.run(done)

	return runWindow(game, fmt.Sprintf("%s - watching %s", cfg.Name, info.ID), cfg.FPS)
}

func runWindow(game *Game, title string, fps int) error {
	ebiten.SetWindowSize(game.width, game.height)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(fps)

	if err := ebiten.RunGame(game); err != nil && err != ebiten.Termination {
		return err
	}
	return nil
}
