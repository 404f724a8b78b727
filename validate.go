package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/racinggame/game/config"
)

// configReport is the outcome of validating one config
type configReport struct {
	ID     string
	Name   string
	Width  int
	Height int
	Err    error
}

// validateConfigs loads every config in the manager's directory and builds
// its track
func validateConfigs(manager *config.Manager) ([]configReport, error) {
	ids, err := manager.ConfigIDs()
	if err != nil {
		return nil, err
	}

	reports := make([]configReport, 0, len(ids))
	for _, id := range ids {
		report := configReport{ID: id}
		cfg, err := manager.LoadConfig(id)
		if err != nil {
			report.Err = err
			reports = append(reports, report)
			continue
		}
		report.Name = cfg.Name

		track, err := manager.BuildTrack(id)
		if err != nil {
			report.Err = err
		} else {
			report.Width, report.Height = track.Width, track.Height
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func printReports(w io.Writer, reports []configReport) (failed int) {
	for _, r := range reports {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", r.ID, r.Err)
			continue
		}
		fmt.Fprintf(w, "ok   %s (%s) %dx%d\n", r.ID, r.Name, r.Width, r.Height)
	}
	return failed
}

func runValidateCommand(ctx context.Context, cmd *cli.Command) error {
	manager, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}

	reports, err := validateConfigs(manager)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		log.Warn("no config files found", "dir", manager.Dir())
		return nil
	}

	if failed := printReports(os.Stdout, reports); failed > 0 {
		return fmt.Errorf("%d of %d configs invalid", failed, len(reports))
	}
	return nil
}
