package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mchmarny/dosecheck/pkg/config"
	urfave "github.com/urfave/cli/v3"
)

var (
	forceFlag = &urfave.BoolFlag{
		Name:  "force",
		Usage: "Overwrite the existing config file",
	}

	configCmd = &urfave.Command{
		Name:  "config",
		Usage: "Show or initialize the scoring configuration",
		Commands: []*urfave.Command{
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: cmdConfigShow,
			},
			{
				Name:   "init",
				Usage:  "Write the default configuration to the app directory",
				Action: cmdConfigInit,
				Flags: []urfave.Flag{
					forceFlag,
				},
			},
		},
	}
)

func cmdConfigShow(_ context.Context, cmd *urfave.Command) error {
	return output(cmd, getConfig(cmd).Config)
}

func cmdConfigInit(_ context.Context, cmd *urfave.Command) error {
	app := getConfig(cmd)
	path := filepath.Join(app.Dir, config.FileName)

	if _, err := os.Stat(path); err == nil && !cmd.Bool(forceFlag.Name) {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}

	if err := config.Save(app.Dir, config.Default()); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	slog.Info("config initialized", "path", path)
	return output(cmd, map[string]string{"path": path})
}
