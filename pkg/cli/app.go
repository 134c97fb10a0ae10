package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mchmarny/dosecheck/pkg/confidence"
	"github.com/mchmarny/dosecheck/pkg/config"
	"github.com/mchmarny/dosecheck/pkg/data"
	"github.com/mchmarny/dosecheck/pkg/logging"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "dosecheck"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	configFlag = &urfave.StringFlag{
		Name:    "config",
		Usage:   "Path to the config file (optional, defaults to $HOME/.dosecheck/config.yaml)",
		Sources: urfave.EnvVars("DOSECHECK_CONFIG"),
	}

	dbFlag = &urfave.StringFlag{
		Name:    "db",
		Usage:   "Sqlite file path or postgres:// DSN of the injection log",
		Sources: urfave.EnvVars("DOSECHECK_DB"),
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Dir    string
	DSN    string
	Format string
	Config *config.Config
	Scorer *confidence.Scorer

	mu sync.Mutex
	db *sql.DB
}

// DB opens the injection log on first use.
func (a *appConfig) DB() (*sql.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return a.db, nil
	}
	if err := data.Init(a.DSN); err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	db, err := data.GetDB(a.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *appConfig) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func getConfig(cmd *urfave.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Injection confidence scoring: data alignment and verification, not medical safety",
		Metadata:              map[string]any{},
		Flags: []urfave.Flag{
			debugFlag,
			configFlag,
			dbFlag,
			formatFlag,
		},
		Commands: []*urfave.Command{
			scoreCmd,
			batchCmd,
			historyCmd,
			configCmd,
			tokenCmd,
			serverCmd,
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			app, err := loadAppConfig(cmd)
			if err != nil {
				return ctx, err
			}
			cmd.Metadata[appConfigKey] = app
			return ctx, nil
		},
		After: func(_ context.Context, cmd *urfave.Command) error {
			if app, ok := cmd.Metadata[appConfigKey].(*appConfig); ok {
				return app.Close()
			}
			return nil
		},
	}
}

func loadAppConfig(cmd *urfave.Command) (*appConfig, error) {
	var (
		dir string
		cfg *config.Config
		err error
	)

	if path := cmd.String(configFlag.Name); path != "" {
		dir = filepath.Dir(path)
		if cfg, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		if dir, _, err = config.GetOrCreateHomeDir(appName); err != nil {
			return nil, fmt.Errorf("resolving app dir: %w", err)
		}
		if cfg, err = config.ReadOrCreate(dir); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	level := cfg.LogLevel
	if cmd.Bool(debugFlag.Name) {
		level = "debug"
	}
	logging.SetDefaultCLILogger(level)

	scorer, err := confidence.NewScorer(cfg.Confidence)
	if err != nil {
		return nil, fmt.Errorf("creating scorer: %w", err)
	}

	dsn := cmd.String(dbFlag.Name)
	if dsn == "" {
		dsn = cfg.DB
	}
	if dsn == "" {
		dsn = filepath.Join(dir, data.DataFileName)
	}

	format := formatJSON
	if f := cmd.String(formatFlag.Name); f == formatYAML || f == "yml" {
		format = formatYAML
	}

	slog.Debug("app config", "dir", dir, "driver", data.Driver(dsn), "format", format)
	return &appConfig{
		Dir:    dir,
		DSN:    dsn,
		Format: format,
		Config: cfg,
		Scorer: scorer,
	}, nil
}

func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

// output writes v to the command's writer in the configured format.
func output(cmd *urfave.Command, v any) error {
	if err := encode(cmd.Root().Writer, getConfig(cmd).Format, v); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}

var errEmptyInput = errors.New("empty input")

// readInput reads the named file, or stdin when name is "-" or empty.
func readInput(cmd *urfave.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		r := cmd.Root().Reader
		if r == nil {
			r = os.Stdin
		}
		return io.ReadAll(r)
	}
	return os.ReadFile(name)
}
