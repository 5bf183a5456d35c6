package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/icodeforyou/spotpilot-go/config"
	"github.com/icodeforyou/spotpilot-go/database"
	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/evcharge"
	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/task"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configPath string
	dbPath     string
	atFlag     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "spotctl",
	Short:         "Run spotpilot services by hand",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: database.path from config)")
	rootCmd.PersistentFlags().StringVar(&atFlag, "at", "", "Evaluate at this RFC 3339 time instead of now")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// env is what every command needs: config, database and the wired components.
type env struct {
	logger     *slog.Logger
	cnfg       *config.AppConfig
	db         *database.Database
	components *task.Components
	now        time.Time
}

func setup(ctx context.Context) (*env, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.TimeOnly}))

	cnfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := hours.SetLocation(cnfg.Location.GetTimezone()); err != nil {
		return nil, err
	}

	now := hours.Now()
	if atFlag != "" {
		if now, err = time.ParseInLocation(time.RFC3339, atFlag, hours.Location()); err != nil {
			return nil, fmt.Errorf("parsing --at: %w", err)
		}
		now = now.In(hours.Location())
	}

	path := cnfg.Database.Path
	if dbPath != "" {
		path = dbPath
	}
	db, err := database.New(ctx, path)
	if err != nil {
		return nil, err
	}
	db.SetLogger(logger.With("module", "database"))

	// spotctl never talks to the charger
	charger := evcharge.NewDryRunCharger(logger.With("module", "ev_charging"), db)
	clock := func() time.Time { return now }
	return &env{
		logger:     logger,
		cnfg:       cnfg,
		db:         db,
		components: task.NewComponents(logger, cnfg, db, entity.NewKeyedMutex(), db, charger, clock),
		now:        now,
	}, nil
}

// run wraps a command body with setup and teardown.
func run(fn func(ctx context.Context, e *env, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.db.Close()
		return fn(cmd.Context(), e, args)
	}
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
