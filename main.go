package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/icodeforyou/spotpilot-go/config"
	"github.com/icodeforyou/spotpilot-go/database"
	"github.com/icodeforyou/spotpilot-go/entity"
	"github.com/icodeforyou/spotpilot-go/evcharge"
	"github.com/icodeforyou/spotpilot-go/homebridge"
	"github.com/icodeforyou/spotpilot-go/hours"
	"github.com/icodeforyou/spotpilot-go/logging"
	"github.com/icodeforyou/spotpilot-go/task"
	"github.com/icodeforyou/spotpilot-go/www"
	"github.com/lmittmann/tint"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := hours.SetLocation(cnfg.Location.GetTimezone()); err != nil {
		panic(fmt.Sprintf("failed to set timezone: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(cnfg.Logging.GetConsoleLevel())
	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      consoleLevel,
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("spotpilot is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	if err := config.Watch(*configPath, logger.With("module", "config"), func(c *config.AppConfig) {
		consoleLevel.Set(c.Logging.GetConsoleLevel())
		logger.Info("console log level updated, restart to apply other changes", slog.String("level", consoleLevel.Level().String()))
	}); err != nil {
		logger.Warn("config file will not be watched", slog.Any("error", err))
	}

	store := entity.NewObserved(db)
	locks := entity.NewKeyedMutex()

	bridge := homebridge.New(logger, store, homebridge.Options{
		Host:         cnfg.Mqtt.Host,
		Port:         cnfg.Mqtt.Port,
		Username:     cnfg.Mqtt.Username,
		Password:     cnfg.Mqtt.Password,
		ClientID:     cnfg.Mqtt.GetClientID(),
		StateTopic:   cnfg.Mqtt.GetStateTopic(),
		CommandTopic: cnfg.Mqtt.GetCommandTopic(),
		Watchdog:     cnfg.Mqtt.GetWatchdog(),
		Smoothing:    cnfg.Mqtt.Smoothing,
	})

	var charger evcharge.Charger = bridge
	if isDevMode() || cnfg.EvCharging.DryRun {
		logger.Info("charger commands are dry run")
		charger = evcharge.NewDryRunCharger(logger.With("module", "ev_charging"), store)
	}

	components := task.NewComponents(logger, cnfg, store, locks, db, charger, hours.Now)
	dispatcher := task.NewDispatcher(logger.With("module", "dispatcher"), components.Solar, components.EvTriggers, hours.Now)
	store.Subscribe(bridge.Mirror)
	store.Subscribe(dispatcher.OnChange)

	if isDevMode() {
		logger.Info("dev mode, skipping mqtt connection")
	} else {
		if err := bridge.Connect(); err != nil {
			panic(fmt.Sprintf("mqtt connection error: %v", err))
		}
		defer bridge.Disconnect()
	}

	tasks := task.NewScheduledTasks(logger, components, db, cnfg, hours.Now)
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		tasks.Run()
		defer tasks.Stop()
	}
	defer dispatcher.Stop()

	server := www.NewServer(logger.With("module", "www"), cnfg.Api, db, tasks.Services(), www.SysInfo{
		Version:   Version,
		StartedAt: time.Now(),
		Healthy:   bridge.Healthy,
	})
	store.Subscribe(server.OnChange)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server.Run(ctx)
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	time.Sleep(2 * time.Second)
	os.Exit(1)
}
