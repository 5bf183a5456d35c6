package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/spotpilot-go/config"
	"github.com/icodeforyou/spotpilot-go/database"
)

func NewMaintenanceTask(logger *slog.Logger, db *database.Database, cnfg *config.AppConfig) func() {
	return func() {
		logger.Debug("running maintenance task...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		if _, err := db.Backup(ctx, database.BackupScheduled); err != nil {
			logger.Error("database backup error", slog.Any("error", err))
		}

		if removed, err := db.PurgeBackups(ctx, cnfg.Database.GetBackupRetentionDays()); err != nil {
			logger.Error("backup maintenance error", slog.Any("error", err))
		} else if removed > 0 {
			logger.Debug("old backups removed", slog.Int("count", removed))
		}

		if err := db.PurgeLog(ctx, cnfg.Logging.GetDbMaxEntries()); err != nil {
			logger.Error("log maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeStateHistory(ctx, cnfg.Database.GetDataRetentionDays()); err != nil {
			logger.Error("state_history maintenance error", slog.Any("error", err))
		}

		if err := db.PurgePriceTicks(ctx, cnfg.Database.GetDataRetentionDays()); err != nil {
			logger.Error("price_tick maintenance error", slog.Any("error", err))
		}

		logger.Info("maintenance task done")
	}
}
