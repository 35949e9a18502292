package database

import (
	"gorm.io/gorm"

	"TrafficWatch/internal/model"
	"TrafficWatch/pkg/logger"

	"go.uber.org/zap"
)

// Migrate creates or updates all tables. Exported with an explicit *gorm.DB
// so tests can run it against an in-memory database.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.Alert{},
		&model.NotificationLog{},
	)

	if err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
