package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"TrafficWatch/pkg/logger"
	"TrafficWatch/storage/database"
	"TrafficWatch/storage/redis"
)

// Close shuts down storage connections: Redis first, then the database so
// pending writes can still land.
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Logger.Info("Closing storage connections...")

	if err := redis.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close Redis connection", zap.Error(err))
	} else {
		logger.Logger.Info("Redis connection closed successfully")
	}

	if err := database.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close database connection", zap.Error(err))
	} else {
		logger.Logger.Info("Database connection closed successfully")
	}

	logger.Logger.Info("All storage connections closed")
}
