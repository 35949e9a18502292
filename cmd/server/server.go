package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"go.uber.org/zap"

	"TrafficWatch/config"
	"TrafficWatch/internal/cache"
	"TrafficWatch/internal/handler"
	"TrafficWatch/internal/router"
	"TrafficWatch/internal/schedule"
	"TrafficWatch/internal/service"
	"TrafficWatch/internal/store"
	"TrafficWatch/pkg/logger"
	"TrafficWatch/pkg/maps"
	"TrafficWatch/pkg/metrics"
	"TrafficWatch/pkg/otel"
	"TrafficWatch/pkg/ride"
	"TrafficWatch/pkg/sms"
	"TrafficWatch/pkg/snowflake"
	"TrafficWatch/storage"
	"TrafficWatch/storage/database"
)

func main() {
	config.MustValidate()

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if config.Cfg.TracingEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
			ServiceName:    config.Cfg.ServiceName,
			ServiceVersion: config.Cfg.ServiceVersion,
			Environment:    config.Cfg.Environment,
			OTLPEndpoint:   config.Cfg.OTLPEndpoint,
			SampleRatio:    config.Cfg.SampleRatio,
		})
		if err != nil {
			logger.Logger.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Logger.Error("OpenTelemetry shutdown failed", zap.Error(err))
				}
			}()
			if err := metrics.InitMetrics(); err != nil {
				logger.Logger.Warn("Failed to register metrics", zap.Error(err))
			}
		}
	}

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	if err := sms.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize SMS client", zap.Error(err))
	}
	if err := maps.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize maps client", zap.Error(err))
	}
	ride.Init()

	alertStore := store.New(database.DB())

	scheduler := schedule.NewScheduler(
		alertStore,
		maps.GetClient(),
		sms.GetClient(),
		ride.GetClient(),
		cache.NewRedisLocker(),
		logger.Logger.Named("scheduler"),
		schedule.Options{
			CronSpec:         config.Cfg.SweepCronSpec,
			SweepConcurrency: config.Cfg.SweepConcurrency,
			CallTimeout:      time.Duration(config.Cfg.ExternalCallTimeout) * time.Second,
			ClaimTTL:         time.Duration(config.Cfg.AlertClaimTTLSeconds) * time.Second,
			RideCategory:     config.Cfg.RideCategory,
			PollAttempts:     config.Cfg.BookingPollAttempts,
			PollInterval:     time.Duration(config.Cfg.BookingPollInterval) * time.Second,
		},
	)
	if err := scheduler.Start(ctx); err != nil {
		logger.Logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	alertService := service.NewAlertService(
		alertStore,
		maps.GetClient(),
		sms.GetClient(),
		scheduler,
		logger.Logger.Named("alerts"),
		service.Options{
			MinFinalThresholdMinutes: config.Cfg.MinFinalThresholdMin,
		},
	)

	handler.Init(alertService, scheduler, alertStore)

	logger.Logger.Info("Server starting",
		zap.String("service", config.Cfg.ServiceName),
		zap.String("port", config.Cfg.ServerPort),
		zap.String("environment", config.Cfg.Environment),
	)

	addr := net.JoinHostPort(config.Cfg.ServerHost, config.Cfg.ServerPort)
	h := server.Default(server.WithHostPorts(addr))

	router.Register(h)

	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
