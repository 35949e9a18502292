package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"TrafficWatch/pkg/response"
)

// GetSchedulerStatus reports whether the sweep timer is running.
// GET /v1/scheduler/status
func GetSchedulerStatus(ctx context.Context, c *app.RequestContext) {
	response.Success(ctx, c, scheduler.Status())
}

// GetSchedulerStats returns aggregate alert counts.
// GET /v1/scheduler/stats
func GetSchedulerStats(ctx context.Context, c *app.RequestContext) {
	stats, err := scheduler.Stats(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, stats)
}

// TriggerSweep runs one sweep immediately.
// POST /v1/scheduler/run
func TriggerSweep(ctx context.Context, c *app.RequestContext) {
	if err := scheduler.RunSweep(ctx); err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, map[string]interface{}{
		"message": "Sweep completed",
	})
}
