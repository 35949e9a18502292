package handler

import (
	"TrafficWatch/internal/schedule"
	"TrafficWatch/internal/service"
	"TrafficWatch/internal/store"
)

var (
	alertService *service.AlertService
	scheduler    *schedule.Scheduler
	alertStore   *store.Store
)

// Init wires the handler package to its services. Must run before routes
// are registered.
func Init(svc *service.AlertService, sched *schedule.Scheduler, st *store.Store) {
	alertService = svc
	scheduler = sched
	alertStore = st
}
