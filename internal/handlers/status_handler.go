package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/services/scheduler"
	"github.com/ternarybob/sectorscope/internal/services/status"
)

// JobStatusSource lists scheduled jobs
type JobStatusSource interface {
	GetAllJobStatuses() []*scheduler.JobStatus
}

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	statusService *status.Service
	jobs          JobStatusSource
	logger        arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(statusService *status.Service, jobs JobStatusSource, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		jobs:          jobs,
		logger:        logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	response := map[string]interface{}{
		"pipeline": h.statusService.GetStatus(),
		"version":  common.GetVersion(),
	}
	if h.jobs != nil {
		response["jobs"] = h.jobs.GetAllJobStatuses()
	}
	WriteJSON(w, http.StatusOK, response)
}

// HealthHandler handles GET /health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
