package harness

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faultdns/faultdns/internal/harness/models"
	"github.com/faultdns/faultdns/internal/scenario"
	"github.com/faultdns/faultdns/internal/server"
)

// Handler carries the dependencies the endpoint handlers share.
type Handler struct {
	svc       *Service
	startTime time.Time
}

// NewHandler creates a Handler around the run lifecycle service.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, startTime: time.Now()}
}

func activeRunResponse(run *server.Run) *models.ActiveRunResponse {
	return &models.ActiveRunResponse{
		RunID:     run.ID,
		Scenario:  run.Scenario.ID,
		Focus:     run.Scenario.Focus,
		StartedAt: run.StartedAt,
		Queries:   run.Log.Len(),
	}
}

// Health reports readiness: the results store must answer.
func (h *Handler) Health(c *gin.Context) {
	resp := models.HealthResponse{Status: "ok", Database: "ok"}
	if err := h.svc.DBHealth(); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	if run := h.svc.ActiveRun(); run != nil {
		resp.Scenario = run.Scenario.ID
	}
	c.JSON(http.StatusOK, resp)
}

// Stats returns runtime statistics and a summary of the active run.
func (h *Handler) Stats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.startTime)

	resp := models.StatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		GoRoutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(m.Alloc) / 1024 / 1024,
		NumCPU:        runtime.NumCPU(),
	}
	if run := h.svc.ActiveRun(); run != nil {
		resp.ActiveRun = activeRunResponse(run)
	}

	c.JSON(http.StatusOK, resp)
}

// ListScenarios returns the catalog with each scenario's planted fault.
func (h *Handler) ListScenarios(c *gin.Context) {
	summaries, err := h.svc.Scenarios()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.ScenarioListResponse{Scenarios: summaries, Count: len(summaries)})
}

// ActiveScenario describes the run currently answering queries.
func (h *Handler) ActiveScenario(c *gin.Context) {
	run := h.svc.ActiveRun()
	if run == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no active run"})
		return
	}
	c.JSON(http.StatusOK, activeRunResponse(run))
}

// StartRun activates a scenario. A bad fixture leaves the current run in
// place, so activation is all-or-nothing from the caller's side.
func (h *Handler) StartRun(c *gin.Context) {
	var req models.StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	id := strings.TrimSpace(req.Scenario)
	if id == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "scenario cannot be empty"})
		return
	}

	run, err := h.svc.StartRun(id)
	if err != nil {
		var loadErr *scenario.LoadError
		switch {
		case errors.Is(err, scenario.ErrUnknownScenario):
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
		case errors.As(err, &loadErr):
			c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, activeRunResponse(run))
}

// ListRuns returns run history, newest first. ?limit=N caps the page;
// limit=0 returns everything.
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := h.svc.History(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.RunListResponse{Runs: runs, Count: len(runs)})
}

// RunQueries returns the query log for one run, live or persisted.
func (h *Handler) RunQueries(c *gin.Context) {
	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "run id must be an integer"})
		return
	}

	entries, err := h.svc.RunQueries(runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.QueryLogResponse{RunID: runID, Queries: entries, Count: len(entries)})
}

// RunVerdicts returns the verdicts recorded against one run.
func (h *Handler) RunVerdicts(c *gin.Context) {
	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "run id must be an integer"})
		return
	}

	verdicts, err := h.svc.RunVerdicts(runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.VerdictListResponse{RunID: runID, Verdicts: verdicts, Count: len(verdicts)})
}

// ActiveQueries returns the live run's query log.
func (h *Handler) ActiveQueries(c *gin.Context) {
	run := h.svc.ActiveRun()
	if run == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no active run"})
		return
	}
	entries := run.Log.Snapshot()
	c.JSON(http.StatusOK, models.QueryLogResponse{RunID: run.ID, Queries: entries, Count: len(entries)})
}

// SubmitVerdict grades a free-text diagnosis against the active run.
func (h *Handler) SubmitVerdict(c *gin.Context) {
	var req models.VerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	text := strings.TrimSpace(req.Verdict)
	if text == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "verdict cannot be empty"})
		return
	}

	resp, err := h.svc.SubmitVerdict(text)
	if err != nil {
		if errors.Is(err, ErrNoActiveRun) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
