package models

import "time"

// HealthResponse reports whether the harness can serve.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Scenario string `json:"scenario,omitempty"`
}

// StatsResponse returns runtime statistics.
type StatsResponse struct {
	Uptime        string             `json:"uptime"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	StartTime     time.Time          `json:"start_time"`
	GoRoutines    int                `json:"goroutines"`
	MemoryAllocMB float64            `json:"memory_alloc_mb"`
	NumCPU        int                `json:"num_cpu"`
	ActiveRun     *ActiveRunResponse `json:"active_run,omitempty"`
}
