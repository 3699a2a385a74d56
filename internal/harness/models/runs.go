package models

import (
	"time"

	"github.com/faultdns/faultdns/internal/responder"
	"github.com/faultdns/faultdns/internal/results"
)

// StartRunRequest asks for a scenario activation.
type StartRunRequest struct {
	Scenario string `json:"scenario"`
}

// ActiveRunResponse describes the run currently answering queries.
type ActiveRunResponse struct {
	RunID     int64     `json:"run_id"`
	Scenario  string    `json:"scenario"`
	Focus     string    `json:"focus"`
	StartedAt time.Time `json:"started_at"`
	Queries   int       `json:"queries"`
}

// RunListResponse carries persisted run history, newest first.
type RunListResponse struct {
	Runs  []results.RunRecord `json:"runs"`
	Count int                 `json:"count"`
}

// QueryLogResponse carries a run's query log in serve order.
type QueryLogResponse struct {
	RunID   int64                     `json:"run_id"`
	Queries []responder.QueryLogEntry `json:"queries"`
	Count   int                       `json:"count"`
}
