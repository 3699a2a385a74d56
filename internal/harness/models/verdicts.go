package models

import (
	"github.com/faultdns/faultdns/internal/results"
	"github.com/faultdns/faultdns/internal/scorer"
)

// VerdictRequest submits a free-text diagnosis for the active run.
type VerdictRequest struct {
	Verdict string `json:"verdict"`
}

// VerdictResponse returns the grade for a submitted verdict.
type VerdictResponse struct {
	ID       int64  `json:"id"`
	RunID    int64  `json:"run_id"`
	Scenario string `json:"scenario"`
	scorer.Result
}

// VerdictListResponse lists the verdicts recorded against one run.
type VerdictListResponse struct {
	RunID    int64                   `json:"run_id"`
	Verdicts []results.VerdictRecord `json:"verdicts"`
	Count    int                     `json:"count"`
}
