// Package harness provides the REST management API for the evaluation
// fixture. The API is the grader's side door: the party being evaluated
// only ever sees the DNS port, while the harness activates scenarios,
// reads the query log, submits verdicts for grading, and browses run
// history, all via a Gin-based HTTP server.
package harness

import (
	"errors"
	"log/slog"
	"time"

	"github.com/faultdns/faultdns/internal/harness/models"
	"github.com/faultdns/faultdns/internal/responder"
	"github.com/faultdns/faultdns/internal/results"
	"github.com/faultdns/faultdns/internal/scenario"
	"github.com/faultdns/faultdns/internal/scorer"
	"github.com/faultdns/faultdns/internal/server"
)

// ErrNoActiveRun is returned when an operation needs a live run and none
// has been activated yet.
var ErrNoActiveRun = errors.New("harness: no active run")

// Service owns the run lifecycle: it loads scenarios, persists runs, and
// swaps them into the DNS server's exchange. Handlers and cmd/faultdns
// share it so startup activation and API activation behave identically.
type Service struct {
	loader   *scenario.Loader
	db       *results.DB
	exchange *server.Exchange
	logger   *slog.Logger
}

// NewService wires the run lifecycle together. All arguments are required
// except logger, which may be nil.
func NewService(loader *scenario.Loader, db *results.DB, exchange *server.Exchange, logger *slog.Logger) *Service {
	return &Service{loader: loader, db: db, exchange: exchange, logger: logger}
}

// StartRun loads the scenario, persists a new run, and activates it. The
// previous run, if any, is finished and its query log flushed to storage.
// A load or persistence failure leaves the current run untouched.
func (s *Service) StartRun(scenarioID string) (*server.Run, error) {
	sc, err := s.loader.Load(scenarioID)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	runID, err := s.db.RecordRun(sc.ID, startedAt)
	if err != nil {
		return nil, err
	}

	run := server.NewRun(runID, startedAt, sc)
	prev := s.exchange.Activate(run)
	if prev != nil {
		if err := s.db.FinishRun(prev.ID, time.Now(), prev.Log.Snapshot()); err != nil && s.logger != nil {
			s.logger.Warn("failed to flush finished run", "run_id", prev.ID, "error", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("scenario activated",
			"run_id", runID,
			"scenario", sc.ID,
			"focus", sc.Focus,
		)
	}
	return run, nil
}

// FinishCurrent flushes the live run, if any, without activating a new
// one. Meant for shutdown; the run keeps answering until the server stops.
func (s *Service) FinishCurrent() error {
	run := s.exchange.Current()
	if run == nil {
		return nil
	}
	return s.db.FinishRun(run.ID, time.Now(), run.Log.Snapshot())
}

// ActiveRun returns the run currently answering queries, or nil.
func (s *Service) ActiveRun() *server.Run {
	return s.exchange.Current()
}

// DBHealth reports whether the results store is reachable.
func (s *Service) DBHealth() error {
	return s.db.Health()
}

// Scenarios describes the whole catalog in id order.
func (s *Service) Scenarios() ([]models.ScenarioSummary, error) {
	ids, err := s.loader.IDs()
	if err != nil {
		return nil, err
	}

	out := make([]models.ScenarioSummary, 0, len(ids))
	for _, id := range ids {
		sc, err := s.loader.Load(id)
		if err != nil {
			return nil, err
		}
		out = append(out, models.ScenarioSummary{
			ID:          sc.ID,
			Description: sc.Description,
			Focus:       sc.Focus,
			Fault:       string(sc.Fault),
			Remediation: sc.Remediation,
			Zones:       len(sc.Zones),
		})
	}
	return out, nil
}

// History returns persisted runs, newest first.
func (s *Service) History(limit int) ([]results.RunRecord, error) {
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []results.RunRecord{}
	}
	return runs, nil
}

// RunQueries returns a run's query log: the live log when the run is
// active, the persisted one otherwise. An unknown run yields an empty log.
func (s *Service) RunQueries(runID int64) ([]responder.QueryLogEntry, error) {
	if run := s.exchange.Current(); run != nil && run.ID == runID {
		return run.Log.Snapshot(), nil
	}
	entries, err := s.db.QueriesForRun(runID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []responder.QueryLogEntry{}
	}
	return entries, nil
}

// RunVerdicts returns the verdicts recorded against a run, oldest first.
func (s *Service) RunVerdicts(runID int64) ([]results.VerdictRecord, error) {
	verdicts, err := s.db.VerdictsForRun(runID)
	if err != nil {
		return nil, err
	}
	if verdicts == nil {
		verdicts = []results.VerdictRecord{}
	}
	return verdicts, nil
}

// SubmitVerdict scores the text against the live run's scenario and
// persists the grade.
func (s *Service) SubmitVerdict(text string) (*models.VerdictResponse, error) {
	run := s.exchange.Current()
	if run == nil {
		return nil, ErrNoActiveRun
	}

	res := scorer.Score(text, run.Scenario)
	id, err := s.db.RecordVerdict(run.ID, text, res, time.Now())
	if err != nil {
		return nil, err
	}

	verdictsTotal.WithLabelValues(run.Scenario.ID, verdictGrade(res)).Inc()
	if s.logger != nil {
		s.logger.Info("verdict graded",
			"run_id", run.ID,
			"scenario", run.Scenario.ID,
			"matched", res.Matched,
			"ambiguous", res.Ambiguous,
		)
	}

	return &models.VerdictResponse{
		ID:       id,
		RunID:    run.ID,
		Scenario: run.Scenario.ID,
		Result:   res,
	}, nil
}
