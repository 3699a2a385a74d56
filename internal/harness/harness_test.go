package harness_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faultdns/faultdns/internal/config"
	"github.com/faultdns/faultdns/internal/harness"
	"github.com/faultdns/faultdns/internal/harness/models"
	"github.com/faultdns/faultdns/internal/responder"
	"github.com/faultdns/faultdns/internal/results"
	"github.com/faultdns/faultdns/internal/scenario"
	"github.com/faultdns/faultdns/internal/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harnessFixture struct {
	svc      *harness.Service
	engine   *gin.Engine
	db       *results.DB
	exchange *server.Exchange
}

// newHarness builds the whole management stack on a throwaway database.
// The DNS server itself is not running; runs are driven through the API.
func newHarness(t *testing.T, cfg *config.Config) *harnessFixture {
	t.Helper()

	if cfg == nil {
		cfg = config.Default()
	}

	db, err := results.Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ex := server.NewExchange()
	svc := harness.NewService(scenario.NewLoader(), db, ex, nil)
	srv := harness.New(cfg, harness.NewHandler(svc), nil)

	return &harnessFixture{svc: svc, engine: srv.Engine(), db: db, exchange: ex}
}

func performRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func startRun(t *testing.T, f *harnessFixture, scenarioID string) models.ActiveRunResponse {
	t.Helper()
	w := performRequest(f.engine, "POST", "/api/v1/runs", fmt.Sprintf(`{"scenario":%q}`, scenarioID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.ActiveRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// ============================================================================
// Health and Stats
// ============================================================================

func TestHealth_OK(t *testing.T) {
	f := newHarness(t, nil)

	w := performRequest(f.engine, "GET", "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Database)
	assert.Empty(t, resp.Scenario)
}

func TestHealth_ReportsActiveScenario(t *testing.T) {
	f := newHarness(t, nil)
	startRun(t, f, "clean")

	w := performRequest(f.engine, "GET", "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "clean", resp.Scenario)
}

func TestHealth_DegradedWhenStoreClosed(t *testing.T) {
	f := newHarness(t, nil)
	require.NoError(t, f.db.Close())

	w := performRequest(f.engine, "GET", "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.NotEqual(t, "ok", resp.Database)
}

func TestStats_IncludesActiveRun(t *testing.T) {
	f := newHarness(t, nil)
	started := startRun(t, f, "stale-ttl")

	w := performRequest(f.engine, "GET", "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Greater(t, resp.GoRoutines, 0)
	assert.NotEmpty(t, resp.Uptime)
	require.NotNil(t, resp.ActiveRun)
	assert.Equal(t, started.RunID, resp.ActiveRun.RunID)
	assert.Equal(t, "stale-ttl", resp.ActiveRun.Scenario)
}

// ============================================================================
// Scenario Catalog
// ============================================================================

func TestListScenarios_Catalog(t *testing.T) {
	f := newHarness(t, nil)

	w := performRequest(f.engine, "GET", "/api/v1/scenarios", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ScenarioListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Count)

	byID := make(map[string]models.ScenarioSummary, len(resp.Scenarios))
	for _, s := range resp.Scenarios {
		byID[s.ID] = s
	}

	clean, ok := byID["clean"]
	require.True(t, ok)
	assert.Equal(t, "clean", clean.Fault)
	assert.Equal(t, "dnstest.local", clean.Focus)
	assert.NotEmpty(t, clean.Description)
	assert.NotEmpty(t, clean.Remediation)
	assert.GreaterOrEqual(t, clean.Zones, 2)

	mismatch, ok := byID["delegation-mismatch"]
	require.True(t, ok)
	assert.Equal(t, "delegation-mismatch", mismatch.Fault)
}

func TestActiveScenario_NoneYet(t *testing.T) {
	f := newHarness(t, nil)

	w := performRequest(f.engine, "GET", "/api/v1/scenarios/active", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ============================================================================
// Run Lifecycle
// ============================================================================

func TestStartRun_ActivatesScenario(t *testing.T) {
	f := newHarness(t, nil)

	resp := startRun(t, f, "clean")
	assert.Equal(t, "clean", resp.Scenario)
	assert.Equal(t, "dnstest.local", resp.Focus)
	assert.Greater(t, resp.RunID, int64(0))
	assert.Zero(t, resp.Queries)
	assert.False(t, resp.StartedAt.IsZero())

	run := f.exchange.Current()
	require.NotNil(t, run)
	assert.Equal(t, resp.RunID, run.ID)
	assert.Equal(t, "clean", run.Scenario.ID)

	w := performRequest(f.engine, "GET", "/api/v1/scenarios/active", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartRun_UnknownScenario(t *testing.T) {
	f := newHarness(t, nil)

	w := performRequest(f.engine, "POST", "/api/v1/runs", `{"scenario":"does-not-exist"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Nil(t, f.exchange.Current())
}

func TestStartRun_UnknownScenarioKeepsCurrentRun(t *testing.T) {
	f := newHarness(t, nil)
	resp := startRun(t, f, "clean")

	w := performRequest(f.engine, "POST", "/api/v1/runs", `{"scenario":"does-not-exist"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	run := f.exchange.Current()
	require.NotNil(t, run)
	assert.Equal(t, resp.RunID, run.ID)
}

func TestStartRun_BadRequests(t *testing.T) {
	f := newHarness(t, nil)

	w := performRequest(f.engine, "POST", "/api/v1/runs", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(f.engine, "POST", "/api/v1/runs", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartRun_SwapFlushesPreviousRun(t *testing.T) {
	f := newHarness(t, nil)

	first := startRun(t, f, "clean")

	run := f.exchange.Current()
	require.NotNil(t, run)
	run.Log.Append(responder.QueryLogEntry{
		Time: time.Now(), Transport: "udp", Remote: "127.0.0.1:50000",
		QName: "www.dnstest.local", QType: "A", RCode: "NOERROR", Flags: 0x8500,
	})

	second := startRun(t, f, "duplicate-mx")
	assert.NotEqual(t, first.RunID, second.RunID)

	w := performRequest(f.engine, "GET", "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var history models.RunListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Equal(t, 2, history.Count)

	assert.Equal(t, "duplicate-mx", history.Runs[0].ScenarioID)
	assert.Nil(t, history.Runs[0].EndedAt)

	assert.Equal(t, "clean", history.Runs[1].ScenarioID)
	require.NotNil(t, history.Runs[1].EndedAt)
	assert.Equal(t, 1, history.Runs[1].Queries)

	w = performRequest(f.engine, "GET", fmt.Sprintf("/api/v1/runs/%d/queries", first.RunID), "")
	require.Equal(t, http.StatusOK, w.Code)

	var log models.QueryLogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &log))
	require.Equal(t, 1, log.Count)
	assert.Equal(t, "www.dnstest.local", log.Queries[0].QName)
}

func TestListRuns_LimitValidation(t *testing.T) {
	f := newHarness(t, nil)

	w := performRequest(f.engine, "GET", "/api/v1/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(f.engine, "GET", "/api/v1/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunQueries_BadID(t *testing.T) {
	f := newHarness(t, nil)

	w := performRequest(f.engine, "GET", "/api/v1/runs/abc/queries", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// Query Log
// ============================================================================

func TestActiveQueries_NoRun(t *testing.T) {
	f := newHarness(t, nil)

	w := performRequest(f.engine, "GET", "/api/v1/queries", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActiveQueries_LiveLog(t *testing.T) {
	f := newHarness(t, nil)
	resp := startRun(t, f, "clean")

	run := f.exchange.Current()
	require.NotNil(t, run)
	for i := range 2 {
		run.Log.Append(responder.QueryLogEntry{
			Time: time.Now(), Transport: "tcp", Remote: "127.0.0.1:50001",
			QName: fmt.Sprintf("host%d.dnstest.local", i), QType: "A",
			RCode: "NXDOMAIN", Flags: 0x8503,
		})
	}

	w := performRequest(f.engine, "GET", "/api/v1/queries", "")
	require.Equal(t, http.StatusOK, w.Code)

	var log models.QueryLogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &log))
	assert.Equal(t, resp.RunID, log.RunID)
	assert.Equal(t, 2, log.Count)

	// The same log is also reachable by run id while the run is live.
	w = performRequest(f.engine, "GET", fmt.Sprintf("/api/v1/runs/%d/queries", resp.RunID), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &log))
	assert.Equal(t, 2, log.Count)
}

// ============================================================================
// Verdicts
// ============================================================================

func TestSubmitVerdict_NoActiveRun(t *testing.T) {
	f := newHarness(t, nil)

	w := performRequest(f.engine, "POST", "/api/v1/verdict", `{"verdict":"two SPF records"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitVerdict_EmptyText(t *testing.T) {
	f := newHarness(t, nil)
	startRun(t, f, "clean")

	w := performRequest(f.engine, "POST", "/api/v1/verdict", `{"verdict":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitVerdict_GradesAgainstActiveScenario(t *testing.T) {
	f := newHarness(t, nil)
	run := startRun(t, f, "duplicate-mx")

	w := performRequest(f.engine, "POST", "/api/v1/verdict",
		`{"verdict":"Two MX records share the same preference value"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.VerdictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Greater(t, resp.ID, int64(0))
	assert.Equal(t, run.RunID, resp.RunID)
	assert.Equal(t, "duplicate-mx", resp.Scenario)
	assert.True(t, resp.Matched)
	assert.False(t, resp.Ambiguous)
	assert.Equal(t, scenario.FaultDuplicateMX, resp.Expected)
	assert.Equal(t, scenario.FaultDuplicateMX, resp.Got)
	assert.NotEmpty(t, resp.Rationale)

	w = performRequest(f.engine, "GET", fmt.Sprintf("/api/v1/runs/%d/verdicts", run.RunID), "")
	require.Equal(t, http.StatusOK, w.Code)

	var list models.VerdictListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Two MX records share the same preference value", list.Verdicts[0].Verdict)
	assert.True(t, list.Verdicts[0].Matched)
}

func TestSubmitVerdict_AmbiguousText(t *testing.T) {
	f := newHarness(t, nil)
	startRun(t, f, "clean")

	w := performRequest(f.engine, "POST", "/api/v1/verdict",
		`{"verdict":"the moon is in a bad phase today"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.VerdictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Matched)
	assert.True(t, resp.Ambiguous)
	assert.Empty(t, resp.Got)
}

// ============================================================================
// Authentication and Metrics
// ============================================================================

func TestAPIKey_ProtectsAPIButNotMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Harness.APIKey = "sekrit"
	f := newHarness(t, cfg)

	w := performRequest(f.engine, "GET", "/api/v1/health", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w = performRequest(f.engine, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics_ExposesVerdictCounter(t *testing.T) {
	f := newHarness(t, nil)
	startRun(t, f, "cname-conflict")

	w := performRequest(f.engine, "POST", "/api/v1/verdict",
		`{"verdict":"a CNAME coexists with other records at the same name"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(f.engine, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "faultdns_verdicts_total")
}

// ============================================================================
// Service Lifecycle
// ============================================================================

func TestServiceFinishCurrent(t *testing.T) {
	f := newHarness(t, nil)

	_, err := f.svc.StartRun("clean")
	require.NoError(t, err)

	run := f.svc.ActiveRun()
	require.NotNil(t, run)
	run.Log.Append(responder.QueryLogEntry{
		Time: time.Now(), Transport: "udp", Remote: "127.0.0.1:50002",
		QName: "mail.dnstest.local", QType: "MX", RCode: "NOERROR", Flags: 0x8500,
	})

	require.NoError(t, f.svc.FinishCurrent())

	runs, err := f.svc.History(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].EndedAt)
	assert.Equal(t, 1, runs[0].Queries)

	// The run was already closed; a second flush reports it.
	require.Error(t, f.svc.FinishCurrent())
}

func TestServiceFinishCurrent_NoRun(t *testing.T) {
	f := newHarness(t, nil)
	require.NoError(t, f.svc.FinishCurrent())
}
