package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/faultdns/faultdns/internal/dnswire"
	"github.com/faultdns/faultdns/internal/responder"
	"github.com/faultdns/faultdns/internal/scenario"
)

// Backend resolves parsed queries against fixture zones.
type Backend interface {
	Resolve(ctx context.Context, req dnswire.Packet) dnswire.Packet
}

// Run is the serving state for one activation of a scenario: the loaded
// fixture, the responder built from its zones, and the query log recorded
// against it. A run is immutable once activated; only its log grows.
type Run struct {
	ID        int64
	StartedAt time.Time
	Scenario  *scenario.Scenario
	Responder Backend
	Log       *responder.QueryLog
}

// NewRun builds the serving state for one activation of a scenario.
func NewRun(id int64, startedAt time.Time, sc *scenario.Scenario) *Run {
	return &Run{
		ID:        id,
		StartedAt: startedAt,
		Scenario:  sc,
		Responder: responder.New(sc.Store()),
		Log:       responder.NewQueryLog(),
	}
}

// Exchange hands incoming queries to whichever run is currently active.
//
// Activation swaps a complete run in one atomic step: a query in flight
// keeps the run it started with, so it never sees zones from one scenario
// and a log from another. The DNS servers read from the exchange and the
// management API writes to it.
type Exchange struct {
	active atomic.Pointer[Run]
}

// NewExchange creates an exchange with no active run.
func NewExchange() *Exchange {
	return &Exchange{}
}

// Activate makes run the active one and returns the run it replaced,
// or nil if none was active.
func (e *Exchange) Activate(run *Run) *Run {
	if run != nil && run.Scenario != nil {
		activationsTotal.WithLabelValues(run.Scenario.ID).Inc()
	}
	return e.active.Swap(run)
}

// Current returns the active run, or nil before the first activation.
func (e *Exchange) Current() *Run {
	return e.active.Load()
}
