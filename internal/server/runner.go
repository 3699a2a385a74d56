package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/faultdns/faultdns/internal/config"
)

// Runner orchestrates the DNS side of the fixture: it serves whichever run
// the exchange holds and shuts both transports down together.
//
// The runner never activates scenarios itself. The caller loads and
// activates the initial scenario before starting it, so a broken fixture is
// caught before any socket is bound.
type Runner struct {
	logger   *slog.Logger
	exchange *Exchange
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// SetExchange injects the run exchange shared with the management API.
func (r *Runner) SetExchange(e *Exchange) {
	r.exchange = e
}

// Exchange returns the run exchange, creating one if none was injected.
func (r *Runner) Exchange() *Exchange {
	if r.exchange == nil {
		r.exchange = NewExchange()
	}
	return r.exchange
}

// Run starts the DNS servers with the given configuration and blocks until
// SIGINT or SIGTERM.
func (r *Runner) Run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return r.RunWithContext(ctx, cfg)
}

// RunWithContext starts the DNS servers and blocks until ctx is cancelled or
// a server error occurs.
//
// Lifecycle:
//  1. Refuse to start unless a scenario run is active
//  2. Start the UDP server, and the TCP server when enabled, on one port
//  3. Wait for cancellation or a server error (a failed bind surfaces here)
//  4. Gracefully stop both servers with a timeout
func (r *Runner) RunWithContext(ctx context.Context, cfg *config.Config) error {
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	run := r.Exchange().Current()
	if run == nil {
		return errors.New("server: no scenario activated")
	}

	queryTimeout, _ := time.ParseDuration(cfg.Server.QueryTimeout)
	h := &QueryHandler{Logger: r.logger, Exchange: r.exchange, Timeout: queryTimeout}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	r.logStartup(cfg, addr, run)

	udp := &UDPServer{Logger: r.logger, Handler: h, MaxConcurrency: cfg.Server.MaxConcurrency}
	var tcp *TCPServer
	if cfg.Server.EnableTCP {
		tcp = &TCPServer{Logger: r.logger, Handler: h, MaxConns: cfg.Server.MaxConcurrency}
	}

	errCh := make(chan error, 2)
	go func() { errCh <- udp.Run(ctx, addr) }()
	if tcp != nil {
		go func() { errCh <- tcp.Run(ctx, addr) }()
	}

	// Wait for shutdown or error
	select {
	case <-ctx.Done():
		// shutdown requested via signal
	case err := <-errCh:
		if err != nil {
			cancelRun()
			return err
		}
	}

	// Graceful shutdown
	stopTimeout := 5 * time.Second
	_ = udp.Stop(stopTimeout)
	if tcp != nil {
		_ = tcp.Stop(stopTimeout)
	}
	return nil
}

// logStartup logs server configuration at startup.
func (r *Runner) logStartup(cfg *config.Config, addr string, run *Run) {
	if r.logger != nil {
		r.logger.Info(
			"dns listening",
			"addr", addr,
			"udp", true,
			"tcp", cfg.Server.EnableTCP,
			"scenario", run.Scenario.ID,
			"run_id", run.ID,
			"query_timeout", cfg.Server.QueryTimeout,
		)
	}
}
