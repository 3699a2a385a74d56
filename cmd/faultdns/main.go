package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/faultdns/faultdns/internal/config"
	"github.com/faultdns/faultdns/internal/harness"
	"github.com/faultdns/faultdns/internal/logging"
	"github.com/faultdns/faultdns/internal/results"
	"github.com/faultdns/faultdns/internal/scenario"
	"github.com/faultdns/faultdns/internal/server"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML configuration file (or set FAULTDNS_CONFIG)")
		host        = flag.String("host", "", "Override DNS bind host")
		port        = flag.Int("port", 0, "Override DNS bind port")
		scenarioID  = flag.String("scenario", "", "Override the scenario activated at startup")
		scenarioDir = flag.String("scenario-dir", "", "Serve fixture files from a directory instead of the built-in catalog")
		noTCP       = flag.Bool("no-tcp", false, "Disable TCP server")
		noHarness   = flag.Bool("no-harness", false, "Disable the management API")
		jsonLogs    = flag.Bool("json-logs", false, "Enable JSON structured logging")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(config.ResolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *scenarioID != "" {
		cfg.Scenarios.Initial = *scenarioID
	}
	if *scenarioDir != "" {
		cfg.Scenarios.Dir = *scenarioDir
	}
	if *noTCP {
		cfg.Server.EnableTCP = false
	}
	if *noHarness {
		cfg.Harness.Enabled = false
	}
	if *jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if *debug {
		cfg.Logging.Level = "DEBUG"
	}

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})
	logger.Info("FaultDNS starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"tcp", cfg.Server.EnableTCP,
		"scenario", cfg.Scenarios.Initial,
		"harness", cfg.Harness.Enabled,
	)

	if err := run(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "faultdns exited with error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the fixture together and blocks until SIGINT or SIGTERM. The
// initial scenario is activated before any socket is bound, so a broken
// fixture fails the start instead of serving garbage.
func run(cfg *config.Config, logger *slog.Logger) error {
	loader := scenario.NewLoader()
	if cfg.Scenarios.Dir != "" {
		loader = scenario.NewDirLoader(cfg.Scenarios.Dir)
	}

	db, err := results.Open(cfg.Results.Path)
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	defer db.Close()

	exchange := server.NewExchange()
	svc := harness.NewService(loader, db, exchange, logger)

	if _, err := svc.StartRun(cfg.Scenarios.Initial); err != nil {
		return fmt.Errorf("failed to activate initial scenario %q: %w", cfg.Scenarios.Initial, err)
	}

	runner := server.NewRunner(logger)
	runner.SetExchange(exchange)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.RunWithContext(ctx, cfg)
	})
	if cfg.Harness.Enabled {
		api := harness.New(cfg, harness.NewHandler(svc), logger)
		g.Go(func() error {
			logger.Info("harness listening", "addr", api.Addr())
			if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("harness server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return api.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()

	// Flush the live run's query log so the last run survives restarts.
	if ferr := svc.FinishCurrent(); ferr != nil {
		logger.Warn("failed to flush final run", "error", ferr)
	}
	return err
}
