package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/apply-app/apply-api/internal/config"
	"github.com/apply-app/apply-api/internal/logging"
	"github.com/apply-app/apply-api/internal/server"
	"github.com/apply-app/apply-api/internal/server/ratelimit"
)

var (
	servePort        int
	serveConcurrency int
	serveNoWorkers   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that accepts job-offer analysis requests and exposes
their status. Unless --no-workers is set, the same process also executes runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().IntVar(&serveConcurrency, "concurrency", 0, "Number of run workers (overrides WORKER_CONCURRENCY)")
	serveCmd.Flags().BoolVar(&serveNoWorkers, "no-workers", false, "Only serve the API; runs are executed by separate worker processes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveConcurrency != 0 {
		cfg.WorkerConcurrency = serveConcurrency
	}

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{Port: cfg.Port}, server.Deps{
		Store:   a.db,
		Runs:    a.runtime,
		Tokens:  server.NewJWTService(jwtCfg).AsTokenValidator(),
		Limiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
		Log:     log.With("component", "server"),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })
	if !serveNoWorkers {
		g.Go(func() error { return runWorkers(ctx, a) })
	}
	return g.Wait()
}

// runWorkers executes runs and housekeeping jobs until ctx is done.
func runWorkers(ctx context.Context, a *app) error {
	sched := a.scheduler()
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	return a.runtime.Start(ctx)
}
