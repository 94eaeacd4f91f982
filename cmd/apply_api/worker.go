package main

import (
	"github.com/spf13/cobra"

	"github.com/apply-app/apply-api/internal/logging"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Execute queued analysis runs",
	Long:  "Start a worker pool that executes analysis runs from the Redis queue and runs the housekeeping schedule (retries, crashed runs, publication).",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "Number of run workers (overrides WORKER_CONCURRENCY)")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if workerConcurrency != 0 {
		cfg.WorkerConcurrency = workerConcurrency
	}

	log := logging.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	a, err := newApp(cmd.Context(), cfg, log, false)
	if err != nil {
		return err
	}
	defer a.Close()

	return runWorkers(cmd.Context(), a)
}
