package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/apply-app/apply-api/internal/logging"
	"github.com/apply-app/apply-api/internal/observability"
	"github.com/apply-app/apply-api/internal/pipeline"
	"github.com/apply-app/apply-api/internal/tasks"
)

const analyzePollInterval = 500 * time.Millisecond

var (
	analyzeURL  string
	analyzeUser string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one job posting in this process",
	Long: `Run the analysis pipeline for a single URL without Redis: the run is queued
in memory, executed by a local worker and its progress printed as it happens.
The job offer is written to the configured database.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "Job posting URL (required)")
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "User ID the offer is attributed to (default: a new random ID)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	if analyzeURL == "" {
		return fmt.Errorf("--url is required")
	}
	userID, err := parseUserID(analyzeUser)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.WorkerConcurrency = 1

	log := logging.NewDevelopment(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := a.scheduler()
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.runtime.Start(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	run, err := a.runtime.Trigger(ctx, tasks.AnalyzeJobOffer,
		tasks.AnalyzePayload{URL: analyzeURL, UserID: userID.String()},
		tasks.TriggerOptions{Tags: tasks.AnalyzeTags(userID.String())})
	if err != nil {
		return fmt.Errorf("failed to trigger analysis: %w", err)
	}
	if _, err := a.db.CreateAnalysisJob(ctx, run.ID); err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	final, err := followRun(ctx, a.runtime, run.ID, printer.PrintProgress)
	if err != nil {
		return err
	}
	printer.PrintRun(final)

	if final.Status != tasks.StatusCompleted {
		return fmt.Errorf("analysis %s: %s", final.Status, final.Error)
	}
	var result pipeline.Result
	if err := json.Unmarshal(final.Output, &result); err != nil {
		return fmt.Errorf("failed to decode run output: %w", err)
	}
	printer.PrintResult(&result)
	return nil
}

// runRetriever is the part of the runtime followRun polls.
type runRetriever interface {
	Retrieve(ctx context.Context, id string) (*tasks.Run, error)
}

// followRun polls a run until it is terminal, calling onProgress whenever its
// metadata changes.
func followRun(ctx context.Context, runs runRetriever, id string, onProgress func(pipeline.Progress)) (*tasks.Run, error) {
	ticker := time.NewTicker(analyzePollInterval)
	defer ticker.Stop()

	var last pipeline.Progress
	for {
		run, err := runs.Retrieve(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(run.Metadata) > 0 {
			var pr pipeline.Progress
			if err := json.Unmarshal(run.Metadata, &pr); err == nil && pr != last {
				last = pr
				onProgress(pr)
			}
		}
		if run.Status.Terminal() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// parseUserID parses --user, generating an ID when it is empty.
func parseUserID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.New("--user must be a non-nil UUID")
	}
	return id, nil
}
