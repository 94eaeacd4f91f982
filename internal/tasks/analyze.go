package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/apply-app/apply-api/internal/extraction"
	"github.com/apply-app/apply-api/internal/pipeline"
)

// AnalyzeJobOffer is the task name of the job-offer analysis.
const AnalyzeJobOffer = "analyze-job-offer"

// TagJobAnalysis is attached to every analysis run.
const TagJobAnalysis = "job-analysis"

// AnalyzePayload is the input of an AnalyzeJobOffer run.
type AnalyzePayload struct {
	URL    string `json:"url"`
	UserID string `json:"userId"`
}

// UserTag returns the tag that attributes a run to a user.
func UserTag(userID string) string {
	return "user_" + userID
}

// AnalyzeTags returns the tags of an analysis run for userID.
func AnalyzeTags(userID string) []string {
	return []string{UserTag(userID), TagJobAnalysis}
}

// Analyzer runs the analysis pipeline for one run.
type Analyzer interface {
	Run(ctx context.Context, req pipeline.Request, sink pipeline.ProgressSink) (*pipeline.Result, error)
}

// NewAnalyzeHandler returns the handler of AnalyzeJobOffer runs. Progress is
// written to the run metadata and the validated extraction is checkpointed.
func NewAnalyzeHandler(analyzer Analyzer) Handler {
	return func(ctx context.Context, rc *RunContext) (any, error) {
		var p AnalyzePayload
		if err := rc.DecodePayload(&p); err != nil {
			return nil, err
		}
		userID, err := uuid.Parse(p.UserID)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", p.UserID, err)
		}

		sink := pipeline.ProgressFunc(func(ctx context.Context, pr pipeline.Progress) error {
			return rc.SetMetadata(ctx, pr)
		})
		return analyzer.Run(ctx, pipeline.Request{RunID: rc.ID(), URL: p.URL, UserID: userID}, sink)
	}
}

// RunCheckpoints stores pipeline checkpoints alongside runs.
type RunCheckpoints struct {
	Store Store
}

func (c RunCheckpoints) LoadExtraction(ctx context.Context, runID string) (*extraction.Extraction, bool, error) {
	rc := &RunContext{run: &Run{ID: runID}, store: c.Store}
	var ex extraction.Extraction
	ok, err := rc.LoadCheckpoint(ctx, &ex)
	if err != nil || !ok {
		return nil, false, err
	}
	return &ex, true, nil
}

func (c RunCheckpoints) SaveExtraction(ctx context.Context, runID string, ex *extraction.Extraction) error {
	rc := &RunContext{run: &Run{ID: runID}, store: c.Store}
	return rc.SaveCheckpoint(ctx, ex)
}
