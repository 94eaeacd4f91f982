package tasks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apply-app/apply-api/internal/extraction"
	"github.com/apply-app/apply-api/internal/pipeline"
)

type fakeAnalyzer struct {
	req pipeline.Request
}

func (f *fakeAnalyzer) Run(ctx context.Context, req pipeline.Request, sink pipeline.ProgressSink) (*pipeline.Result, error) {
	f.req = req
	if err := sink.Report(ctx, pipeline.StageDedup); err != nil {
		return nil, err
	}
	return &pipeline.Result{Status: pipeline.ResultExisting, JobOfferID: uuid.MustParse("6f1c2c56-8f6e-4f51-9b59-1f0b7c1e2a10")}, nil
}

func TestAnalyzeHandler(t *testing.T) {
	rt, _, _ := newTestRuntime(t, Options{})
	analyzer := &fakeAnalyzer{}
	rt.Register(AnalyzeJobOffer, NewAnalyzeHandler(analyzer))
	ctx := context.Background()
	userID := uuid.New()

	run, err := rt.Trigger(ctx, AnalyzeJobOffer, AnalyzePayload{URL: "https://example.com/job/42", UserID: userID.String()}, TriggerOptions{
		Tags: AnalyzeTags(userID.String()),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"user_" + userID.String(), "job-analysis"}, run.Tags)

	require.NoError(t, rt.Execute(ctx, run.ID))

	got, err := rt.Retrieve(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	assert.JSONEq(t, `{"status": "existing", "jobOfferId": "6f1c2c56-8f6e-4f51-9b59-1f0b7c1e2a10"}`, string(got.Output))
	assert.JSONEq(t, `{"progress": 10, "status": "initializing", "step": "Vérification des doublons..."}`, string(got.Metadata))

	assert.Equal(t, run.ID, analyzer.req.RunID)
	assert.Equal(t, userID, analyzer.req.UserID)
}

func TestAnalyzeHandler_InvalidUser(t *testing.T) {
	rt, _, _ := newTestRuntime(t, Options{})
	rt.Register(AnalyzeJobOffer, NewAnalyzeHandler(&fakeAnalyzer{}))
	ctx := context.Background()

	run, err := rt.Trigger(ctx, AnalyzeJobOffer, AnalyzePayload{URL: "https://example.com", UserID: "nobody"}, TriggerOptions{MaxAttempts: 1})
	require.NoError(t, err)
	require.NoError(t, rt.Execute(ctx, run.ID))

	got, _ := rt.Retrieve(ctx, run.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "invalid user id")
}

func TestRunCheckpoints(t *testing.T) {
	cp := RunCheckpoints{Store: NewMemoryStore()}
	ctx := context.Background()

	_, ok, err := cp.LoadExtraction(ctx, "run_1")
	require.NoError(t, err)
	assert.False(t, ok)

	contract := "cdi"
	ex := &extraction.Extraction{
		Title:          "Dev",
		CompanyName:    "Acme",
		Description:    "d",
		Category:       extraction.CategoryDev,
		RequiredSkills: []string{"Go"},
		ContractType:   &contract,
	}
	require.NoError(t, cp.SaveExtraction(ctx, "run_1", ex))

	got, ok, err := cp.LoadExtraction(ctx, "run_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ex, got)

	_, ok, err = cp.LoadExtraction(ctx, "run_2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnalyzePayloadJSON(t *testing.T) {
	data, err := json.Marshal(AnalyzePayload{URL: "https://example.com", UserID: "u1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"url": "https://example.com", "userId": "u1"}`, string(data))
}
