package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/apply-app/apply-api/internal/pipeline"
	"github.com/apply-app/apply-api/internal/tasks"
)

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }

func TestPrintResult_Created(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	id := uuid.New()
	p.PrintResult(&pipeline.Result{
		Status:     pipeline.ResultCreated,
		JobOfferID: id,
		JobOffer: &pipeline.Summary{
			ID:             id,
			Title:          "Développeur Go",
			CompanyName:    "Acme",
			Category:       "tech",
			RequiredSkills: []string{"Go", "PostgreSQL", "Redis", "Docker", "Kubernetes", "gRPC"},
			ContractType:   strPtr("cdi"),
			SalaryMin:      intPtr(45000),
			SalaryMax:      intPtr(55000),
		},
	})
	output := buf.String()

	assert.Contains(t, output, "JOB OFFER CREATED")
	assert.Contains(t, output, id.String())
	assert.Contains(t, output, "Développeur Go")
	assert.Contains(t, output, "Acme")
	assert.Contains(t, output, "cdi")
	assert.Contains(t, output, "45,000 - 55,000")
	assert.Contains(t, output, "... and 1 more")
	assert.NotContains(t, output, "Remote:")
}

func TestPrintResult_Existing(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintResult(&pipeline.Result{Status: pipeline.ResultExisting, JobOfferID: uuid.New(), Message: pipeline.ExistingMessage})

	assert.Contains(t, buf.String(), "JOB OFFER ALREADY KNOWN")
	assert.Contains(t, buf.String(), "Message:  Cette offre existe déjà")
	assert.NotContains(t, buf.String(), "Title:")
}

func TestPrintResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintResult(nil)
	assert.Empty(t, buf.String())
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProgress(pipeline.StageModel)
	p.PrintProgress(pipeline.StageDone)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "[██████░░░░░░░░░░░░░░]  30% Analyse avec IA...", lines[0])
	assert.Equal(t, "[████████████████████] 100% Analyse terminée!", lines[1])
}

func TestPrintRun(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	now := time.Date(2026, 1, 11, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	started := now.Add(-90 * time.Second)
	finished := now.Add(-60 * time.Second)
	p.PrintRun(&tasks.Run{
		ID:          "run_abc",
		Task:        tasks.AnalyzeJobOffer,
		Status:      tasks.StatusFailed,
		Attempt:     3,
		MaxAttempts: 3,
		Tags:        []string{"user_1", tasks.TagJobAnalysis},
		Error:       "Impossible d'extraire les informations de l'offre",
		CreatedAt:   now.Add(-2 * time.Minute),
		StartedAt:   &started,
		FinishedAt:  &finished,
	})
	output := buf.String()

	assert.Contains(t, output, "ANALYSIS RUN")
	assert.Contains(t, output, "FAILED")
	assert.Contains(t, output, "3/3")
	assert.Contains(t, output, "2 minutes ago")
	assert.Contains(t, output, "30s")
	assert.Contains(t, output, "job-analysis")
	assert.Contains(t, output, "Impossible d'extraire")
}

func TestPrintBox_TruncatesOnRuneBoundary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("T", strings.Repeat("é", 100))

	assert.True(t, utf8.ValidString(buf.String()))
	assert.Contains(t, buf.String(), "...")
}
