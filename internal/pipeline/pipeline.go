// Package pipeline runs the job-offer analysis: deduplicate the URL, fetch the
// page, ask the model for structured fields, validate them, resolve the company
// and store the offer, publishing progress at every stage boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/apply-app/apply-api/internal/db"
	"github.com/apply-app/apply-api/internal/extraction"
	"github.com/apply-app/apply-api/internal/llm"
	"github.com/apply-app/apply-api/internal/logging"
)

// OfferStore reads and writes job offers.
type OfferStore interface {
	// GetJobOfferBySourceURL returns nil when no offer exists for url.
	GetJobOfferBySourceURL(ctx context.Context, url string) (*db.JobOffer, error)
	// CreateJobOffer returns created=false with the existing offer when the URL is taken.
	CreateJobOffer(ctx context.Context, input *db.JobOfferCreateInput) (*db.JobOffer, bool, error)
}

// CompanyResolver finds a company by name or creates it.
type CompanyResolver interface {
	ResolveCompany(ctx context.Context, input *db.CompanyCreateInput) (uuid.UUID, error)
}

// PageFetcher returns the text of a page, or "" when it cannot be fetched.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) string
}

// Checkpointer stores the validated extraction of a run so a retried attempt
// does not fetch the page or call the model again.
type Checkpointer interface {
	LoadExtraction(ctx context.Context, runID string) (*extraction.Extraction, bool, error)
	SaveExtraction(ctx context.Context, runID string, ex *extraction.Extraction) error
}

// Request identifies one analysis.
type Request struct {
	RunID  string
	URL    string
	UserID uuid.UUID
}

// Deps are the collaborators of an Orchestrator. Checkpoints and Log are optional.
// PlainText makes the model call use GenerateContent instead of the
// provider's JSON response mode.
type Deps struct {
	Offers      OfferStore
	Companies   CompanyResolver
	Fetcher     PageFetcher
	LLM         llm.Client
	Checkpoints Checkpointer
	Log         *logging.Logger
	PlainText   bool
}

// Orchestrator sequences the analysis stages.
type Orchestrator struct {
	offers      OfferStore
	companies   CompanyResolver
	fetcher     PageFetcher
	llm         llm.Client
	tier        llm.ModelTier
	plainText   bool
	checkpoints Checkpointer
	log         *logging.Logger
	now         func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		offers:      deps.Offers,
		companies:   deps.Companies,
		fetcher:     deps.Fetcher,
		llm:         deps.LLM,
		tier:        llm.TierStandard,
		plainText:   deps.PlainText,
		checkpoints: deps.Checkpoints,
		log:         log,
		now:         time.Now,
	}
}

// Run executes the stages for req in order. A nil sink discards progress.
// Extraction failures are returned as *extraction.Error unchanged so their
// message reaches the client as is.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink ProgressSink) (*Result, error) {
	if sink == nil {
		sink = NopProgress
	}
	log := o.log.With("run_id", req.RunID, "url", req.URL)

	if err := o.stage(ctx, sink, StageInitializing); err != nil {
		return nil, err
	}

	if err := o.stage(ctx, sink, StageDedup); err != nil {
		return nil, err
	}
	existing, err := o.offers.GetJobOfferBySourceURL(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("check duplicate offer: %w", err)
	}
	if existing != nil {
		log.Info("job offer already exists", "job_offer_id", existing.ID)
		o.report(ctx, sink, StageExisting)
		return existingResult(existing.ID), nil
	}

	if err := o.stage(ctx, sink, StageAnalyzing); err != nil {
		return nil, err
	}

	ex, err := o.extract(ctx, req, sink, log)
	if err != nil {
		return nil, err
	}

	if err := o.stage(ctx, sink, StageCompany); err != nil {
		return nil, err
	}
	companyID, err := o.companies.ResolveCompany(ctx, &db.CompanyCreateInput{
		Name:        ex.CompanyName,
		Website:     ex.CompanyWebsite,
		Description: ex.CompanyDescription,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve company: %w", err)
	}

	if err := o.stage(ctx, sink, StageOffer); err != nil {
		return nil, err
	}
	description := ex.Description
	category := ex.Category
	createdAt := o.now()
	offer, created, err := o.offers.CreateJobOffer(ctx, &db.JobOfferCreateInput{
		SourceURL:       req.URL,
		Title:           ex.Title,
		CompanyID:       companyID,
		Category:        &category,
		Description:     &description,
		RequiredSkills:  ex.RequiredSkills,
		Location:        ex.Location,
		ContractType:    ex.ContractType,
		SalaryMin:       ex.SalaryMin,
		SalaryMax:       ex.SalaryMax,
		Duration:        ex.Duration,
		RemotePolicy:    ex.RemotePolicy,
		StartDate:       ex.ParsedStartDate(),
		ExperienceYears: ex.ExperienceYears,
		EducationLevel:  ex.EducationLevel,
		CreatedByUserID: req.UserID,
		CreatedAt:       createdAt,
		PublicAt:        createdAt.Add(db.PublicDelay),
	})
	if err != nil {
		return nil, fmt.Errorf("create job offer: %w", err)
	}
	if !created {
		log.Info("job offer created concurrently", "job_offer_id", offer.ID)
		o.report(ctx, sink, StageExisting)
		return existingResult(offer.ID), nil
	}

	log.Info("job offer created", "job_offer_id", offer.ID, "company_id", companyID)
	o.report(ctx, sink, StageDone)
	return createdResult(offer, ex), nil
}

// extract returns the validated extraction, from the run's checkpoint when a
// previous attempt got that far.
func (o *Orchestrator) extract(ctx context.Context, req Request, sink ProgressSink, log *logging.Logger) (*extraction.Extraction, error) {
	if o.checkpoints != nil && req.RunID != "" {
		ex, ok, err := o.checkpoints.LoadExtraction(ctx, req.RunID)
		if err != nil {
			log.Warn("failed to load checkpoint", "error", err)
		} else if ok {
			log.Info("resuming from checkpoint")
			return ex, nil
		}
	}

	if err := o.stage(ctx, sink, StageFetching); err != nil {
		return nil, err
	}
	content := o.fetcher.FetchText(ctx, req.URL)
	if content == "" {
		log.Warn("page content unavailable, relying on model knowledge")
	}

	if err := o.stage(ctx, sink, StageModel); err != nil {
		return nil, err
	}
	prompt, err := extraction.BuildPrompt(req.URL, content)
	if err != nil {
		return nil, err
	}
	raw, err := o.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if err := o.stage(ctx, sink, StageValidating); err != nil {
		return nil, err
	}
	ex, err := extraction.Parse(raw)
	if err != nil {
		var extErr *extraction.Error
		if errors.As(err, &extErr) {
			log.Warn("extraction failed", "error", extErr.Detail(), "raw_length", len(extErr.Raw))
		}
		return nil, err
	}

	if o.checkpoints != nil && req.RunID != "" {
		if err := o.checkpoints.SaveExtraction(ctx, req.RunID, ex); err != nil {
			log.Warn("failed to save checkpoint", "error", err)
		}
	}
	return ex, nil
}

// generate asks the model for the extraction. JSON mode is preferred; Parse
// still salvages an object from prose for providers that ignore it.
func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	if o.plainText {
		return o.llm.GenerateContent(ctx, prompt, o.tier)
	}
	return o.llm.GenerateJSON(ctx, prompt, o.tier)
}

// stage checks for cancellation, then publishes p.
func (o *Orchestrator) stage(ctx context.Context, sink ProgressSink, p Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.report(ctx, sink, p)
	return nil
}

func (o *Orchestrator) report(ctx context.Context, sink ProgressSink, p Progress) {
	if err := sink.Report(ctx, p); err != nil {
		o.log.Warn("failed to report progress", "step", p.Step, "error", err)
	}
}
