package pipeline

import (
	"github.com/google/uuid"

	"github.com/apply-app/apply-api/internal/db"
	"github.com/apply-app/apply-api/internal/extraction"
)

// Result statuses.
const (
	ResultExisting = "existing"
	ResultCreated  = "created"
)

// ExistingMessage accompanies a result for a URL that was already analyzed.
const ExistingMessage = "Cette offre existe déjà"

// Result is the output of a run: either an existing offer for the URL or a
// newly created one with its summary.
type Result struct {
	Status     string    `json:"status"`
	JobOfferID uuid.UUID `json:"jobOfferId"`
	JobOffer   *Summary  `json:"jobOffer,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Summary is the created offer as returned to the client.
type Summary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	CompanyID       uuid.UUID `json:"companyId"`
	CompanyName     string    `json:"companyName"`
	Category        string    `json:"category"`
	Description     string    `json:"description"`
	RequiredSkills  []string  `json:"requiredSkills"`
	Location        *string   `json:"location"`
	ContractType    *string   `json:"contractType"`
	SalaryMin       *int      `json:"salaryMin"`
	SalaryMax       *int      `json:"salaryMax"`
	Duration        *string   `json:"duration"`
	RemotePolicy    *string   `json:"remotePolicy"`
	StartDate       *string   `json:"startDate"`
	ExperienceYears *int      `json:"experienceYears"`
	EducationLevel  *string   `json:"educationLevel"`
}

func existingResult(id uuid.UUID) *Result {
	return &Result{Status: ResultExisting, JobOfferID: id, Message: ExistingMessage}
}

func createdResult(offer *db.JobOffer, ex *extraction.Extraction) *Result {
	return &Result{
		Status:     ResultCreated,
		JobOfferID: offer.ID,
		JobOffer: &Summary{
			ID:              offer.ID,
			Title:           offer.Title,
			CompanyID:       offer.CompanyID,
			CompanyName:     ex.CompanyName,
			Category:        ex.Category,
			Description:     ex.Description,
			RequiredSkills:  offer.RequiredSkills,
			Location:        ex.Location,
			ContractType:    ex.ContractType,
			SalaryMin:       ex.SalaryMin,
			SalaryMax:       ex.SalaryMax,
			Duration:        ex.Duration,
			RemotePolicy:    ex.RemotePolicy,
			StartDate:       ex.StartDate,
			ExperienceYears: ex.ExperienceYears,
			EducationLevel:  ex.EducationLevel,
		},
	}
}
