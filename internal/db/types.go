package db

import (
	"time"

	"github.com/google/uuid"
)

// PublicDelay is how long a new job offer stays private before the
// publication sweep makes it public.
const PublicDelay = 48 * time.Hour

// RecentWindow bounds the "recent" filter on job-offer listings.
const RecentWindow = 15 * 24 * time.Hour

// Company is an employer. Created lazily by the analysis pipeline and never
// updated by it.
type Company struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Website     *string   `json:"website,omitempty"`
	Logo        *string   `json:"logo,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CompanyCreateInput holds the fields for a new company
type CompanyCreateInput struct {
	Name        string
	Website     *string
	Description *string
}

// JobOffer is a persisted, normalized job posting.
type JobOffer struct {
	ID              uuid.UUID  `json:"id"`
	SourceURL       string     `json:"sourceUrl"`
	Title           string     `json:"title"`
	CompanyID       uuid.UUID  `json:"companyId"`
	Category        *string    `json:"category"`
	Description     *string    `json:"description"`
	RequiredSkills  []string   `json:"requiredSkills"`
	Location        *string    `json:"location"`
	ContractType    *string    `json:"contractType"`
	SalaryMin       *int       `json:"salaryMin"`
	SalaryMax       *int       `json:"salaryMax"`
	Duration        *string    `json:"duration"`
	RemotePolicy    *string    `json:"remotePolicy"`
	StartDate       *time.Time `json:"startDate"`
	ExperienceYears *int       `json:"experienceYears"`
	EducationLevel  *string    `json:"educationLevel"`
	IsPublic        bool       `json:"isPublic"`
	IsActive        bool       `json:"isActive"`
	CreatedByUserID uuid.UUID  `json:"createdByUserId"`
	PublicAt        *time.Time `json:"publicAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// VisibleTo reports whether userID may read the offer: its creator always can,
// anyone else only once it is public.
func (o *JobOffer) VisibleTo(userID uuid.UUID) bool {
	return o.IsPublic || o.CreatedByUserID == userID
}

// JobOfferCreateInput holds the fields for a new job offer. IsPublic and
// IsActive are not settable: new offers are always private and active.
// CreatedAt defaults to the database clock when zero; callers that derive
// PublicAt from their own clock should set both from the same instant.
type JobOfferCreateInput struct {
	SourceURL       string
	Title           string
	CompanyID       uuid.UUID
	Category        *string
	Description     *string
	RequiredSkills  []string
	Location        *string
	ContractType    *string
	SalaryMin       *int
	SalaryMax       *int
	Duration        *string
	RemotePolicy    *string
	StartDate       *time.Time
	ExperienceYears *int
	EducationLevel  *string
	CreatedByUserID uuid.UUID
	CreatedAt       time.Time
	PublicAt        time.Time
}

// JobOfferFilters narrows ListJobOffers. Nil fields are not applied.
type JobOfferFilters struct {
	CreatedByUserID *uuid.UUID
	IsPublic        *bool
	IsActive        *bool
	RecentOnly      bool
	Limit           int
	Offset          int
}

// Job status constants for the job-tracking table
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// AnalysisJob links an API-side job id to the run that executes it.
type AnalysisJob struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	TriggerID string    `json:"triggerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
