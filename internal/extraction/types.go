// Package extraction turns a job posting into a validated JobOfferExtraction:
// it builds the model prompt and parses, checks and normalizes the model's answer.
package extraction

// Category values. Unknown categories are normalized to CategoryOther.
const (
	CategoryDev       = "dev"
	CategoryMarketing = "marketing"
	CategoryData      = "data"
	CategoryProduct   = "product"
	CategoryDesign    = "design"
	CategoryBusiness  = "business"
	CategoryOther     = "other"
)

// Categories lists every category in prompt order.
var Categories = []string{
	CategoryDev, CategoryMarketing, CategoryData, CategoryProduct,
	CategoryDesign, CategoryBusiness, CategoryOther,
}

// ContractTypes lists the accepted contract types.
var ContractTypes = []string{"cdi", "cdd", "alternance", "stage", "freelance", "interim"}

// RemotePolicies lists the accepted remote-work policies.
var RemotePolicies = []string{"none", "partial", "full"}

// DateLayout is the format of StartDate.
const DateLayout = "2006-01-02"

// Extraction is the normalized set of fields extracted from one posting.
// Optional fields are nil when absent or invalid.
type Extraction struct {
	Title              string   `json:"title" validate:"required"`
	CompanyName        string   `json:"companyName" validate:"required"`
	CompanyWebsite     *string  `json:"companyWebsite"`
	CompanyDescription *string  `json:"companyDescription"`
	Description        string   `json:"description" validate:"required"`
	Category           string   `json:"category" validate:"oneof=dev marketing data product design business other"`
	RequiredSkills     []string `json:"requiredSkills" validate:"dive,required"`
	Location           *string  `json:"location"`
	ContractType       *string  `json:"contractType" validate:"omitempty,oneof=cdi cdd alternance stage freelance interim"`
	SalaryMin          *int     `json:"salaryMin" validate:"omitempty,min=0"`
	SalaryMax          *int     `json:"salaryMax" validate:"omitempty,min=0"`
	Duration           *string  `json:"duration"`
	RemotePolicy       *string  `json:"remotePolicy" validate:"omitempty,oneof=none partial full"`
	StartDate          *string  `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	ExperienceYears    *int     `json:"experienceYears" validate:"omitempty,min=0"`
	EducationLevel     *string  `json:"educationLevel"`
}

// rawExtraction mirrors the model's JSON before normalization.
type rawExtraction struct {
	Title              string   `json:"title"`
	CompanyName        string   `json:"companyName"`
	CompanyWebsite     *string  `json:"companyWebsite"`
	CompanyDescription *string  `json:"companyDescription"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	RequiredSkills     []string `json:"requiredSkills"`
	Location           *string  `json:"location"`
	ContractType       *string  `json:"contractType"`
	SalaryMin          *float64 `json:"salaryMin"`
	SalaryMax          *float64 `json:"salaryMax"`
	Duration           *string  `json:"duration"`
	RemotePolicy       *string  `json:"remotePolicy"`
	StartDate          *string  `json:"startDate"`
	ExperienceYears    *float64 `json:"experienceYears"`
	EducationLevel     *string  `json:"educationLevel"`
}
