package extraction

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/apply-app/apply-api/internal/llm"
	"github.com/apply-app/apply-api/internal/schemas"
	schemadocs "github.com/apply-app/apply-api/schemas"
)

var (
	extractionSchema = schemas.MustCompile(schemadocs.JobOfferExtraction, schemadocs.MustLoad(schemadocs.JobOfferExtraction))
	validate         = validator.New(validator.WithRequiredStructEnabled())
)

// Parse extracts the first JSON object from a model answer, checks it against
// the extraction schema and normalizes it. Every failure is an *Error.
func Parse(raw string) (*Extraction, error) {
	obj, ok := llm.FirstJSONObject(raw)
	if !ok {
		return nil, &Error{Raw: raw, Cause: ErrNoJSON}
	}

	if err := extractionSchema.Validate(obj); err != nil {
		return nil, &Error{Raw: raw, Cause: err}
	}

	var r rawExtraction
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nil, &Error{Raw: raw, Cause: fmt.Errorf("decode extraction: %w", err)}
	}

	ex, err := normalize(&r)
	if err != nil {
		return nil, &Error{Raw: raw, Cause: err}
	}

	if err := validate.Struct(ex); err != nil {
		return nil, &Error{Raw: raw, Cause: err}
	}
	return ex, nil
}

func normalize(r *rawExtraction) (*Extraction, error) {
	ex := &Extraction{
		Title:              strings.TrimSpace(r.Title),
		CompanyName:        strings.TrimSpace(r.CompanyName),
		CompanyWebsite:     optionalString(r.CompanyWebsite),
		CompanyDescription: optionalString(r.CompanyDescription),
		Description:        strings.TrimSpace(r.Description),
		Category:           normalizeCategory(r.Category),
		RequiredSkills:     NormalizeSkills(r.RequiredSkills),
		Location:           optionalString(r.Location),
		ContractType:       enumValue(r.ContractType, ContractTypes),
		SalaryMin:          nonNegativeInt(r.SalaryMin),
		SalaryMax:          nonNegativeInt(r.SalaryMax),
		Duration:           optionalString(r.Duration),
		RemotePolicy:       enumValue(r.RemotePolicy, RemotePolicies),
		StartDate:          NormalizeDate(r.StartDate),
		ExperienceYears:    nonNegativeInt(r.ExperienceYears),
		EducationLevel:     optionalString(r.EducationLevel),
	}

	for _, f := range []struct {
		name  string
		value string
	}{
		{"title", ex.Title},
		{"companyName", ex.CompanyName},
		{"description", ex.Description},
	} {
		if f.value == "" {
			return nil, fmt.Errorf("%s: %w", f.name, ErrBlankField)
		}
	}
	return ex, nil
}

func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// enumValue lower-cases s and returns nil unless it is one of allowed.
func enumValue(s *string, allowed []string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	for _, a := range allowed {
		if v == a {
			return &v
		}
	}
	return nil
}

func normalizeCategory(s string) string {
	if v := enumValue(&s, Categories); v != nil {
		return *v
	}
	return CategoryOther
}

// nonNegativeInt rounds f and returns nil when it is negative or does not
// fit a 32-bit column.
func nonNegativeInt(f *float64) *int {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	r := math.Round(*f)
	if r < 0 || r > math.MaxInt32 {
		return nil
	}
	n := int(r)
	return &n
}

// NormalizeSkills trims labels, drops empty ones and removes case-insensitive
// duplicates, keeping the first spelling and the original order.
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeDate returns the ISO calendar date in s, or nil. Timestamps are
// truncated to their date part.
func NormalizeDate(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if t, err := time.Parse(DateLayout, v); err == nil {
		d := t.Format(DateLayout)
		return &d
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := t.Format(DateLayout)
			return &d
		}
	}
	return nil
}

// ParsedStartDate returns StartDate as a time at midnight UTC.
func (e *Extraction) ParsedStartDate() *time.Time {
	if e.StartDate == nil {
		return nil
	}
	t, err := time.Parse(DateLayout, *e.StartDate)
	if err != nil {
		return nil
	}
	return &t
}
