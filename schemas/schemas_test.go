package schemas

import (
	"encoding/json"
	"testing"

	"github.com/apply-app/apply-api/internal/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllSchemaFiles_ValidJSON(t *testing.T) {
	entries, err := files.ReadDir(".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		t.Run(entry.Name(), func(t *testing.T) {
			content := MustLoad(entry.Name())

			var schema map[string]any
			require.NoError(t, json.Unmarshal([]byte(content), &schema), "schema must be valid JSON")
			assert.Contains(t, schema, "$schema")

			_, err := schemas.Compile(entry.Name(), content)
			assert.NoError(t, err)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load("nope.schema.json")
	assert.Error(t, err)
}

func TestJobOfferExtractionSchema(t *testing.T) {
	v := schemas.MustCompile(JobOfferExtraction, MustLoad(JobOfferExtraction))

	valid := `{
		"title": "Développeur Backend Go",
		"companyName": "Acme",
		"companyWebsite": null,
		"description": "Concevoir et maintenir des API.",
		"category": "dev",
		"requiredSkills": ["Go", "PostgreSQL"],
		"contractType": "CDI",
		"salaryMin": 3500,
		"salaryMax": null,
		"experienceYears": 3
	}`
	assert.NoError(t, v.Validate(valid))

	tests := []struct {
		name string
		doc  string
	}{
		{"missing title", `{"companyName": "Acme", "description": "d", "category": "dev", "requiredSkills": []}`},
		{"missing description", `{"title": "t", "companyName": "Acme", "category": "dev", "requiredSkills": []}`},
		{"empty title", `{"title": "", "companyName": "Acme", "description": "d", "category": "dev", "requiredSkills": []}`},
		{"skills not a list", `{"title": "t", "companyName": "Acme", "description": "d", "category": "dev", "requiredSkills": "Go"}`},
		{"salary as text", `{"title": "t", "companyName": "Acme", "description": "d", "category": "dev", "requiredSkills": [], "salaryMin": "3k"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, v.Validate(tt.doc))
		})
	}
}
