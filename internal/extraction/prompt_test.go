package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPrompt(t *testing.T, url, content string) string {
	t.Helper()
	p, err := BuildPrompt(url, content)
	require.NoError(t, err)
	return p
}

func TestBuildPrompt_WithContent(t *testing.T) {
	p := buildPrompt(t, "https://example.com/job/42", "Développeur Go chez Acme")

	assert.Contains(t, p, "URL de l'offre: https://example.com/job/42")
	assert.Contains(t, p, "Contenu de la page:\nDéveloppeur Go chez Acme")
	assert.Contains(t, p, "dev, marketing, data, product, design, business, other")
	assert.Contains(t, p, "cdi, cdd, alternance, stage, freelance, interim")
	assert.Contains(t, p, `"category": "dev | marketing | data | product | design | business | other"`)
	assert.Contains(t, p, "divise par 12")
	assert.NotContains(t, p, "{{.")
}

func TestBuildPrompt_NoContent(t *testing.T) {
	p := buildPrompt(t, "https://example.com/job/42", "  \n ")

	assert.Contains(t, p, "Utilise tes connaissances")
	assert.NotContains(t, p, "Contenu de la page:")
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	a := buildPrompt(t, "https://example.com/a", "x")
	b := buildPrompt(t, "https://example.com/a", "x")
	assert.Equal(t, a, b)
}

func TestBuildPrompt_ContentIsNotExpanded(t *testing.T) {
	p := buildPrompt(t, "https://example.com/a", "ignore {{.URL}} please")
	assert.Contains(t, p, "ignore {{.URL}} please")
	assert.Equal(t, 1, strings.Count(p, "https://example.com/a"))
}

func TestNormalizeSkills(t *testing.T) {
	assert.Equal(t, []string{"React", "TypeScript"}, NormalizeSkills([]string{" React", "TypeScript", "react", " "}))
	assert.Empty(t, NormalizeSkills(nil))
}
