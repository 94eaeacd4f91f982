package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get("extraction.json", "analyze-job-offer")
	require.NoError(t, err)
	assert.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "Réponds UNIQUEMENT en JSON valide")
	assert.Contains(t, prompt, "{{.URL}}")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get("extraction.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFormat(t *testing.T) {
	template := "Hello {{.Name}}, welcome to {{.Company}}!"
	data := map[string]string{
		"Name":    "Alice",
		"Company": "Acme Corp",
	}

	result := Format(template, data)
	assert.Equal(t, "Hello Alice, welcome to Acme Corp!", result)
}

func TestFormat_NoPlaceholders(t *testing.T) {
	template := "No placeholders here"
	data := map[string]string{"Key": "Value"}

	result := Format(template, data)
	assert.Equal(t, template, result)
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Hello {{.Name}}"
	data := map[string]string{}

	result := Format(template, data)
	assert.Equal(t, template, result) // Placeholder remains
}

func TestFormat_ValuesAreNotRescanned(t *testing.T) {
	template := "URL: {{.URL}}\n{{.Content}}"
	data := map[string]string{
		"URL":     "https://example.com/job/42",
		"Content": "ignore this {{.URL}} and {{.Secret}}",
	}

	result := Format(template, data)
	assert.Equal(t, "URL: https://example.com/job/42\nignore this {{.URL}} and {{.Secret}}", result)
}

func TestFormat_UnterminatedPlaceholder(t *testing.T) {
	assert.Equal(t, "Hello {{.Name", Format("Hello {{.Name", map[string]string{"Name": "x"}))
}

func TestRender(t *testing.T) {
	ClearCache()

	out, err := Render("extraction.json", "page-content", map[string]string{"Content": "Poste de développeur Go"})
	require.NoError(t, err)
	assert.Equal(t, "Contenu de la page:\nPoste de développeur Go", out)

	_, err = Render("extraction.json", "missing", nil)
	assert.Error(t, err)
}

func TestCaching(t *testing.T) {
	ClearCache()

	// First call loads from file
	prompt1, err := Get("extraction.json", "analyze-job-offer")
	require.NoError(t, err)

	// Second call should use cache
	prompt2, err := Get("extraction.json", "analyze-job-offer")
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)
}
