package extraction

import (
	"strings"

	"github.com/apply-app/apply-api/internal/prompts"
)

const promptFile = "extraction.json"

// BuildPrompt returns the extraction prompt for url. When content is empty the
// model is told to rely on what it knows about the URL.
func BuildPrompt(url, content string) (string, error) {
	section, err := prompts.Render(promptFile, "no-content", nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) != "" {
		section, err = prompts.Render(promptFile, "page-content", map[string]string{
			"Content": content,
		})
		if err != nil {
			return "", err
		}
	}

	return prompts.Render(promptFile, "analyze-job-offer", map[string]string{
		"URL":               url,
		"Content":           section,
		"Categories":        strings.Join(Categories, ", "),
		"ContractTypes":     strings.Join(ContractTypes, ", "),
		"CategoryUnion":     strings.Join(Categories, " | "),
		"ContractTypeUnion": strings.Join(ContractTypes, " | "),
	})
}
