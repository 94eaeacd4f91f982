// Package schemas embeds the JSON Schema documents shipped with the service.
package schemas

import (
	"embed"
	"fmt"
)

//go:embed *.schema.json
var files embed.FS

// JobOfferExtraction is the filename of the model-output schema.
const JobOfferExtraction = "job_offer_extraction.schema.json"

// Load returns the content of an embedded schema file.
func Load(name string) (string, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("schema %s not found: %w", name, err)
	}
	return string(data), nil
}

// MustLoad is Load for schemas that must exist at build time.
func MustLoad(name string) string {
	s, err := Load(name)
	if err != nil {
		panic(err)
	}
	return s
}
