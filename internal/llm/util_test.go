package llm

import (
	"strings"
	"testing"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain object", `{"title": "Backend Go"}`, `{"title": "Backend Go"}`},
		{"json fence", "```json\n{\"title\": \"Backend Go\"}\n```", `{"title": "Backend Go"}`},
		{"bare fence", "```\n{\"title\": \"Backend Go\"}\n```", `{"title": "Backend Go"}`},
		{"french preamble", "Voici les informations extraites :\n{\"company\": {\"name\": \"Acme\"}}", `{"company": {"name": "Acme"}}`},
		{"trailing chatter", "{\"remote\": true}\n\nN'hésitez pas si besoin !", `{"remote": true}`},
		{"escaped quotes", `Résultat : {"description": "Stack \"moderne\""}`, `{"description": "Stack \"moderne\""}`},
		{"array", "Compétences :\n[\"Go\", \"PostgreSQL\"]", `["Go", "PostgreSQL"]`},
		{"no json", "Je ne peux pas lire cette page.", "Je ne peux pas lire cette page."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanJSONBlock(tt.input); got != tt.expected {
				t.Errorf("CleanJSONBlock() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExtractBalanced(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		open     byte
		close    byte
		expected string
	}{
		{"nested object", `{"salary": {"min": 45000}} reste`, '{', '}', `{"salary": {"min": 45000}}`},
		{"brace in string", `{"title": "Dev {senior}"}`, '{', '}', `{"title": "Dev {senior}"}`},
		{"array of objects", `[{"name": "Go"}, {"name": "SQL"}] fin`, '[', ']', `[{"name": "Go"}, {"name": "SQL"}]`},
		{"unclosed", `{"title": "Dev"`, '{', '}', ""},
		{"wrong opener", `not json`, '{', '}', ""},
		{"empty", "", '[', ']', ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractBalanced(tt.input, tt.open, tt.close); got != tt.expected {
				t.Errorf("extractBalanced() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"plain", `{"title": "Dev"}`, `{"title": "Dev"}`, true},
		{"fenced", "```json\n{\"title\": \"Dev\"}\n```", `{"title": "Dev"}`, true},
		{"prose around", `Voici le résultat : {"title": "Dev"} Bonne journée !`, `{"title": "Dev"}`, true},
		{"braces in strings", `{"description": "use {curly} and \"quotes\" }"}`, `{"description": "use {curly} and \"quotes\" }"}`, true},
		{"first of two objects", `{"a": 1} {"b": 2}`, `{"a": 1}`, true},
		{"skips non-JSON braces", `Format {title} is: {"title": "Dev"}`, `{"title": "Dev"}`, true},
		{"unbalanced", `{"title": "Dev"`, "", false},
		{"no object", `no json here`, "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := FirstJSONObject(tt.input)
			if ok != tt.ok || result != tt.expected {
				t.Errorf("FirstJSONObject() = (%q, %v), want (%q, %v)", result, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestFirstJSONObject_BoundedScan(t *testing.T) {
	input := strings.Repeat("x", MaxJSONScan) + `{"title": "Dev"}`
	if _, ok := FirstJSONObject(input); ok {
		t.Error("expected object beyond the scan bound to be ignored")
	}
}
