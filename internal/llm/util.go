package llm

import (
	"encoding/json"
	"strings"
)

// MaxJSONScan bounds how many bytes of a model response are scanned for JSON.
const MaxJSONScan = 64 << 10

// maxJSONCandidates bounds how many opening braces FirstJSONObject tries.
const maxJSONCandidates = 32

// CleanJSONBlock removes markdown code fences and any conversational text
// around the first JSON object or array in a model response.
// LLMs often wrap JSON in ```json ... ``` blocks even when instructed not to.
func CleanJSONBlock(text string) string {
	text = stripCodeFence(strings.TrimSpace(text))

	start := strings.IndexAny(text, "{[")
	if start < 0 || start >= MaxJSONScan {
		return text
	}

	var found string
	if text[start] == '{' {
		found = extractJSONObject(text[start:])
	} else {
		found = extractJSONArray(text[start:])
	}
	if found == "" {
		return text
	}
	return found
}

// FirstJSONObject returns the first balanced, syntactically valid JSON object
// in text. Braces inside JSON strings (including escaped quotes) are ignored.
// The search is bounded by MaxJSONScan bytes.
func FirstJSONObject(text string) (string, bool) {
	text = stripCodeFence(strings.TrimSpace(text))
	if len(text) > MaxJSONScan {
		text = text[:MaxJSONScan]
	}

	offset := 0
	for attempt := 0; attempt < maxJSONCandidates; attempt++ {
		idx := strings.IndexByte(text[offset:], '{')
		if idx < 0 {
			return "", false
		}
		start := offset + idx
		if candidate := extractJSONObject(text[start:]); candidate != "" && json.Valid([]byte(candidate)) {
			return candidate, true
		}
		offset = start + 1
	}
	return "", false
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Skip a language identifier on the first line
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine := text[:idx]
		if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.ContainsAny(firstLine, "{[") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// extractJSONObject returns the balanced {...} prefix of s, or "" if s does not
// start with '{' or never closes.
func extractJSONObject(s string) string {
	return extractBalanced(s, '{', '}')
}

// extractJSONArray returns the balanced [...] prefix of s, or "".
func extractJSONArray(s string) string {
	return extractBalanced(s, '[', ']')
}

func extractBalanced(s string, open, close byte) string {
	if len(s) == 0 || s[0] != open {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s) && i < MaxJSONScan; i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
