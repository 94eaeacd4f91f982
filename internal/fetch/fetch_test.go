package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL_Success(t *testing.T) {
	// Create test server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body><h1>Test</h1></body></html>"))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Contains(t, result.HTML, "<h1>Test</h1>")
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not-a-valid-url", nil)
	require.Error(t, err)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestURL_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.NotNil(t, result) // Result is returned even on error
	assert.Equal(t, http.StatusNotFound, result.StatusCode)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "404")
}

func TestURL_SendsBrowserUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	_, err := URL(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Contains(t, gotUA, "Mozilla/5.0")
}

func TestURL_RejectsNonHTTPScheme(t *testing.T) {
	_, err := URL(context.Background(), "ftp://example.com/job", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestExtractText_StripsScriptsAndMarkup(t *testing.T) {
	html := `
	<html>
		<head><title>Backend Engineer - Acme</title><style>body { color: red; }</style></head>
		<body>
			<script>var tracking = "secret";</script>
			<h1>Backend   Engineer</h1>
			<p>Join <b>Acme</b> in Paris.</p><p>CDI, remote partial.</p>
			<noscript>Enable JS</noscript>
		</body>
	</html>`

	text, err := ExtractText(html, PlatformUnknown)
	require.NoError(t, err)
	assert.Contains(t, text, "Backend Engineer - Acme")
	assert.Contains(t, text, "Backend Engineer")
	assert.Contains(t, text, "Join Acme in Paris.")
	assert.Contains(t, text, "CDI, remote partial.")
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "Enable JS")
	assert.NotContains(t, text, "<")
	assert.NotContains(t, text, "  ", "whitespace runs are collapsed")
}

func TestExtractText_AdjacentBlocksDoNotMerge(t *testing.T) {
	text, err := ExtractText(`<html><body><div>Salaire</div><div>45k</div></body></html>`, PlatformUnknown)
	require.NoError(t, err)
	assert.NotContains(t, text, "Salaire45k")
}

func TestExtractText_PlatformSelectorKeepsTitle(t *testing.T) {
	html := `
	<html>
		<head><title>Acme - Senior Go Developer</title></head>
		<body>
			<div class="sidebar">Other jobs you may like</div>
			<div class="job__description body">
				<h2>Requirements</h2>
				<p>5 years experience in Go</p>
			</div>
			<div id="application-form">Upload your resume</div>
		</body>
	</html>`

	text, err := ExtractText(html, PlatformGreenhouse)
	require.NoError(t, err)
	assert.Contains(t, text, "Acme - Senior Go Developer")
	assert.Contains(t, text, "5 years experience in Go")
	assert.NotContains(t, text, "Other jobs")
	assert.NotContains(t, text, "Upload your resume")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		max      int
		expected string
	}{
		{"shorter", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"longer", "abcdef", 5, "abcde"},
		{"multibyte", "éléphant", 3, "élé"},
		{"zero means unbounded", "abc", 0, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.in, tt.max))
		})
	}
}
