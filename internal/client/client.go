// Package client is a small HTTP client for the analysis API, used by the
// submit command to trigger a run and poll it to completion.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apply-app/apply-api/internal/pipeline"
)

// Poll defaults: 90 polls two seconds apart give a run three minutes.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxPolls     = 90
)

// ErrPollTimeout is returned by WaitForRun when the run is still not terminal
// after the configured number of polls.
var ErrPollTimeout = errors.New("run did not finish in time")

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// Status mirrors the body of GET /api/jobs/{runId}/status.
type Status struct {
	Status   string             `json:"status"`
	Metadata *pipeline.Progress `json:"metadata"`
	Output   *pipeline.Result   `json:"output"`
	Error    *string            `json:"error"`
}

// Terminal reports whether the run will not change anymore.
func (s *Status) Terminal() bool {
	switch s.Status {
	case "COMPLETED", "FAILED", "CANCELED", "CRASHED":
		return true
	}
	return false
}

// Client talks to the analysis API with a bearer token.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	PollInterval time.Duration
	MaxPolls     int
}

// New creates a client for the API at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		PollInterval: DefaultPollInterval,
		MaxPolls:     DefaultMaxPolls,
	}
}

// Analyze triggers an analysis of jobURL and returns the run id.
func (c *Client) Analyze(ctx context.Context, jobURL string) (string, error) {
	var resp struct {
		Success bool   `json:"success"`
		RunID   string `json:"runId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/jobs/analyze", map[string]string{"url": jobURL}, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.RunID == "" {
		return "", fmt.Errorf("analyze: response has no run id")
	}
	return resp.RunID, nil
}

// Status fetches the current state of a run.
func (c *Client) Status(ctx context.Context, runID string) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(runID)+"/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Cancel cancels a run that has not finished.
func (c *Client) Cancel(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(runID)+"/cancel", nil, nil)
}

// WaitForRun polls the run until it is terminal, calling onProgress whenever
// its progress metadata changes. It returns the last status read.
func (c *Client) WaitForRun(ctx context.Context, runID string, onProgress func(pipeline.Progress)) (*Status, error) {
	var last pipeline.Progress
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.MaxPolls; attempt++ {
		st, err := c.Status(ctx, runID)
		if err != nil {
			return nil, err
		}
		if st.Metadata != nil && *st.Metadata != last {
			last = *st.Metadata
			if onProgress != nil {
				onProgress(last)
			}
		}
		if st.Terminal() {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, fmt.Errorf("%w: %s after %d polls", ErrPollTimeout, runID, c.MaxPolls)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
