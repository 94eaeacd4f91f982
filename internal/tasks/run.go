// Package tasks is a small durable run system: runs are triggered with a
// payload, queued in Redis, executed by a worker pool with retries and a time
// limit, and polled by id for status, metadata and output.
package tasks

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued    Status = "QUEUED"    // waiting for its first attempt
	StatusPending   Status = "PENDING"   // waiting for a retry
	StatusExecuting Status = "EXECUTING" // an attempt is running
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
	StatusCrashed   Status = "CRASHED"
)

// Terminal reports whether no further attempt will run.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled, StatusCrashed:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned for unknown run ids.
	ErrNotFound = errors.New("run not found")
	// ErrTerminal is returned when cancelling a run that already finished.
	ErrTerminal = errors.New("run already finished")
	// ErrUnknownTask is returned when triggering a task with no handler.
	ErrUnknownTask = errors.New("unknown task")
)

// Run is the stored state of one triggered task.
type Run struct {
	ID            string          `json:"id"`
	Task          string          `json:"task"`
	Status        Status          `json:"status"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
	Attempt       int             `json:"attempt"`
	MaxAttempts   int             `json:"maxAttempts"`
	Tags          []string        `json:"tags"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	FinishedAt    *time.Time      `json:"finishedAt,omitempty"`
	NextAttemptAt *time.Time      `json:"nextAttemptAt,omitempty"`
}

// HasTag reports whether the run carries tag.
func (r *Run) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// clone returns a copy that shares no slices with r.
func (r *Run) clone() *Run {
	c := *r
	c.Payload = append(json.RawMessage(nil), r.Payload...)
	c.Metadata = append(json.RawMessage(nil), r.Metadata...)
	c.Output = append(json.RawMessage(nil), r.Output...)
	c.Tags = append([]string(nil), r.Tags...)
	return &c
}

// NewRunID returns an opaque run identifier.
func NewRunID() string {
	return "run_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
