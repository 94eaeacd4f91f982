package tasks

import (
	"context"
	"time"
)

// Store persists runs.
type Store interface {
	// Create stores a new run.
	Create(ctx context.Context, run *Run) error
	// Get returns the run or ErrNotFound.
	Get(ctx context.Context, id string) (*Run, error)
	// Update applies fn to the current run and stores the result atomically.
	// When fn returns an error nothing is written and Update returns the
	// unchanged run with that error.
	Update(ctx context.Context, id string, fn func(*Run) error) (*Run, error)
	// ExecutingBefore lists runs that entered EXECUTING before cutoff.
	ExecutingBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	// SaveCheckpoint stores opaque progress data for a run.
	SaveCheckpoint(ctx context.Context, id string, data []byte) error
	// LoadCheckpoint returns nil when the run has no checkpoint.
	LoadCheckpoint(ctx context.Context, id string) ([]byte, error)
}

// Queue hands run ids to workers.
type Queue interface {
	Enqueue(ctx context.Context, id string) error
	// EnqueueAt makes id available once at has passed (see PromoteDue).
	EnqueueAt(ctx context.Context, id string, at time.Time) error
	// Dequeue waits up to wait for an id and returns "" when none arrived.
	Dequeue(ctx context.Context, wait time.Duration) (string, error)
	// PromoteDue moves delayed ids whose time has come to the ready queue.
	PromoteDue(ctx context.Context, now time.Time) (int, error)
}
