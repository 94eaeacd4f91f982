package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Analysis Job Methods
// -----------------------------------------------------------------------------

// CreateAnalysisJob records a freshly triggered run as a pending job.
func (db *DB) CreateAnalysisJob(ctx context.Context, triggerID string) (*AnalysisJob, error) {
	var j AnalysisJob
	err := db.pool.QueryRow(ctx,
		`INSERT INTO job (id, status, trigger_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, status, trigger_id, created_at, updated_at`,
		uuid.New(), JobStatusPending, triggerID,
	).Scan(&j.ID, &j.Status, &j.TriggerID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis job: %w", err)
	}
	return &j, nil
}
