package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Job Offer Methods
// -----------------------------------------------------------------------------

const jobOfferColumns = `id, source_url, title, company_id, category, description, required_skills,
	location, contract_type, salary_min, salary_max, duration, remote_policy, start_date,
	experience_years, education_level, is_public, is_active, created_by_user_id, public_at,
	created_at, updated_at`

func scanJobOffer(row pgx.Row) (*JobOffer, error) {
	var o JobOffer
	err := row.Scan(
		&o.ID, &o.SourceURL, &o.Title, &o.CompanyID, &o.Category, &o.Description, &o.RequiredSkills,
		&o.Location, &o.ContractType, &o.SalaryMin, &o.SalaryMax, &o.Duration, &o.RemotePolicy, &o.StartDate,
		&o.ExperienceYears, &o.EducationLevel, &o.IsPublic, &o.IsActive, &o.CreatedByUserID, &o.PublicAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if o.RequiredSkills == nil {
		o.RequiredSkills = []string{}
	}
	return &o, nil
}

// GetJobOfferBySourceURL retrieves the offer created from url, or nil
func (db *DB) GetJobOfferBySourceURL(ctx context.Context, url string) (*JobOffer, error) {
	o, err := scanJobOffer(db.pool.QueryRow(ctx,
		`SELECT `+jobOfferColumns+` FROM job_offer WHERE source_url = $1`,
		url,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job offer by source url: %w", err)
	}
	return o, nil
}

// GetJobOfferByID retrieves a job offer by its UUID, or nil
func (db *DB) GetJobOfferByID(ctx context.Context, id uuid.UUID) (*JobOffer, error) {
	o, err := scanJobOffer(db.pool.QueryRow(ctx,
		`SELECT `+jobOfferColumns+` FROM job_offer WHERE id = $1`,
		id,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job offer: %w", err)
	}
	return o, nil
}

// CreateJobOffer inserts a private, active job offer. When another offer with
// the same source URL already exists (a concurrent run won the race), that
// offer is returned with created=false.
func (db *DB) CreateJobOffer(ctx context.Context, input *JobOfferCreateInput) (offer *JobOffer, created bool, err error) {
	skills := input.RequiredSkills
	if skills == nil {
		skills = []string{}
	}

	offer, err = scanJobOffer(db.pool.QueryRow(ctx,
		`INSERT INTO job_offer (
			source_url, title, company_id, category, description, required_skills,
			location, contract_type, salary_min, salary_max, duration, remote_policy,
			start_date, experience_years, education_level,
			is_public, is_active, created_by_user_id, public_at, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, FALSE, TRUE, $16, $17,
		           COALESCE($18::timestamptz, NOW()), COALESCE($18::timestamptz, NOW()))
		 ON CONFLICT (source_url) DO NOTHING
		 RETURNING `+jobOfferColumns,
		input.SourceURL, input.Title, input.CompanyID, input.Category, input.Description, skills,
		input.Location, input.ContractType, input.SalaryMin, input.SalaryMax, input.Duration, input.RemotePolicy,
		input.StartDate, input.ExperienceYears, input.EducationLevel,
		input.CreatedByUserID, input.PublicAt, nullTime(input.CreatedAt),
	))
	if err == nil {
		return offer, true, nil
	}
	if !isNoRows(err) {
		return nil, false, fmt.Errorf("failed to create job offer: %w", err)
	}

	existing, err := db.GetJobOfferBySourceURL(ctx, input.SourceURL)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("failed to create job offer: conflicting row for %s vanished", input.SourceURL)
	}
	return existing, false, nil
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// buildJobOfferFilters turns filters into a WHERE clause and its arguments.
func buildJobOfferFilters(f JobOfferFilters, now time.Time) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	if f.CreatedByUserID != nil {
		conditions = append(conditions, fmt.Sprintf("created_by_user_id = $%d", argIndex))
		args = append(args, *f.CreatedByUserID)
		argIndex++
	}
	if f.IsPublic != nil {
		conditions = append(conditions, fmt.Sprintf("is_public = $%d", argIndex))
		args = append(args, *f.IsPublic)
		argIndex++
	}
	if f.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIndex))
		args = append(args, *f.IsActive)
		argIndex++
	}
	if f.RecentOnly {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, now.Add(-RecentWindow))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// ListJobOffers lists job offers newest first
func (db *DB) ListJobOffers(ctx context.Context, f JobOfferFilters) ([]JobOffer, error) {
	whereClause, args := buildJobOfferFilters(f, time.Now())

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT %s FROM job_offer %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`,
		jobOfferColumns, whereClause, len(args)-1, len(args),
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list job offers: %w", err)
	}
	defer rows.Close()

	offers := []JobOffer{}
	for rows.Next() {
		o, err := scanJobOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job offer: %w", err)
		}
		offers = append(offers, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list job offers: %w", err)
	}
	return offers, nil
}

// PublishDueJobOffers makes public every active private offer whose public_at
// has passed, returning how many were published.
func (db *DB) PublishDueJobOffers(ctx context.Context, now time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE job_offer SET is_public = TRUE, updated_at = NOW()
		 WHERE is_public = FALSE AND is_active = TRUE
		   AND public_at IS NOT NULL AND public_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to publish due job offers: %w", err)
	}
	return tag.RowsAffected(), nil
}
