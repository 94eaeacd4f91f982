package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Company Methods
// -----------------------------------------------------------------------------

const companyColumns = `id, name, description, website, logo, created_at, updated_at`

// NormalizeName trims surrounding whitespace from a company name. Matching is
// case-insensitive in SQL, so case is preserved here.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// FindCompanyByName returns the oldest company whose name equals name,
// ignoring case. Returns nil when none matches.
func (db *DB) FindCompanyByName(ctx context.Context, name string) (*Company, error) {
	var c Company
	err := db.pool.QueryRow(ctx,
		`SELECT `+companyColumns+`
		 FROM company
		 WHERE lower(name) = lower($1)
		 ORDER BY created_at, id
		 LIMIT 1`,
		NormalizeName(name),
	).Scan(&c.ID, &c.Name, &c.Description, &c.Website, &c.Logo, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find company: %w", err)
	}
	return &c, nil
}

// GetCompanyByID retrieves a company by its UUID
func (db *DB) GetCompanyByID(ctx context.Context, id uuid.UUID) (*Company, error) {
	var c Company
	err := db.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM company WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Website, &c.Logo, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// CreateCompany inserts a new company
func (db *DB) CreateCompany(ctx context.Context, input *CompanyCreateInput) (*Company, error) {
	name := NormalizeName(input.Name)
	if name == "" {
		return nil, fmt.Errorf("company name cannot be empty")
	}

	var c Company
	err := db.pool.QueryRow(ctx,
		`INSERT INTO company (name, website, description)
		 VALUES ($1, $2, $3)
		 RETURNING `+companyColumns,
		name, input.Website, input.Description,
	).Scan(&c.ID, &c.Name, &c.Description, &c.Website, &c.Logo, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	return &c, nil
}

// ResolveCompany returns the id of the company named name (case-insensitive),
// creating it with the given website and description when absent. An existing
// company is never modified.
func (db *DB) ResolveCompany(ctx context.Context, input *CompanyCreateInput) (uuid.UUID, error) {
	existing, err := db.FindCompanyByName(ctx, input.Name)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	created, err := db.CreateCompany(ctx, input)
	if err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}
