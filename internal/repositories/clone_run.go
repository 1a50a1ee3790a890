package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/shared"
)

// CloneRunRepository implements models.Repository[*models.CloneRun] for run history.
//
// Handles run CRUD operations with soft delete support and status-based queries.
type CloneRunRepository struct {
	db *sql.DB
}

// NewCloneRunRepository creates a new CloneRunRepository with the given database connection
func NewCloneRunRepository(db *sql.DB) *CloneRunRepository {
	return &CloneRunRepository{db: db}
}

var _ models.Repository[*models.CloneRun] = (*CloneRunRepository)(nil)

const cloneRunColumns = `
	id, sequence, kind, source_domain, dest_domain, entity_types, status,
	created_count, skipped_count, failed_count, error_message,
	started_at, finished_at, created_at, updated_at, deleted_at`

// Create inserts a run with the next sequence. Runs built from a summary keep the summary's run ID.
func (r *CloneRunRepository) Create(run *models.CloneRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "clone_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}
	run.SetSequence(sequence)

	query := `
		INSERT INTO clone_runs (
			id, sequence, kind, source_domain, dest_domain, entity_types, status,
			created_count, skipped_count, failed_count, error_message,
			started_at, finished_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	counts := run.Counts()
	_, err = r.db.Exec(query,
		run.ID(),
		sequence,
		run.Kind(),
		run.SourceDomain(),
		run.DestDomain(),
		run.EntityTypesString(),
		string(run.Status()),
		counts.Created,
		counts.Skipped,
		counts.Failed,
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		run.FinishedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert clone run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *CloneRunRepository) Get(id string) (*models.CloneRun, error) {
	query := `SELECT ` + cloneRunColumns + ` FROM clone_runs WHERE id = ? AND deleted_at IS NULL`
	run, err := scanCloneRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: clone run %s", shared.ErrNotFound, id)
	}
	return run, err
}

// Find retrieves a run by full ID or by a unique ID prefix, as shown in the runs table.
func (r *CloneRunRepository) Find(ref string) (*models.CloneRun, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: run id is required", shared.ErrMissingArgument)
	}
	run, err := r.Get(ref)
	if !errors.Is(err, shared.ErrNotFound) {
		return run, err
	}

	query := `SELECT ` + cloneRunColumns + ` FROM clone_runs WHERE id LIKE ? || '%' AND deleted_at IS NULL LIMIT 2`
	rows, err := r.db.Query(query, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to query clone runs: %w", err)
	}
	defer rows.Close()

	var matches []*models.CloneRun
	for rows.Next() {
		run, err := scanCloneRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: clone run %s", shared.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: run id prefix %q matches more than one run", shared.ErrInvalidArgument, ref)
	}
}

// Update stores the status, counts and timestamps of a run
func (r *CloneRunRepository) Update(run *models.CloneRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE clone_runs
		SET status = ?, created_count = ?, skipped_count = ?, failed_count = ?,
			error_message = ?, started_at = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	counts := run.Counts()
	result, err := r.db.Exec(query,
		string(run.Status()),
		counts.Created,
		counts.Skipped,
		counts.Failed,
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		run.FinishedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update clone run: %w", err)
	}
	return expectRow(result, "clone run", run.ID())
}

// Delete soft-deletes a run by ID
func (r *CloneRunRepository) Delete(id string) error {
	query := `UPDATE clone_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`
	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete clone run: %w", err)
	}
	return expectRow(result, "clone run", id)
}

// List retrieves runs newest first. Criteria: "status", "kind", "dest_domain" (strings) and "limit" (int).
func (r *CloneRunRepository) List(criteria map[string]any) ([]*models.CloneRun, error) {
	query := `SELECT ` + cloneRunColumns + ` FROM clone_runs WHERE deleted_at IS NULL`
	args := []any{}

	for _, key := range []string{"status", "kind", "dest_domain"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clone runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.CloneRun
	for rows.Next() {
		run, err := scanCloneRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanCloneRun(s scanner) (*models.CloneRun, error) {
	var (
		id           string
		sequence     int
		kind         string
		sourceDomain string
		destDomain   string
		entityTypes  string
		status       string
		counts       models.Counts
		errorMessage sql.NullString
		startedAt    sql.NullTime
		finishedAt   sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := s.Scan(
		&id, &sequence, &kind, &sourceDomain, &destDomain, &entityTypes, &status,
		&counts.Created, &counts.Skipped, &counts.Failed, &errorMessage,
		&startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan clone run: %w", err)
	}

	run := models.NewCloneRun(kind, sourceDomain, destDomain, models.SplitEntityTypes(entityTypes))
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetStatus(models.RunStatus(status))
	run.SetCounts(counts)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if errorMessage.Valid {
		run.SetErrorMessage(errorMessage.String)
	}
	if startedAt.Valid {
		run.SetStartedAt(&startedAt.Time)
	}
	if finishedAt.Valid {
		run.SetFinishedAt(&finishedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}
	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func expectRow(result sql.Result, what, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s not found or already deleted", shared.ErrNotFound, what, id)
	}
	return nil
}
