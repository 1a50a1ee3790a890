package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/shared"
)

// CloneResultRepository stores the per-entity results of a run in emission order.
type CloneResultRepository struct {
	db *sql.DB
}

var _ models.ResultStore = (*CloneResultRepository)(nil)

// NewCloneResultRepository creates a new CloneResultRepository with the given database connection
func NewCloneResultRepository(db *sql.DB) *CloneResultRepository {
	return &CloneResultRepository{db: db}
}

// SaveAll appends results to runID in one transaction. Positions continue after any results
// already stored for the run.
func (r *CloneResultRepository) SaveAll(runID string, results []models.CloneResult) error {
	if runID == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrMissingArgument)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var position int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(position), 0) FROM clone_results WHERE run_id = ?`, runID).Scan(&position); err != nil {
		return fmt.Errorf("failed to read result position: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO clone_results (
			id, run_id, position, entity_type, source_id, destination_id, identifier,
			status, stage, status_code, error_type, error_message, detail
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		position++
		_, err := stmt.Exec(
			shared.GenerateID(),
			runID,
			position,
			string(res.Type),
			res.SourceID,
			nullString(res.DestinationID),
			res.Name,
			string(res.Status),
			string(res.Stage),
			res.StatusCode,
			nullString(res.ErrorType),
			nullString(res.Error),
			nullString(res.Detail),
		)
		if err != nil {
			return fmt.Errorf("failed to insert result %d: %w", position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// ListByRun returns the results of runID in emission order. status filters when non-empty.
func (r *CloneResultRepository) ListByRun(runID string, status models.Status) ([]models.CloneResult, error) {
	query := `
		SELECT entity_type, source_id, destination_id, identifier, status, stage,
			status_code, error_type, error_message, detail
		FROM clone_results
		WHERE run_id = ?
	`
	args := []any{runID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY position"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []models.CloneResult
	for rows.Next() {
		var (
			res                                     models.CloneResult
			entityType, resStatus, stage            string
			destID, errorType, errorMessage, detail sql.NullString
		)
		if err := rows.Scan(
			&entityType, &res.SourceID, &destID, &res.Name, &resStatus, &stage,
			&res.StatusCode, &errorType, &errorMessage, &detail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.Type = models.EntityType(entityType)
		res.Status = models.Status(resStatus)
		res.Stage = models.Stage(stage)
		res.DestinationID = destID.String
		res.ErrorType = errorType.String
		res.Error = errorMessage.String
		res.Detail = detail.String
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, nil
}

// CountByRun returns how many results are stored for runID.
func (r *CloneResultRepository) CountByRun(runID string) (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM clone_results WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}
