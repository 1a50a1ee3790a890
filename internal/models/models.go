// package models defines the data model for the account clone service
package models

import (
	"time"
)

// Model defines the base interface for persisted run records.
// Implementations include [CloneRun].
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the CRUD operations of a run history store.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model and assigns its sequence
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update stores status, counts and timestamps
	Delete(id string) error                    // Delete soft-deletes a model by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves models matching the given criteria, newest first
}

// ResultStore holds the per-entity results of runs. Results are append-only and keep
// emission order.
type ResultStore interface {
	SaveAll(runID string, results []CloneResult) error
	ListByRun(runID string, status Status) ([]CloneResult, error)
	CountByRun(runID string) (int, error)
}
