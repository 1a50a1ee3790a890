package services

import (
	"context"
)

// Executor sends one [RequestPlan]. [*Client] is the production implementation; tests substitute stubs.
type Executor interface {
	// Execute sends plan and returns the 2xx response, or a typed [*APIError].
	Execute(ctx context.Context, plan RequestPlan) (*Response, error)
}

// collectionPath returns the 2.0 collection path for an entity type.
func collectionPath(name string) string {
	return "/" + name
}
