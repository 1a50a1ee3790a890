package models

import (
	"fmt"
	"strings"
	"time"
)

// CloneRun is the persisted record of one clone or seed run.
type CloneRun struct {
	id           string
	sequence     int
	kind         string
	sourceDomain string
	destDomain   string
	entityTypes  []EntityType
	status       RunStatus
	counts       Counts
	errorMessage string
	startedAt    *time.Time
	finishedAt   *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewCloneRun creates a running record for kind ("clone" or "seed").
func NewCloneRun(kind, sourceDomain, destDomain string, types []EntityType) *CloneRun {
	now := time.Now()
	return &CloneRun{
		kind:         kind,
		sourceDomain: sourceDomain,
		destDomain:   destDomain,
		entityTypes:  types,
		status:       RunRunning,
		createdAt:    now,
		updatedAt:    now,
	}
}

// CloneRunFromSummary builds a record carrying the outcome of s.
func CloneRunFromSummary(s *CloneSummary) *CloneRun {
	run := NewCloneRun(s.Kind, s.SourceDomain, s.DestDomain, s.Types)
	run.id = s.RunID
	run.Apply(s)
	return run
}

// Apply copies status, counts and timestamps from s.
func (r *CloneRun) Apply(s *CloneSummary) {
	r.status = s.Status
	r.counts = s.Counts
	r.errorMessage = s.AbortReason
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		r.startedAt = &started
	}
	if !s.FinishedAt.IsZero() {
		finished := s.FinishedAt
		r.finishedAt = &finished
	}
}

func (r *CloneRun) ID() string                { return r.id }
func (r *CloneRun) Sequence() int             { return r.sequence }
func (r *CloneRun) Kind() string              { return r.kind }
func (r *CloneRun) SourceDomain() string      { return r.sourceDomain }
func (r *CloneRun) DestDomain() string        { return r.destDomain }
func (r *CloneRun) EntityTypes() []EntityType { return r.entityTypes }
func (r *CloneRun) Status() RunStatus         { return r.status }
func (r *CloneRun) Counts() Counts            { return r.counts }
func (r *CloneRun) ErrorMessage() string      { return r.errorMessage }
func (r *CloneRun) StartedAt() *time.Time     { return r.startedAt }
func (r *CloneRun) FinishedAt() *time.Time    { return r.finishedAt }
func (r *CloneRun) CreatedAt() time.Time      { return r.createdAt }
func (r *CloneRun) UpdatedAt() time.Time      { return r.updatedAt }
func (r *CloneRun) DeletedAt() *time.Time     { return r.deletedAt }

func (r *CloneRun) SetID(id string)                { r.id = id }
func (r *CloneRun) SetSequence(seq int)            { r.sequence = seq }
func (r *CloneRun) SetStatus(s RunStatus)          { r.status = s }
func (r *CloneRun) SetCounts(c Counts)             { r.counts = c }
func (r *CloneRun) SetErrorMessage(msg string)     { r.errorMessage = msg }
func (r *CloneRun) SetStartedAt(t *time.Time)      { r.startedAt = t }
func (r *CloneRun) SetFinishedAt(t *time.Time)     { r.finishedAt = t }
func (r *CloneRun) SetCreatedAt(t time.Time)       { r.createdAt = t }
func (r *CloneRun) SetUpdatedAt(t time.Time)       { r.updatedAt = t }
func (r *CloneRun) SetDeletedAt(t *time.Time)      { r.deletedAt = t }
func (r *CloneRun) SetEntityTypes(ts []EntityType) { r.entityTypes = ts }

// EntityTypesString joins the entity types with commas for storage.
func (r *CloneRun) EntityTypesString() string {
	parts := make([]string, len(r.entityTypes))
	for i, t := range r.entityTypes {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// SplitEntityTypes is the inverse of [CloneRun.EntityTypesString].
func SplitEntityTypes(s string) []EntityType {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	types := make([]EntityType, len(parts))
	for i, p := range parts {
		types[i] = EntityType(p)
	}
	return types
}

// Validate checks required fields.
func (r *CloneRun) Validate() error {
	if r.destDomain == "" {
		return fmt.Errorf("destination domain is required")
	}
	switch r.kind {
	case "clone":
		if r.sourceDomain == "" {
			return fmt.Errorf("source domain is required for clone runs")
		}
	case "seed":
	default:
		return fmt.Errorf("invalid run kind: %q", r.kind)
	}
	switch r.status {
	case RunRunning, RunDone, RunAborted:
	default:
		return fmt.Errorf("invalid run status: %q", r.status)
	}
	return nil
}
