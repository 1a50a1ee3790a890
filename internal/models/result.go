package models

import (
	"time"
)

// Status is the outcome of one entity.
type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Stage is where an entity was in its lifecycle when its result was recorded.
type Stage string

const (
	StageFetching     Stage = "fetching"
	StageTransforming Stage = "transforming"
	StageResolving    Stage = "resolving"
	StageCreating     Stage = "creating"
	StageDone         Stage = "done"
)

// RunStatus is the terminal state of a whole run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"    // every entity reached a terminal state, some may have failed
	RunAborted RunStatus = "aborted" // a fatal error stopped the run early
)

// CloneResult is the per-entity outcome of a run.
type CloneResult struct {
	Type          EntityType `json:"entity_type"`
	SourceID      string     `json:"source_id,omitempty"`
	DestinationID string     `json:"new_id,omitempty"`
	Name          string     `json:"identifier,omitempty"`
	Status        Status     `json:"status"`
	Stage         Stage      `json:"stage"`
	StatusCode    int        `json:"status_code,omitempty"`
	ErrorType     string     `json:"error_type,omitempty"`
	Error         string     `json:"error_message,omitempty"`
	Detail        string     `json:"detail,omitempty"`
}

// Counts tallies results by status.
type Counts struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Total returns the number of results counted.
func (c Counts) Total() int { return c.Created + c.Skipped + c.Failed }

func (c *Counts) add(s Status) {
	switch s {
	case StatusCreated:
		c.Created++
	case StatusSkipped:
		c.Skipped++
	case StatusFailed:
		c.Failed++
	}
}

// CloneSummary is the ordered collection of results of one run plus aggregate counts.
type CloneSummary struct {
	RunID        string                `json:"run_id"`
	Kind         string                `json:"kind"`
	SourceDomain string                `json:"source_domain,omitempty"`
	DestDomain   string                `json:"dest_domain"`
	Types        []EntityType          `json:"entity_types"`
	Status       RunStatus             `json:"status"`
	AbortReason  string                `json:"abort_reason,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   time.Time             `json:"finished_at"`
	Results      []CloneResult         `json:"results"`
	Counts       Counts                `json:"counts"`
	ByType       map[EntityType]Counts `json:"counts_by_type"`
}

// NewCloneSummary starts a running summary.
func NewCloneSummary(runID, kind, source, dest string, types []EntityType, now time.Time) *CloneSummary {
	return &CloneSummary{
		RunID:        runID,
		Kind:         kind,
		SourceDomain: source,
		DestDomain:   dest,
		Types:        types,
		Status:       RunRunning,
		StartedAt:    now,
		ByType:       make(map[EntityType]Counts),
	}
}

// Record appends r and updates the counters.
func (s *CloneSummary) Record(r CloneResult) {
	s.Results = append(s.Results, r)
	s.Counts.add(r.Status)
	c := s.ByType[r.Type]
	c.add(r.Status)
	s.ByType[r.Type] = c
}

// Finish marks the run done, or aborted when err is non-nil.
func (s *CloneSummary) Finish(err error, now time.Time) {
	s.FinishedAt = now
	if err != nil {
		s.Status = RunAborted
		s.AbortReason = err.Error()
		return
	}
	s.Status = RunDone
}

// Aborted reports whether the run stopped early.
func (s *CloneSummary) Aborted() bool { return s.Status == RunAborted }

// Failures returns the failed results in emission order.
func (s *CloneSummary) Failures() []CloneResult {
	var failed []CloneResult
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Duration returns how long the run took.
func (s *CloneSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
