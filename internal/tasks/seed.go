package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/services"
	"github.com/desertthunder/xsx/internal/shared"
	"github.com/desertthunder/xsx/internal/transform"
	"golang.org/x/sync/errgroup"
)

// Creator creates one record of type t and returns its ID.
type Creator interface {
	Create(ctx context.Context, t models.EntityType, payload map[string]any, idempotencyKey string) (string, error)
}

// SeedOpts configures a seed run.
type SeedOpts struct {
	RunID       string
	DestDomain  string
	Type        models.EntityType
	Concurrency int // concurrent creates (default: 1, max: 10)
}

// Seeder creates records supplied by a producer straight in one account. Payloads are sent as
// given, without transformation or dependency resolution.
type Seeder struct {
	dest   Creator
	logger *log.Logger
	now    func() time.Time
	newKey func() string
}

// NewSeeder creates a Seeder for dest.
func NewSeeder(dest Creator, logger *log.Logger) *Seeder {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Seeder{dest: dest, logger: logger, now: time.Now, newKey: shared.GenerateID}
}

// Seed creates every payload with at most opts.Concurrency requests in flight.
//
// Results keep the order of payloads. A failed create is recorded and the others continue; a
// fatal error cancels the remaining creates and the summary is returned marked aborted.
func (s *Seeder) Seed(ctx context.Context, progress chan<- ProgressUpdate, payloads []map[string]any, opts SeedOpts) (*models.CloneSummary, error) {
	if s.dest == nil {
		return nil, fmt.Errorf("%w: destination is required", shared.ErrMissingArgument)
	}
	switch opts.Type {
	case models.Products, models.Customers:
	default:
		return nil, fmt.Errorf("%w: cannot seed %q", shared.ErrInvalidArgument, opts.Type)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Concurrency > 10 {
		opts.Concurrency = 10
	}
	if opts.RunID == "" {
		opts.RunID = shared.GenerateID()
	}

	logger := shared.WithLogger(s.logger, "run", opts.RunID)
	summary := models.NewCloneSummary(opts.RunID, "seed", "", opts.DestDomain, []models.EntityType{opts.Type}, s.now())
	results := make([]models.CloneResult, len(payloads))
	updates := make(chan models.CloneResult, len(payloads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, payload := range payloads {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := s.create(gctx, opts.Type, payload)
			results[i] = res
			updates <- res
			if err != nil {
				logger.Warn("seed create failed", "index", i, "name", res.Name, "error", err)
				if shared.IsFatal(err) {
					return err
				}
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		step := 0
		for res := range updates {
			step++
			sendProgress(progress, seedUpdate(step, len(payloads), res))
		}
	}()

	err := g.Wait()
	close(updates)
	<-done

	for _, res := range results {
		if res.Status != "" {
			summary.Record(res)
		}
	}

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		summary.Finish(err, s.now())
		logger.Error("seed aborted", "error", err, "created", summary.Counts.Created)
		sendProgress(progress, finishedUpdate(summary))
		if errors.Is(err, shared.ErrRunAborted) {
			return summary, err
		}
		return summary, fmt.Errorf("%w: %w", shared.ErrRunAborted, err)
	}

	summary.Finish(nil, s.now())
	logger.Info("seed finished", "created", summary.Counts.Created, "failed", summary.Counts.Failed)
	sendProgress(progress, finishedUpdate(summary))
	return summary, nil
}

func (s *Seeder) create(ctx context.Context, t models.EntityType, payload map[string]any) (models.CloneResult, error) {
	res := models.CloneResult{
		Type:  t,
		Name:  transform.Identifier(models.SourceEntity(payload), t),
		Stage: models.StageCreating,
	}
	id, err := s.dest.Create(ctx, t, payload, s.newKey())
	if err != nil {
		res.Status = models.StatusFailed
		res.StatusCode = services.StatusCode(err)
		res.ErrorType = services.Classify(err)
		res.Error = err.Error()
		if errors.Is(err, shared.ErrConflict) {
			res.Status = models.StatusSkipped
			res.Detail = "already exists in destination"
		}
		return res, err
	}
	res.Status, res.Stage, res.DestinationID = models.StatusCreated, models.StageDone, id
	return res, nil
}
