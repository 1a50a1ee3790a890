package main

import (
	"context"
	"time"

	"github.com/desertthunder/xsx/internal/formatter"
	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/repositories"
	"github.com/urfave/cli/v3"
)

// runView is the JSON shape of a recorded run.
type runView struct {
	ID           string               `json:"id"`
	Sequence     int                  `json:"sequence"`
	Kind         string               `json:"kind"`
	SourceDomain string               `json:"source_domain,omitempty"`
	DestDomain   string               `json:"dest_domain"`
	EntityTypes  []models.EntityType  `json:"entity_types"`
	Status       models.RunStatus     `json:"status"`
	Counts       models.Counts        `json:"counts"`
	Error        string               `json:"error,omitempty"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
	Results      []models.CloneResult `json:"results,omitempty"`
}

func newRunView(run *models.CloneRun) runView {
	return runView{
		ID:           run.ID(),
		Sequence:     run.Sequence(),
		Kind:         run.Kind(),
		SourceDomain: run.SourceDomain(),
		DestDomain:   run.DestDomain(),
		EntityTypes:  run.EntityTypes(),
		Status:       run.Status(),
		Counts:       run.Counts(),
		Error:        run.ErrorMessage(),
		StartedAt:    run.StartedAt(),
		FinishedAt:   run.FinishedAt(),
	}
}

// HistoryList prints recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewCloneRunRepository(db).List(map[string]any{
		"status": cmd.String("status"),
		"limit":  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		r.writePlain("No runs recorded\n")
		return nil
	}
	r.writePlain("%s\n", formatter.RunsTable(runs))
	return nil
}

// HistoryShow prints one run and its results. The id may be a unique prefix.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repositories.NewCloneRunRepository(db).Find(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	var status models.Status
	if cmd.Bool("failed") {
		status = models.StatusFailed
	}
	results, err := repositories.NewCloneResultRepository(db).ListByRun(run.ID(), status)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		view := newRunView(run)
		view.Results = results
		return r.writeJSON(view, true)
	}

	r.writePlain("%s\n", formatter.RunsTable([]*models.CloneRun{run}))
	if msg := run.ErrorMessage(); msg != "" {
		r.writeLine(r.palette.Err("Aborted: " + msg))
	}
	if len(results) == 0 {
		r.writePlain("No results\n")
		return nil
	}
	r.writePlain("\n%s\n", formatter.ResultsTable(results))
	r.logger.Debug("run shown", "id", run.ID(), "results", len(results))
	return nil
}

// HistoryDelete soft-deletes one run. Its results stay in the database.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewCloneRunRepository(db)
	run, err := repo.Find(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	if err := repo.Delete(run.ID()); err != nil {
		return err
	}

	r.logger.Info("run deleted", "id", run.ID(), "sequence", run.Sequence())
	r.writePlain("✓ Deleted run #%d (%s)\n", run.Sequence(), run.ID())
	return nil
}
