package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/desertthunder/xsx/internal/formatter"
	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/repositories"
	"github.com/desertthunder/xsx/internal/shared"
	"github.com/desertthunder/xsx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// checkResult is the JSON shape of the check command.
type checkResult struct {
	Domain   string                `json:"domain"`
	Retailer models.Retailer       `json:"retailer"`
	Outlets  []models.SourceEntity `json:"outlets"`
}

// Check reads the retailer and outlets of one account to confirm the token works.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	side := cmd.String("account")
	acct, err := r.account(side)
	if err != nil {
		return err
	}

	r.logger.Info("checking account", "account", side, "domain", acct.Domain)

	retailer, err := acct.Retailer(ctx)
	if err != nil {
		return fmt.Errorf("failed to read retailer: %w", err)
	}
	outlets, err := acct.Outlets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list outlets: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(checkResult{Domain: acct.Domain, Retailer: retailer, Outlets: outlets}, true)
	}

	tax := "inclusive"
	if retailer.TaxExclusive {
		tax = "exclusive"
	}
	r.writeLine(r.palette.OK(fmt.Sprintf("✓ %s (%s)", retailer.Name, acct.Domain)))
	r.writePlain("Tax: %s\n", tax)
	if retailer.Currency != "" {
		r.writePlain("Currency: %s\n", retailer.Currency)
	}
	r.writePlain("\n%s\n", formatter.OutletsTable(outlets))
	return nil
}

// Clone copies the selected entity types from the source account to the destination.
func (r *Runner) Clone(ctx context.Context, cmd *cli.Command) error {
	types, err := models.ParseEntityTypes(cmd.String("types"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}

	src, err := r.account("source")
	if err != nil {
		return err
	}
	dst, err := r.account("destination")
	if err != nil {
		return err
	}

	opts := tasks.CloneOptions{
		RunID:                       shared.GenerateID(),
		SourceDomain:                src.Domain,
		DestDomain:                  dst.Domain,
		Types:                       types,
		IncludeInventory:            r.config.Clone.IncludeInventory && !cmd.Bool("no-inventory"),
		AbortAfterTransportFailures: r.config.Clone.AbortAfterTransportFailures,
	}

	r.logger.Info("starting clone", "source", src.Domain, "dest", dst.Domain, "types", types)
	if !cmd.Bool("json") {
		r.writePlain("Cloning %s → %s\n\n", src.Domain, dst.Domain)
	}

	engine := tasks.NewCloneEngine(src, dst, r.logger)
	summary, err := r.withProgress(!cmd.Bool("json"), func(progress chan<- tasks.ProgressUpdate) (*models.CloneSummary, error) {
		return engine.Clone(ctx, progress, opts)
	})
	if summary == nil {
		return err
	}
	return r.report(cmd, summary, err)
}

// Seed creates the payloads of a JSON file in the destination account.
func (r *Runner) Seed(ctx context.Context, cmd *cli.Command) error {
	t := models.EntityType(cmd.String("type"))
	payloads, err := readPayloads(cmd.String("file"))
	if err != nil {
		return err
	}

	dst, err := r.account("destination")
	if err != nil {
		return err
	}

	opts := tasks.SeedOpts{
		RunID:       shared.GenerateID(),
		DestDomain:  dst.Domain,
		Type:        t,
		Concurrency: int(cmd.Int("concurrency")),
	}

	r.logger.Info("starting seed", "dest", dst.Domain, "type", t, "count", len(payloads))
	if !cmd.Bool("json") {
		r.writePlain("Seeding %d %s into %s\n\n", len(payloads), t, dst.Domain)
	}

	seeder := tasks.NewSeeder(dst, r.logger)
	summary, err := r.withProgress(!cmd.Bool("json"), func(progress chan<- tasks.ProgressUpdate) (*models.CloneSummary, error) {
		return seeder.Seed(ctx, progress, payloads, opts)
	})
	if summary == nil {
		return err
	}
	return r.report(cmd, summary, err)
}

// withProgress runs fn with a progress channel drained by a printer goroutine, and waits for
// the printer before returning so later output is not interleaved.
func (r *Runner) withProgress(show bool, fn func(chan<- tasks.ProgressUpdate) (*models.CloneSummary, error)) (*models.CloneSummary, error) {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if show {
				r.writeLine(r.palette.Progress(update))
			}
		}
	}()

	summary, err := fn(progressCh)
	close(progressCh)
	<-done
	return summary, err
}

// report writes the results file, records the run and prints the outcome. runErr is returned
// unchanged so an aborted run exits non-zero.
func (r *Runner) report(cmd *cli.Command, s *models.CloneSummary, runErr error) error {
	dir := cmd.String("output")
	if dir == "" {
		dir = r.config.Clone.OutputDir
	}
	path, err := formatter.WriteResults(s, dir, cmd.String("format"))
	if err != nil {
		r.logger.Error("failed to write results file", "error", err)
	}

	if !cmd.Bool("no-history") {
		if err := r.record(s); err != nil {
			r.logger.Warn("failed to record run history", "run", s.RunID, "error", err)
		}
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(s, true); err != nil {
			return err
		}
		return runErr
	}

	r.writePlain("\n%s\n", formatter.SummaryTable(s))
	if failures := formatter.FailuresTable(s); failures != "" {
		r.writePlain("\nFailures:\n%s\n", failures)
	}
	r.writePlain("\n")
	r.writeLine(r.palette.Headline(s))
	if path != "" {
		r.writeLine(r.palette.Help("Results: " + path))
	}
	return runErr
}

// record persists the run and its results to the history database.
func (r *Runner) record(s *models.CloneSummary) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewCloneRunRepository(db).Create(models.CloneRunFromSummary(s)); err != nil {
		return err
	}
	return repositories.NewCloneResultRepository(db).SaveAll(s.RunID, s.Results)
}

// readPayloads reads a JSON array of objects, or an object wrapping one under "data".
func readPayloads(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}

	var payloads []map[string]any
	if err := json.Unmarshal(data, &payloads); err == nil {
		return payloads, nil
	}

	var wrapped struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON array of objects: %w", shared.ErrInvalidInput, path, err)
	}
	if wrapped.Data == nil {
		return nil, fmt.Errorf("%w: %s has no \"data\" array", shared.ErrInvalidInput, path)
	}
	return wrapped.Data, nil
}
