package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func finishedSummary(id string, err error) *models.CloneSummary {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := models.NewCloneSummary(id, "clone", "src-shop", "dst-shop", []models.EntityType{models.Products, models.Customers}, start)
	s.Record(models.CloneResult{Type: models.Products, SourceID: "p1", DestinationID: "d1", Name: "SKU-1", Status: models.StatusCreated, Stage: models.StageDone})
	s.Record(models.CloneResult{Type: models.Products, SourceID: "p2", Name: "SKU-2", Status: models.StatusFailed, Stage: models.StageCreating, StatusCode: 400, ErrorType: "validation", Error: "bad price"})
	s.Record(models.CloneResult{Type: models.Inventory, SourceID: "p1", Name: "Warehouse A", Status: models.StatusSkipped, Stage: models.StageResolving, Detail: "no destination outlet"})
	s.Finish(err, start.Add(90*time.Second))
	return s
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "clone_runs")
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for table without a sequence")
	}
}

func TestCloneRunRepository(t *testing.T) {
	t.Run("Create keeps the summary run id", func(t *testing.T) {
		repo := NewCloneRunRepository(setupTestDB(t))
		run := models.CloneRunFromSummary(finishedSummary("run-1", nil))

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() != "run-1" {
			t.Errorf("expected ID run-1, got %s", run.ID())
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Create generates an id", func(t *testing.T) {
		repo := NewCloneRunRepository(setupTestDB(t))
		run := models.NewCloneRun("seed", "", "dst-shop", []models.EntityType{models.Customers})

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
	})

	t.Run("Create rejects invalid runs", func(t *testing.T) {
		repo := NewCloneRunRepository(setupTestDB(t))
		if err := repo.Create(models.NewCloneRun("clone", "", "dst-shop", nil)); err == nil {
			t.Fatal("expected validation error for clone run without a source")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewCloneRunRepository(setupTestDB(t))
		run := models.CloneRunFromSummary(finishedSummary("run-1", errors.New("token rejected")))
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get("run-1")
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunAborted {
			t.Errorf("expected status aborted, got %s", got.Status())
		}
		if got.ErrorMessage() != "token rejected" {
			t.Errorf("expected error message, got %q", got.ErrorMessage())
		}
		if got.Counts() != (models.Counts{Created: 1, Skipped: 1, Failed: 1}) {
			t.Errorf("unexpected counts %+v", got.Counts())
		}
		if len(got.EntityTypes()) != 2 || got.EntityTypes()[1] != models.Customers {
			t.Errorf("unexpected entity types %v", got.EntityTypes())
		}
		if got.FinishedAt() == nil || got.FinishedAt().Sub(*got.StartedAt()) != 90*time.Second {
			t.Errorf("timestamps not preserved: %v %v", got.StartedAt(), got.FinishedAt())
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		repo := NewCloneRunRepository(setupTestDB(t))
		_, err := repo.Get("nope")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Find by prefix", func(t *testing.T) {
		repo := NewCloneRunRepository(setupTestDB(t))
		for _, id := range []string{"abc123-one", "abc456-two"} {
			if err := repo.Create(models.CloneRunFromSummary(finishedSummary(id, nil))); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}

		run, err := repo.Find("abc123")
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if run.ID() != "abc123-one" {
			t.Errorf("expected abc123-one, got %s", run.ID())
		}

		if run, err := repo.Find("abc456-two"); err != nil || run.ID() != "abc456-two" {
			t.Errorf("full id lookup failed: %v", err)
		}
		if _, err := repo.Find("abc"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ambiguous prefix error, got %v", err)
		}
		if _, err := repo.Find("zzz"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.Find(""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewCloneRunRepository(setupTestDB(t))
		run := models.NewCloneRun("clone", "src-shop", "dst-shop", nil)
		run.SetID("run-1")
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.Apply(finishedSummary("run-1", nil))
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get("run-1")
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunDone || got.Counts().Created != 1 {
			t.Errorf("update not stored: %s %+v", got.Status(), got.Counts())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewCloneRunRepository(setupTestDB(t))
		run := models.CloneRunFromSummary(finishedSummary("run-1", nil))
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete("run-1"); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if _, err := repo.Get("run-1"); err == nil {
			t.Error("deleted run should not be returned")
		}
		if err := repo.Delete("run-1"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewCloneRunRepository(setupTestDB(t))
		for _, s := range []*models.CloneSummary{
			finishedSummary("a", nil),
			finishedSummary("b", errors.New("401")),
			finishedSummary("c", nil),
		} {
			if err := repo.Create(models.CloneRunFromSummary(s)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 || all[0].ID() != "c" {
			t.Errorf("expected newest first, got %d runs", len(all))
		}

		aborted, err := repo.List(map[string]any{"status": string(models.RunAborted)})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(aborted) != 1 || aborted[0].ID() != "b" {
			t.Errorf("expected only run b, got %d runs", len(aborted))
		}

		limited, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 runs, got %d", len(limited))
		}
	})
}

func TestCloneResultRepository(t *testing.T) {
	setup := func(t *testing.T) (*CloneResultRepository, *models.CloneSummary) {
		db := setupTestDB(t)
		s := finishedSummary("run-1", nil)
		if err := NewCloneRunRepository(db).Create(models.CloneRunFromSummary(s)); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		return NewCloneResultRepository(db), s
	}

	t.Run("SaveAll and ListByRun keep order", func(t *testing.T) {
		repo, s := setup(t)
		if err := repo.SaveAll("run-1", s.Results); err != nil {
			t.Fatalf("failed to save results: %v", err)
		}

		got, err := repo.ListByRun("run-1", "")
		if err != nil {
			t.Fatalf("failed to list results: %v", err)
		}
		if len(got) != len(s.Results) {
			t.Fatalf("expected %d results, got %d", len(s.Results), len(got))
		}
		for i := range got {
			if got[i] != s.Results[i] {
				t.Errorf("result %d: expected %+v, got %+v", i, s.Results[i], got[i])
			}
		}
	})

	t.Run("filter by status", func(t *testing.T) {
		repo, s := setup(t)
		if err := repo.SaveAll("run-1", s.Results); err != nil {
			t.Fatalf("failed to save results: %v", err)
		}

		failed, err := repo.ListByRun("run-1", models.StatusFailed)
		if err != nil {
			t.Fatalf("failed to list results: %v", err)
		}
		if len(failed) != 1 || failed[0].StatusCode != 400 {
			t.Errorf("expected the one failed result, got %+v", failed)
		}
	})

	t.Run("appends continue positions", func(t *testing.T) {
		repo, s := setup(t)
		if err := repo.SaveAll("run-1", s.Results[:1]); err != nil {
			t.Fatalf("failed to save results: %v", err)
		}
		if err := repo.SaveAll("run-1", s.Results[1:]); err != nil {
			t.Fatalf("failed to save results: %v", err)
		}

		n, err := repo.CountByRun("run-1")
		if err != nil {
			t.Fatalf("failed to count results: %v", err)
		}
		if n != 3 {
			t.Errorf("expected 3 results, got %d", n)
		}
	})

	t.Run("unknown run is rejected", func(t *testing.T) {
		repo, s := setup(t)
		if err := repo.SaveAll("nope", s.Results); err == nil {
			t.Error("expected foreign key error for unknown run")
		}
		if err := repo.SaveAll("", s.Results); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
