package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/xsx/internal/models"
	th "github.com/desertthunder/xsx/internal/testing"
)

func testSummary() *models.CloneSummary {
	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	s := models.NewCloneSummary("run-1234567890", "clone", "src-shop", "dst-shop", []models.EntityType{models.Products, models.Customers}, start)
	s.Record(models.CloneResult{Type: models.Products, SourceID: "p1", DestinationID: "d1", Name: "SKU-1", Status: models.StatusCreated, Stage: models.StageDone})
	s.Record(models.CloneResult{Type: models.Inventory, SourceID: "p1", Name: "Warehouse A", Status: models.StatusSkipped, Stage: models.StageResolving, Detail: `no destination outlet named "Warehouse A"`})
	s.Record(models.CloneResult{Type: models.Products, SourceID: "p2", Name: "SKU-2", Status: models.StatusFailed, Stage: models.StageCreating, StatusCode: 400, ErrorType: "validation", Error: "POST /api/2.0/products: validation failed (status 400): name: too long"})
	s.Finish(nil, start.Add(time.Minute))
	return s
}

func TestExporters(t *testing.T) {
	t.Run("ExportResultsJSON", func(t *testing.T) {
		data, err := ExportResultsJSON(testSummary())
		if err != nil {
			t.Fatalf("ExportResultsJSON failed: %v", err)
		}

		var doc ResultsFile
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if doc.Metadata.SourceDomain != "src-shop" || doc.Metadata.DestDomain != "dst-shop" {
			t.Errorf("unexpected domains: %+v", doc.Metadata)
		}
		if doc.Metadata.Status != models.RunDone {
			t.Errorf("expected status done, got %s", doc.Metadata.Status)
		}
		if doc.Metadata.Counts != (models.Counts{Created: 1, Skipped: 1, Failed: 1}) {
			t.Errorf("unexpected counts: %+v", doc.Metadata.Counts)
		}
		if len(doc.Results) != 3 || doc.Results[2].StatusCode != 400 {
			t.Errorf("results not preserved: %+v", doc.Results)
		}

		for _, key := range []string{`"cloned_at"`, `"entity_type"`, `"new_id"`, `"error_message"`} {
			if !strings.Contains(string(data), key) {
				t.Errorf("JSON missing key %s", key)
			}
		}
	})

	t.Run("ExportResultsJSON with no results", func(t *testing.T) {
		s := models.NewCloneSummary("r", "seed", "", "dst", nil, time.Now())
		data, err := ExportResultsJSON(s)
		if err != nil {
			t.Fatalf("ExportResultsJSON failed: %v", err)
		}
		if !strings.Contains(string(data), `"results": []`) {
			t.Errorf("expected empty results array, got %s", data)
		}
	})

	t.Run("ExportResultsCSV", func(t *testing.T) {
		data, err := ExportResultsCSV(testSummary())
		if err != nil {
			t.Fatalf("ExportResultsCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 4 {
			t.Fatalf("expected header and 3 rows, got %d", len(records))
		}
		if records[0][0] != "Type" || records[0][6] != "Status Code" {
			t.Errorf("unexpected headers: %v", records[0])
		}
		if records[1][6] != "" {
			t.Errorf("status code should be blank for successes, got %q", records[1][6])
		}
		if records[3][6] != "400" || records[3][7] != "validation" {
			t.Errorf("unexpected failure row: %v", records[3])
		}
		if records[2][9] != `no destination outlet named "Warehouse A"` {
			t.Errorf("detail not preserved: %q", records[2][9])
		}
	})
}

func TestWriteResults(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		dir := t.TempDir()
		path, err := WriteResults(testSummary(), dir, "json")
		if err != nil {
			t.Fatalf("WriteResults failed: %v", err)
		}

		want := filepath.Join(dir, "clone-results-20260301-093000.json")
		if path != want {
			t.Errorf("expected %s, got %s", want, path)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("csv into a new directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out", "runs")
		path, err := WriteResults(testSummary(), dir, "csv")
		if err != nil {
			t.Fatalf("WriteResults failed: %v", err)
		}
		th.AssertDirExists(t, dir)
		if !strings.HasSuffix(path, ".csv") {
			t.Errorf("expected a csv file, got %s", path)
		}
		if !strings.HasPrefix(string(th.MustReadFile(t, path)), "Type,Identifier") {
			t.Error("CSV header missing")
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		if _, err := WriteResults(testSummary(), t.TempDir(), "xml"); err == nil {
			t.Error("expected error for unsupported format")
		}
	})

	t.Run("nil summary", func(t *testing.T) {
		if _, err := WriteResults(nil, t.TempDir(), "json"); err == nil {
			t.Error("expected error for nil summary")
		}
	})
}

func TestTables(t *testing.T) {
	t.Run("SummaryTable", func(t *testing.T) {
		out := SummaryTable(testSummary())
		for _, want := range []string{"TYPE", "PRODUCTS", "CUSTOMERS", "INVENTORY", "TOTAL"} {
			if !strings.Contains(strings.ToUpper(out), want) {
				t.Errorf("summary table missing %q:\n%s", want, out)
			}
		}
		if strings.Index(out, "customers") > strings.Index(out, "inventory") {
			t.Error("requested types should come before derived ones")
		}
	})

	t.Run("FailuresTable", func(t *testing.T) {
		out := FailuresTable(testSummary())
		if !strings.Contains(out, "SKU-2") || !strings.Contains(out, "400") {
			t.Errorf("failures table missing the failed product:\n%s", out)
		}
		if strings.Contains(out, "SKU-1") {
			t.Error("failures table should not list successes")
		}

		clean := models.NewCloneSummary("r", "clone", "a", "b", nil, time.Now())
		if FailuresTable(clean) != "" {
			t.Error("expected empty output without failures")
		}
	})

	t.Run("ResultsTable", func(t *testing.T) {
		out := ResultsTable(testSummary().Results)
		for _, want := range []string{"SKU-1", "d1", "Warehouse A", "skipped", "failed"} {
			if !strings.Contains(out, want) {
				t.Errorf("results table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("RunsTable", func(t *testing.T) {
		s := testSummary()
		run := models.CloneRunFromSummary(s)
		run.SetSequence(7)
		aborted := testSummary()
		aborted.RunID = "run-aborted"
		aborted.Finish(errors.New("token rejected"), aborted.StartedAt)

		out := RunsTable([]*models.CloneRun{run, models.CloneRunFromSummary(aborted)})
		for _, want := range []string{"run-1234", "dst-shop", "done", "aborted", "7"} {
			if !strings.Contains(out, want) {
				t.Errorf("runs table missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "run-1234567890") {
			t.Error("run ids should be shortened")
		}
	})

	t.Run("OutletsTable", func(t *testing.T) {
		out := OutletsTable([]models.SourceEntity{{"id": "o1", "name": "Main Street"}})
		if !strings.Contains(out, "Main Street") || !strings.Contains(out, "o1") {
			t.Errorf("outlets table incomplete:\n%s", out)
		}
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is too long", 10, "this is..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
