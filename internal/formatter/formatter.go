// package formatter renders run results as files (JSON, CSV) and terminal tables
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
)

// ResultsMetadata heads a results file.
type ResultsMetadata struct {
	RunID        string           `json:"run_id"`
	Kind         string           `json:"kind"`
	ClonedAt     time.Time        `json:"cloned_at"`
	SourceDomain string           `json:"source_domain,omitempty"`
	DestDomain   string           `json:"dest_domain"`
	Status       models.RunStatus `json:"status"`
	AbortReason  string           `json:"abort_reason,omitempty"`
	Counts       models.Counts    `json:"counts"`
}

// ResultsFile is the JSON document written after a run.
type ResultsFile struct {
	Metadata ResultsMetadata      `json:"metadata"`
	Results  []models.CloneResult `json:"results"`
}

func newResultsFile(s *models.CloneSummary) ResultsFile {
	results := s.Results
	if results == nil {
		results = []models.CloneResult{}
	}
	return ResultsFile{
		Metadata: ResultsMetadata{
			RunID:        s.RunID,
			Kind:         s.Kind,
			ClonedAt:     s.StartedAt,
			SourceDomain: s.SourceDomain,
			DestDomain:   s.DestDomain,
			Status:       s.Status,
			AbortReason:  s.AbortReason,
			Counts:       s.Counts,
		},
		Results: results,
	}
}

// ExportResultsJSON renders s as an indented [ResultsFile].
func ExportResultsJSON(s *models.CloneSummary) ([]byte, error) {
	return shared.MarshalJSON(newResultsFile(s), true)
}

// ExportResultsCSV renders the results of s, one row per result in emission order, with columns:
// Type, Identifier, Source ID, New ID, Status, Stage, Status Code, Error Type, Error, Detail
func ExportResultsCSV(s *models.CloneSummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Type", "Identifier", "Source ID", "New ID", "Status", "Stage", "Status Code", "Error Type", "Error", "Detail"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range s.Results {
		code := ""
		if r.StatusCode != 0 {
			code = strconv.Itoa(r.StatusCode)
		}
		record := []string{
			string(r.Type),
			r.Name,
			r.SourceID,
			r.DestinationID,
			string(r.Status),
			string(r.Stage),
			code,
			r.ErrorType,
			r.Error,
			r.Detail,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ResultsFilename returns {kind}-results-{timestamp}.{ext} for s.
func ResultsFilename(s *models.CloneSummary, ext string) string {
	kind := s.Kind
	if kind == "" {
		kind = "clone"
	}
	return fmt.Sprintf("%s-results-%s.%s", kind, s.StartedAt.UTC().Format("20060102-150405"), ext)
}

// WriteResults writes the results of s into dir as JSON (default) or CSV and returns the path.
func WriteResults(s *models.CloneSummary, dir, format string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("%w: no summary to write", shared.ErrMissingArgument)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var (
		data []byte
		err  error
		ext  string
	)
	switch format {
	case "csv":
		data, err = ExportResultsCSV(s)
		ext = "csv"
	case "", "json":
		data, err = ExportResultsJSON(s)
		ext = "json"
	default:
		return "", fmt.Errorf("%w: unsupported results format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, ResultsFilename(s, ext))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write results file: %w", err)
	}
	return path, nil
}

// SummaryTable renders the counts of s per entity type with a totals footer.
func SummaryTable(s *models.CloneSummary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Type", "Created", "Skipped", "Failed"})

	for _, et := range summaryTypes(s) {
		c := s.ByType[et]
		t.AppendRow(table.Row{string(et), c.Created, c.Skipped, c.Failed})
	}
	t.AppendFooter(table.Row{"Total", s.Counts.Created, s.Counts.Skipped, s.Counts.Failed})
	return t.Render()
}

// summaryTypes lists the requested types first, then any other type that has results.
func summaryTypes(s *models.CloneSummary) []models.EntityType {
	seen := make(map[models.EntityType]bool)
	var out []models.EntityType
	add := func(t models.EntityType) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range s.Types {
		add(t)
	}
	for _, r := range s.Results {
		add(r.Type)
	}
	return out
}

// FailuresTable renders the failed results of s, or an empty string when there are none.
func FailuresTable(s *models.CloneSummary) string {
	failures := s.Failures()
	if len(failures) == 0 {
		return ""
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Type", "Identifier", "Stage", "Code", "Error"})
	for _, r := range failures {
		code := ""
		if r.StatusCode != 0 {
			code = strconv.Itoa(r.StatusCode)
		}
		t.AppendRow(table.Row{string(r.Type), r.Name, string(r.Stage), code, truncate(r.Error, 80)})
	}
	return t.Render()
}

// ResultsTable renders every result with its outcome and the source and destination ids.
func ResultsTable(results []models.CloneResult) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Type", "Identifier", "Status", "Source ID", "New ID", "Note"})
	for _, r := range results {
		note := r.Detail
		if r.Error != "" {
			note = r.Error
		}
		t.AppendRow(table.Row{string(r.Type), r.Name, string(r.Status), r.SourceID, r.DestinationID, truncate(note, 100)})
	}
	return t.Render()
}

// RunsTable renders run history rows, newest first as given.
func RunsTable(runs []*models.CloneRun) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "ID", "Kind", "Source", "Destination", "Status", "Created", "Skipped", "Failed", "Started"})

	for _, r := range runs {
		started := ""
		if r.StartedAt() != nil {
			started = r.StartedAt().Local().Format("2006-01-02 15:04")
		}
		c := r.Counts()
		t.AppendRow(table.Row{r.Sequence(), shortID(r.ID()), r.Kind(), r.SourceDomain(), r.DestDomain(), string(r.Status()), c.Created, c.Skipped, c.Failed, started})
	}
	return t.Render()
}

// OutletsTable renders outlet ids and names.
func OutletsTable(outlets []models.SourceEntity) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Outlet", "ID"})
	for _, o := range outlets {
		t.AppendRow(table.Row{o.Name(), o.ID()})
	}
	return t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
