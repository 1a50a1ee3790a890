package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/tasks"
)

// Progress renders one progress update, colored by the outcome it carries.
func (p *Palette) Progress(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.CheckDestination:
		return p.Help(u.Message)
	case tasks.Finished:
		return ""
	}

	res, ok := u.Data.(models.CloneResult)
	if !ok {
		return p.Title(u.Message)
	}
	msg := "  " + u.Message
	switch res.Status {
	case models.StatusCreated:
		return p.OK(msg)
	case models.StatusSkipped:
		return p.Warn(msg)
	default:
		return p.Err(msg)
	}
}

// Headline renders the one-line outcome of a run.
func (p *Palette) Headline(s *models.CloneSummary) string {
	counts := fmt.Sprintf("%d created, %d skipped, %d failed in %s",
		s.Counts.Created, s.Counts.Skipped, s.Counts.Failed, s.Duration().Round(time.Millisecond))

	switch {
	case s.Aborted():
		return p.Err(fmt.Sprintf("✗ %s aborted: %s", label(s.Kind), s.AbortReason)) + "\n" + p.Help(counts)
	case s.Counts.Failed > 0:
		return p.Warn(fmt.Sprintf("! %s finished with failures: %s", label(s.Kind), counts))
	default:
		return p.OK(fmt.Sprintf("✓ %s complete: %s", label(s.Kind), counts))
	}
}

func label(kind string) string {
	if kind == "" {
		return "Run"
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}
