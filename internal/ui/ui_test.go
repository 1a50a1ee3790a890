package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/tasks"
)

func TestProgress(t *testing.T) {
	p := Plain()

	tests := []struct {
		name   string
		update tasks.ProgressUpdate
		want   string
	}{
		{"check", tasks.ProgressUpdate{Phase: tasks.CheckDestination, Message: "Checking destination account (dst)..."}, "Checking destination account (dst)..."},
		{"start of type", tasks.ProgressUpdate{Phase: tasks.CloneProducts, Message: "Cloning products..."}, "Cloning products..."},
		{"result", tasks.ProgressUpdate{Phase: tasks.CloneProducts, Message: "[1] ✓ product SKU-1", Data: models.CloneResult{Status: models.StatusCreated}}, "  [1] ✓ product SKU-1"},
		{"finished is silent", tasks.ProgressUpdate{Phase: tasks.Finished, Message: "Run done"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Progress(tt.update); got != tt.want {
				t.Errorf("Progress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeadline(t *testing.T) {
	p := Plain()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("complete", func(t *testing.T) {
		s := models.NewCloneSummary("r", "clone", "a", "b", nil, start)
		s.Record(models.CloneResult{Status: models.StatusCreated})
		s.Finish(nil, start.Add(2*time.Second))

		got := p.Headline(s)
		if !strings.HasPrefix(got, "✓ Clone complete") || !strings.Contains(got, "1 created") || !strings.Contains(got, "2s") {
			t.Errorf("unexpected headline %q", got)
		}
	})

	t.Run("with failures", func(t *testing.T) {
		s := models.NewCloneSummary("r", "seed", "", "b", nil, start)
		s.Record(models.CloneResult{Status: models.StatusFailed})
		s.Finish(nil, start)

		if got := p.Headline(s); !strings.HasPrefix(got, "! Seed finished with failures") {
			t.Errorf("unexpected headline %q", got)
		}
	})

	t.Run("aborted", func(t *testing.T) {
		s := models.NewCloneSummary("r", "clone", "a", "b", nil, start)
		s.Finish(errors.New("token rejected"), start)

		if got := p.Headline(s); !strings.Contains(got, "aborted: token rejected") {
			t.Errorf("unexpected headline %q", got)
		}
	})
}
