package models

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/xsx/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierMap(t *testing.T) {
	t.Run("maps each source id once", func(t *testing.T) {
		m := NewIdentifierMap()
		require.NoError(t, m.Put(Products, "src-1", "dst-1"))

		err := m.Put(Products, "src-1", "dst-2")
		assert.ErrorIs(t, err, shared.ErrAlreadyMapped)

		id, ok := m.Get(Products, "src-1")
		assert.True(t, ok)
		assert.Equal(t, "dst-1", id)
	})

	t.Run("rejects two sources claiming one destination", func(t *testing.T) {
		m := NewIdentifierMap()
		require.NoError(t, m.Put(Customers, "a", "x"))
		assert.ErrorIs(t, m.Put(Customers, "b", "x"), shared.ErrAlreadyMapped)
	})

	t.Run("converge allows name-matched sharing", func(t *testing.T) {
		m := NewIdentifierMap()
		require.NoError(t, m.Converge(VariantAttributes, "color-1", "dest-color"))
		require.NoError(t, m.Converge(VariantAttributes, "color-2", "dest-color"))

		src, ok := m.Source(VariantAttributes, "dest-color")
		assert.True(t, ok)
		assert.Equal(t, "color-1", src)
		assert.Equal(t, 2, m.Len(VariantAttributes))
		assert.ErrorIs(t, m.Converge(VariantAttributes, "color-1", "other"), shared.ErrAlreadyMapped)
	})

	t.Run("types are independent", func(t *testing.T) {
		m := NewIdentifierMap()
		require.NoError(t, m.Put(Products, "1", "a"))
		require.NoError(t, m.Put(Customers, "1", "a"))
		_, ok := m.Get(Brands, "1")
		assert.False(t, ok)
	})

	t.Run("empty identifiers rejected", func(t *testing.T) {
		m := NewIdentifierMap()
		assert.ErrorIs(t, m.Put(Products, "", "a"), shared.ErrInvalidInput)
		assert.ErrorIs(t, m.Put(Products, "a", ""), shared.ErrInvalidInput)
	})

	t.Run("entries is a copy", func(t *testing.T) {
		m := NewIdentifierMap()
		require.NoError(t, m.Put(Products, "1", "a"))
		entries := m.Entries(Products)
		entries["2"] = "b"
		assert.Equal(t, 1, m.Len(Products))
	})
}

func TestCloneSummary(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("counts by status and type", func(t *testing.T) {
		s := NewCloneSummary("run", "clone", "src", "dst", []EntityType{Products}, start)
		s.Record(CloneResult{Type: Products, SourceID: "1", Status: StatusCreated})
		s.Record(CloneResult{Type: Products, SourceID: "2", Status: StatusFailed})
		s.Record(CloneResult{Type: Inventory, SourceID: "1", Status: StatusSkipped})
		s.Finish(nil, start.Add(time.Minute))

		assert.Equal(t, Counts{Created: 1, Skipped: 1, Failed: 1}, s.Counts)
		assert.Equal(t, Counts{Created: 1, Failed: 1}, s.ByType[Products])
		assert.Equal(t, RunDone, s.Status)
		assert.False(t, s.Aborted())
		assert.Len(t, s.Failures(), 1)
		assert.Equal(t, time.Minute, s.Duration())
	})

	t.Run("finish with error aborts", func(t *testing.T) {
		s := NewCloneSummary("run", "clone", "src", "dst", nil, start)
		s.Finish(errors.New("401"), start)
		assert.True(t, s.Aborted())
		assert.Equal(t, "401", s.AbortReason)
	})
}

func TestParseEntityTypes(t *testing.T) {
	t.Run("orders and dedupes", func(t *testing.T) {
		types, err := ParseEntityTypes("customers, products,customers,attributes")
		require.NoError(t, err)
		assert.Equal(t, []EntityType{VariantAttributes, Products, Customers}, types)
	})

	t.Run("rejects unknown", func(t *testing.T) {
		_, err := ParseEntityTypes("products,sales")
		assert.Error(t, err)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseEntityTypes(" , ")
		assert.Error(t, err)
	})
}

func TestCloneRun(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		assert.NoError(t, NewCloneRun("clone", "a", "b", nil).Validate())
		assert.NoError(t, NewCloneRun("seed", "", "b", nil).Validate())
		assert.Error(t, NewCloneRun("clone", "", "b", nil).Validate())
		assert.Error(t, NewCloneRun("clone", "a", "", nil).Validate())
		assert.Error(t, NewCloneRun("sync", "a", "b", nil).Validate())

		run := NewCloneRun("clone", "a", "b", nil)
		run.SetStatus("paused")
		assert.Error(t, run.Validate())
	})

	t.Run("from summary", func(t *testing.T) {
		start := time.Now()
		s := NewCloneSummary("run-1", "clone", "a", "b", []EntityType{Products, Customers}, start)
		s.Record(CloneResult{Type: Products, Status: StatusCreated})
		s.Finish(errors.New("token rejected"), start.Add(time.Second))

		run := CloneRunFromSummary(s)
		assert.Equal(t, "run-1", run.ID())
		assert.Equal(t, RunAborted, run.Status())
		assert.Equal(t, "token rejected", run.ErrorMessage())
		assert.Equal(t, 1, run.Counts().Created)
		assert.Equal(t, "products,customers", run.EntityTypesString())
		assert.Equal(t, run.EntityTypes(), SplitEntityTypes(run.EntityTypesString()))
		require.NotNil(t, run.FinishedAt())
	})
}
