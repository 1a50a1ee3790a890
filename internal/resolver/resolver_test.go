package resolver

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/services"
	"github.com/desertthunder/xsx/internal/shared"
	tu "github.com/desertthunder/xsx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwinResolver(t *testing.T, x *tu.XSeries) *Resolver {
	t.Helper()
	return newResolverWithToken(t, x, x.Token)
}

func newResolverWithToken(t *testing.T, x *tu.XSeries, token string) *Resolver {
	t.Helper()
	clock := tu.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c, err := services.NewClient(services.Options{
		BaseURL:     x.URL,
		Token:       token,
		Rates:       services.NewRateBook(services.Pacing{}),
		Concurrency: 4,
		Now:         clock.Now,
		Sleep:       clock.Sleep,
	})
	require.NoError(t, err)
	return New(services.NewAccount("dest", c, 50, nil), nil)
}

func TestOutlet(t *testing.T) {
	ctx := context.Background()
	x := tu.NewXSeries(t, "tok")
	x.Seed("outlets", map[string]any{"id": "o-main", "name": "Main Street"}, map[string]any{"id": "o-wh", "name": "Warehouse B"})
	r := newTwinResolver(t, x)

	id, ok, err := r.Outlet(ctx, "Main Street")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "o-main", id)

	_, ok, err = r.Outlet(ctx, "Warehouse A")
	require.NoError(t, err)
	assert.False(t, ok, "no fuzzy matching")

	_, ok, err = r.Outlet(ctx, "main street")
	require.NoError(t, err)
	assert.False(t, ok, "case sensitive")

	all, err := r.Outlets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Equal(t, 1, x.Count(http.MethodGet, "/api/2.0/outlets"), "outlet list fetched once per run")
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates once and reuses", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		r := newTwinResolver(t, x)

		first, err := r.GetOrCreate(ctx, models.VariantAttributes, "Color", nil)
		require.NoError(t, err)
		assert.True(t, first.Created)

		second, err := r.GetOrCreate(ctx, models.VariantAttributes, "Color", nil)
		require.NoError(t, err)
		assert.False(t, second.Created)
		assert.Equal(t, first.ID, second.ID)

		assert.Len(t, x.Records("variant_attributes"), 1)
		assert.Equal(t, 1, x.Count(http.MethodPost, "/api/2.0/variant_attributes"))
		assert.Equal(t, 1, x.Count(http.MethodGet, "/api/2.0/variant_attributes"))
	})

	t.Run("existing record is reused", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		x.Seed("variant_attributes", map[string]any{"id": "attr-size", "name": "Size"})
		r := newTwinResolver(t, x)

		res, err := r.GetOrCreate(ctx, models.VariantAttributes, "Size", nil)
		require.NoError(t, err)
		assert.Equal(t, Resolution{ID: "attr-size"}, res)
		assert.Zero(t, x.Count(http.MethodPost, "/api/2.0/variant_attributes"))

		res, err = r.GetOrCreate(ctx, models.VariantAttributes, "size", nil)
		require.NoError(t, err)
		assert.True(t, res.Created, "attribute names match exactly")
	})

	t.Run("brands match ignoring case", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		x.Seed("brands", map[string]any{"id": "b-1", "name": "Acme"})
		r := newTwinResolver(t, x)

		res, err := r.GetOrCreate(ctx, models.Brands, "ACME", map[string]any{"description": "d"})
		require.NoError(t, err)
		assert.Equal(t, "b-1", res.ID)
	})

	t.Run("payload is sent with the name", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		r := newTwinResolver(t, x)
		payload := map[string]any{"name": "ignored", "description": "Tools"}

		_, err := r.GetOrCreate(ctx, models.Suppliers, "Tool Co", payload)
		require.NoError(t, err)

		recs := x.Records("suppliers")
		require.Len(t, recs, 1)
		assert.Equal(t, "Tool Co", recs[0]["name"])
		assert.Equal(t, "Tools", recs[0]["description"])
		assert.Equal(t, "ignored", payload["name"], "caller payload untouched")
	})

	t.Run("concurrent callers share one create", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		r := newTwinResolver(t, x)

		var wg sync.WaitGroup
		ids := make([]string, 8)
		errs := make([]error, 8)
		for i := range 8 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := r.GetOrCreate(ctx, models.VariantAttributes, "Shade", nil)
				ids[i], errs[i] = res.ID, err
			}(i)
		}
		wg.Wait()

		for i := range 8 {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
		assert.Len(t, x.Records("variant_attributes"), 1)
	})

	t.Run("conflict re-reads and reuses the winner", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		x.Hook(func(w http.ResponseWriter, r *http.Request, _ []byte) bool {
			if r.Method != http.MethodPost || r.URL.Path != "/api/2.0/variant_attributes" {
				return false
			}
			x.Seed("variant_attributes", map[string]any{"id": "attr-winner", "name": "Size"})
			tu.WriteJSON(w, http.StatusConflict, `{"error":"name already exists"}`)
			return true
		})
		r := newTwinResolver(t, x)

		res, err := r.GetOrCreate(ctx, models.VariantAttributes, "Size", nil)
		require.NoError(t, err)
		assert.Equal(t, Resolution{ID: "attr-winner"}, res)
		assert.Equal(t, 2, x.Count(http.MethodGet, "/api/2.0/variant_attributes"))

		again, err := r.GetOrCreate(ctx, models.VariantAttributes, "Size", nil)
		require.NoError(t, err)
		assert.Equal(t, res.ID, again.ID)
		assert.Equal(t, 1, x.Count(http.MethodPost, "/api/2.0/variant_attributes"))
	})

	t.Run("conflict without a listed record is unresolved", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		x.Hook(func(w http.ResponseWriter, r *http.Request, _ []byte) bool {
			if r.Method != http.MethodPost {
				return false
			}
			tu.WriteJSON(w, http.StatusConflict, `{}`)
			return true
		})
		r := newTwinResolver(t, x)

		_, err := r.GetOrCreate(ctx, models.VariantAttributes, "Ghost", nil)
		assert.ErrorIs(t, err, shared.ErrUnresolvedDependency)
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("load failures propagate", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		r := newResolverWithToken(t, x, "revoked")

		_, err := r.GetOrCreate(ctx, models.VariantAttributes, "Color", nil)
		assert.ErrorIs(t, err, shared.ErrAuth)
		_, _, err = r.Outlet(ctx, "Main")
		assert.ErrorIs(t, err, shared.ErrAuth)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		r := New(nil, nil)
		_, err := r.GetOrCreate(ctx, models.Products, "x", nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = r.GetOrCreate(ctx, models.VariantAttributes, "  ", nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
