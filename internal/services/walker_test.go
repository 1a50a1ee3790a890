package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/shared"
	tu "github.com/desertthunder/xsx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProducts(x *tu.XSeries, n int) {
	for i := 1; i <= n; i++ {
		x.Seed("products", map[string]any{"id": fmt.Sprintf("p-%d", i), "name": fmt.Sprintf("Product %d", i)})
	}
}

func newTwinWalker(t *testing.T, x *tu.XSeries, pageSize int) *Walker {
	t.Helper()
	c := newTestClient(t, x.URL, tu.NewFakeClock(epoch), func(o *Options) { o.Token = x.Token })
	return NewWalker(c, pageSize, nil)
}

func TestWalkerFetchAll(t *testing.T) {
	ctx := context.Background()

	t.Run("stops on a short page", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		seedProducts(x, 5)
		w := newTwinWalker(t, x, 2)

		all, err := Collect(w.FetchAll(ctx, models.Products))
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i, p := range all {
			assert.Equal(t, fmt.Sprintf("p-%d", i+1), p.ID())
		}
		assert.Equal(t, 3, x.Count(http.MethodGet, "/api/2.0/products"))

		reqs := x.Requests()
		assert.Equal(t, "page_size=2", reqs[0].Query)
		assert.Equal(t, "after=2&page_size=2", reqs[1].Query)
		assert.Equal(t, "after=4&page_size=2", reqs[2].Query)
	})

	t.Run("stops on an empty page after an exact fit", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		seedProducts(x, 4)
		w := newTwinWalker(t, x, 2)

		all, err := Collect(w.FetchAll(ctx, models.Products))
		require.NoError(t, err)
		assert.Len(t, all, 4)
		assert.Equal(t, 3, x.Count(http.MethodGet, "/api/2.0/products"))
	})

	t.Run("empty collection", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		w := newTwinWalker(t, x, 50)

		all, err := Collect(w.FetchAll(ctx, models.Customers))
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.Equal(t, 1, x.Count(http.MethodGet, "/api/2.0/customers"))
	})

	t.Run("breaking early fetches no further pages", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		seedProducts(x, 10)
		w := newTwinWalker(t, x, 3)

		got := 0
		for _, err := range w.FetchAll(ctx, models.Products) {
			require.NoError(t, err)
			got++
			if got == 2 {
				break
			}
		}
		assert.Equal(t, 2, got)
		assert.Equal(t, 1, x.Count(http.MethodGet, "/api/2.0/products"))
	})

	t.Run("restarts from the first page", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		seedProducts(x, 3)
		w := newTwinWalker(t, x, 2)
		seq := w.FetchAll(ctx, models.Products)

		first, err := Collect(seq)
		require.NoError(t, err)
		second, err := Collect(seq)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("failure mid walk yields the partial set then the error", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		seedProducts(x, 6)
		x.Hook(func(w http.ResponseWriter, r *http.Request, _ []byte) bool {
			if r.URL.Query().Get("after") == "2" {
				tu.WriteJSON(w, http.StatusBadRequest, `{"error":"bad cursor"}`)
				return true
			}
			return false
		})
		w := newTwinWalker(t, x, 2)

		partial, err := Collect(w.FetchAll(ctx, models.Products))
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Contains(t, err.Error(), "page 2")
		assert.Len(t, partial, 2)
	})

	t.Run("auth failure surfaces on the first page", func(t *testing.T) {
		x := tu.NewXSeries(t, "tok")
		c := newTestClient(t, x.URL, tu.NewFakeClock(epoch), func(o *Options) { o.Token = "wrong" })

		_, err := Collect(NewWalker(c, 10, nil).FetchAll(ctx, models.Products))
		assert.ErrorIs(t, err, shared.ErrAuth)
	})
}
