package services

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/shared"
)

// DefaultPageSize is the page size requested when none is configured.
const DefaultPageSize = 200

type pageBody struct {
	Data    []models.SourceEntity `json:"data"`
	Version struct {
		Min int64 `json:"min"`
		Max int64 `json:"max"`
	} `json:"version"`
}

// Walker fetches whole collections one page at a time.
type Walker struct {
	exec     Executor
	pageSize int
	logger   *log.Logger
}

// NewWalker creates a Walker over exec.
func NewWalker(exec Executor, pageSize int, logger *log.Logger) *Walker {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Walker{exec: exec, pageSize: pageSize, logger: logger}
}

// FetchAll returns a lazy sequence over every entity of type t, starting from the first page.
//
// Each page is requested only when the consumer has drained the previous one, so breaking out of
// the loop stops all further requests. A failed page is yielded as a final (nil, err) pair after
// the entities already produced.
func (w *Walker) FetchAll(ctx context.Context, t models.EntityType) iter.Seq2[models.SourceEntity, error] {
	return w.FetchPath(ctx, collectionPath(string(t)))
}

// FetchPath is FetchAll for an arbitrary 2.0 collection path such as /products/{id}/inventory.
func (w *Walker) FetchPath(ctx context.Context, path string) iter.Seq2[models.SourceEntity, error] {
	return func(yield func(models.SourceEntity, error) bool) {
		var after int64
		for page := 1; ; page++ {
			resp, err := w.exec.Execute(ctx, Get(w.pagePath(path, after)))
			if err != nil {
				yield(nil, fmt.Errorf("fetching %s page %d: %w", path, page, err))
				return
			}

			var body pageBody
			if err := resp.Decode(&body); err != nil {
				yield(nil, fmt.Errorf("fetching %s page %d: %w", path, page, err))
				return
			}

			w.logger.Debug("page fetched", "path", path, "page", page, "items", len(body.Data), "version", body.Version.Max)

			for _, entity := range body.Data {
				if !yield(entity, nil) {
					return
				}
			}

			if len(body.Data) < w.pageSize || body.Version.Max <= after {
				return
			}
			after = body.Version.Max
		}
	}
}

func (w *Walker) pagePath(path string, after int64) string {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(w.pageSize))
	if after > 0 {
		q.Set("after", strconv.FormatInt(after, 10))
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// Collect drains seq. On failure it returns the entities gathered so far together with the error.
func Collect(seq iter.Seq2[models.SourceEntity, error]) ([]models.SourceEntity, error) {
	var out []models.SourceEntity
	for entity, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, entity)
	}
	return out, nil
}
