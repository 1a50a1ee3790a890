// Package resolver maps account-local dependencies onto the destination account by name.
//
// Outlets are looked up only. Variant attributes, brands and suppliers are get-or-create:
// look the name up, create it when absent, and on a 409 re-read the collection and reuse the
// record that won the race. Every cache lives for one run against one destination.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/shared"
	"golang.org/x/sync/singleflight"
)

// Destination is the part of the destination account the resolver reads and writes.
type Destination interface {
	FetchAll(ctx context.Context, t models.EntityType) iter.Seq2[models.SourceEntity, error]
	Create(ctx context.Context, t models.EntityType, payload map[string]any, idempotencyKey string) (string, error)
}

// Resolution is the destination record a name resolved to.
type Resolution struct {
	ID      string
	Created bool // false when the record already existed or a concurrent create won
}

// Resolver caches name to id lookups against one destination.
type Resolver struct {
	dest   Destination
	logger *log.Logger
	newKey func() string

	mu      sync.Mutex
	indexes map[models.EntityType]map[string]string
	loaded  map[models.EntityType]bool
	group   singleflight.Group
}

// New creates a Resolver with empty caches.
func New(dest Destination, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Resolver{
		dest:    dest,
		logger:  logger,
		newKey:  shared.GenerateID,
		indexes: make(map[models.EntityType]map[string]string),
		loaded:  make(map[models.EntityType]bool),
	}
}

// matchKey normalizes a name for comparison. Attributes and outlets match exactly; brands and
// suppliers ignore case.
func matchKey(t models.EntityType, name string) string {
	switch t {
	case models.Brands, models.Suppliers:
		return strings.ToLower(strings.TrimSpace(name))
	default:
		return name
	}
}

// Outlet returns the destination outlet named exactly name. ok is false when there is none.
// The outlet list is fetched on first use and kept for the rest of the run.
func (r *Resolver) Outlet(ctx context.Context, name string) (id string, ok bool, err error) {
	if err := r.load(ctx, models.Outlets, false); err != nil {
		return "", false, err
	}
	id, ok = r.cached(models.Outlets, name)
	return id, ok, nil
}

// Outlets returns a copy of the destination outlet index, name to id.
func (r *Resolver) Outlets(ctx context.Context) (map[string]string, error) {
	if err := r.load(ctx, models.Outlets, false); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.indexes[models.Outlets]), nil
}

// GetOrCreate returns the destination record of type t named name, creating it from payload when
// it does not exist. Concurrent calls for one name share a single lookup and create.
func (r *Resolver) GetOrCreate(ctx context.Context, t models.EntityType, name string, payload map[string]any) (Resolution, error) {
	switch t {
	case models.VariantAttributes, models.Brands, models.Suppliers:
	default:
		return Resolution{}, fmt.Errorf("%w: %s cannot be resolved by name", shared.ErrInvalidInput, t)
	}
	if strings.TrimSpace(name) == "" {
		return Resolution{}, fmt.Errorf("%w: empty %s name", shared.ErrInvalidInput, t.Singular())
	}

	key := matchKey(t, name)
	if id, ok := r.cached(t, key); ok {
		return Resolution{ID: id}, nil
	}

	v, err, _ := r.group.Do(string(t)+"\x00"+key, func() (any, error) {
		return r.getOrCreate(ctx, t, name, key, payload)
	})
	if err != nil {
		return Resolution{}, err
	}
	return v.(Resolution), nil
}

func (r *Resolver) getOrCreate(ctx context.Context, t models.EntityType, name, key string, payload map[string]any) (Resolution, error) {
	if err := r.load(ctx, t, false); err != nil {
		return Resolution{}, err
	}
	if id, ok := r.cached(t, key); ok {
		return Resolution{ID: id}, nil
	}

	body := maps.Clone(payload)
	if body == nil {
		body = make(map[string]any)
	}
	body["name"] = name

	id, err := r.dest.Create(ctx, t, body, r.newKey())
	switch {
	case err == nil:
		r.store(t, key, id)
		r.logger.Info("created dependency", "type", t, "name", name, "id", id)
		return Resolution{ID: id, Created: true}, nil

	case errors.Is(err, shared.ErrConflict):
		r.logger.Debug("create conflicted, re-reading", "type", t, "name", name)
		if lerr := r.load(ctx, t, true); lerr != nil {
			return Resolution{}, lerr
		}
		if id, ok := r.cached(t, key); ok {
			return Resolution{ID: id}, nil
		}
		return Resolution{}, fmt.Errorf("%w: %s %q conflicted but is not listed: %w", shared.ErrUnresolvedDependency, t.Singular(), name, err)

	default:
		return Resolution{}, err
	}
}

func (r *Resolver) cached(t models.EntityType, key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.indexes[t][key]
	return id, ok
}

func (r *Resolver) store(t models.EntityType, key, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexes[t] == nil {
		r.indexes[t] = make(map[string]string)
	}
	r.indexes[t][key] = id
}

// load fills the name index of t on first use, or again when reload is set. The first record
// wins when names collide; ids created during the run are kept across reloads.
func (r *Resolver) load(ctx context.Context, t models.EntityType, reload bool) error {
	r.mu.Lock()
	_, ok := r.loaded[t]
	r.mu.Unlock()
	if ok && !reload {
		return nil
	}

	_, err, _ := r.group.Do("load\x00"+string(t), func() (any, error) {
		fresh := make(map[string]string)
		for record, err := range r.dest.FetchAll(ctx, t) {
			if err != nil {
				return nil, fmt.Errorf("loading destination %s: %w", t, err)
			}
			key := matchKey(t, record.Name())
			if key == "" || record.ID() == "" {
				continue
			}
			if _, dup := fresh[key]; !dup {
				fresh[key] = record.ID()
			}
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		for k, id := range r.indexes[t] {
			if _, ok := fresh[k]; !ok {
				fresh[k] = id
			}
		}
		r.indexes[t] = fresh
		r.loaded[t] = true
		r.logger.Debug("loaded destination index", "type", t, "count", len(fresh))
		return nil, nil
	})
	return err
}
