// package tasks implements the clone and seed runs against X-Series accounts.
//
// The core abstraction is CloneEngine, which walks source collections, transforms each record,
// resolves its dependencies in the destination and creates it there.
// Operations emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/xsx/internal/models"
	"github.com/desertthunder/xsx/internal/resolver"
	"github.com/desertthunder/xsx/internal/services"
	"github.com/desertthunder/xsx/internal/shared"
	"github.com/desertthunder/xsx/internal/transform"
)

// Source is the account records are copied from.
type Source interface {
	FetchAll(ctx context.Context, t models.EntityType) iter.Seq2[models.SourceEntity, error]
	Inventory(ctx context.Context, productID string) ([]models.InventoryLine, error)
}

// Destination is the account records are created in.
type Destination interface {
	resolver.Destination
	Retailer(ctx context.Context) (models.Retailer, error)
	UpdateInventory(ctx context.Context, productID string, lines []models.InventoryLine) error
}

// CloneOptions selects what a clone run copies.
type CloneOptions struct {
	RunID                       string
	SourceDomain                string
	DestDomain                  string
	Types                       []models.EntityType
	IncludeInventory            bool
	AbortAfterTransportFailures int // consecutive transport failures before the run aborts, default 5
}

// CloneEngine runs clone operations between two accounts.
type CloneEngine struct {
	source Source
	dest   Destination
	logger *log.Logger
	now    func() time.Time
	newKey func() string
}

// NewCloneEngine creates a CloneEngine. *services.Account satisfies both account interfaces.
func NewCloneEngine(source Source, dest Destination, logger *log.Logger) *CloneEngine {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &CloneEngine{source: source, dest: dest, logger: logger, now: time.Now, newKey: shared.GenerateID}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Clone copies the requested entity types from source to destination.
//
// Entity failures are recorded and the run continues. Authentication failures, exhausted rate
// limit retries, cancellation and a streak of transport failures abort the run: the summary is
// still returned, marked aborted, together with an error wrapping [shared.ErrRunAborted].
func (e *CloneEngine) Clone(ctx context.Context, progress chan<- ProgressUpdate, opts CloneOptions) (*models.CloneSummary, error) {
	if e.source == nil || e.dest == nil {
		return nil, fmt.Errorf("%w: source and destination are required", shared.ErrMissingArgument)
	}
	if len(opts.Types) == 0 {
		opts.Types = models.CloneableTypes
	}
	if opts.AbortAfterTransportFailures <= 0 {
		opts.AbortAfterTransportFailures = 5
	}
	if opts.RunID == "" {
		opts.RunID = shared.GenerateID()
	}

	summary := models.NewCloneSummary(opts.RunID, "clone", opts.SourceDomain, opts.DestDomain, opts.Types, e.now())
	run := &cloneRun{
		CloneEngine:  e,
		opts:         opts,
		progress:     progress,
		summary:      summary,
		ids:          models.NewIdentifierMap(),
		resolver:     resolver.New(e.dest, e.logger),
		sourceIndex:  make(map[models.EntityType]map[string]models.SourceEntity),
		sourceLoaded: make(map[models.EntityType]bool),
		depErrors:    make(map[models.EntityType]map[string]error),
		skus:         make(map[string]string),
		logger:       shared.WithLogger(e.logger, "run", opts.RunID),
	}

	err := run.execute(ctx)
	if err != nil {
		summary.Finish(err, e.now())
		run.logger.Error("run aborted", "error", err, "created", summary.Counts.Created, "failed", summary.Counts.Failed)
		sendProgress(progress, finishedUpdate(summary))
		if errors.Is(err, shared.ErrRunAborted) {
			return summary, err
		}
		return summary, fmt.Errorf("%w: %w", shared.ErrRunAborted, err)
	}

	summary.Finish(nil, e.now())
	run.logger.Info("run finished", "created", summary.Counts.Created, "skipped", summary.Counts.Skipped, "failed", summary.Counts.Failed)
	sendProgress(progress, finishedUpdate(summary))
	return summary, nil
}

// cloneRun is the state of one Clone call. Nothing in it outlives the call.
type cloneRun struct {
	*CloneEngine
	opts         CloneOptions
	progress     chan<- ProgressUpdate
	summary      *models.CloneSummary
	ids          *models.IdentifierMap
	resolver     *resolver.Resolver
	transformer  transform.Transformer
	sourceIndex  map[models.EntityType]map[string]models.SourceEntity
	sourceLoaded map[models.EntityType]bool
	depErrors    map[models.EntityType]map[string]error
	skus         map[string]string
	streak       int
	step         int
	logger       *log.Logger
}

func (r *cloneRun) execute(ctx context.Context) error {
	sendProgress(r.progress, checkDestinationUpdate(r.opts.DestDomain))
	retailer, err := r.dest.Retailer(ctx)
	if err != nil {
		return fmt.Errorf("checking destination: %w", err)
	}
	r.transformer = transform.Transformer{TaxExclusive: retailer.TaxExclusive}
	r.logger.Info("destination checked", "retailer", retailer.Name, "tax_exclusive", retailer.TaxExclusive)

	for i, t := range r.opts.Types {
		sendProgress(r.progress, startTypeUpdate(t, i+1, len(r.opts.Types)))

		var handle func(context.Context, models.SourceEntity) error
		switch t {
		case models.VariantAttributes:
			handle = r.attribute
		case models.Products:
			handle = r.product
		case models.Customers:
			handle = r.customer
		default:
			return fmt.Errorf("%w: cannot clone %s", shared.ErrInvalidArgument, t)
		}

		if err := r.walk(ctx, t, handle); err != nil {
			return err
		}
	}
	return nil
}

// walk feeds every source record of t to handle in fetch order. A failed page is recorded and ends
// the walk of t; only fatal errors stop the run.
func (r *cloneRun) walk(ctx context.Context, t models.EntityType, handle func(context.Context, models.SourceEntity) error) error {
	for entity, err := range r.source.FetchAll(ctx, t) {
		if err != nil {
			return r.fail(models.CloneResult{Type: t}, models.StageFetching, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handle(ctx, entity); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (r *cloneRun) attribute(ctx context.Context, e models.SourceEntity) error {
	if e.ID() == "" {
		return r.fail(models.CloneResult{Type: models.VariantAttributes, Name: e.Name()}, models.StageFetching, shared.ErrMissingSourceID)
	}
	r.remember(models.VariantAttributes, e)
	err := r.dependency(ctx, models.VariantAttributes, e.ID())
	if shared.IsFatal(err) || errors.Is(err, shared.ErrRunAborted) {
		return err
	}
	return nil
}

func (r *cloneRun) product(ctx context.Context, e models.SourceEntity) error {
	res := models.CloneResult{Type: models.Products, SourceID: e.ID(), Name: transform.Identifier(e, models.Products)}
	if res.SourceID == "" {
		return r.fail(res, models.StageFetching, shared.ErrMissingSourceID)
	}
	if id, ok := r.ids.Get(models.Products, res.SourceID); ok {
		return r.skip(res, models.StageFetching, id, "already cloned in this run")
	}

	te, err := r.transformer.Transform(e, models.Products)
	if err != nil {
		return r.fail(res, models.StageTransforming, err)
	}

	if sku, _ := te.Payload["sku"].(string); sku != "" {
		if other, dup := r.skus[sku]; dup {
			return r.skip(res, models.StageTransforming, "", fmt.Sprintf("sku %s already used by source product %s", sku, other))
		}
		r.skus[sku] = res.SourceID
	}

	if err := r.dependencies(ctx, te); err != nil {
		return r.fail(res, models.StageResolving, err)
	}
	payload, err := transform.Bind(te, r.ids.Get)
	if err != nil {
		return r.fail(res, models.StageResolving, err)
	}

	id, err := r.dest.Create(ctx, models.Products, payload, r.newKey())
	if err != nil {
		return r.fail(res, models.StageCreating, err)
	}
	if err := r.created(res, id); err != nil {
		return err
	}

	if r.opts.IncludeInventory {
		return r.inventory(ctx, res.SourceID, id)
	}
	return nil
}

func (r *cloneRun) customer(ctx context.Context, e models.SourceEntity) error {
	res := models.CloneResult{Type: models.Customers, SourceID: e.ID(), Name: transform.Identifier(e, models.Customers)}
	if res.SourceID == "" {
		return r.fail(res, models.StageFetching, shared.ErrMissingSourceID)
	}
	if id, ok := r.ids.Get(models.Customers, res.SourceID); ok {
		return r.skip(res, models.StageFetching, id, "already cloned in this run")
	}

	te, err := r.transformer.Transform(e, models.Customers)
	if err != nil {
		return r.fail(res, models.StageTransforming, err)
	}

	id, err := r.dest.Create(ctx, models.Customers, te.Payload, r.newKey())
	if err != nil {
		return r.fail(res, models.StageCreating, err)
	}
	return r.created(res, id)
}

// dependencies resolves every reference of te. Brands and suppliers that cannot be resolved are
// left unmapped and dropped by [transform.Bind]; an attribute that cannot be resolved fails te.
func (r *cloneRun) dependencies(ctx context.Context, te models.TransformedEntity) error {
	if te.Deps.BrandID != "" {
		if err := r.dependency(ctx, models.Brands, te.Deps.BrandID); shared.IsFatal(err) || errors.Is(err, shared.ErrRunAborted) {
			return err
		}
	}
	for _, id := range transform.SupplierIDs(te) {
		if err := r.dependency(ctx, models.Suppliers, id); shared.IsFatal(err) || errors.Is(err, shared.ErrRunAborted) {
			return err
		}
	}
	for _, id := range transform.AttributeIDs(te) {
		if err := r.dependency(ctx, models.VariantAttributes, id); err != nil {
			if shared.IsFatal(err) || errors.Is(err, shared.ErrRunAborted) {
				return err
			}
			return fmt.Errorf("%w: variant attribute %s: %w", shared.ErrUnresolvedDependency, id, err)
		}
	}
	return nil
}

// dependency maps the source record t/sourceID onto the destination by name, creating it when
// needed. The first resolution of each record contributes one result; later calls hit the map.
func (r *cloneRun) dependency(ctx context.Context, t models.EntityType, sourceID string) error {
	if _, ok := r.ids.Get(t, sourceID); ok {
		return nil
	}
	if err, ok := r.depErrors[t][sourceID]; ok {
		return err
	}

	res := models.CloneResult{Type: t, SourceID: sourceID}
	err := r.resolveDependency(ctx, t, sourceID, &res)
	if err == nil {
		return nil
	}

	if r.depErrors[t] == nil {
		r.depErrors[t] = make(map[string]error)
	}
	r.depErrors[t][sourceID] = err
	if ferr := r.fail(res, res.Stage, err); ferr != nil {
		return ferr
	}
	return err
}

func (r *cloneRun) resolveDependency(ctx context.Context, t models.EntityType, sourceID string, res *models.CloneResult) error {
	res.Stage = models.StageFetching
	src, err := r.lookupSource(ctx, t, sourceID)
	if err != nil {
		return err
	}
	res.Name = src.Name()

	res.Stage = models.StageTransforming
	te, err := r.transformer.Transform(src, t)
	if err != nil {
		return err
	}

	res.Stage = models.StageCreating
	resolved, err := r.resolver.GetOrCreate(ctx, t, src.Name(), te.Payload)
	if err != nil {
		return err
	}
	if err := r.ids.Converge(t, sourceID, resolved.ID); err != nil {
		return err
	}

	r.streak = 0
	if resolved.Created {
		res.Status, res.Stage, res.DestinationID = models.StatusCreated, models.StageDone, resolved.ID
		r.record(*res)
		return nil
	}
	return r.skip(*res, models.StageDone, resolved.ID, "exists in destination")
}

// lookupSource finds a source record by id, loading the whole source collection at most once.
func (r *cloneRun) lookupSource(ctx context.Context, t models.EntityType, id string) (models.SourceEntity, error) {
	if e, ok := r.sourceIndex[t][id]; ok {
		return e, nil
	}
	if !r.sourceLoaded[t] {
		all, err := services.Collect(r.source.FetchAll(ctx, t))
		if err != nil {
			return nil, fmt.Errorf("loading source %s: %w", t, err)
		}
		for _, e := range all {
			r.remember(t, e)
		}
		r.sourceLoaded[t] = true
		if e, ok := r.sourceIndex[t][id]; ok {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s not found in source", shared.ErrUnresolvedDependency, t.Singular(), id)
}

func (r *cloneRun) remember(t models.EntityType, e models.SourceEntity) {
	if r.sourceIndex[t] == nil {
		r.sourceIndex[t] = make(map[string]models.SourceEntity)
	}
	if id := e.ID(); id != "" {
		r.sourceIndex[t][id] = e
	}
}

// inventory copies the stock levels of one product to outlets with the same name. Each source
// line contributes one result, in source order.
func (r *cloneRun) inventory(ctx context.Context, sourceID, destID string) error {
	base := models.CloneResult{Type: models.Inventory, SourceID: sourceID, DestinationID: destID}

	lines, err := r.source.Inventory(ctx, sourceID)
	if err != nil {
		return r.fail(base, models.StageFetching, err)
	}

	var apply []models.InventoryLine
	results := make([]models.CloneResult, 0, len(lines))
	flush := func() {
		for _, res := range results {
			r.record(res)
		}
	}

	for _, line := range lines {
		res := base
		res.Name = line.OutletID

		outlet, err := r.lookupSource(ctx, models.Outlets, line.OutletID)
		if err != nil {
			results = append(results, r.failed(res, models.StageResolving, err))
			if abort := r.escalate(err); abort != nil {
				flush()
				return abort
			}
			continue
		}
		res.Name = outlet.Name()

		destOutlet, found, err := r.resolver.Outlet(ctx, outlet.Name())
		switch {
		case err != nil:
			results = append(results, r.failed(res, models.StageResolving, err))
			if abort := r.escalate(err); abort != nil {
				flush()
				return abort
			}
		case !found:
			r.logger.Warn("no destination outlet, skipping inventory", "outlet", outlet.Name(), "product", sourceID)
			res.Status, res.Stage = models.StatusSkipped, models.StageResolving
			res.Detail = fmt.Sprintf("no destination outlet named %q", outlet.Name())
			results = append(results, res)
		default:
			res.Stage = models.StageCreating
			res.Detail = fmt.Sprintf("%g at %s", line.CurrentAmount, outlet.Name())
			apply = append(apply, models.InventoryLine{OutletID: destOutlet, CurrentAmount: line.CurrentAmount})
			results = append(results, res)
		}
	}

	if len(apply) == 0 {
		flush()
		return nil
	}

	updateErr := r.dest.UpdateInventory(ctx, destID, apply)
	for i, res := range results {
		if res.Status != "" {
			continue
		}
		if updateErr != nil {
			results[i] = r.failed(res, models.StageCreating, updateErr)
			continue
		}
		res.Status, res.Stage = models.StatusCreated, models.StageDone
		results[i] = res
	}
	flush()

	if updateErr != nil {
		return r.escalate(updateErr)
	}
	r.streak = 0
	return nil
}

func (r *cloneRun) created(res models.CloneResult, id string) error {
	if err := r.ids.Put(res.Type, res.SourceID, id); err != nil {
		return r.fail(res, models.StageDone, err)
	}
	res.DestinationID = id
	res.Status = models.StatusCreated
	res.Stage = models.StageDone
	r.streak = 0
	r.record(res)
	return nil
}

func (r *cloneRun) skip(res models.CloneResult, stage models.Stage, destID, detail string) error {
	res.Status = models.StatusSkipped
	res.Stage = stage
	res.DestinationID = destID
	res.Detail = detail
	r.record(res)
	return nil
}

// fail records res as failed at stage and returns a non-nil error only when the run must stop.
func (r *cloneRun) fail(res models.CloneResult, stage models.Stage, err error) error {
	r.record(r.failed(res, stage, err))
	return r.escalate(err)
}

// failed fills in the failure fields of res. A conflict on a plain create counts as skipped.
func (r *cloneRun) failed(res models.CloneResult, stage models.Stage, err error) models.CloneResult {
	res.Stage = stage
	res.StatusCode = services.StatusCode(err)
	res.ErrorType = services.Classify(err)
	res.Error = err.Error()
	res.Status = models.StatusFailed
	if stage == models.StageCreating && errors.Is(err, shared.ErrConflict) {
		res.Status = models.StatusSkipped
		res.Detail = "already exists in destination"
	}
	r.logger.Warn("entity "+string(res.Status), "type", res.Type, "source_id", res.SourceID, "stage", stage, "error", err)
	return res
}

// escalate decides whether err ends the run: fatal errors always do, transport errors once they
// have recurred for AbortAfterTransportFailures entities in a row. A failure inherited from a cached
// dependency made no call of its own, so it leaves the streak alone.
func (r *cloneRun) escalate(err error) error {
	switch {
	case shared.IsFatal(err):
		return err
	case errors.Is(err, shared.ErrUnresolvedDependency):
	case errors.Is(err, shared.ErrTransport):
		r.streak++
		if r.streak >= r.opts.AbortAfterTransportFailures {
			return fmt.Errorf("%w: %d consecutive transport failures: %w", shared.ErrRunAborted, r.streak, err)
		}
	default:
		r.streak = 0
	}
	return nil
}

func (r *cloneRun) record(res models.CloneResult) {
	r.summary.Record(res)
	r.step++
	sendProgress(r.progress, resultUpdate(r.step, res))
}
