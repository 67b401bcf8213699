// Package recall is a client SDK that turns free-form text into
// structured memory records. Raw text flows through LLM extraction,
// embedding, and an ordered chain of user-registered processors before
// being persisted to a vector-capable store.
package recall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/recallio/recall-go/ai"
	"github.com/recallio/recall-go/internal/metrics"
	"github.com/recallio/recall-go/internal/retry"
	"github.com/recallio/recall-go/store"
	"github.com/recallio/recall-go/store/db"
	"github.com/recallio/recall-go/store/filter"
)

// Client is the pipeline orchestrator. It is stateless between calls
// apart from configuration and the registered processor chain, so a
// single Client is safe for concurrent use.
type Client struct {
	cfg       Config
	log       *slog.Logger
	metrics   *metrics.Metrics
	limiter   *rate.Limiter
	retryPol  retry.Policy
	dialect   filter.Dialect
	extractor ai.Extractor
	embedder  ai.EmbeddingService
	store     *store.Store
	chain     processorChain
	closers   []func() error
}

// ClientOption customizes construction, mainly to inject test doubles.
type ClientOption func(*Client)

// WithStoreDriver uses the given driver instead of opening one from
// Config.Store.
func WithStoreDriver(d store.Driver) ClientOption {
	return func(c *Client) { c.store = store.New(d, c.cfg.MaxPageSize) }
}

// WithExtractor replaces the LLM-backed extractor.
func WithExtractor(e ai.Extractor) ClientOption {
	return func(c *Client) { c.extractor = e }
}

// WithEmbedder replaces the embedding service.
func WithEmbedder(e ai.EmbeddingService) ClientOption {
	return func(c *Client) { c.embedder = e }
}

// WithLogger replaces the default stderr logger.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithRegisterer registers the Prometheus instruments with reg instead
// of the default registerer.
func WithRegisterer(reg prometheus.Registerer) ClientOption {
	return func(c *Client) { c.metrics = metrics.New(c.cfg.MetricsNamespace, reg) }
}

// New builds a Client from cfg. Missing credentials surface here as
// ErrConfiguration rather than on the first operation.
func New(ctx context.Context, cfg Config, opts ...ClientOption) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		retryPol: retry.Policy{MaxAttempts: cfg.MaxRetries},
		dialect:  filter.DialectSQLite,
	}
	if cfg.Store.Driver == "postgres" {
		c.dialect = filter.DialectPostgres
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.MaxConcurrentRequests)
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.slogLevel()}))
	}
	if c.metrics == nil {
		c.metrics = metrics.New(cfg.MetricsNamespace, prometheus.NewRegistry())
	}

	// Construct the default service clients only for the pieces not
	// injected above, validating the matching configuration first.
	if c.extractor == nil {
		if err := cfg.LLM.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		llm, err := ai.NewLLMService(&cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		c.extractor = ai.NewExtractor(llm)
	}
	if c.embedder == nil {
		if err := cfg.Embedding.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		embedder, err := ai.NewEmbeddingService(&cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		if cfg.EmbeddingCacheSize > 0 {
			cached, err := ai.NewCachingEmbedder(embedder, cfg.Embedding.Model, cfg.EmbeddingCacheSize)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
			c.closers = append(c.closers, func() error { cached.Close(); return nil })
			embedder = cached
		}
		c.embedder = embedder
	}
	if c.store == nil {
		driver, err := db.NewDriver(ctx, cfg.Store)
		if err != nil {
			return nil, &StoreError{Err: err}
		}
		c.store = store.New(driver, cfg.MaxPageSize)
		c.closers = append(c.closers, driver.Close)
	}

	return c, nil
}

// Close releases the store connection and any cache resources.
func (c *Client) Close() error {
	var firstErr error
	for _, close := range c.closers {
		if err := close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RegisterProcessor appends p to the enrichment chain. Registration
// order is execution order. Re-registering a name replaces the previous
// processor in its original position.
func (c *Client) RegisterProcessor(p Processor) {
	c.chain.register(p)
}

// UnregisterProcessor removes the named processor. Unknown names are a
// no-op.
func (c *Client) UnregisterProcessor(name string) {
	c.chain.unregister(name)
}

// Save runs text through extraction, embedding, and the processor
// chain, persists the assembled record, and returns it with its
// generated id and timestamps.
func (c *Client) Save(ctx context.Context, text string, opts ...Option) (*store.Memory, error) {
	began := time.Now()
	record, err := c.save(ctx, text, c.callOptions(opts))
	c.metrics.ObserveOp("save", err, began)
	return record, err
}

func (c *Client) save(ctx context.Context, text string, opt callOptions) (*store.Memory, error) {
	const op = "save"

	if opt.owner == "" {
		return nil, opErr(op, "", fmt.Errorf("%w: owner is required", ErrConfiguration))
	}

	log := c.log.With("request_id", shortuuid.New(), "op", op, "owner", opt.owner)

	extraction, err := c.extract(ctx, text, opt)
	if err != nil {
		log.Error("extraction failed", "error", err)
		return nil, opErr(op, "", err)
	}

	now := time.Now().UTC()
	record := &store.Memory{
		ID:            uuid.NewString(),
		Owner:         opt.owner,
		CreatedAt:     now,
		UpdatedAt:     now,
		Content:       extraction.Summary,
		Reflection:    extraction.Reflection,
		EmotionalTone: extraction.EmotionalTone,
		Tags:          extraction.Tags,
		Metadata:      map[string]any{},
	}
	if extraction.Location != nil {
		record.Location = &store.Location{
			Kind: store.LocationKind(extraction.Location.Kind),
			Name: extraction.Location.Name,
		}
	}

	record.Embedding, err = c.embed(ctx, record.Content, opt)
	if err != nil {
		log.Error("embedding failed", "error", err)
		return nil, opErr(op, "", err)
	}

	c.runChain(ctx, log, record)

	// A processor may have rewritten the content (redaction). The
	// stored embedding must always describe the current content.
	if record.Content != extraction.Summary {
		record.Embedding, err = c.embed(ctx, record.Content, opt)
		if err != nil {
			log.Error("re-embedding after processors failed", "error", err)
			return nil, opErr(op, "", err)
		}
	}

	saved, err := c.store.CreateMemory(ctx, record)
	if err != nil {
		log.Error("persist failed", "error", err)
		return nil, opErr(op, record.ID, &StoreError{Err: err})
	}

	log.Debug("memory saved", "id", saved.ID, "tags", saved.Tags)
	return saved, nil
}

// BatchResult reports the outcome of one item of a SaveBatch call.
type BatchResult struct {
	Index  int
	Record *store.Memory
	Err    error
}

// ErrBatchFailed reports that an atomic batch was rolled back.
var ErrBatchFailed = errors.New("batch failed")

// SaveBatch saves each text independently with bounded concurrency.
// Results arrive in input order; one item's failure does not cancel its
// siblings. With WithAtomic, any failure rolls back the records that
// did persist and the call returns ErrBatchFailed.
func (c *Client) SaveBatch(ctx context.Context, texts []string, opts ...Option) ([]BatchResult, error) {
	began := time.Now()
	opt := c.callOptions(opts)

	results := make([]BatchResult, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrentRequests)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			record, err := c.save(gctx, text, opt)
			results[i] = BatchResult{Index: i, Record: record, Err: err}
			if err != nil {
				c.metrics.BatchItems.WithLabelValues("error").Inc()
				if opt.atomic {
					// Cancel siblings early; partial work is rolled
					// back below.
					return err
				}
				return nil
			}
			c.metrics.BatchItems.WithLabelValues("ok").Inc()
			return nil
		})
	}
	err := g.Wait()

	if opt.atomic {
		var failed bool
		for _, r := range results {
			if r.Err != nil || (r.Record == nil && r.Err == nil) {
				failed = true
				break
			}
		}
		if failed || err != nil {
			leftover := c.rollback(results, opt.owner)
			c.metrics.ObserveOp("save_batch", ErrBatchFailed, began)
			batchErr := fmt.Errorf("%w: %v", ErrBatchFailed, firstBatchError(results, err))
			if len(leftover) > 0 {
				batchErr = fmt.Errorf("%w; rollback left records %s", batchErr, strings.Join(leftover, ", "))
			}
			return results, batchErr
		}
	}

	c.metrics.ObserveOp("save_batch", nil, began)
	return results, nil
}

// rollback deletes the records an atomic batch managed to persist. It
// runs on a fresh context, since the batch context may already be
// canceled, and returns the ids of any records its deletes could not
// remove so the caller learns state remains.
func (c *Client) rollback(results []BatchResult, owner string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()
	var leftover []string
	for _, r := range results {
		if r.Record == nil {
			continue
		}
		if err := c.store.DeleteMemory(ctx, owner, r.Record.ID); err != nil {
			c.log.Warn("batch rollback delete failed", "id", r.Record.ID, "error", err)
			leftover = append(leftover, r.Record.ID)
		}
	}
	return leftover
}

func firstBatchError(results []BatchResult, fallback error) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	if fallback != nil {
		return fallback
	}
	return errors.New("item not processed")
}

// Get returns one record by id.
func (c *Client) Get(ctx context.Context, id string, opts ...Option) (*store.Memory, error) {
	began := time.Now()
	opt := c.callOptions(opts)
	record, err := c.store.GetMemory(ctx, opt.owner, id)
	c.metrics.ObserveOp("get", err, began)
	if err != nil {
		return nil, opErr("get", id, err)
	}
	return record, nil
}

// SearchRequest selects records by full-text query, structured filter
// expression, and creation-date bounds, with offset pagination.
type SearchRequest struct {
	// Query is matched against content and reflection. Empty means no
	// text filtering.
	Query string

	// Filter is a boolean expression over the structured fields, e.g.
	// `tone == "joyful" && "coffee" in tags`.
	Filter string

	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	Limit  int
	Offset int
}

// Search lists matching records newest first.
func (c *Client) Search(ctx context.Context, req SearchRequest, opts ...Option) ([]*store.Memory, error) {
	began := time.Now()
	records, err := c.search(ctx, req, c.callOptions(opts))
	c.metrics.ObserveOp("search", err, began)
	return records, err
}

func (c *Client) search(ctx context.Context, req SearchRequest, opt callOptions) ([]*store.Memory, error) {
	const op = "search"

	if opt.owner == "" {
		return nil, opErr(op, "", fmt.Errorf("%w: owner is required", ErrConfiguration))
	}

	clause, err := c.compileFilter(req.Filter)
	if err != nil {
		return nil, opErr(op, "", err)
	}

	find := &store.FindMemory{
		Owner:         opt.owner,
		Query:         req.Query,
		Filter:        clause,
		CreatedAfter:  req.CreatedAfter,
		CreatedBefore: req.CreatedBefore,
		Limit:         req.Limit,
		Offset:        req.Offset,
	}

	var records []*store.Memory
	err = retry.Do(ctx, c.retryPol, retryable, func(ctx context.Context) error {
		var err error
		records, err = c.store.ListMemories(ctx, find)
		return err
	})
	if err != nil {
		return nil, opErr(op, "", &StoreError{Err: err})
	}
	return records, nil
}

// SimilarRequest drives nearest-neighbor retrieval over raw text.
type SimilarRequest struct {
	Text string

	// MinSimilarity excludes results below this cosine similarity,
	// closed range [0, 1].
	MinSimilarity float64

	Limit int

	// Filter is the same expression language Search accepts.
	Filter string
}

// FindSimilar embeds the query text once and returns the stored records
// nearest to it. Each result carries its similarity in Score. Ties are
// broken by closeness, then recency.
func (c *Client) FindSimilar(ctx context.Context, req SimilarRequest, opts ...Option) ([]*store.Memory, error) {
	began := time.Now()
	records, err := c.findSimilar(ctx, req, c.callOptions(opts))
	c.metrics.ObserveOp("find_similar", err, began)
	return records, err
}

func (c *Client) findSimilar(ctx context.Context, req SimilarRequest, opt callOptions) ([]*store.Memory, error) {
	const op = "find_similar"

	if opt.owner == "" {
		return nil, opErr(op, "", fmt.Errorf("%w: owner is required", ErrConfiguration))
	}
	if req.MinSimilarity < 0 || req.MinSimilarity > 1 {
		return nil, opErr(op, "", fmt.Errorf("%w: min similarity %v outside [0,1]", ErrConfiguration, req.MinSimilarity))
	}

	clause, err := c.compileFilter(req.Filter)
	if err != nil {
		return nil, opErr(op, "", err)
	}

	vector, err := c.embed(ctx, req.Text, opt)
	if err != nil {
		return nil, opErr(op, "", err)
	}

	search := &store.VectorSearchOptions{
		Owner:         opt.owner,
		Vector:        vector,
		MinSimilarity: req.MinSimilarity,
		Limit:         req.Limit,
		Filter:        clause,
	}

	var records []*store.Memory
	err = retry.Do(ctx, c.retryPol, retryable, func(ctx context.Context) error {
		var err error
		records, err = c.store.VectorSearch(ctx, search)
		return err
	})
	if err != nil {
		return nil, opErr(op, "", &StoreError{Err: err})
	}
	return records, nil
}

// UpdateRequest replaces the set fields wholesale. Nil pointer fields
// are left untouched. Nil Tags leaves tags unchanged; an empty non-nil
// slice clears them. Metadata is merged key-by-key.
type UpdateRequest struct {
	Content       *string
	Reflection    *string
	EmotionalTone *string

	Location      *store.Location
	ClearLocation bool

	Tags []string

	Metadata map[string]any
}

// Update applies a partial update. When Content changes, the record is
// re-embedded so the stored vector matches the new text.
func (c *Client) Update(ctx context.Context, id string, req UpdateRequest, opts ...Option) (*store.Memory, error) {
	began := time.Now()
	record, err := c.update(ctx, id, req, c.callOptions(opts))
	c.metrics.ObserveOp("update", err, began)
	return record, err
}

func (c *Client) update(ctx context.Context, id string, req UpdateRequest, opt callOptions) (*store.Memory, error) {
	const op = "update"

	if opt.owner == "" {
		return nil, opErr(op, id, fmt.Errorf("%w: owner is required", ErrConfiguration))
	}

	update := &store.UpdateMemory{
		ID:            id,
		Owner:         opt.owner,
		Content:       req.Content,
		Reflection:    req.Reflection,
		EmotionalTone: req.EmotionalTone,
		MergeMetadata: req.Metadata,
	}
	if req.ClearLocation {
		var cleared *store.Location
		update.Location = &cleared
	} else if req.Location != nil {
		loc := req.Location
		update.Location = &loc
	}
	if req.Tags != nil {
		tags := req.Tags
		update.Tags = &tags
	}
	if req.Content != nil {
		vector, err := c.embed(ctx, *req.Content, opt)
		if err != nil {
			return nil, opErr(op, id, err)
		}
		update.Embedding = &vector
	}

	record, err := c.store.UpdateMemory(ctx, update)
	if err != nil {
		if errors.Is(err, store.ErrMemoryNotFound) {
			return nil, opErr(op, id, err)
		}
		return nil, opErr(op, id, &StoreError{Err: err})
	}
	return record, nil
}

// Delete removes one record permanently. Subsequent Gets on the id
// return ErrNotFound.
func (c *Client) Delete(ctx context.Context, id string, opts ...Option) error {
	began := time.Now()
	opt := c.callOptions(opts)
	err := c.store.DeleteMemory(ctx, opt.owner, id)
	c.metrics.ObserveOp("delete", err, began)
	if err != nil {
		return opErr("delete", id, err)
	}
	return nil
}

// DeleteAll removes every record of the owner and reports how many were
// deleted.
func (c *Client) DeleteAll(ctx context.Context, opts ...Option) (int64, error) {
	began := time.Now()
	opt := c.callOptions(opts)
	count, err := c.store.DeleteAllMemories(ctx, opt.owner)
	c.metrics.ObserveOp("delete_all", err, began)
	if err != nil {
		return 0, opErr("delete_all", "", &StoreError{Err: err})
	}
	return count, nil
}

// Ping verifies store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *Client) compileFilter(expr string) (store.FilterClause, error) {
	if expr == "" {
		return store.FilterClause{}, nil
	}
	f, err := filter.Compile(expr)
	if err != nil {
		return store.FilterClause{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return f.Clause(c.dialect)
}

// extract calls the extraction service under the retry policy and the
// per-call timeout.
func (c *Client) extract(ctx context.Context, text string, opt callOptions) (*ai.Extraction, error) {
	var extraction *ai.Extraction
	err := retry.Do(ctx, c.retryPol, retryable, func(ctx context.Context) error {
		if err := c.admit(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, opt.timeout)
		defer cancel()

		var err error
		extraction, err = c.extractor.Extract(callCtx, text, opt.generateOptions())
		return err
	})
	if err != nil {
		if errors.Is(err, ai.ErrMalformedExtraction) {
			return nil, err
		}
		return nil, &ServiceError{Service: "extraction", Err: err}
	}
	return extraction, nil
}

// embed calls the embedding service under the retry policy and the
// per-call timeout.
func (c *Client) embed(ctx context.Context, text string, opt callOptions) ([]float32, error) {
	var vector []float32
	err := retry.Do(ctx, c.retryPol, retryable, func(ctx context.Context) error {
		if err := c.admit(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, opt.timeout)
		defer cancel()

		c.metrics.EmbeddingCalls.Inc()
		var err error
		vector, err = c.embedder.Embed(callCtx, text)
		return err
	})
	if err != nil {
		if errors.Is(err, ai.ErrDimensionMismatch) {
			return nil, err
		}
		return nil, &ServiceError{Service: "embedding", Err: err}
	}
	if dim := c.embedder.Dimensions(); dim > 0 && len(vector) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ai.ErrDimensionMismatch, len(vector), dim)
	}
	return vector, nil
}

// admit applies the configured request rate limit before an external
// call.
func (c *Client) admit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// runChain executes the processor chain in registration order, merging
// each processor's metadata last-write-wins. A failing or panicking
// processor contributes nothing but never aborts the save.
func (c *Client) runChain(ctx context.Context, log *slog.Logger, record *store.Memory) {
	for _, p := range c.chain.snapshot() {
		out, err := runProcessor(ctx, p, record)
		if err != nil {
			c.metrics.ProcessorFailures.WithLabelValues(p.Name()).Inc()
			log.Warn("processor failed", "processor", p.Name(), "error", err)
			continue
		}
		for k, v := range out {
			record.Metadata[k] = v
		}
	}
}
