// Package query resolves search requests against the document-store cache,
// dispatching live retailer fetches only for the stores the cache cannot
// answer, and persisting fresh results for the next request.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitsch/aggregator/internal/delegate"
	"github.com/fitsch/aggregator/internal/document"
	"github.com/fitsch/aggregator/internal/model"
	"github.com/fitsch/aggregator/internal/stores"
	"github.com/fitsch/aggregator/internal/transfer"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "query_cache_hits_total",
		Help: "Queries answered entirely from the document store.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "query_cache_misses_total",
		Help: "Queries requiring at least one live retailer fetch.",
	})
	queriesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queries_resolved_total",
		Help: "Total query resolutions completed.",
	})
)

// Request is one term to resolve against a retailer selection.
type Request struct {
	QueryString  string
	Stores       model.StoreSelection
	Depth        int
	ForceRefresh bool
}

// ReplyFunc receives the merged product list for a request. It is called
// exactly once per Resolve, possibly with an empty slice.
type ReplyFunc func(products []model.Product)

// Store is the slice of the document gateway the resolver reads and writes.
// *document.Store satisfies it; a nil *document.Store acts as an empty cache.
type Store interface {
	GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error)
	GetQueryTemplate(ctx context.Context, queryString string) (model.QueryTemplate, error)
	PutProducts(ctx context.Context, products []model.Product) error
	PutQueryTemplates(ctx context.Context, templates []model.QueryTemplate) error
}

// Transferer issues HTTP transfers. *transfer.Driver satisfies it.
type Transferer interface {
	Submit(url string, opts transfer.Options, done transfer.Completion)
}

// Resolver coordinates the cache lookup, the per-store fetches and the final
// merge for each query.
type Resolver struct {
	delegator *delegate.Delegator
	driver    Transferer
	store     Store
	registry  *stores.Registry
	ttl       time.Duration
	tracer    trace.Tracer
}

// New assembles a resolver. ttl is the maximum age of a usable cache entry.
func New(d *delegate.Delegator, driver Transferer, store Store,
	registry *stores.Registry, ttl time.Duration) *Resolver {
	return &Resolver{
		delegator: d,
		driver:    driver,
		store:     store,
		registry:  registry,
		ttl:       ttl,
		tracer:    otel.Tracer("query"),
	}
}

// fetchOutcome is the value carried by each sub-task's Result. queriedWebsite
// distinguishes live fetches from cache reads; only live results trigger
// persistence.
type fetchOutcome struct {
	queriedWebsite bool
	list           model.ProductList
}

// Resolve queues the request and returns immediately. The reply fires once
// every contributing sub-task has finished.
func (r *Resolver) Resolve(req Request, reply ReplyFunc) {
	req.Depth = model.NormalizeDepth(req.Depth)

	ctx, span := r.tracer.Start(context.Background(), "query.Resolve",
		trace.WithAttributes(
			attribute.String("query", req.QueryString),
			attribute.Int("depth", req.Depth),
			attribute.Bool("force_refresh", req.ForceRefresh),
		))

	r.delegator.QueueTasks(r.merge(ctx, span, req, reply), func(tc delegate.Context) delegate.Result {
		return r.cacheLookup(ctx, tc, req)
	})
}

// cacheLookup is the first task of every query group. It contributes the
// cache's share of the answer and queues fetch tasks for whatever is missing.
func (r *Resolver) cacheLookup(ctx context.Context, tc delegate.Context, req Request) delegate.Result {
	list := model.NewProductList(req.Depth)
	var missing model.StoreSelection

	switch {
	case req.ForceRefresh:
		missing = req.Stores
	default:
		missing = r.loadCached(ctx, req, &list)
	}

	if !missing.Empty() {
		cacheMisses.Inc()
		r.queueFetches(tc, req, missing)
	} else {
		cacheHits.Inc()
	}

	return delegate.Ok(fetchOutcome{queriedWebsite: false, list: list})
}

// loadCached populates list from the document store where possible and
// returns the stores that still need a live fetch.
func (r *Resolver) loadCached(ctx context.Context, req Request, list *model.ProductList) model.StoreSelection {
	cached, err := r.store.GetQueryTemplate(ctx, req.QueryString)
	switch {
	case errors.Is(err, document.ErrNotFound):
		return req.Stores
	case err != nil:
		log.Warn().Err(err).Str("query", req.QueryString).
			Msg("Cache lookup failed, querying all stores")
		return req.Stores
	}

	if !model.DepthCovers(cached.Depth, req.Depth) ||
		time.Now().Unix()-cached.Timestamp > int64(r.ttl.Seconds()) {
		return req.Stores
	}

	missing := req.Stores.Without(cached.Stores)

	// Only entries within the requested top-N are relevant.
	ids := make([]string, 0, len(cached.Results))
	for id, info := range cached.Results {
		if req.Depth != model.DepthIndefinite && info.Relevance >= req.Depth {
			continue
		}
		ids = append(ids, id)
	}

	products, err := r.store.GetProducts(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Str("query", req.QueryString).
			Msg("Product load failed, querying all stores")
		return req.Stores
	}
	if len(products) < len(ids) {
		log.Warn().Str("query", req.QueryString).
			Int("expected", len(ids)).Int("found", len(products)).
			Msg("Cache entry references missing products, querying all stores")
		return req.Stores
	}

	for id, p := range products {
		list.Entries = append(list.Entries, model.ProductEntry{
			Product: p,
			Info:    cached.Results[id],
		})
	}
	return missing
}

// queueFetches submits one search transfer per missing store. Each transfer
// hands its body to a parse task in the same group, so the group completes
// only after every response has been parsed.
func (r *Resolver) queueFetches(tc delegate.Context, req Request, missing model.StoreSelection) {
	for _, id := range missing.IDs() {
		adapter, ok := r.registry.Get(id)
		if !ok {
			log.Warn().Str("store", id.String()).Msg("No adapter registered for store")
			continue
		}

		handle := tc.Delegator.QueueExtraExternalTask(tc.Group)
		url := adapter.SearchURL(req.QueryString)
		opts := adapter.SearchRequestOptions(req.QueryString)

		r.driver.Submit(url, opts, func(body []byte, effectiveURL string, status transfer.Status) {
			if status != transfer.StatusOK {
				log.Warn().Str("store", adapter.Name()).Str("url", effectiveURL).
					Stringer("status", status).Msg("Search fetch failed")
				handle.Finish(delegate.Errored(errors.New("search fetch failed")))
				return
			}
			tc.Delegator.QueueExtraTasks(tc.Group, func(delegate.Context) delegate.Result {
				list := adapter.ParseSearchResponse(body, req.Depth)
				return delegate.Ok(fetchOutcome{queriedWebsite: true, list: list})
			})
			handle.Finish(delegate.Empty())
		})
	}
}

// merge is the group callback: it folds every sub-list into one reply and
// persists the merged set when any retailer was actually queried.
func (r *Resolver) merge(ctx context.Context, span trace.Span, req Request, reply ReplyFunc) delegate.ResultCallback {
	return func(results []delegate.Result) {
		defer span.End()

		merged := model.NewProductList(model.DepthIndefinite)
		queried := false
		for _, res := range results {
			if !res.IsOK() {
				continue
			}
			out, ok := res.Value().(fetchOutcome)
			if !ok {
				continue
			}
			merged.Add(out.list)
			if out.queriedWebsite {
				queried = true
			}
		}

		products := merged.Products()
		span.SetAttributes(attribute.Int("products", len(products)),
			attribute.Bool("queried_website", queried))
		queriesResolved.Inc()

		reply(products)

		if !queried {
			return
		}

		log.Debug().Str("query", req.QueryString).Int("products", len(products)).
			Msg("Uploading query results")
		tmpl := merged.AsQueryTemplate(req.QueryString, req.Stores)
		if err := r.store.PutQueryTemplates(ctx, []model.QueryTemplate{tmpl}); err != nil {
			log.Warn().Err(err).Str("query", req.QueryString).
				Msg("Failed to persist query template")
		}
		if len(products) > 0 {
			if err := r.store.PutProducts(ctx, products); err != nil {
				log.Warn().Err(err).Str("query", req.QueryString).
					Msg("Failed to persist products")
			}
		}
	}
}

// GetProductAtURL fetches and parses a single product page, persisting the
// result. The reply receives false when the fetch or the parse failed.
func (r *Resolver) GetProductAtURL(storeID model.StoreID, url string, reply func(model.Product, bool)) {
	adapter, ok := r.registry.Get(storeID)
	if !ok {
		log.Warn().Str("store", storeID.String()).Msg("No adapter registered for store")
		reply(model.Product{}, false)
		return
	}

	ctx, span := r.tracer.Start(context.Background(), "query.GetProductAtURL",
		trace.WithAttributes(attribute.String("url", url)))

	r.delegator.QueueTasks(func(results []delegate.Result) {
		defer span.End()

		for _, res := range results {
			if !res.IsOK() {
				continue
			}
			product, ok := res.Value().(model.Product)
			if !ok {
				continue
			}
			reply(product, true)
			if err := r.store.PutProducts(ctx, []model.Product{product}); err != nil {
				log.Warn().Err(err).Str("id", product.ID).Msg("Failed to persist product")
			}
			return
		}

		log.Warn().Str("url", url).Msg("No product found at URL")
		reply(model.Product{}, false)
	}, func(tc delegate.Context) delegate.Result {
		handle := tc.Delegator.QueueExtraExternalTask(tc.Group)

		r.driver.Submit(url, adapter.ProductRequestOptions(), func(body []byte, effectiveURL string, status transfer.Status) {
			if status != transfer.StatusOK {
				log.Warn().Str("url", effectiveURL).Stringer("status", status).
					Msg("Product fetch failed")
				handle.Finish(delegate.Errored(errors.New("product fetch failed")))
				return
			}
			tc.Delegator.QueueExtraTasks(tc.Group, func(delegate.Context) delegate.Result {
				product, ok := adapter.ParseProductPage(body)
				if !ok {
					return delegate.Errored(errors.New("product parse failed"))
				}
				return delegate.Ok(product)
			})
			handle.Finish(delegate.Empty())
		})

		return delegate.Empty()
	})
}
