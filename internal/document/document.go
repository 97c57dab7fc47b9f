// Package document is the gateway to the MongoDB document store holding
// cached products and query templates. All cache reads and writes in the
// resolver go through a single Store.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/fitsch/aggregator/internal/model"
)

var (
	// ErrNotFound reports that no document matched the key.
	ErrNotFound = errors.New("document: not found")
	// ErrConnection reports that the store is unreachable or unconnected.
	ErrConnection = errors.New("document: no connection")
)

var (
	documentReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "document_reads_total",
		Help: "Document store read operations by collection and outcome.",
	}, []string{"collection", "outcome"})
	documentWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "document_writes_total",
		Help: "Document store write operations by collection and outcome.",
	}, []string{"collection", "outcome"})
)

const (
	productsCollection = "products"
	queriesCollection  = "queries"

	opTimeout = 10 * time.Second
)

// Store wraps a mongo client scoped to one database. A nil or unconnected
// Store behaves like an empty cache: reads miss, writes are dropped with a
// warning. The service stays useful without its cache.
type Store struct {
	client *mongo.Client
	dbName string
}

// Connect dials the store and verifies the connection with a ping.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to document store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging document store: %w", err)
	}

	log.Info().Str("database", dbName).Msg("Connected to document store")
	return &Store{client: client, dbName: dbName}, nil
}

// Ping verifies the connection is still live.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return ErrConnection
	}
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.client.Database(s.dbName).Collection(name)
}

// GetProducts fetches the products with the given ids. Missing ids are simply
// absent from the returned map; only transport failures error.
func (s *Store) GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error) {
	if s == nil || s.client == nil {
		log.Warn().Msg("Document store not connected, treating product lookup as a miss")
		return map[string]model.Product{}, nil
	}
	if len(ids) == 0 {
		return map[string]model.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := s.collection(productsCollection).Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		documentReads.WithLabelValues(productsCollection, "error").Inc()
		return nil, fmt.Errorf("fetching products: %w", err)
	}
	defer cursor.Close(ctx)

	found := make(map[string]model.Product, len(ids))
	for cursor.Next(ctx) {
		var p model.Product
		if err := cursor.Decode(&p); err != nil {
			documentReads.WithLabelValues(productsCollection, "error").Inc()
			return nil, fmt.Errorf("decoding product: %w", err)
		}
		found[p.ID] = p
	}
	if err := cursor.Err(); err != nil {
		documentReads.WithLabelValues(productsCollection, "error").Inc()
		return nil, fmt.Errorf("iterating products: %w", err)
	}

	documentReads.WithLabelValues(productsCollection, "ok").Inc()
	return found, nil
}

// GetQueryTemplate fetches the cache entry for one query string. Returns
// ErrNotFound when the query has never been stored.
func (s *Store) GetQueryTemplate(ctx context.Context, queryString string) (model.QueryTemplate, error) {
	if s == nil || s.client == nil {
		log.Warn().Msg("Document store not connected, treating query lookup as a miss")
		return model.QueryTemplate{}, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var qt model.QueryTemplate
	err := s.collection(queriesCollection).
		FindOne(ctx, bson.M{"query_string": queryString}).Decode(&qt)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		documentReads.WithLabelValues(queriesCollection, "miss").Inc()
		return model.QueryTemplate{}, ErrNotFound
	case err != nil:
		documentReads.WithLabelValues(queriesCollection, "error").Inc()
		return model.QueryTemplate{}, fmt.Errorf("fetching query template: %w", err)
	}

	documentReads.WithLabelValues(queriesCollection, "ok").Inc()
	return qt, nil
}

// PutProducts upserts products keyed by id. Existing documents with the same
// ids are replaced wholesale.
func (s *Store) PutProducts(ctx context.Context, products []model.Product) error {
	if s == nil || s.client == nil {
		log.Warn().Int("count", len(products)).
			Msg("Document store not connected, dropping product write")
		return nil
	}
	if len(products) == 0 {
		return nil
	}

	ids := make([]string, len(products))
	docs := make([]interface{}, len(products))
	for i, p := range products {
		ids[i] = p.ID
		docs[i] = p
	}
	return s.replace(ctx, productsCollection, "id", ids, docs)
}

// PutQueryTemplates upserts cache entries keyed by query string.
func (s *Store) PutQueryTemplates(ctx context.Context, templates []model.QueryTemplate) error {
	if s == nil || s.client == nil {
		log.Warn().Int("count", len(templates)).
			Msg("Document store not connected, dropping query template write")
		return nil
	}
	if len(templates) == 0 {
		return nil
	}

	keys := make([]string, len(templates))
	docs := make([]interface{}, len(templates))
	for i, t := range templates {
		keys[i] = t.QueryString
		docs[i] = t
	}
	return s.replace(ctx, queriesCollection, "query_string", keys, docs)
}

// replace deletes any documents matching the keys, then inserts the new set.
func (s *Store) replace(ctx context.Context, coll, keyField string, keys []string, docs []interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	c := s.collection(coll)
	if _, err := c.DeleteMany(ctx, bson.M{keyField: bson.M{"$in": keys}}); err != nil {
		documentWrites.WithLabelValues(coll, "error").Inc()
		return fmt.Errorf("clearing stale %s documents: %w", coll, err)
	}
	if _, err := c.InsertMany(ctx, docs); err != nil {
		documentWrites.WithLabelValues(coll, "error").Inc()
		return fmt.Errorf("inserting %s documents: %w", coll, err)
	}

	documentWrites.WithLabelValues(coll, "ok").Inc()
	return nil
}
