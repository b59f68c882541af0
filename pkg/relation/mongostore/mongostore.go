// Package mongostore keeps relationship pivot rows as documents in a
// MongoDB collection, one document per link.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/relation"
)

// pivotField names the document field holding the pivot table name, so
// several relationships can share one collection.
const pivotField = "pivot"

// Store implements relation.PivotStore on a MongoDB collection.
type Store struct {
	client *mongo.Client // nil when the collection was supplied by the caller
	coll   *mongo.Collection
	logger *slog.Logger
}

var _ relation.PivotStore = (*Store)(nil)

// Connect dials the server named in cfg and verifies it with a ping on the
// primary.
func Connect(ctx context.Context, cfg config.RelationsConfig, logger *slog.Logger) (*Store, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("mongo: URI is required in configuration")
	}
	if cfg.MongoDatabase == "" {
		return nil, errors.New("mongo: database name is required in configuration")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: failed to ping server: %w", err)
	}

	collection := cfg.MongoCollection
	if collection == "" {
		collection = "pivots"
	}
	s := New(client.Database(cfg.MongoDatabase).Collection(collection), logger)
	s.client = client
	return s, nil
}

// New wraps an existing collection.
func New(coll *mongo.Collection, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{coll: coll, logger: logger.With("store", "mongo", "collection", coll.Name())}
}

// EnsureIndexes creates the unique link index for pivot.
func (s *Store) EnsureIndexes(ctx context.Context, pivot relation.Pivot) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: pivotField, Value: 1}, {Key: pivot.ForeignKey, Value: 1}, {Key: pivot.RelatedKey, Value: 1}},
		Options: options.Index().SetUnique(true).SetName(pivot.Table + "_link"),
	})
	if err != nil {
		return fmt.Errorf("mongo: create index for %s: %w", pivot.Table, err)
	}
	return nil
}

// Close disconnects the client opened by Connect.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	if err != nil {
		return fmt.Errorf("mongo: error disconnecting: %w", err)
	}
	return nil
}

func linkFilter(pivot relation.Pivot, parentID any) bson.M {
	return bson.M{pivotField: pivot.Table, pivot.ForeignKey: parentID}
}

func (s *Store) Related(ctx context.Context, pivot relation.Pivot, parentID any) ([]any, error) {
	opts := options.Find().SetProjection(bson.M{pivot.RelatedKey: 1, "_id": 0})
	if pivot.SortColumn != "" {
		opts.SetSort(bson.D{{Key: pivot.SortColumn, Value: 1}, {Key: "_id", Value: 1}})
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}

	cursor, err := s.coll.Find(ctx, linkFilter(pivot, parentID), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find %s: %w", pivot.Table, err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode %s: %w", pivot.Table, err)
	}

	ids := make([]any, 0, len(docs))
	for _, doc := range docs {
		if v, ok := doc[pivot.RelatedKey]; ok {
			ids = append(ids, relation.NormalizeID(v))
		}
	}
	return ids, nil
}

// Attach upserts one document per id, so existing links are left alone.
func (s *Store) Attach(ctx context.Context, pivot relation.Pivot, parentID any, ids []any) error {
	upsert := options.Update().SetUpsert(true)
	for _, id := range ids {
		filter := linkFilter(pivot, parentID)
		filter[pivot.RelatedKey] = id
		update := bson.M{"$setOnInsert": bson.M{"attachedAt": time.Now().UTC()}}
		if _, err := s.coll.UpdateOne(ctx, filter, update, upsert); err != nil {
			return fmt.Errorf("mongo: attach %v to %s: %w", id, pivot.Table, err)
		}
	}
	s.logger.Debug("attached", "pivot", pivot.Table, "parent", parentID, "count", len(ids))
	return nil
}

func (s *Store) Detach(ctx context.Context, pivot relation.Pivot, parentID any, ids []any) error {
	if len(ids) == 0 {
		return nil
	}
	filter := linkFilter(pivot, parentID)
	filter[pivot.RelatedKey] = bson.M{"$in": ids}
	res, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongo: detach from %s: %w", pivot.Table, err)
	}
	s.logger.Debug("detached", "pivot", pivot.Table, "parent", parentID, "deleted", res.DeletedCount)
	return nil
}

func (s *Store) SetSortOrder(ctx context.Context, pivot relation.Pivot, parentID, id any, position int) error {
	filter := linkFilter(pivot, parentID)
	filter[pivot.RelatedKey] = id
	update := bson.M{"$set": bson.M{pivot.SortColumnOrDefault(): position}}
	if _, err := s.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("mongo: reorder %s: %w", pivot.Table, err)
	}
	return nil
}
