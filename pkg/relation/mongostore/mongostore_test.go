package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/logging"
	"github.com/chmenegatti/multiselect/pkg/relation"
)

// setupStore connects to the server named by MULTISELECT_TEST_MONGO_URI and
// returns a store on a throwaway collection.
func setupStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MULTISELECT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("Skipping MongoDB integration test: MULTISELECT_TEST_MONGO_URI is not set")
	}

	ctx := context.Background()
	store, err := Connect(ctx, config.RelationsConfig{
		Store:           "mongo",
		MongoURI:        uri,
		MongoDatabase:   "multiselect_test",
		MongoCollection: fmt.Sprintf("pivots_%d", time.Now().UnixNano()),
	}, logging.Discard())
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, store.coll.Drop(context.Background()))
		assert.NoError(t, store.Close(context.Background()))
	})
	return store
}

func TestStore_ApplyRelationshipChange(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	pivot := relation.Pivot{Table: "post_tag", ForeignKey: "post_id", RelatedKey: "tag_id", SortColumn: "sort_order"}
	require.NoError(t, store.EnsureIndexes(ctx, pivot))

	require.NoError(t, store.Attach(ctx, pivot, int64(1), []any{int64(5), int64(7)}))
	require.NoError(t, store.Attach(ctx, pivot, int64(2), []any{int64(5)}))

	change := relation.Change{Attach: []any{int64(3), int64(2)}, Detach: []any{int64(5)}}
	require.NoError(t, relation.Apply(ctx, store, pivot, int64(1), change, true))

	ids, err := store.Related(ctx, pivot, int64(1))
	require.NoError(t, err)
	// 7 never received a position, so it sorts first (missing field).
	assert.Equal(t, []any{int64(7), int64(3), int64(2)}, ids)

	other, err := store.Related(ctx, pivot, int64(2))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(5)}, other, "other parents are untouched")
}

func TestConnect_RequiresSettings(t *testing.T) {
	_, err := Connect(context.Background(), config.RelationsConfig{}, nil)
	assert.ErrorContains(t, err, "URI is required")

	_, err = Connect(context.Background(), config.RelationsConfig{MongoURI: "mongodb://localhost"}, nil)
	assert.ErrorContains(t, err, "database name is required")
}
