package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorly/core/record"
	"github.com/trezcool/tutorly/tests"
)

const things = "things"

func TestStores(t *testing.T) {
	for name, store := range testutil.Stores(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			testStore(t, store)
		})
	}
}

func testStore(t *testing.T, store record.Store) {
	ctx := context.Background()

	id, err := store.Create(ctx, things, record.Doc{"name": "a", "count": 1, "tags": []string{"x", "y"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	id2, err := store.Create(ctx, things, record.Doc{"name": "b", "count": 2, "tags": []string{"y"}})
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		doc, err := store.Get(ctx, things, id)
		require.NoError(t, err)
		assert.Equal(t, id, record.ID(doc))
		assert.Equal(t, "a", doc["name"])
		assert.NotEmpty(t, doc[record.FieldCreatedAt])

		_, err = store.Get(ctx, things, "00000000-0000-0000-0000-000000000000")
		assert.True(t, errors.Is(err, record.ErrNotFound), "Get() error = %v", err)
	})

	t.Run("query", func(t *testing.T) {
		docs, err := store.Query(ctx, things)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, id, record.ID(docs[0]))
		assert.Equal(t, id2, record.ID(docs[1]))

		docs, err = store.Query(ctx, things, record.ArrayContains("tags", "x"))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, id, record.ID(docs[0]))

		docs, err = store.Query(ctx, things, record.ArrayContains("tags", "y"), record.Eq("name", "b"))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, id2, record.ID(docs[0]))

		docs, err = store.Query(ctx, "nothing")
		require.NoError(t, err)
		assert.Empty(t, docs)

		_, err = store.Query(ctx, things, record.Filter{Field: "count", Op: ">", Value: 1})
		assert.True(t, errors.Is(err, record.ErrInvalidOp), "Query() error = %v", err)
	})

	t.Run("update", func(t *testing.T) {
		require.NoError(t, store.Update(ctx, things, id, record.Doc{"name": "aa", "extra": true}))
		doc, err := store.Get(ctx, things, id)
		require.NoError(t, err)
		assert.Equal(t, "aa", doc["name"])
		assert.Equal(t, true, doc["extra"])
		assert.Equal(t, float64(1), doc["count"])
		assert.NotEmpty(t, doc[record.FieldUpdatedAt])

		err = store.Update(ctx, things, "00000000-0000-0000-0000-000000000000", record.Doc{"name": "x"})
		assert.True(t, errors.Is(err, record.ErrNotFound), "Update() error = %v", err)
	})

	t.Run("update if", func(t *testing.T) {
		ok, err := store.UpdateIf(ctx, things, id2, record.Eq("name", "nope"), record.Doc{"name": "c"})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.UpdateIf(ctx, things, id2, record.Eq("name", "b"), record.Doc{"name": "c"})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.UpdateIf(ctx, things, id2, record.Eq("name", "b"), record.Doc{"name": "d"})
		require.NoError(t, err)
		assert.False(t, ok)

		doc, err := store.Get(ctx, things, id2)
		require.NoError(t, err)
		assert.Equal(t, "c", doc["name"])
	})

	t.Run("increment", func(t *testing.T) {
		require.NoError(t, store.Increment(ctx, things, id, "count", 2.5))
		require.NoError(t, store.Increment(ctx, things, id, "missing", 1))
		doc, err := store.Get(ctx, things, id)
		require.NoError(t, err)
		assert.Equal(t, 3.5, doc["count"])
		assert.Equal(t, float64(1), doc["missing"])

		err = store.Increment(ctx, things, "00000000-0000-0000-0000-000000000000", "count", 1)
		assert.True(t, errors.Is(err, record.ErrNotFound), "Increment() error = %v", err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, things, id))
		require.NoError(t, store.Delete(ctx, things, id))
		_, err := store.Get(ctx, things, id)
		assert.True(t, errors.Is(err, record.ErrNotFound))

		docs, err := store.Query(ctx, things)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, id2, record.ID(docs[0]))
	})
}
