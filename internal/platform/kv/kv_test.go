package kv

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcflow/internal/sentinel"
)

type record struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func newBoltStore(t *testing.T) Store[record] {
	t.Helper()
	db, err := OpenBolt(filepath.Join(t.TempDir(), "vcflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store, err := NewBolt[record](db, "records")
	require.NoError(t, err)
	return store
}

func newRedisStore(t *testing.T) Store[record] {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis[record](client, "records")
}

func backends() map[string]func(t *testing.T) Store[record] {
	return map[string]func(t *testing.T) Store[record]{
		"memory": func(*testing.T) Store[record] { return NewMemory[record]() },
		"bolt":   newBoltStore,
		"redis":  newRedisStore,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("missing key is ErrNotFound", func(t *testing.T) {
				store := newStore(t)
				_, err := store.Get(ctx, "nope")
				assert.ErrorIs(t, err, sentinel.ErrNotFound)
				assert.ErrorIs(t, store.Delete(ctx, "nope"), sentinel.ErrNotFound)
			})

			t.Run("set overwrites", func(t *testing.T) {
				store := newStore(t)
				require.NoError(t, store.Set(ctx, "a", record{ID: "a", Label: "first"}))
				require.NoError(t, store.Set(ctx, "a", record{ID: "a", Label: "second"}))

				got, err := store.Get(ctx, "a")
				require.NoError(t, err)
				assert.Equal(t, "second", got.Label)
			})

			t.Run("list and delete", func(t *testing.T) {
				store := newStore(t)
				for _, id := range []string{"a", "b", "c"} {
					require.NoError(t, store.Set(ctx, id, record{ID: id}))
				}
				require.NoError(t, store.Delete(ctx, "b"))

				all, err := store.List(ctx)
				require.NoError(t, err)
				ids := make([]string, 0, len(all))
				for _, r := range all {
					ids = append(ids, r.ID)
				}
				slices.Sort(ids)
				assert.Equal(t, []string{"a", "c"}, ids)
			})

			t.Run("clear reports count and empties", func(t *testing.T) {
				store := newStore(t)
				require.NoError(t, store.Set(ctx, "a", record{ID: "a"}))
				require.NoError(t, store.Set(ctx, "b", record{ID: "b"}))

				n, err := store.Clear(ctx)
				require.NoError(t, err)
				assert.Equal(t, 2, n)

				all, err := store.List(ctx)
				require.NoError(t, err)
				assert.Empty(t, all)

				n, err = store.Clear(ctx)
				require.NoError(t, err)
				assert.Zero(t, n)
			})
		})
	}
}

func TestBoltSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vcflow.db")

	db, err := OpenBolt(path)
	require.NoError(t, err)
	store, err := NewBolt[record](db, "records")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "kept", record{ID: "kept", Label: "x"}))
	require.NoError(t, db.Close())

	db, err = OpenBolt(path)
	require.NoError(t, err)
	defer db.Close()
	store, err = NewBolt[record](db, "records")
	require.NoError(t, err)

	got, err := store.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Label)
}

func TestRedisNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	invitations := NewRedis[record](client, "invitations")
	shortURLs := NewRedis[record](client, "short_urls")
	require.NoError(t, invitations.Set(ctx, "a", record{ID: "a"}))
	require.NoError(t, shortURLs.Set(ctx, "a", record{ID: "a", Label: "short"}))

	n, err := invitations.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := shortURLs.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "short", got.Label)
	assert.True(t, mr.Exists("vcflow:short_urls"))
}
