package bruteforce

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexdata-bo/normadex/internal/adapters/driven/storage/memory"
	"github.com/lexdata-bo/normadex/internal/core/domain"
)

const model = "text-embedding-3-small"

func TestIndex_SearchRanking(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, model, "a", []float32{1, 0}))
	require.NoError(t, ix.Add(ctx, model, "b", []float32{0.8, 0.6}))
	require.NoError(t, ix.Add(ctx, model, "c", []float32{0, 1}))

	hits, err := ix.Search(ctx, model, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "a", hits[0].ArticleID)
	assert.Equal(t, "b", hits[1].ArticleID)
	assert.Equal(t, "c", hits[2].ArticleID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.InDelta(t, 0.8, hits[1].Similarity, 1e-9)
	assert.InDelta(t, 0.0, hits[2].Similarity, 1e-9)
}

func TestIndex_SearchTruncatesToK(t *testing.T) {
	ix := New()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, ix.Add(ctx, model, id, []float32{1, 0}))
	}

	hits, err := ix.Search(ctx, model, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestIndex_SearchDeterministicTies(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, model, "z", []float32{1, 0}))
	require.NoError(t, ix.Add(ctx, model, "a", []float32{1, 0}))
	require.NoError(t, ix.Add(ctx, model, "m", []float32{1, 0}))

	for i := 0; i < 3; i++ {
		hits, err := ix.Search(ctx, model, []float32{1, 0}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "a", hits[0].ArticleID)
		assert.Equal(t, "m", hits[1].ArticleID)
		assert.Equal(t, "z", hits[2].ArticleID)
	}
}

func TestIndex_EmptyIsNotAnError(t *testing.T) {
	ix := New()

	hits, err := ix.Search(context.Background(), model, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_AddReplaces(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, model, "a", []float32{1, 0}))
	require.NoError(t, ix.Add(ctx, model, "a", []float32{0, 1}))

	hits, err := ix.Search(ctx, model, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

func TestIndex_DimensionFixedPerModel(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, model, "a", []float32{1, 0, 0}))

	err := ix.Add(ctx, model, "b", []float32{1, 0})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = ix.Search(ctx, model, []float32{1, 0}, 5)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// A second model carries its own dimensionality.
	require.NoError(t, ix.Add(ctx, "otro-modelo", "b", []float32{1, 0}))
}

func TestIndex_ModelsArePartitioned(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "m1", "a", []float32{1, 0}))
	require.NoError(t, ix.Add(ctx, "m2", "b", []float32{1, 0}))

	hits, err := ix.Search(ctx, "m1", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ArticleID)
}

func TestIndex_Delete(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "m1", "a", []float32{1, 0}))
	require.NoError(t, ix.Add(ctx, "m2", "a", []float32{1, 0, 0}))
	require.NoError(t, ix.Delete(ctx, "a"))

	hits, err := ix.Search(ctx, "m1", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = ix.Search(ctx, "m2", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_RejectsEmptyVector(t *testing.T) {
	ix := New()
	err := ix.Add(context.Background(), model, "a", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndex_ZeroNormVectorScoresZero(t *testing.T) {
	ix := New()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, model, "a", []float32{0, 0}))

	hits, err := ix.Search(ctx, model, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Zero(t, hits[0].Similarity)
}

func TestIndex_LoadFromStore(t *testing.T) {
	ix := New()
	ctx := context.Background()

	store := memory.NewEmbeddingStore()
	for _, e := range []domain.Embedding{
		{ArticleID: "a", Model: model, Vector: []float32{1, 0}, CreatedAt: time.Now()},
		{ArticleID: "b", Model: model, Vector: []float32{0, 1}, CreatedAt: time.Now()},
		{ArticleID: "c", Model: "otro", Vector: []float32{1}, CreatedAt: time.Now()},
	} {
		require.NoError(t, store.Upsert(ctx, e))
	}

	require.NoError(t, ix.Load(ctx, store, model))

	hits, err := ix.Search(ctx, model, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
