package vecindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneseek/sceneseek/internal/models"
)

func rec(video string, scene int, vec []float32) Record {
	return Record{
		Key:        models.SceneKey{VideoID: video, SceneIndex: scene}.String(),
		VideoID:    video,
		SceneIndex: scene,
		Vector:     vec,
	}
}

func TestMemoryUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(3)

	require.NoError(t, idx.Upsert(ctx, rec("vid", 0, []float32{1, 0, 0})))
	require.NoError(t, idx.Upsert(ctx, rec("vid", 0, []float32{1, 0, 0})))

	assert.Equal(t, 1, idx.Len(), "re-indexing the same scene must overwrite, not duplicate")
}

func TestMemoryUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(3)

	require.NoError(t, idx.Upsert(ctx, rec("vid", 0, []float32{1, 0, 0})))
	require.NoError(t, idx.Upsert(ctx, rec("vid", 0, []float32{0, 1, 0})))

	matches, err := idx.Query(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-6, "last write wins")
}

func TestMemoryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(3)

	err := idx.Upsert(ctx, rec("vid", 0, []float32{1, 0}))
	require.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = idx.Query(ctx, []float32{1, 0}, 1)
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestMemoryQueryTopK(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(2)

	vectors := [][]float32{
		{1, 0},
		{0.9, 0.1},
		{0.5, 0.5},
		{0.1, 0.9},
		{0, 1},
	}
	for i, v := range vectors {
		require.NoError(t, idx.Upsert(ctx, rec("vid", i, v)))
	}

	matches, err := idx.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3, "k=3 against 5 entries returns exactly 3")

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score,
			"results sorted by non-increasing similarity")
	}
	assert.Equal(t, 0, matches[0].SceneIndex)
}

func TestMemoryQueryEmptyIndex(t *testing.T) {
	idx := NewMemory(2)
	matches, err := idx.Query(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err, "an empty index is not an error")
	assert.Empty(t, matches)
}

func TestMemoryQueryTieBreak(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(2)

	// Identical vectors: equal scores, so order falls back to
	// ascending (video id, scene index).
	require.NoError(t, idx.Upsert(ctx, rec("vid-b", 0, []float32{1, 0})))
	require.NoError(t, idx.Upsert(ctx, rec("vid-a", 1, []float32{1, 0})))
	require.NoError(t, idx.Upsert(ctx, rec("vid-a", 0, []float32{1, 0})))

	matches, err := idx.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "vid-a", matches[0].VideoID)
	assert.Equal(t, 0, matches[0].SceneIndex)
	assert.Equal(t, "vid-a", matches[1].VideoID)
	assert.Equal(t, 1, matches[1].SceneIndex)
	assert.Equal(t, "vid-b", matches[2].VideoID)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(2)

	require.NoError(t, idx.Upsert(ctx, rec("vid", 0, []float32{1, 0})))
	require.NoError(t, idx.Delete(ctx, models.SceneKey{VideoID: "vid", SceneIndex: 0}.String()))
	assert.Equal(t, 0, idx.Len())
}
