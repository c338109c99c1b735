package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facepay/facepay/internal/types"
)

type fakeFaceStore struct {
	embeddings []types.FaceEmbedding
	nextID     int64
}

func (f *fakeFaceStore) SaveEmbedding(_ context.Context, name string, embedding []float64) (int64, error) {
	f.nextID++
	f.embeddings = append(f.embeddings, types.FaceEmbedding{
		ID:        f.nextID,
		Name:      name,
		Embedding: embedding,
		CreatedAt: time.Now(),
	})
	return f.nextID, nil
}

func (f *fakeFaceStore) ListEmbeddings(_ context.Context) ([]types.FaceEmbedding, error) {
	return f.embeddings, nil
}

func (f *fakeFaceStore) ListSubjects(_ context.Context) ([]types.FaceEmbedding, error) {
	out := make([]types.FaceEmbedding, len(f.embeddings))
	copy(out, f.embeddings)
	for i := range out {
		out[i].Embedding = nil
	}
	return out, nil
}

func TestCosineSimilarity(t *testing.T) {
	sim, err := cosineSimilarity([]float64{1, 0, 0}, []float64{1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = cosineSimilarity([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = cosineSimilarity([]float64{1, 0}, []float64{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)

	_, err = cosineSimilarity([]float64{1, 0}, []float64{1, 0, 0})
	assert.Error(t, err)

	sim, err = cosineSimilarity([]float64{0, 0}, []float64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestFaceVerify(t *testing.T) {
	store := &fakeFaceStore{}
	face := NewFaceService(store, 0.6)
	ctx := context.Background()

	_, err := face.Register(ctx, "alice", []float64{1, 0, 0})
	require.NoError(t, err)
	bobID, err := face.Register(ctx, "bob", []float64{0, 1, 0})
	require.NoError(t, err)

	match, err := face.Verify(ctx, []float64{0.1, 0.99, 0}, 0)
	require.NoError(t, err)
	assert.True(t, match.Matched)
	assert.Equal(t, bobID, match.ID)
	assert.Equal(t, "bob", match.Name)
	assert.Greater(t, match.Similarity, 0.9)
}

func TestFaceVerifyBelowThreshold(t *testing.T) {
	store := &fakeFaceStore{}
	face := NewFaceService(store, 0.6)
	ctx := context.Background()

	_, err := face.Register(ctx, "alice", []float64{1, 0, 0})
	require.NoError(t, err)

	match, err := face.Verify(ctx, []float64{0, 1, 0}, 0)
	require.NoError(t, err)
	assert.False(t, match.Matched)
}

func TestFaceVerifySkipsMismatchedReference(t *testing.T) {
	store := &fakeFaceStore{}
	face := NewFaceService(store, 0.6)
	ctx := context.Background()

	_, err := face.Register(ctx, "short", []float64{1, 0})
	require.NoError(t, err)
	_, err = face.Register(ctx, "alice", []float64{1, 0, 0})
	require.NoError(t, err)

	match, err := face.Verify(ctx, []float64{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.True(t, match.Matched)
	assert.Equal(t, "alice", match.Name)
}
