package service

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/facepay/facepay/internal/types"
)

// FaceStore is the embedding registry the verification path reads.
// Embedding extraction itself happens client-side; the server only
// stores reference embeddings and scores candidates against them.
type FaceStore interface {
	SaveEmbedding(ctx context.Context, name string, embedding []float64) (int64, error)
	ListEmbeddings(ctx context.Context) ([]types.FaceEmbedding, error)
	ListSubjects(ctx context.Context) ([]types.FaceEmbedding, error)
}

type Face struct {
	store            FaceStore
	logger           *logrus.Logger
	defaultThreshold float64
}

func NewFaceService(store FaceStore, defaultThreshold float64) *Face {
	return &Face{
		store:            store,
		logger:           logrus.WithField("service", "face").Logger,
		defaultThreshold: defaultThreshold,
	}
}

func (f *Face) Register(ctx context.Context, name string, embedding []float64) (int64, error) {
	id, err := f.store.SaveEmbedding(ctx, name, embedding)
	if err != nil {
		return 0, fmt.Errorf("fail to save embedding, err: %w", err)
	}
	f.logger.WithFields(logrus.Fields{
		"id":   id,
		"name": name,
	}).Info("face registered")
	return id, nil
}

// Verify scores the candidate embedding against every stored reference
// and returns the best match at or above the threshold.
func (f *Face) Verify(ctx context.Context, embedding []float64, threshold float64) (*types.FaceMatch, error) {
	if threshold <= 0 {
		threshold = f.defaultThreshold
	}
	stored, err := f.store.ListEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fail to list embeddings, err: %w", err)
	}

	best := &types.FaceMatch{}
	for _, ref := range stored {
		similarity, err := cosineSimilarity(embedding, ref.Embedding)
		if err != nil {
			f.logger.WithFields(logrus.Fields{
				"id":    ref.ID,
				"error": err,
			}).Warn("skipping reference embedding")
			continue
		}
		if similarity >= threshold && similarity > best.Similarity {
			best = &types.FaceMatch{
				Matched:    true,
				ID:         ref.ID,
				Name:       ref.Name,
				Similarity: similarity,
			}
		}
	}
	return best, nil
}

func (f *Face) ListSubjects(ctx context.Context) ([]types.FaceEmbedding, error) {
	return f.store.ListSubjects(ctx)
}

func cosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding length mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (normA * normB), nil
}
