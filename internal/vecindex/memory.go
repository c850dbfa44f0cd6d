package vecindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sceneseek/sceneseek/internal/models"
)

// Memory is an in-process Index. It backs local mode and lets tests
// substitute the external store while honoring the same contract.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	records map[string]Record
}

func NewMemory(dimension int) *Memory {
	return &Memory{
		dim:     dimension,
		records: make(map[string]Record),
	}
}

func (m *Memory) Dimension() int {
	return m.dim
}

func (m *Memory) Upsert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rec.Vector) != m.dim {
		return fmt.Errorf("%w: vector has %d dimensions, index expects %d",
			models.ErrInvalidInput, len(rec.Vector), m.dim)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = rec
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// Query scans all records with cosine similarity and returns the top k,
// ties broken by ascending (video id, scene index). An empty index yields
// an empty result, not an error.
func (m *Memory) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index expects %d",
			models.ErrInvalidInput, len(vector), m.dim)
	}

	m.mu.RLock()
	matches := make([]Match, 0, len(m.records))
	for _, rec := range m.records {
		matches = append(matches, Match{
			Key:        rec.Key,
			VideoID:    rec.VideoID,
			SceneIndex: rec.SceneIndex,
			Score:      cosineSimilarity(vector, rec.Vector),
			Tags:       rec.Tags,
		})
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].VideoID != matches[j].VideoID {
			return matches[i].VideoID < matches[j].VideoID
		}
		return matches[i].SceneIndex < matches[j].SceneIndex
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
