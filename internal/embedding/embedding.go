// Package embedding defines the embedding-model capability the pipeline
// consumes. Image and text embeddings must lie in the same vector space;
// which space that is depends on the backend wired in at startup.
package embedding

import (
	"context"
	"image"
	"math"
)

// Model maps images and text into a shared fixed-dimensionality space.
type Model interface {
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Normalize scales v to unit length in place. Cosine-metric indexes expect
// unit vectors.
func Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
