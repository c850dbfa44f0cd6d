package main

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sceneseek/sceneseek/internal/models"
	"github.com/sceneseek/sceneseek/internal/vecindex"
)

type fixedDimModel struct{ dim int }

func (f *fixedDimModel) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	return make([]float32, f.dim), nil
}

func (f *fixedDimModel) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dim), nil
}

func (f *fixedDimModel) Dimension() int { return f.dim }

func TestCheckDimensions(t *testing.T) {
	index := vecindex.NewMemory(512)

	require.NoError(t, checkDimensions(&fixedDimModel{dim: 512}, index))

	err := checkDimensions(&fixedDimModel{dim: 1536}, index)
	require.ErrorIs(t, err, models.ErrInvalidInput,
		"a mismatched model/index pairing fails before any video is processed")
}
