package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneseek/sceneseek/internal/embedding"
	"github.com/sceneseek/sceneseek/internal/indexer"
	"github.com/sceneseek/sceneseek/internal/models"
	"github.com/sceneseek/sceneseek/internal/retrieval"
	"github.com/sceneseek/sceneseek/internal/sampler"
	"github.com/sceneseek/sceneseek/internal/segmenter"
	"github.com/sceneseek/sceneseek/internal/vecindex"
)

// stubModel keys the embedding space on the frame's first pixel and maps
// color names to the matching axis, so a text query finds the right scene.
type stubModel struct{ dim int }

func (s *stubModel) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	r, g, b, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	v := make([]float32, s.dim)
	v[0] = float32(r >> 8)
	v[1] = float32(g >> 8)
	v[2] = float32(b >> 8)
	embedding.Normalize(v)
	return v, nil
}

func (s *stubModel) EmbedText(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, s.dim)
	switch text {
	case "red":
		v[0] = 1
	case "green":
		v[1] = 1
	case "blue":
		v[2] = 1
	default:
		return nil, fmt.Errorf("%w: unknown text", models.ErrInvalidInput)
	}
	return v, nil
}

func (s *stubModel) Dimension() int { return s.dim }

func solidFrame(idx int, c color.RGBA) models.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return models.Frame{Index: idx, Timestamp: time.Duration(idx) * time.Second, Image: img}
}

func newTestPipeline(index vecindex.Index) *Pipeline {
	model := &stubModel{dim: 3}
	seg := segmenter.New(segmenter.Config{
		Sensitivity: 3.0,
		Window:      30,
		MinSceneLen: 2,
		MinScore:    0.05,
	}, nil)
	smp := sampler.New(nil)
	idx := indexer.New(model, index, indexer.Config{Workers: 2}, nil)
	eng := retrieval.New(model, index, 0, nil)
	return New(seg, smp, idx, eng, "", nil)
}

func groupedFrames() []models.Frame {
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	var frames []models.Frame
	for i, c := range []color.RGBA{red, red, red, green, green, green, blue, blue, blue} {
		frames = append(frames, solidFrame(i, c))
	}
	return frames
}

func TestSegmentAndIndexEndToEnd(t *testing.T) {
	ctx := context.Background()
	index := vecindex.NewMemory(3)
	p := newTestPipeline(index)

	report, err := p.SegmentAndIndex(ctx, "vid-1", groupedFrames())
	require.NoError(t, err)
	assert.Equal(t, "vid-1", report.VideoID)
	assert.Equal(t, 3, report.ScenesIndexed, "three color groups give three scenes")
	assert.Empty(t, report.Failed)
	assert.Equal(t, 3, index.Len())
}

func TestSegmentAndIndexThenQuery(t *testing.T) {
	ctx := context.Background()
	index := vecindex.NewMemory(3)
	p := newTestPipeline(index)

	_, err := p.SegmentAndIndex(ctx, "vid-1", groupedFrames())
	require.NoError(t, err)

	matches, err := p.Query(ctx, "green", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, models.SceneKey{VideoID: "vid-1", SceneIndex: 1}, matches[0].Key,
		"the green scene is the second of the three")
}

func TestSegmentAndIndexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	index := vecindex.NewMemory(3)
	p := newTestPipeline(index)

	_, err := p.SegmentAndIndex(ctx, "vid-1", groupedFrames())
	require.NoError(t, err)
	report, err := p.SegmentAndIndex(ctx, "vid-1", groupedFrames())
	require.NoError(t, err)

	assert.Equal(t, 3, report.ScenesIndexed)
	assert.Equal(t, 3, index.Len(), "re-running a video must not duplicate entries")
}

func TestSegmentAndIndexEmptyVideoID(t *testing.T) {
	p := newTestPipeline(vecindex.NewMemory(3))
	_, err := p.SegmentAndIndex(context.Background(), "", groupedFrames())
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSegmentAndIndexEmptyFrames(t *testing.T) {
	p := newTestPipeline(vecindex.NewMemory(3))
	_, err := p.SegmentAndIndex(context.Background(), "vid-1", nil)
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestQueryUnknownTextFails(t *testing.T) {
	p := newTestPipeline(vecindex.NewMemory(3))
	_, err := p.Query(context.Background(), "out of vocabulary", 3)
	require.ErrorIs(t, err, models.ErrInvalidQuery)
}
