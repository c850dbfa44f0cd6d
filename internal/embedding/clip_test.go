package embedding

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneseek/sceneseek/internal/models"
)

func clipServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		vec := make([]float32, dim)
		vec[0] = 2 // not unit length; the client normalizes
		_ = json.NewEncoder(w).Encode(map[string][]float32{"embedding": vec})
	}))
}

func TestCLIPClientEmbedText(t *testing.T) {
	srv := clipServer(t, 4)
	defer srv.Close()

	c := NewCLIPClient(srv.URL, 4)
	vec, err := c.EmbedText(context.Background(), "a dog on a beach")
	require.NoError(t, err)
	require.Len(t, vec, 4)

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-6, "vectors come back unit length")
}

func TestCLIPClientEmbedImage(t *testing.T) {
	srv := clipServer(t, 4)
	defer srv.Close()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})

	c := NewCLIPClient(srv.URL, 4)
	vec, err := c.EmbedImage(context.Background(), img)
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestCLIPClientEmptyText(t *testing.T) {
	c := NewCLIPClient("http://unused", 4)
	_, err := c.EmbedText(context.Background(), "")
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestCLIPClientNilImage(t *testing.T) {
	c := NewCLIPClient("http://unused", 4)
	_, err := c.EmbedImage(context.Background(), nil)
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestCLIPClientServerDown(t *testing.T) {
	srv := clipServer(t, 4)
	srv.Close()

	c := NewCLIPClient(srv.URL, 4)
	_, err := c.EmbedText(context.Background(), "anything")
	require.ErrorIs(t, err, models.ErrModelUnavailable)
}

func TestCLIPClientDimensionMismatch(t *testing.T) {
	srv := clipServer(t, 8)
	defer srv.Close()

	c := NewCLIPClient(srv.URL, 4)
	_, err := c.EmbedText(context.Background(), "anything")
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.True(t, math.Abs(float64(zero[0])) == 0, "zero vectors stay untouched")
}
