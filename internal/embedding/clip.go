package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"

	"github.com/sceneseek/sceneseek/internal/models"
)

// DefaultCLIPDimension matches clip-vit-base-patch32.
const DefaultCLIPDimension = 512

// CLIPClient talks to a CLIP inference server over HTTP. The server
// projects images and text into one embedding space, which is what makes
// free-text retrieval over frame embeddings work.
type CLIPClient struct {
	baseURL string
	client  *http.Client
	dim     int
}

// NewCLIPClient returns a client for the server at baseURL. dim must match
// the served model's output dimensionality; 0 selects the default.
func NewCLIPClient(baseURL string, dim int) *CLIPClient {
	if dim <= 0 {
		dim = DefaultCLIPDimension
	}
	return &CLIPClient{
		baseURL: baseURL,
		client:  &http.Client{},
		dim:     dim,
	}
}

func (c *CLIPClient) Dimension() int {
	return c.dim
}

// EmbedImage encodes the frame as JPEG and requests an image embedding.
func (c *CLIPClient) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", models.ErrInvalidInput)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("%w: encoding frame: %v", models.ErrInvalidInput, err)
	}

	return c.embed(ctx, "/embed/image", map[string]string{
		"image": base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

// EmbedText requests a text embedding in the same space as image vectors.
func (c *CLIPClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", models.ErrInvalidInput)
	}
	return c.embed(ctx, "/embed/text", map[string]string{"text": text})
}

func (c *CLIPClient) embed(ctx context.Context, path string, payload map[string]string) ([]float32, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: server returned %s", models.ErrModelUnavailable, resp.Status)
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", models.ErrModelUnavailable, err)
	}
	if len(out.Embedding) != c.dim {
		return nil, fmt.Errorf("server returned %d dimensions, expected %d", len(out.Embedding), c.dim)
	}

	Normalize(out.Embedding)
	return out.Embedding, nil
}
