package embedding

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sceneseek/sceneseek/internal/models"
)

const captionPrompt = "What is happening in this image? Be specific and detailed. " +
	"List and describe the items and people shown."

// CaptionConfig configures the caption embedding backend.
type CaptionConfig struct {
	OllamaBaseURL string
	OllamaPort    int
	VisionModel   string
	OpenAIKey     string
	EmbedModel    string
}

// CaptionModel embeds frames by first describing them with a local vision
// model, then embedding the caption with a text-embedding model. Query text
// is embedded with the same text model, so both ends share one space. The
// trade-off against CLIP is slower image embedding for a much richer text
// space.
type CaptionModel struct {
	agent  *agent.Agent
	openai *openai.Client
	model  string
	dim    int
	logger *slog.Logger
}

// NewCaptionModel wires the ollama vision agent and the OpenAI embedding
// client. Fails when no API key is configured.
func NewCaptionModel(ctx context.Context, cfg CaptionConfig, logger *slog.Logger) (*CaptionModel, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("%w: no OpenAI API key configured", models.ErrModelUnavailable)
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "llama3.2-vision:11b"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = string(openai.SmallEmbedding3)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// The agent stack logs through logr; bridge the service logger.
	lgr := logr.FromSlogHandler(logger.Handler())

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		BaseURL: cfg.OllamaBaseURL,
		Port:    cfg.OllamaPort,
		Logger:  &lgr,
	})
	if err := provider.UseModel(ctx, &core.Model{ID: cfg.VisionModel}); err != nil {
		return nil, fmt.Errorf("%w: selecting vision model: %v", models.ErrModelUnavailable, err)
	}

	visionAgent, err := agent.NewAgent(
		bootstrap.WithProvider(provider),
		bootstrap.WithLogger(&lgr),
		bootstrap.WithSystemPrompt("You are a visual analysis assistant specialized in detailed image descriptions."),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: building vision agent: %v", models.ErrModelUnavailable, err)
	}

	dim := 1536
	if cfg.EmbedModel == string(openai.LargeEmbedding3) {
		dim = 3072
	}

	return &CaptionModel{
		agent:  visionAgent,
		openai: openai.NewClient(cfg.OpenAIKey),
		model:  cfg.EmbedModel,
		dim:    dim,
		logger: logger,
	}, nil
}

func (m *CaptionModel) Dimension() int {
	return m.dim
}

// EmbedImage captions the frame with the vision agent and embeds the caption.
func (m *CaptionModel) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", models.ErrInvalidInput)
	}

	path, cleanup, err := writeTempJPEG(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	defer cleanup()

	agg, err := m.agent.Run(ctx,
		agent.WithInput(captionPrompt),
		agent.WithImagePath(path),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: vision model: %v", models.ErrModelUnavailable, err)
	}

	caption, err := captionFrom(agg)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("frame captioned", "caption_len", len(caption))

	return m.EmbedText(ctx, caption)
}

// EmbedText embeds text with the configured OpenAI embedding model.
func (m *CaptionModel) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", models.ErrInvalidInput)
	}

	resp, err := m.openai.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(m.model),
		Input: []string{text},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding data returned", models.ErrModelUnavailable)
	}

	raw := resp.Data[0].Embedding
	v := make([]float32, len(raw))
	for i := range raw {
		v[i] = float32(raw[i])
	}
	Normalize(v)
	return v, nil
}

// captionFrom extracts the final assistant message from an agent run. The
// aggregator holds the whole exchange; only the last message carries the
// finished description.
func captionFrom(agg *agent.AgentRunAggregator) (string, error) {
	if agg == nil {
		return "", fmt.Errorf("%w: no response from vision model", models.ErrModelUnavailable)
	}
	last := agg.Pop()
	if last == nil || last.Content == "" {
		return "", fmt.Errorf("%w: empty caption from vision model", models.ErrModelUnavailable)
	}
	return last.Content, nil
}

func writeTempJPEG(img image.Image) (string, func(), error) {
	f, err := os.CreateTemp("", "sceneseek-frame-*.jpg")
	if err != nil {
		return "", nil, err
	}
	if err := jpeg.Encode(f, img, nil); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
