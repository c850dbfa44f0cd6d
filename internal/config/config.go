// Package config loads the service configuration from the environment and
// optional files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sceneseek/sceneseek/internal/indexer"
	"github.com/sceneseek/sceneseek/internal/segmenter"
	"github.com/sceneseek/sceneseek/internal/vecindex"
)

type Config struct {
	PGHost     string `env:"SCENESEEK_PG_HOST"     envDefault:"localhost"`
	PGPort     string `env:"SCENESEEK_PG_PORT"     envDefault:"5432"`
	PGUser     string `env:"SCENESEEK_PG_USER"     envDefault:"sceneseek"`
	PGPassword string `env:"SCENESEEK_PG_PASSWORD" envDefault:""`
	PGDatabase string `env:"SCENESEEK_PG_DB"       envDefault:"sceneseek"`

	IndexDimension int `env:"SCENESEEK_INDEX_DIM" envDefault:"512"`

	// EmbedBackend selects the embedding model: "clip" for a CLIP inference
	// server, "caption" for vision captioning + text embeddings.
	EmbedBackend string `env:"SCENESEEK_EMBED_BACKEND" envDefault:"clip"`
	CLIPURL      string `env:"SCENESEEK_CLIP_URL"      envDefault:"http://localhost:8200"`

	OllamaBaseURL string `env:"SCENESEEK_OLLAMA_URL"   envDefault:"http://localhost"`
	OllamaPort    int    `env:"SCENESEEK_OLLAMA_PORT"  envDefault:"11434"`
	VisionModel   string `env:"SCENESEEK_VISION_MODEL" envDefault:"llama3.2-vision:11b"`
	EmbedModel    string `env:"SCENESEEK_EMBED_MODEL"  envDefault:"text-embedding-3-small"`
	OpenAIKey     string `env:"OPENAI_API_KEY"         envDefault:""`

	SampleFPS int `env:"SCENESEEK_SAMPLE_FPS" envDefault:"2"`

	Sensitivity float64 `env:"SCENESEEK_SENSITIVITY"   envDefault:"3.0"`
	Window      int     `env:"SCENESEEK_WINDOW"        envDefault:"30"`
	MinSceneLen int     `env:"SCENESEEK_MIN_SCENE_LEN" envDefault:"2"`
	MinScore    float64 `env:"SCENESEEK_MIN_SCORE"     envDefault:"0.05"`

	BatchSize    int           `env:"SCENESEEK_BATCH_SIZE"    envDefault:"32"`
	Workers      int           `env:"SCENESEEK_WORKERS"       envDefault:"4"`
	EmbedTimeout time.Duration `env:"SCENESEEK_EMBED_TIMEOUT" envDefault:"2m"`

	OutputDir   string `env:"SCENESEEK_OUTPUT_DIR"   envDefault:""`
	MetricsPort int    `env:"SCENESEEK_METRICS_PORT" envDefault:"0"`
	LogLevel    string `env:"SCENESEEK_LOG_LEVEL"    envDefault:"info"`
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// ApplyTuning overlays segmenter knobs from a yaml profile.
func (c *Config) ApplyTuning(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading tuning profile: %w", err)
	}

	tuning := segmenter.Config{
		Sensitivity: c.Sensitivity,
		Window:      c.Window,
		MinSceneLen: c.MinSceneLen,
		MinScore:    c.MinScore,
	}
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return fmt.Errorf("parsing tuning profile: %w", err)
	}

	c.Sensitivity = tuning.Sensitivity
	c.Window = tuning.Window
	c.MinSceneLen = tuning.MinSceneLen
	c.MinScore = tuning.MinScore
	return nil
}

// SegmenterConfig assembles the segmenter tuning.
func (c *Config) SegmenterConfig() segmenter.Config {
	return segmenter.Config{
		Sensitivity: c.Sensitivity,
		Window:      c.Window,
		MinSceneLen: c.MinSceneLen,
		MinScore:    c.MinScore,
	}
}

// IndexerConfig assembles the indexing bounds.
func (c *Config) IndexerConfig() indexer.Config {
	return indexer.Config{
		BatchSize:    c.BatchSize,
		Workers:      c.Workers,
		EmbedTimeout: c.EmbedTimeout,
	}
}

// IndexConfig assembles the vector-index connection parameters as an
// explicit value, so nothing downstream reads the environment directly.
func (c *Config) IndexConfig() vecindex.Config {
	return vecindex.Config{
		Host:      c.PGHost,
		Port:      c.PGPort,
		User:      c.PGUser,
		Password:  c.PGPassword,
		DBName:    c.PGDatabase,
		Dimension: c.IndexDimension,
	}
}
