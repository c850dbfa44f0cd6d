package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/sceneseek/sceneseek/internal/config"
	"github.com/sceneseek/sceneseek/internal/embedding"
	"github.com/sceneseek/sceneseek/internal/extractor"
	"github.com/sceneseek/sceneseek/internal/indexer"
	"github.com/sceneseek/sceneseek/internal/metrics"
	"github.com/sceneseek/sceneseek/internal/models"
	"github.com/sceneseek/sceneseek/internal/pipeline"
	"github.com/sceneseek/sceneseek/internal/retrieval"
	"github.com/sceneseek/sceneseek/internal/sampler"
	"github.com/sceneseek/sceneseek/internal/segmenter"
	"github.com/sceneseek/sceneseek/internal/vecindex"
)

var tuningFile string

func main() {
	root := &cobra.Command{
		Use:           "sceneseek",
		Short:         "Split videos into scenes and search them by text",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&tuningFile, "tuning", "", "yaml tuning profile for scene detection")

	root.AddCommand(indexCmd())
	root.AddCommand(queryCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(initSchemaCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func indexCmd() *cobra.Command {
	var videoID string

	cmd := &cobra.Command{
		Use:   "index <video.mp4> [more videos...]",
		Short: "Segment videos into scenes and index their embeddings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			if cfg.MetricsPort > 0 {
				metrics.StartServer(ctx, cfg.MetricsPort, logger)
			}

			index, err := vecindex.NewPostgres(ctx, cfg.IndexConfig())
			if err != nil {
				return err
			}
			defer index.Close()

			model, err := buildModel(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if err := checkDimensions(model, index); err != nil {
				return err
			}

			p := buildPipeline(cfg, model, index, logger)

			for _, videoPath := range args {
				id := videoID
				if id == "" || len(args) > 1 {
					id = strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
				}

				report, err := indexVideo(ctx, p, cfg, videoPath, id, logger)
				if err != nil {
					var partial *models.PartialError
					if !errors.As(err, &partial) {
						return err
					}
					logger.Warn("video indexed with failures", "video", id, "failed", partial.Failed)
				}
				printJSON(report)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&videoID, "video-id", "", "identifier to index the video under (default: file basename)")
	return cmd
}

func queryCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search indexed scenes by free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			index, err := vecindex.NewPostgres(ctx, cfg.IndexConfig())
			if err != nil {
				return err
			}
			defer index.Close()

			model, err := buildModel(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if err := checkDimensions(model, index); err != nil {
				return err
			}

			engine := retrieval.New(model, index, cfg.EmbedTimeout, logger)
			matches, err := engine.Query(ctx, strings.Join(args, " "), k)
			if err != nil {
				return err
			}

			printMatches(matches)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 5, "number of results to return")
	return cmd
}

// searchCmd is local mode: index the given videos into an in-memory index
// and query it in one process, no Postgres required.
func searchCmd() *cobra.Command {
	var k int
	var query string

	cmd := &cobra.Command{
		Use:   "search --query <text> <video.mp4> [more videos...]",
		Short: "Index videos in memory and search them in one run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			model, err := buildModel(ctx, cfg, logger)
			if err != nil {
				return err
			}

			index := vecindex.NewMemory(model.Dimension())
			p := buildPipeline(cfg, model, index, logger)

			for _, videoPath := range args {
				id := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
				report, err := indexVideo(ctx, p, cfg, videoPath, id, logger)
				if err != nil {
					var partial *models.PartialError
					if !errors.As(err, &partial) {
						return err
					}
				}
				logger.Info("video indexed", "video", id, "scenes", report.ScenesIndexed)
			}

			matches, err := p.Query(ctx, query, k)
			if err != nil {
				return err
			}
			printMatches(matches)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "query text")
	cmd.Flags().IntVar(&k, "k", 5, "number of results to return")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func initSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-schema",
		Short: "Create the pgvector extension and embeddings table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			if err := vecindex.InitSchema(ctx, cfg.IndexConfig()); err != nil {
				return err
			}
			logger.Info("schema initialized", "dimension", cfg.IndexDimension)
			return nil
		},
	}
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if tuningFile != "" {
		if err := cfg.ApplyTuning(tuningFile); err != nil {
			return nil, nil, err
		}
	}

	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
	return cfg, logger, nil
}

func buildModel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (embedding.Model, error) {
	switch cfg.EmbedBackend {
	case "clip":
		return embedding.NewCLIPClient(cfg.CLIPURL, cfg.IndexDimension), nil
	case "caption":
		return embedding.NewCaptionModel(ctx, embedding.CaptionConfig{
			OllamaBaseURL: cfg.OllamaBaseURL,
			OllamaPort:    cfg.OllamaPort,
			VisionModel:   cfg.VisionModel,
			OpenAIKey:     cfg.OpenAIKey,
			EmbedModel:    cfg.EmbedModel,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown embed backend %q", cfg.EmbedBackend)
	}
}

// checkDimensions rejects a model/index pairing whose vector widths differ
// before any video is touched. Without it every upsert would fail the
// index's own dimension check, one scene at a time.
func checkDimensions(model embedding.Model, index vecindex.Index) error {
	if model.Dimension() != index.Dimension() {
		return fmt.Errorf("%w: embedding model produces %d-dimensional vectors, index expects %d",
			models.ErrInvalidInput, model.Dimension(), index.Dimension())
	}
	return nil
}

func buildPipeline(cfg *config.Config, model embedding.Model, index vecindex.Index, logger *slog.Logger) *pipeline.Pipeline {
	seg := segmenter.New(cfg.SegmenterConfig(), logger)
	smp := sampler.New(logger)
	idx := indexer.New(model, index, cfg.IndexerConfig(), logger)
	eng := retrieval.New(model, index, cfg.EmbedTimeout, logger)
	return pipeline.New(seg, smp, idx, eng, cfg.OutputDir, logger)
}

func indexVideo(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, videoPath, videoID string, logger *slog.Logger) (*models.IndexReport, error) {
	if duration, err := extractor.ProbeDuration(ctx, videoPath); err == nil {
		logger.Info("processing video", "video", videoID, "duration_secs", duration)
	}

	frames, err := extractor.Frames(ctx, videoPath, cfg.SampleFPS, logger)
	if err != nil {
		return nil, err
	}
	return p.SegmentAndIndex(ctx, videoID, frames)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printMatches(matches []models.Match) {
	if len(matches) == 0 {
		fmt.Println("No results found")
		return
	}
	for _, m := range matches {
		fmt.Printf("%.4f  %s scene %d\n", m.Score, m.Key.VideoID, m.Key.SceneIndex)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
