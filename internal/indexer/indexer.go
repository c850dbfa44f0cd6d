// Package indexer embeds representative frames and writes them to the
// vector index with idempotent, keyed upserts.
package indexer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sceneseek/sceneseek/internal/embedding"
	"github.com/sceneseek/sceneseek/internal/metrics"
	"github.com/sceneseek/sceneseek/internal/models"
	"github.com/sceneseek/sceneseek/internal/vecindex"
)

// Config bounds the indexing run. BatchSize caps how many frames are in
// flight against the external index at once; it is a caller-provided bound,
// not a constant of the index itself.
type Config struct {
	BatchSize    int
	Workers      int
	EmbedTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:    32,
		Workers:      4,
		EmbedTimeout: 2 * time.Minute,
	}
}

// Indexer turns representative frames into stored embeddings.
type Indexer struct {
	model  embedding.Model
	index  vecindex.Index
	cfg    Config
	logger *slog.Logger
}

func New(model embedding.Model, index vecindex.Index, cfg Config, logger *slog.Logger) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{model: model, index: index, cfg: cfg, logger: logger}
}

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeSkipped
	outcomeFatal
	outcomeAborted
)

type outcome struct {
	sceneIndex int
	kind       outcomeKind
	err        error
}

// IndexFrames embeds and upserts every frame. A frame whose embedding or
// upsert fails for frame-local reasons is skipped and reported; the rest of
// the batch continues. An unreachable model or index aborts the whole run.
// When some scenes were skipped the returned error is a *models.PartialError
// listing them; the count of successfully indexed scenes is returned either
// way.
func (ix *Indexer) IndexFrames(ctx context.Context, frames []models.RepresentativeFrame) (int, error) {
	if len(frames) == 0 {
		return 0, nil
	}

	videoID := frames[0].Key.VideoID
	indexed := 0
	var failed []int

	for start := 0; start < len(frames); start += ix.cfg.BatchSize {
		end := start + ix.cfg.BatchSize
		if end > len(frames) {
			end = len(frames)
		}

		n, batchFailed, err := ix.indexBatch(ctx, frames[start:end])
		indexed += n
		failed = append(failed, batchFailed...)
		if err != nil {
			return indexed, err
		}
	}

	ix.logger.Info("indexing complete",
		"video", videoID,
		"indexed", indexed,
		"failed", len(failed),
	)

	if pe := models.NewPartialError(videoID, failed); pe != nil {
		return indexed, pe
	}
	return indexed, nil
}

func (ix *Indexer) indexBatch(ctx context.Context, frames []models.RepresentativeFrame) (int, []int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workChan := make(chan models.RepresentativeFrame, len(frames))
	resultsChan := make(chan outcome, len(frames))

	var wg sync.WaitGroup
	for i := 0; i < ix.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for frame := range workChan {
				if ctx.Err() != nil {
					resultsChan <- outcome{sceneIndex: frame.Key.SceneIndex, kind: outcomeAborted}
					continue
				}

				metrics.ActiveEmbedWorkers.Inc()
				res := ix.indexOne(ctx, frame)
				metrics.ActiveEmbedWorkers.Dec()

				resultsChan <- res
				if res.kind == outcomeFatal {
					cancel()
				}
			}
		}()
	}

	for _, frame := range frames {
		workChan <- frame
	}
	close(workChan)

	wg.Wait()
	close(resultsChan)

	indexed := 0
	var failed []int
	var fatal error
	for res := range resultsChan {
		switch res.kind {
		case outcomeOK:
			indexed++
			metrics.FramesEmbeddedTotal.WithLabelValues("ok").Inc()
		case outcomeSkipped:
			failed = append(failed, res.sceneIndex)
			metrics.FramesEmbeddedTotal.WithLabelValues("failed").Inc()
			ix.logger.Warn("scene skipped", "scene", res.sceneIndex, "error", res.err)
		case outcomeFatal:
			if fatal == nil {
				fatal = res.err
			}
		}
	}

	return indexed, failed, fatal
}

func (ix *Indexer) indexOne(ctx context.Context, frame models.RepresentativeFrame) outcome {
	embedCtx := ctx
	if ix.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, ix.cfg.EmbedTimeout)
		defer cancel()
	}

	vector, err := ix.model.EmbedImage(embedCtx, frame.Frame.Image)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrModelUnavailable):
			return outcome{sceneIndex: frame.Key.SceneIndex, kind: outcomeFatal, err: err}
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			// The per-frame budget expired; nothing was committed for this
			// scene, and the rest of the batch continues.
			return outcome{
				sceneIndex: frame.Key.SceneIndex,
				kind:       outcomeSkipped,
				err:        models.ErrTimeout,
			}
		case ctx.Err() != nil:
			return outcome{sceneIndex: frame.Key.SceneIndex, kind: outcomeAborted}
		default:
			return outcome{sceneIndex: frame.Key.SceneIndex, kind: outcomeSkipped, err: err}
		}
	}

	rec := vecindex.Record{
		Key:        frame.Key.String(),
		VideoID:    frame.Key.VideoID,
		SceneIndex: frame.Key.SceneIndex,
		Vector:     vector,
		Tags:       frame.Tags,
	}
	if err := ix.index.Upsert(ctx, rec); err != nil {
		switch {
		case errors.Is(err, models.ErrIndexUnavailable):
			return outcome{sceneIndex: frame.Key.SceneIndex, kind: outcomeFatal, err: err}
		case ctx.Err() != nil:
			return outcome{sceneIndex: frame.Key.SceneIndex, kind: outcomeAborted}
		default:
			return outcome{sceneIndex: frame.Key.SceneIndex, kind: outcomeSkipped, err: err}
		}
	}

	return outcome{sceneIndex: frame.Key.SceneIndex, kind: outcomeOK}
}
