// Package pipeline wires segmentation, sampling, indexing and retrieval
// into the two operations the service exposes upward.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sceneseek/sceneseek/internal/indexer"
	"github.com/sceneseek/sceneseek/internal/metrics"
	"github.com/sceneseek/sceneseek/internal/models"
	"github.com/sceneseek/sceneseek/internal/retrieval"
	"github.com/sceneseek/sceneseek/internal/sampler"
	"github.com/sceneseek/sceneseek/internal/segmenter"
	"github.com/sceneseek/sceneseek/internal/storage"
)

// Pipeline holds the wired stages. Invocations are independent and share no
// mutable state beyond the vector index, so one Pipeline value may serve
// concurrent videos and queries.
type Pipeline struct {
	segmenter *segmenter.Segmenter
	sampler   *sampler.Sampler
	indexer   *indexer.Indexer
	engine    *retrieval.Engine
	outputDir string // when set, representative frames are persisted here
	logger    *slog.Logger
}

func New(seg *segmenter.Segmenter, smp *sampler.Sampler, idx *indexer.Indexer, eng *retrieval.Engine, outputDir string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		segmenter: seg,
		sampler:   smp,
		indexer:   idx,
		engine:    eng,
		outputDir: outputDir,
		logger:    logger,
	}
}

// SegmentAndIndex runs the full ingest path for one video: boundaries,
// representative frames, embeddings, upserts. The report is returned even
// alongside a *models.PartialError so callers can see what did land.
func (p *Pipeline) SegmentAndIndex(ctx context.Context, videoID string, frames []models.Frame) (*models.IndexReport, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: empty video id", models.ErrInvalidInput)
	}

	log := p.logger.With("invocation", uuid.NewString(), "video", videoID)
	log.Info("segmenting video", "frames", len(frames))

	segStart := time.Now()
	boundaries, err := p.segmenter.SegmentFrames(ctx, frames)
	if err != nil {
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("segment").Observe(time.Since(segStart).Seconds())
	metrics.ScenesDetectedTotal.Add(float64(len(boundaries)))

	reps, dropped, err := p.sampler.Sample(videoID, frames, boundaries)
	if err != nil {
		return nil, err
	}
	log.Info("scenes sampled", "scenes", len(reps), "dropped", len(dropped))

	if p.outputDir != "" && len(reps) > 0 {
		p.persistFrames(reps, log)
	}

	idxStart := time.Now()
	indexed, err := p.indexer.IndexFrames(ctx, reps)
	metrics.StageDuration.WithLabelValues("index").Observe(time.Since(idxStart).Seconds())

	report := &models.IndexReport{
		VideoID:       videoID,
		ScenesIndexed: indexed,
		Dropped:       dropped,
	}

	var partial *models.PartialError
	if errors.As(err, &partial) {
		report.Failed = partial.Failed
		return report, err
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Query answers a free-text query with the top k ranked scenes.
func (p *Pipeline) Query(ctx context.Context, text string, k int) ([]models.Match, error) {
	return p.engine.Query(ctx, text, k)
}

// persistFrames saves the representative frames as a side effect. Failures
// here never abort indexing; the frames on disk are a convenience, not part
// of the retrieval contract.
func (p *Pipeline) persistFrames(reps []models.RepresentativeFrame, log *slog.Logger) {
	store := storage.NewSceneStore(p.outputDir, reps[0].Key.VideoID)
	for _, rep := range reps {
		if err := store.SaveFrame(rep); err != nil {
			log.Warn("failed to persist frame", "scene", rep.Key.SceneIndex, "error", err)
		}
	}
	if err := store.Flush(); err != nil {
		log.Warn("failed to flush scene manifest", "error", err)
	}
}
