package segmenter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sceneseek/sceneseek/internal/models"
)

// FrameSource yields decoded frames one at a time, returning io.EOF when
// the video is exhausted. Sources are consumed in a single forward pass.
type FrameSource interface {
	Next(ctx context.Context) (models.Frame, error)
}

// Config holds the adaptive-threshold tuning knobs. Defaults follow the
// values that worked well on test footage; they are deliberately not
// hardcoded in the detection loop.
type Config struct {
	// Sensitivity is the k in mean + k*stddev. Lower values cut more.
	Sensitivity float64 `yaml:"sensitivity"`

	// Window is the number of trailing difference scores the running
	// statistics cover.
	Window int `yaml:"window"`

	// MinSceneLen is the minimum number of frames between two boundaries.
	MinSceneLen int `yaml:"min_scene_len"`

	// MinScore is an absolute floor below which a difference score never
	// triggers a cut, regardless of how quiet the video has been.
	MinScore float64 `yaml:"min_score"`
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		Sensitivity: 3.0,
		Window:      30,
		MinSceneLen: 2,
		MinScore:    0.05,
	}
}

// Segmenter detects scene boundaries with an adaptive threshold: the cut
// decision tracks the running mean and deviation of recent frame-to-frame
// variation instead of a fixed constant, so fast-motion footage does not
// produce spurious cuts while static footage stays sensitive to real ones.
type Segmenter struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Segmenter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.MinSceneLen < 1 {
		cfg.MinSceneLen = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{cfg: cfg, logger: logger}
}

// Segment consumes the source in one causal pass and returns the detected
// boundaries, strictly increasing and always starting at frame 0. A source
// with no frames, or a frame with no decoded image, fails with
// models.ErrInvalidInput. Cancellation is checked at every frame.
func (s *Segmenter) Segment(ctx context.Context, src FrameSource) ([]models.SceneBoundary, error) {
	prev, err := src.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty frame sequence", models.ErrInvalidInput)
		}
		return nil, err
	}
	if prev.Image == nil {
		return nil, fmt.Errorf("%w: frame 0 has no image data", models.ErrInvalidInput)
	}

	boundaries := []models.SceneBoundary{{FrameIndex: 0, Timestamp: prev.Timestamp}}
	stats := newRunningStats(s.cfg.Window)
	lastCut := 0

	for pos := 1; ; pos++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if frame.Image == nil {
			return nil, fmt.Errorf("%w: frame %d has no image data", models.ErrInvalidInput, pos)
		}

		score := diffScore(prev.Image, frame.Image)
		if s.isCut(score, stats) && pos-lastCut >= s.cfg.MinSceneLen {
			boundaries = append(boundaries, models.SceneBoundary{
				FrameIndex: pos,
				Timestamp:  frame.Timestamp,
			})
			lastCut = pos
			s.logger.Debug("scene boundary",
				"frame", pos,
				"score", score,
				"mean", stats.mean(),
				"stddev", stats.stddev(),
			)
		} else {
			// Cut spikes are outliers, not part of the normal variation the
			// baseline estimates; feeding them in would mask the next cut.
			stats.add(score)
		}
		prev = frame
	}

	s.logger.Info("segmentation complete", "scenes", len(boundaries))
	return boundaries, nil
}

// SegmentFrames runs Segment over an in-memory frame slice.
func (s *Segmenter) SegmentFrames(ctx context.Context, frames []models.Frame) ([]models.SceneBoundary, error) {
	return s.Segment(ctx, &sliceSource{frames: frames})
}

func (s *Segmenter) isCut(score float64, stats *runningStats) bool {
	if score <= 0 {
		// Identical frames never start a scene.
		return false
	}
	threshold := s.cfg.MinScore
	if adaptive := stats.mean() + s.cfg.Sensitivity*stats.stddev(); adaptive > threshold {
		threshold = adaptive
	}
	return score > threshold
}

type sliceSource struct {
	frames []models.Frame
	pos    int
}

func (s *sliceSource) Next(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return models.Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}
