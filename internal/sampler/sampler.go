// Package sampler picks the representative frame for each detected scene.
package sampler

import (
	"fmt"
	"log/slog"

	"github.com/sceneseek/sceneseek/internal/models"
)

// Sampler selects one frame per scene: the first frame after the boundary,
// before motion or transition artifacts develop.
type Sampler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{logger: logger}
}

// Sample returns one RepresentativeFrame per scene, in scene order, keyed
// by (videoID, scene index). A boundary at or past the final frame has no
// frames to sample from; that scene is dropped and returned in the second
// result rather than silently ignored.
func (s *Sampler) Sample(videoID string, frames []models.Frame, boundaries []models.SceneBoundary) ([]models.RepresentativeFrame, []int, error) {
	if len(boundaries) == 0 {
		return nil, nil, fmt.Errorf("%w: no scene boundaries", models.ErrInvalidInput)
	}

	reps := make([]models.RepresentativeFrame, 0, len(boundaries))
	var dropped []int
	for i, b := range boundaries {
		if b.FrameIndex < 0 || b.FrameIndex >= len(frames) {
			s.logger.Warn("scene has no frames, dropping",
				"video", videoID,
				"scene", i,
				"boundary_frame", b.FrameIndex,
				"frame_count", len(frames),
			)
			dropped = append(dropped, i)
			continue
		}
		reps = append(reps, models.RepresentativeFrame{
			Key:   models.SceneKey{VideoID: videoID, SceneIndex: i},
			Frame: frames[b.FrameIndex],
		})
	}
	return reps, dropped, nil
}
