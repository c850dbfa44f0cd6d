// Package retrieval answers free-text queries against the vector index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sceneseek/sceneseek/internal/embedding"
	"github.com/sceneseek/sceneseek/internal/metrics"
	"github.com/sceneseek/sceneseek/internal/models"
	"github.com/sceneseek/sceneseek/internal/vecindex"
)

// scoreTolerance is the float window within which two similarity scores are
// treated as a tie and ordered by (video id, scene index) instead.
const scoreTolerance = 1e-6

// Engine embeds a query in text mode and ranks nearest-neighbor matches.
type Engine struct {
	model        embedding.Model
	index        vecindex.Index
	embedTimeout time.Duration
	logger       *slog.Logger
}

func New(model embedding.Model, index vecindex.Index, embedTimeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{model: model, index: index, embedTimeout: embedTimeout, logger: logger}
}

// Query returns the top k matches for the query text, highest similarity
// first, ties broken by ascending (video id, scene index). An empty index
// yields an empty result. A query that cannot be embedded fails with
// models.ErrInvalidQuery before the index is touched; there is no
// partial-result fallback, since a garbled query vector would rank
// meaninglessly.
func (e *Engine) Query(ctx context.Context, text string, k int) ([]models.Match, error) {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		metrics.QueriesTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: empty query text", models.ErrInvalidQuery)
	}
	if k < 1 {
		metrics.QueriesTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", models.ErrInvalidQuery, k)
	}

	embedCtx := ctx
	if e.embedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, e.embedTimeout)
		defer cancel()
	}

	vector, err := e.model.EmbedText(embedCtx, text)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		switch {
		case errors.Is(err, models.ErrInvalidInput):
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidQuery, err)
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			return nil, fmt.Errorf("%w: embedding query: %v", models.ErrTimeout, err)
		default:
			return nil, fmt.Errorf("embedding query: %w", err)
		}
	}

	hits, err := e.index.Query(ctx, vector, k)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("querying index: %w", err)
	}

	matches := make([]models.Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, models.Match{
			Key:   models.SceneKey{VideoID: h.VideoID, SceneIndex: h.SceneIndex},
			Score: h.Score,
			Tags:  h.Tags,
		})
	}
	rankMatches(matches)

	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	metrics.StageDuration.WithLabelValues("query").Observe(time.Since(start).Seconds())
	e.logger.Debug("query complete", "k", k, "matches", len(matches))
	return matches, nil
}

// rankMatches enforces descending score with a deterministic tie-break for
// scores within tolerance, regardless of the order the index returned.
func rankMatches(matches []models.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		di := float64(matches[i].Score) - float64(matches[j].Score)
		if di > scoreTolerance {
			return true
		}
		if di < -scoreTolerance {
			return false
		}
		if matches[i].Key.VideoID != matches[j].Key.VideoID {
			return matches[i].Key.VideoID < matches[j].Key.VideoID
		}
		return matches[i].Key.SceneIndex < matches[j].Key.SceneIndex
	})
}
