package models

import (
	"errors"
	"fmt"
	"sort"
)

// Error kinds shared across the pipeline. Components wrap these with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is.
var (
	// ErrInvalidInput marks a malformed or empty video input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidQuery marks an empty or malformed query string.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrModelUnavailable marks an unreachable embedding backend.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrIndexUnavailable marks an unreachable vector index.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrTimeout marks a blocking step that exceeded its caller-supplied budget.
	ErrTimeout = errors.New("operation timed out")
)

// PartialError reports a batch that completed with some scenes skipped.
// The remaining scenes were indexed; Failed lists the ones that were not,
// so the caller can selectively retry.
type PartialError struct {
	VideoID string
	Failed  []int
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("indexing %s: %d scene(s) failed: %v", e.VideoID, len(e.Failed), e.Failed)
}

// NewPartialError returns a PartialError with the failed indices sorted,
// or nil when nothing failed.
func NewPartialError(videoID string, failed []int) *PartialError {
	if len(failed) == 0 {
		return nil
	}
	sorted := make([]int, len(failed))
	copy(sorted, failed)
	sort.Ints(sorted)
	return &PartialError{VideoID: videoID, Failed: sorted}
}
