// Package storage persists representative frames and a scene manifest to
// disk. This is a side effect of indexing, not part of the retrieval path.
package storage

import (
	"encoding/json"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"github.com/sceneseek/sceneseek/internal/models"
)

const batchSize = 10 // scene records buffered before a manifest write

// SceneRecord is one entry in the per-video scenes.json manifest.
type SceneRecord struct {
	Scene       int    `json:"scene"`
	Frame       string `json:"frame"`
	FrameIndex  int    `json:"frame_index"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// SceneStore writes one JPEG per scene plus a scenes.json manifest under
// outputDir/videoID/.
type SceneStore struct {
	mu        sync.Mutex
	records   []SceneRecord
	outputDir string
	videoID   string
}

func NewSceneStore(outputDir, videoID string) *SceneStore {
	return &SceneStore{
		outputDir: outputDir,
		videoID:   videoID,
	}
}

// SaveFrame writes the representative frame image and queues its manifest
// record, flushing when the batch is full.
func (s *SceneStore) SaveFrame(rep models.RepresentativeFrame) error {
	dir := filepath.Join(s.outputDir, s.videoID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating frame directory '%s': %w", dir, err)
	}

	name := fmt.Sprintf("scene_%04d.jpg", rep.Key.SceneIndex)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, rep.Frame.Image, nil); err != nil {
		f.Close()
		return fmt.Errorf("encoding frame for scene %d: %w", rep.Key.SceneIndex, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, SceneRecord{
		Scene:       rep.Key.SceneIndex,
		Frame:       name,
		FrameIndex:  rep.Frame.Index,
		TimestampMs: rep.Frame.Timestamp.Milliseconds(),
	})
	if len(s.records) >= batchSize {
		return s.flush()
	}
	return nil
}

// Flush writes all pending manifest records to disk.
func (s *SceneStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *SceneStore) flush() error {
	if len(s.records) == 0 {
		return nil
	}

	manifestPath := filepath.Join(s.outputDir, s.videoID, "scenes.json")

	var existing []SceneRecord
	if data, err := os.ReadFile(manifestPath); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("reading existing manifest: %w", err)
		}
	}

	all := append(existing, s.records...)

	file, err := os.Create(manifestPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(all); err != nil {
		return err
	}

	s.records = nil
	return nil
}
