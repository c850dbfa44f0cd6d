package storage

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneseek/sceneseek/internal/models"
)

func testRep(scene int) models.RepresentativeFrame {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	return models.RepresentativeFrame{
		Key: models.SceneKey{VideoID: "vid", SceneIndex: scene},
		Frame: models.Frame{
			Index:     scene * 3,
			Timestamp: time.Duration(scene) * time.Second,
			Image:     img,
		},
	}
}

func TestSceneStoreWritesFramesAndManifest(t *testing.T) {
	dir := t.TempDir()
	store := NewSceneStore(dir, "vid")

	require.NoError(t, store.SaveFrame(testRep(0)))
	require.NoError(t, store.SaveFrame(testRep(1)))
	require.NoError(t, store.Flush())

	for _, name := range []string{"scene_0000.jpg", "scene_0001.jpg"} {
		_, err := os.Stat(filepath.Join(dir, "vid", name))
		assert.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "vid", "scenes.json"))
	require.NoError(t, err)

	var records []SceneRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].Scene)
	assert.Equal(t, "scene_0000.jpg", records[0].Frame)
	assert.Equal(t, int64(1000), records[1].TimestampMs)
}

func TestSceneStoreFlushMergesExistingManifest(t *testing.T) {
	dir := t.TempDir()

	store := NewSceneStore(dir, "vid")
	require.NoError(t, store.SaveFrame(testRep(0)))
	require.NoError(t, store.Flush())

	store = NewSceneStore(dir, "vid")
	require.NoError(t, store.SaveFrame(testRep(1)))
	require.NoError(t, store.Flush())

	data, err := os.ReadFile(filepath.Join(dir, "vid", "scenes.json"))
	require.NoError(t, err)

	var records []SceneRecord
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Len(t, records, 2)
}

func TestSceneStoreFlushEmptyIsNoop(t *testing.T) {
	store := NewSceneStore(t.TempDir(), "vid")
	require.NoError(t, store.Flush())
}
