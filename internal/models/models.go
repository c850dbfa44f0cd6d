package models

import (
	"fmt"
	"image"
	"time"
)

// Frame is a single decoded video frame with its position in the source.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Image     image.Image
}

// SceneBoundary marks the first frame of a new scene.
type SceneBoundary struct {
	FrameIndex int
	Timestamp  time.Duration
}

// SceneKey identifies one scene of one video. Every representative frame
// and every indexed vector carries it so results map back to a scene.
type SceneKey struct {
	VideoID    string
	SceneIndex int
}

// String renders the stable upsert key. The scene index is zero-padded so
// keys for one video sort in scene order.
func (k SceneKey) String() string {
	return fmt.Sprintf("%s:%06d", k.VideoID, k.SceneIndex)
}

// RepresentativeFrame is the frame chosen to stand in for a whole scene.
type RepresentativeFrame struct {
	Key   SceneKey
	Frame Frame
	Tags  map[string]string
}

// Match is one ranked retrieval result.
type Match struct {
	Key   SceneKey
	Score float32
	Tags  map[string]string
}

// IndexReport summarizes one segment-and-index invocation.
type IndexReport struct {
	VideoID       string `json:"video_id"`
	ScenesIndexed int    `json:"scenes_indexed"`
	Failed        []int  `json:"errors,omitempty"`
	Dropped       []int  `json:"dropped_scenes,omitempty"`
}
