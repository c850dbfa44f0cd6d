package embedding

import (
	"image"
	"image/jpeg"
	"os"
	"testing"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneseek/sceneseek/internal/models"
)

func TestCaptionFromTakesLastMessage(t *testing.T) {
	agg := agent.NewAgentRunAggregator()
	agg.Push(
		&core.Message{Role: core.UserMessageRole, Content: "describe this"},
		&core.Message{Role: core.AssistantMessageRole, Content: "a dog on a beach"},
	)

	caption, err := captionFrom(agg)
	require.NoError(t, err)
	assert.Equal(t, "a dog on a beach", caption)
}

func TestCaptionFromEmptyRun(t *testing.T) {
	_, err := captionFrom(nil)
	require.ErrorIs(t, err, models.ErrModelUnavailable)

	_, err = captionFrom(agent.NewAgentRunAggregator())
	require.ErrorIs(t, err, models.ErrModelUnavailable)

	agg := agent.NewAgentRunAggregator()
	agg.Push(&core.Message{Role: core.AssistantMessageRole})
	_, err = captionFrom(agg)
	require.ErrorIs(t, err, models.ErrModelUnavailable)
}

func TestWriteTempJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))

	path, cleanup, err := writeTempJPEG(img)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	_, err = jpeg.Decode(f)
	f.Close()
	assert.NoError(t, err, "the temp file is a decodable JPEG")

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "cleanup removes the temp file")
}
