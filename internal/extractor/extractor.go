// Package extractor decodes video files into in-memory frames with ffmpeg.
// It is the ingestion collaborator in front of the pipeline: container and
// codec parsing stay on ffmpeg's side of the pipe.
package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sceneseek/sceneseek/internal/models"
)

// errTruncated marks a stream that ended inside a frame, as opposed to a
// clean end between frames.
var errTruncated = errors.New("truncated frame")

// Stream yields decoded frames from a running ffmpeg process, one at a
// time, so long videos never need to be buffered whole. It implements
// segmenter.FrameSource.
type Stream struct {
	cmd    *exec.Cmd
	reader *bufio.Reader
	fps    int
	next   int
	done   bool
	logger *slog.Logger
}

// Open starts decoding videoPath at the given sampling fps.
func Open(ctx context.Context, videoPath string, fps int, logger *slog.Logger) (*Stream, error) {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: video file does not exist at '%s'", models.ErrInvalidInput, videoPath)
	}
	if fps <= 0 {
		fps = 1
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%d", fps),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("decoding video", "path", videoPath, "fps", fps)

	return &Stream{
		cmd:    cmd,
		reader: bufio.NewReaderSize(stdout, 1<<20),
		fps:    fps,
		logger: logger,
	}, nil
}

// Next returns the next decoded frame, or io.EOF when the video ends. A
// video ffmpeg could not decode a single frame from fails with
// models.ErrInvalidInput.
func (s *Stream) Next(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}
	if s.done {
		return models.Frame{}, io.EOF
	}

	data, err := readJPEG(s.reader)
	if err != nil {
		s.done = true
		waitErr := s.wait()
		switch {
		case s.next == 0:
			return models.Frame{}, fmt.Errorf("%w: ffmpeg produced no frames: %v", models.ErrInvalidInput, waitErr)
		case errors.Is(err, errTruncated):
			// The tail of the video is lost, which the caller must hear
			// about rather than mistake for a clean end.
			return models.Frame{}, fmt.Errorf("stream ended mid-frame after frame %d: %w (ffmpeg: %v)", s.next-1, err, waitErr)
		default:
			if waitErr != nil {
				s.logger.Warn("ffmpeg exited with error after final frame", "frames", s.next, "error", waitErr)
			}
			return models.Frame{}, io.EOF
		}
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return models.Frame{}, fmt.Errorf("%w: decoding frame %d: %v", models.ErrInvalidInput, s.next, err)
	}

	frame := models.Frame{
		Index:     s.next,
		Timestamp: time.Duration(s.next) * time.Second / time.Duration(s.fps),
		Image:     img,
	}
	s.next++
	return frame, nil
}

// Close terminates the ffmpeg process if it is still running.
func (s *Stream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return s.wait()
}

func (s *Stream) wait() error {
	if s.cmd == nil {
		return nil
	}
	return s.cmd.Wait()
}

// Frames decodes the whole video into memory. The pipeline needs indexed
// access for representative-frame sampling, so this is the common path for
// videos of manageable length.
func Frames(ctx context.Context, videoPath string, fps int, logger *slog.Logger) ([]models.Frame, error) {
	stream, err := Open(ctx, videoPath, fps, logger)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var frames []models.Frame
	for {
		frame, err := stream.Next(ctx)
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
}

// ProbeDuration reports the video duration in seconds via ffprobe.
func ProbeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// readJPEG pulls one complete JPEG (SOI through EOI) off the mjpeg stream.
// Reading by fixed-size chunks would split frames at arbitrary offsets, so
// the marker bytes delimit frames instead.
func readJPEG(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer

	// Scan to the start-of-image marker.
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			continue
		}
		nb, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if nb == 0xD8 {
			buf.WriteByte(0xFF)
			buf.WriteByte(0xD8)
			break
		}
	}

	// Copy through the end-of-image marker.
	prev := byte(0)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errTruncated, err)
		}
		buf.WriteByte(b)
		if prev == 0xFF && b == 0xD9 {
			return buf.Bytes(), nil
		}
		prev = b
	}
}
