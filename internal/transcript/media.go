package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mgpai22/smriti/internal/audio"
	"github.com/mgpai22/smriti/internal/logging"
	"github.com/mgpai22/smriti/internal/transcribe"
	"github.com/mgpai22/smriti/internal/youtube"
)

// MediaSource transcribes a local audio or video file with a speech model.
// When Window is set only that span is clipped and transcribed; entry times
// stay absolute to the source file.
type MediaSource struct {
	Path          string
	Transcriber   transcribe.Transcriber
	Window        *youtube.TimeWindow
	ChunkDuration time.Duration // default 1m
	Concurrency   int           // default 3
	Logger        *logging.Logger
}

func (m *MediaSource) Fetch(
	ctx context.Context,
	_ string,
	_ []string,
) ([]youtube.CaptionEntry, error) {
	if !audio.IsMediaFile(m.Path) {
		return nil, fmt.Errorf("unsupported media file: %s", m.Path)
	}
	if m.Transcriber == nil {
		return nil, fmt.Errorf("no transcriber configured for %s", m.Path)
	}

	log := m.Logger
	if log == nil {
		log = logging.Nop()
	}
	chunkDuration := m.ChunkDuration
	if chunkDuration <= 0 {
		chunkDuration = time.Minute
	}
	concurrency := m.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}

	tmpDir, err := os.MkdirTemp("", "smriti-media-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var start, end time.Duration
	if m.Window != nil {
		start = time.Duration(m.Window.StartSeconds) * time.Second
		end = time.Duration(m.Window.EndSeconds) * time.Second
	}

	clipPath := filepath.Join(tmpDir, "clip.mp3")
	log.Infow("extracting audio", "path", m.Path, "start", start, "end", end)
	if err := audio.ExtractClip(ctx, m.Path, clipPath, start, end, audio.DefaultClipOptions()); err != nil {
		return nil, err
	}

	chunks, err := audio.Chunk(ctx, clipPath, chunkDuration, filepath.Join(tmpDir, "chunks"), concurrency)
	if err != nil {
		return nil, err
	}
	log.Infow("transcribing audio", "chunks", len(chunks), "concurrency", concurrency)

	result, err := transcribe.TranscribeChunks(ctx, m.Transcriber, chunks, concurrency)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("%w: no speech found in %s", ErrTranscriptUnavailable, m.Path)
	}

	return transcribe.Shift(result.Entries, start), nil
}
