package transcript

import (
	"context"
	"fmt"

	"github.com/mgpai22/smriti/internal/subtitle"
	"github.com/mgpai22/smriti/internal/youtube"
)

// FileSource serves captions from a local .srt or .vtt file, whatever the
// requested video id.
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(
	_ context.Context,
	_ string,
	_ []string,
) ([]youtube.CaptionEntry, error) {
	track, err := subtitle.ParseFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read caption file: %w", err)
	}

	entries := track.Captions()
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s has no cues", ErrTranscriptUnavailable, f.Path)
	}
	return entries, nil
}
