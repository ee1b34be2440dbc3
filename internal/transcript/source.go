package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/mgpai22/smriti/internal/youtube"
)

var (
	// no usable caption track exists for the video
	ErrTranscriptUnavailable = errors.New("transcript unavailable")

	// the video is private, removed, region locked or otherwise unplayable
	ErrVideoUnavailable = errors.New("video unavailable")

	// upstream answered 429 or served a captcha page
	ErrRateLimited = errors.New("rate limited by youtube")
)

// Source produces the full caption list of a video.
type Source interface {
	youtube.Fetcher
}

// FallbackSource tries Primary first and switches to Fallback only when the
// primary has no transcript for the video.
type FallbackSource struct {
	Primary  Source
	Fallback Source
}

func (f FallbackSource) Fetch(
	ctx context.Context,
	videoID string,
	languages []string,
) ([]youtube.CaptionEntry, error) {
	entries, err := f.Primary.Fetch(ctx, videoID, languages)
	if err == nil || f.Fallback == nil || !errors.Is(err, ErrTranscriptUnavailable) {
		return entries, err
	}

	entries, fbErr := f.Fallback.Fetch(ctx, videoID, languages)
	if fbErr != nil {
		return nil, fmt.Errorf("%w; fallback failed: %w", err, fbErr)
	}
	return entries, nil
}
