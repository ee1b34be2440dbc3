package youtube

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// DefaultLanguages is the transcript language preference when none is given.
var DefaultLanguages = []string{"en"}

// supplies the ordered captions of a video
type Fetcher interface {
	Fetch(ctx context.Context, videoID string, languages []string) ([]CaptionEntry, error)
}

// raw, user supplied extraction request
type Request struct {
	URL       string   `json:"url"`
	Start     string   `json:"start_time,omitempty"`
	End       string   `json:"end_time,omitempty"`
	Duration  string   `json:"duration,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// resolved, pre-fetch view of a Request
type Plan struct {
	VideoID   string
	Start     int
	End       *int
	Duration  *int
	Languages []string
}

// Resolve parses the URL and every time field of the request. An explicit
// start wins over the URL's inline offset. A zero duration counts as absent.
func (r Request) Resolve() (*Plan, error) {
	videoID, inline, err := ParseURL(r.URL)
	if err != nil {
		return nil, err
	}

	plan := &Plan{VideoID: videoID, Languages: r.Languages}
	if len(plan.Languages) == 0 {
		plan.Languages = DefaultLanguages
	}

	switch start := strings.TrimSpace(r.Start); {
	case start != "":
		if plan.Start, err = ParseTime(start); err != nil {
			return nil, fmt.Errorf("start time: %w", err)
		}
	case inline != nil:
		plan.Start = *inline
	}

	if end := strings.TrimSpace(r.End); end != "" {
		v, err := ParseTime(end)
		if err != nil {
			return nil, fmt.Errorf("end time: %w", err)
		}
		plan.End = &v
	}

	if duration := strings.TrimSpace(r.Duration); duration != "" {
		v, err := ParseTime(duration)
		if err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
		if v > 0 {
			plan.Duration = &v
		}
	}

	if plan.End != nil && *plan.End < plan.Start {
		return nil, fmt.Errorf("%w: end %ds is before start %ds", ErrInvalidWindow, *plan.End, plan.Start)
	}
	if plan.End == nil && plan.Duration != nil && *plan.Duration > math.MaxInt-plan.Start {
		return nil, fmt.Errorf("%w: start %ds plus duration %ds is out of range", ErrInvalidWindow, plan.Start, *plan.Duration)
	}

	return plan, nil
}

// Extract runs URL parsing, transcript fetch and selection in that order.
func Extract(ctx context.Context, fetcher Fetcher, req Request) (*ExtractedSegment, error) {
	plan, err := req.Resolve()
	if err != nil {
		return nil, err
	}

	entries, err := fetcher.Fetch(ctx, plan.VideoID, plan.Languages)
	if err != nil {
		return nil, err
	}

	seg := Select(plan.VideoID, entries, plan.Start, plan.End, plan.Duration)
	seg.URL = CleanURL(strings.TrimSpace(req.URL), plan.Start)

	return &seg, nil
}
