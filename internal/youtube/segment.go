package youtube

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidWindow reports a window that ends before it starts.
var ErrInvalidWindow = errors.New("invalid time window")

// one timestamped transcript line
type CaptionEntry struct {
	Start    float64 `json:"start" yaml:"start"`
	Duration float64 `json:"duration" yaml:"duration"`
	Text     string  `json:"text" yaml:"text"`
}

func (e CaptionEntry) End() float64 {
	return e.Start + e.Duration
}

// resolved selection request, in whole seconds
type TimeWindow struct {
	StartSeconds int `json:"start_seconds" yaml:"start_seconds"`
	EndSeconds   int `json:"end_seconds" yaml:"end_seconds"`
}

// output of Select
type ExtractedSegment struct {
	VideoID      string         `json:"video_id" yaml:"video_id"`
	URL          string         `json:"url,omitempty" yaml:"url,omitempty"`
	StartSeconds int            `json:"start_seconds" yaml:"start_seconds"`
	EndSeconds   int            `json:"end_seconds" yaml:"end_seconds"`
	Text         string         `json:"text" yaml:"text"`
	Entries      []CaptionEntry `json:"entries" yaml:"entries"`
}

func (s ExtractedSegment) Window() TimeWindow {
	return TimeWindow{StartSeconds: s.StartSeconds, EndSeconds: s.EndSeconds}
}

// ResolveEnd picks the window end: explicit end, then start+duration, then
// the end of the last caption. An empty transcript yields end == start.
// The result is never below start.
func ResolveEnd(entries []CaptionEntry, start int, end, duration *int) int {
	resolved := start
	switch {
	case end != nil:
		resolved = *end
	case duration != nil:
		if *duration > math.MaxInt-start {
			return math.MaxInt
		}
		resolved = start + *duration
	case len(entries) > 0:
		resolved = int(math.Ceil(entries[len(entries)-1].End()))
	}
	return max(resolved, start)
}

// Select keeps every entry whose closed interval [start, start+duration]
// touches the closed window [start, end]. Entries are never reordered.
func Select(
	videoID string,
	entries []CaptionEntry,
	start int,
	end, duration *int,
) ExtractedSegment {
	resolvedEnd := ResolveEnd(entries, start, end, duration)

	selected := make([]CaptionEntry, 0)
	texts := make([]string, 0)
	for _, e := range entries {
		if e.End() >= float64(start) && e.Start <= float64(resolvedEnd) {
			selected = append(selected, e)
			texts = append(texts, e.Text)
		}
	}

	return ExtractedSegment{
		VideoID:      videoID,
		StartSeconds: start,
		EndSeconds:   resolvedEnd,
		Text:         strings.Join(texts, " "),
		Entries:      selected,
	}
}

// FormatWithTimestamps renders the segment with one [MM:SS] line per caption.
func FormatWithTimestamps(seg ExtractedSegment) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Video ID: %s\n", seg.VideoID))
	sb.WriteString(fmt.Sprintf("URL: %s\n", seg.URL))
	sb.WriteString(fmt.Sprintf("Segment: %ds - %ds\n", seg.StartSeconds, seg.EndSeconds))
	sb.WriteString("\nTranscript with timestamps:\n")
	sb.WriteString(strings.Repeat("-", 40))

	for _, e := range seg.Entries {
		sb.WriteString(fmt.Sprintf("\n[%s] %s", FormatTimestamp(e.Start), e.Text))
	}

	return sb.String()
}
