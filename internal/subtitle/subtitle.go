package subtitle

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/smriti/internal/youtube"
)

// single cue
type Entry struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// ordered cues of one file
type Track struct {
	Entries  []Entry
	Language string
	Format   Format
}

type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// ParseFormat accepts "srt" or "vtt" in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatSRT:
		return FormatSRT, nil
	case FormatVTT:
		return FormatVTT, nil
	default:
		return "", fmt.Errorf("unsupported subtitle format %q: use srt or vtt", s)
	}
}

// subtitle format based on file extension
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return ParseFormat(ext)
}

func (f Format) Extension() string {
	return "." + string(f)
}

// FromCaptions numbers the captions from 1 and converts seconds to durations.
func FromCaptions(captions []youtube.CaptionEntry) *Track {
	entries := make([]Entry, 0, len(captions))
	for i, c := range captions {
		entries = append(entries, Entry{
			Index:     i + 1,
			StartTime: seconds(c.Start),
			EndTime:   seconds(c.End()),
			Text:      c.Text,
		})
	}
	return &Track{Entries: entries}
}

// Captions flattens multi-line cues into single-line caption entries.
func (t *Track) Captions() []youtube.CaptionEntry {
	captions := make([]youtube.CaptionEntry, 0, len(t.Entries))
	for _, e := range t.Entries {
		text := strings.Join(strings.Fields(e.Text), " ")
		if text == "" {
			continue
		}
		duration := e.EndTime - e.StartTime
		if duration < 0 {
			duration = 0
		}
		captions = append(captions, youtube.CaptionEntry{
			Start:    e.StartTime.Seconds(),
			Duration: duration.Seconds(),
			Text:     text,
		})
	}
	return captions
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
