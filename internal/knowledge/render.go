package knowledge

import (
	"fmt"
	"strings"
	"time"
)

const (
	heavyRule = 60
	lightRule = 40
	bullet    = "\u2022"

	processedAtLayout = "2006-01-02 15:04:05"
)

// Document is the flat JSON/YAML shape of an extraction, shared by the CLI
// and the /extract endpoint.
type Document struct {
	URL           string   `json:"url" yaml:"url"`
	VideoID       string   `json:"video_id" yaml:"video_id"`
	StartTime     int      `json:"start_time" yaml:"start_time"`
	EndTime       int      `json:"end_time" yaml:"end_time"`
	Transcription string   `json:"transcription" yaml:"transcription"`
	Summary       string   `json:"summary" yaml:"summary"`
	Books         []string `json:"books" yaml:"books"`
	People        []string `json:"people" yaml:"people"`
	Places        []string `json:"places" yaml:"places"`
	Facts         []string `json:"facts" yaml:"facts"`
	Topics        []string `json:"topics" yaml:"topics"`
	ProcessedAt   string   `json:"processed_at" yaml:"processed_at"`
	SegmentID     string   `json:"segment_id,omitempty" yaml:"segment_id,omitempty"`
}

func (e *Extraction) Document() Document {
	return Document{
		URL:           e.Segment.URL,
		VideoID:       e.Segment.VideoID,
		StartTime:     e.Segment.StartSeconds,
		EndTime:       e.Segment.EndSeconds,
		Transcription: e.Segment.Text,
		Summary:       e.Summary.Summary,
		Books:         orEmpty(e.Summary.Books),
		People:        orEmpty(e.Summary.People),
		Places:        orEmpty(e.Summary.Places),
		Facts:         orEmpty(e.Summary.Facts),
		Topics:        orEmpty(e.Summary.Topics),
		ProcessedAt:   e.ProcessedAt.Format(time.RFC3339),
	}
}

// RenderText formats an extraction as a plain-text report. Entity sections
// are omitted when empty.
func RenderText(e *Extraction) string {
	var b strings.Builder

	b.WriteString("YOUTUBE VIDEO KNOWLEDGE EXTRACTION\n")
	rule(&b, "=", heavyRule)
	fmt.Fprintf(&b, "URL: %s\n", e.Segment.URL)
	fmt.Fprintf(&b, "Time Range: %ds - %ds\n", e.Segment.StartSeconds, e.Segment.EndSeconds)
	fmt.Fprintf(&b, "Processed at: %s\n", e.ProcessedAt.Format(processedAtLayout))
	b.WriteString("\n")

	b.WriteString("SUMMARY:\n")
	rule(&b, "-", lightRule)
	b.WriteString(e.Summary.Summary)
	b.WriteString("\n\n")

	section(&b, "BOOKS & PUBLICATIONS:", e.Summary.Books)
	section(&b, "PEOPLE MENTIONED:", e.Summary.People)
	section(&b, "PLACES MENTIONED:", e.Summary.Places)
	section(&b, "KEY FACTS & INSIGHTS:", e.Summary.Facts)
	section(&b, "MAIN TOPICS:", e.Summary.Topics)

	b.WriteString("FULL TRANSCRIPT:\n")
	rule(&b, "=", heavyRule)
	b.WriteString(e.Segment.Text)
	b.WriteString("\n")

	return b.String()
}

func section(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString("\n")
	rule(b, "-", lightRule)
	for _, item := range items {
		fmt.Fprintf(b, "%s %s\n", bullet, item)
	}
	b.WriteString("\n")
}

func rule(b *strings.Builder, char string, n int) {
	b.WriteString(strings.Repeat(char, n))
	b.WriteString("\n")
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
