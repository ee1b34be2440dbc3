package knowledge

import (
	"fmt"
	"strings"

	"github.com/mgpai22/smriti/internal/storage"
	"github.com/mgpai22/smriti/internal/youtube"
)

const previewChars = 200

// VideoReport gathers every stored segment of one video.
type VideoReport struct {
	VideoID    string            `json:"video_id" yaml:"video_id"`
	Segments   []storage.Segment `json:"segments" yaml:"segments"`
	Entities   EntityTotals      `json:"entities" yaml:"entities"`
	Statistics VideoStatistics   `json:"statistics" yaml:"statistics"`
}

// distinct entities across all segments, in first-seen order
type EntityTotals struct {
	Books  []string `json:"books" yaml:"books"`
	People []string `json:"people" yaml:"people"`
	Places []string `json:"places" yaml:"places"`
	Facts  []string `json:"facts" yaml:"facts"`
	Topics []string `json:"topics" yaml:"topics"`
}

type VideoStatistics struct {
	SegmentCount      int     `json:"segment_count" yaml:"segment_count"`
	TotalDuration     int     `json:"total_duration" yaml:"total_duration"`
	TotalChars        int     `json:"total_chars" yaml:"total_chars"`
	TotalEntities     int     `json:"total_entities" yaml:"total_entities"`
	EntitiesPerMinute float64 `json:"entities_per_minute" yaml:"entities_per_minute"`
}

// BuildVideoReport aggregates segments, which are expected in start order.
func BuildVideoReport(videoID string, segments []storage.Segment) *VideoReport {
	r := &VideoReport{VideoID: videoID, Segments: segments}
	if r.Segments == nil {
		r.Segments = []storage.Segment{}
	}

	books, people, places := newDedup(), newDedup(), newDedup()
	facts, topics := newDedup(), newDedup()

	for i := range segments {
		seg := &segments[i]
		r.Statistics.TotalDuration += seg.Duration
		r.Statistics.TotalChars += len(seg.Transcription)
		r.Statistics.TotalEntities += seg.EntityCount()

		books.add(seg.Books...)
		people.add(seg.People...)
		places.add(seg.Places...)
		facts.add(seg.Facts...)
		topics.add(seg.Topics...)
	}

	r.Statistics.SegmentCount = len(segments)
	if r.Statistics.TotalDuration > 0 {
		r.Statistics.EntitiesPerMinute = float64(r.Statistics.TotalEntities) / (float64(r.Statistics.TotalDuration) / 60)
	}
	r.Entities = EntityTotals{
		Books:  books.items,
		People: people.items,
		Places: places.items,
		Facts:  facts.items,
		Topics: topics.items,
	}
	return r
}

// RenderVideoReport prints each segment followed by the aggregate numbers.
func RenderVideoReport(r *VideoReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Video ID: %s\n", r.VideoID)
	if len(r.Segments) == 0 {
		b.WriteString("No segments found for this video.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Found %d segments\n", len(r.Segments))
	rule(&b, "=", 50)

	for i := range r.Segments {
		seg := &r.Segments[i]

		fmt.Fprintf(&b, "\nSEGMENT #%d\n", i+1)
		rule(&b, "-", 30)
		fmt.Fprintf(&b, "Segment ID: %s\n", seg.SegmentID)
		fmt.Fprintf(&b, "Time Range: %s - %s\n",
			youtube.FormatTimestamp(float64(seg.StartTime)),
			youtube.FormatTimestamp(float64(seg.EndTime)))
		fmt.Fprintf(&b, "Duration: %d seconds\n", seg.Duration)
		fmt.Fprintf(&b, "Created: %s\n", seg.CreatedAt.Format(processedAtLayout))
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(seg.Tags, ", "))

		b.WriteString("\nSUMMARY:\n")
		if seg.Summary == "" {
			b.WriteString("No summary available\n")
		} else {
			b.WriteString(seg.Summary + "\n")
		}

		counted(&b, "BOOKS", seg.Books)
		counted(&b, "PEOPLE", seg.People)
		counted(&b, "PLACES", seg.Places)
		counted(&b, "KEY FACTS", seg.Facts)
		counted(&b, "TOPICS", seg.Topics)

		if seg.Transcription != "" {
			b.WriteString("\nTRANSCRIPT PREVIEW:\n")
			b.WriteString(preview(seg.Transcription) + "\n")
			fmt.Fprintf(&b, "   (Full transcript: %d characters)\n", len(seg.Transcription))
		}
		if seg.UserNotes != "" {
			b.WriteString("\nNOTES:\n" + seg.UserNotes + "\n")
		}

		b.WriteString("\n")
		rule(&b, "=", 50)
	}

	st := r.Statistics
	b.WriteString("\nSEGMENT STATISTICS:\n")
	fmt.Fprintf(&b, "Total processed time: %s\n", youtube.FormatTimestamp(float64(st.TotalDuration)))
	fmt.Fprintf(&b, "Total transcript characters: %d\n", st.TotalChars)
	fmt.Fprintf(&b, "Total extracted entities: %d\n", st.TotalEntities)
	if st.TotalDuration > 0 {
		fmt.Fprintf(&b, "Average entities per minute: %.1f\n", st.EntitiesPerMinute)
	}

	return b.String()
}

func counted(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(b, "  %s %s\n", bullet, item)
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewChars {
		return text
	}
	return string(runes[:previewChars]) + "..."
}

type dedup struct {
	seen  map[string]struct{}
	items []string
}

func newDedup() *dedup {
	return &dedup{seen: make(map[string]struct{}), items: []string{}}
}

func (d *dedup) add(items ...string) {
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item))
		if key == "" {
			continue
		}
		if _, ok := d.seen[key]; ok {
			continue
		}
		d.seen[key] = struct{}{}
		d.items = append(d.items, item)
	}
}
