// Package knowledge ties segment extraction, summarization and storage into
// the single operation the CLI and the HTTP server expose.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mgpai22/smriti/internal/logging"
	"github.com/mgpai22/smriti/internal/storage"
	"github.com/mgpai22/smriti/internal/summarize"
	"github.com/mgpai22/smriti/internal/transcript"
	"github.com/mgpai22/smriti/internal/youtube"
)

var ErrNoStore = errors.New("no storage configured")

// Extraction is one processed segment together with its summary.
type Extraction struct {
	Segment     youtube.ExtractedSegment `json:"segment" yaml:"segment"`
	Summary     summarize.Result         `json:"summary" yaml:"summary"`
	ProcessedAt time.Time                `json:"processed_at" yaml:"processed_at"`
}

type Pipeline struct {
	Source     youtube.Fetcher
	Summarizer summarize.Summarizer
	Store      storage.Store // optional, required by ProcessAndSave
	Logger     *logging.Logger

	now func() time.Time
}

func (p *Pipeline) logger() *logging.Logger {
	if p.Logger == nil {
		return logging.Nop()
	}
	return p.Logger
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now().UTC()
}

// Process extracts the requested window and summarizes it.
func (p *Pipeline) Process(ctx context.Context, req youtube.Request) (*Extraction, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("no transcript source configured")
	}
	if p.Summarizer == nil {
		return nil, fmt.Errorf("no summarizer configured")
	}

	log := p.logger()
	log.Infow("Extracting segment", "url", req.URL, "start", req.Start, "end", req.End, "duration", req.Duration)

	seg, err := youtube.Extract(ctx, p.Source, req)
	if err != nil {
		return nil, fmt.Errorf("failed to extract segment: %w", err)
	}

	log.Infow("Summarizing segment",
		"video_id", seg.VideoID,
		"start", seg.StartSeconds,
		"end", seg.EndSeconds,
		"captions", len(seg.Entries),
		"chars", len(seg.Text),
	)

	result, err := p.Summarizer.Summarize(ctx, seg.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize segment: %w", err)
	}

	log.Debugw("Summary ready",
		"video_id", seg.VideoID,
		"model", result.Model,
		"books", len(result.Books),
		"people", len(result.People),
		"places", len(result.Places),
		"facts", len(result.Facts),
		"topics", len(result.Topics),
	)

	return &Extraction{
		Segment:     *seg,
		Summary:     *result,
		ProcessedAt: p.clock(),
	}, nil
}

// ProcessAndSave runs Process and stores the result, returning the new
// segment id.
func (p *Pipeline) ProcessAndSave(
	ctx context.Context,
	req youtube.Request,
	tags []string,
	notes string,
) (*Extraction, string, error) {
	if p.Store == nil {
		return nil, "", ErrNoStore
	}

	ext, err := p.Process(ctx, req)
	if err != nil {
		return nil, "", err
	}

	id, err := p.Save(ctx, ext, tags, notes)
	if err != nil {
		return ext, "", err
	}
	return ext, id, nil
}

// Save persists an already processed extraction.
func (p *Pipeline) Save(ctx context.Context, ext *Extraction, tags []string, notes string) (string, error) {
	if p.Store == nil {
		return "", ErrNoStore
	}

	id, err := p.Store.SaveSegment(ctx, ToSegment(ext, tags, notes))
	if err != nil {
		return "", fmt.Errorf("failed to store segment: %w", err)
	}

	p.logger().Infow("Stored segment", "segment_id", id, "video_id", ext.Segment.VideoID, "tags", tags)
	return id, nil
}

// ToSegment maps an extraction onto the stored document shape.
func ToSegment(ext *Extraction, tags []string, notes string) *storage.Segment {
	seg := ext.Segment
	sum := ext.Summary

	if tags == nil {
		tags = []string{}
	}

	return &storage.Segment{
		VideoID:        seg.VideoID,
		URL:            seg.URL,
		StartTime:      seg.StartSeconds,
		EndTime:        seg.EndSeconds,
		Duration:       seg.EndSeconds - seg.StartSeconds,
		Transcription:  seg.Text,
		Summary:        sum.Summary,
		Books:          sum.Books,
		People:         sum.People,
		Places:         sum.Places,
		Facts:          sum.Facts,
		Topics:         sum.Topics,
		Tags:           tags,
		UserNotes:      notes,
		CharacterCount: len(seg.Text),
		CaptionCount:   len(seg.Entries),
		ProcessingMetadata: storage.ProcessingMetadata{
			ModelUsed:      sum.Model,
			ExtractionType: storage.ExtractionType,
			ProcessedAt:    ext.ProcessedAt,
		},
	}
}

// FriendlyError turns a pipeline failure into a message fit for end users.
func FriendlyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, transcript.ErrTranscriptUnavailable):
		return "This video doesn't have available transcripts. Please try a different video."
	case errors.Is(err, summarize.ErrAPI):
		provider := "Summarizer"
		var apiErr *summarize.APIError
		if errors.As(err, &apiErr) && apiErr.Provider != "" {
			provider = apiErr.Provider
		}
		return provider + " API error. Please check your API key and try again."
	case errors.Is(err, transcript.ErrVideoUnavailable), errors.Is(err, youtube.ErrInvalidURL):
		return "Could not access this video. It might be private or unavailable."
	default:
		return err.Error()
	}
}
