package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mgpai22/smriti/internal/storage"
	"github.com/mgpai22/smriti/internal/summarize"
	"github.com/mgpai22/smriti/internal/transcript"
	"github.com/mgpai22/smriti/internal/youtube"
)

type fakeSource struct {
	entries []youtube.CaptionEntry
	err     error
}

func (f fakeSource) Fetch(context.Context, string, []string) ([]youtube.CaptionEntry, error) {
	return f.entries, f.err
}

type fakeSummarizer struct {
	result *summarize.Result
	err    error
	got    string
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (*summarize.Result, error) {
	f.got = text
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSummarizer) Close() error { return nil }

var testEntries = []youtube.CaptionEntry{
	{Start: 0, Duration: 5, Text: "intro"},
	{Start: 88, Duration: 4, Text: "the book"},
	{Start: 100, Duration: 5, Text: "by the author"},
	{Start: 200, Duration: 5, Text: "outro"},
}

var fixedTime = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func newPipeline(sum *fakeSummarizer) *Pipeline {
	return &Pipeline{
		Source:     fakeSource{entries: testEntries},
		Summarizer: sum,
		now:        func() time.Time { return fixedTime },
	}
}

func testResult() *summarize.Result {
	return &summarize.Result{
		Summary: "A talk about a book.",
		Books:   []string{"Dune - Frank Herbert"},
		People:  []string{"Frank Herbert"},
		Places:  []string{},
		Facts:   []string{"Published in 1965"},
		Topics:  []string{"science fiction"},
		Model:   "gpt-4o-mini",
	}
}

func TestProcess(t *testing.T) {
	sum := &fakeSummarizer{result: testResult()}
	p := newPipeline(sum)

	ext, err := p.Process(context.Background(), youtube.Request{
		URL:      "https://youtu.be/DAQJvGjlgVM?t=89",
		Duration: "50",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if ext.Segment.StartSeconds != 89 || ext.Segment.EndSeconds != 139 {
		t.Errorf("window = %d-%d, want 89-139", ext.Segment.StartSeconds, ext.Segment.EndSeconds)
	}
	if want := "the book by the author"; sum.got != want {
		t.Errorf("summarizer got %q, want %q", sum.got, want)
	}
	if ext.Summary.Summary != "A talk about a book." {
		t.Errorf("summary = %q", ext.Summary.Summary)
	}
	if !ext.ProcessedAt.Equal(fixedTime) {
		t.Errorf("ProcessedAt = %v, want %v", ext.ProcessedAt, fixedTime)
	}
}

func TestProcessErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  youtube.Fetcher
		sumErr  error
		url     string
		wantErr error
	}{
		{
			name:    "invalid url",
			source:  fakeSource{entries: testEntries},
			url:     "https://example.com/watch",
			wantErr: youtube.ErrInvalidURL,
		},
		{
			name:    "no transcript",
			source:  fakeSource{err: transcript.ErrTranscriptUnavailable},
			url:     "https://youtu.be/DAQJvGjlgVM",
			wantErr: transcript.ErrTranscriptUnavailable,
		},
		{
			name:    "summarizer failure",
			source:  fakeSource{entries: testEntries},
			sumErr:  fmt.Errorf("OpenAI %w: boom", summarize.ErrAPI),
			url:     "https://youtu.be/DAQJvGjlgVM",
			wantErr: summarize.ErrAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Pipeline{
				Source:     tt.source,
				Summarizer: &fakeSummarizer{result: testResult(), err: tt.sumErr},
			}
			_, err := p.Process(context.Background(), youtube.Request{URL: tt.url})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Process() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcessAndSave(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close(context.Background())

	p := newPipeline(&fakeSummarizer{result: testResult()})
	p.Store = store

	ctx := context.Background()
	ext, id, err := p.ProcessAndSave(ctx, youtube.Request{
		URL:   "https://www.youtube.com/watch?v=DAQJvGjlgVM",
		Start: "1:29",
		End:   "2:19",
	}, []string{"books"}, "worth rereading")
	if err != nil {
		t.Fatalf("ProcessAndSave() error = %v", err)
	}
	if id == "" {
		t.Fatal("ProcessAndSave() returned empty id")
	}

	seg, err := store.GetSegment(ctx, id)
	if err != nil {
		t.Fatalf("GetSegment() error = %v", err)
	}
	if seg.VideoID != "DAQJvGjlgVM" || seg.StartTime != 89 || seg.EndTime != 139 || seg.Duration != 50 {
		t.Errorf("stored window = %s %d-%d (%d)", seg.VideoID, seg.StartTime, seg.EndTime, seg.Duration)
	}
	if seg.Transcription != ext.Segment.Text {
		t.Errorf("transcription = %q, want %q", seg.Transcription, ext.Segment.Text)
	}
	if seg.CaptionCount != 2 || seg.CharacterCount != len(ext.Segment.Text) {
		t.Errorf("counts = %d captions, %d chars", seg.CaptionCount, seg.CharacterCount)
	}
	if seg.ProcessingMetadata.ModelUsed != "gpt-4o-mini" {
		t.Errorf("model_used = %q", seg.ProcessingMetadata.ModelUsed)
	}
	if seg.ProcessingMetadata.ExtractionType != storage.ExtractionType {
		t.Errorf("extraction_type = %q", seg.ProcessingMetadata.ExtractionType)
	}
	if len(seg.Tags) != 1 || seg.Tags[0] != "books" || seg.UserNotes != "worth rereading" {
		t.Errorf("tags = %v, notes = %q", seg.Tags, seg.UserNotes)
	}
	if len(seg.Books) != 1 || seg.EntityCount() != 4 {
		t.Errorf("entities = %d, books = %v", seg.EntityCount(), seg.Books)
	}
}

func TestProcessAndSaveWithoutStore(t *testing.T) {
	p := newPipeline(&fakeSummarizer{result: testResult()})
	_, _, err := p.ProcessAndSave(context.Background(), youtube.Request{URL: "https://youtu.be/DAQJvGjlgVM"}, nil, "")
	if !errors.Is(err, ErrNoStore) {
		t.Errorf("error = %v, want ErrNoStore", err)
	}
}

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{
			"transcript",
			fmt.Errorf("failed to extract segment: %w", transcript.ErrTranscriptUnavailable),
			"This video doesn't have available transcripts. Please try a different video.",
		},
		{
			"openai",
			fmt.Errorf("failed to summarize segment: %w", &summarize.APIError{Provider: "OpenAI", Err: errors.New("401")}),
			"OpenAI API error. Please check your API key and try again.",
		},
		{
			"anthropic",
			fmt.Errorf("failed to summarize segment: %w", &summarize.APIError{Provider: "Anthropic", Err: errors.New("401")}),
			"Anthropic API error. Please check your API key and try again.",
		},
		{
			"bare sentinel",
			fmt.Errorf("failed to summarize segment: %w", summarize.ErrAPI),
			"Summarizer API error. Please check your API key and try again.",
		},
		{
			"video",
			fmt.Errorf("failed to extract segment: %w", transcript.ErrVideoUnavailable),
			"Could not access this video. It might be private or unavailable.",
		},
		{
			"url",
			fmt.Errorf("%w: no video id", youtube.ErrInvalidURL),
			"Could not access this video. It might be private or unavailable.",
		},
		{"other", errors.New("disk full"), "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FriendlyError(tt.err); got != tt.want {
				t.Errorf("FriendlyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderText(t *testing.T) {
	ext := &Extraction{
		Segment: youtube.ExtractedSegment{
			VideoID:      "DAQJvGjlgVM",
			URL:          "https://youtu.be/DAQJvGjlgVM?t=89",
			StartSeconds: 89,
			EndSeconds:   139,
			Text:         "the book by the author",
		},
		Summary:     *testResult(),
		ProcessedAt: fixedTime,
	}

	got := RenderText(ext)

	for _, want := range []string{
		"YOUTUBE VIDEO KNOWLEDGE EXTRACTION\n" + strings.Repeat("=", 60) + "\n",
		"URL: https://youtu.be/DAQJvGjlgVM?t=89\n",
		"Time Range: 89s - 139s\n",
		"Processed at: 2024-03-01 12:30:00\n",
		"SUMMARY:\n" + strings.Repeat("-", 40) + "\nA talk about a book.\n",
		"BOOKS & PUBLICATIONS:\n" + strings.Repeat("-", 40) + "\n\u2022 Dune - Frank Herbert\n",
		"PEOPLE MENTIONED:",
		"KEY FACTS & INSIGHTS:",
		"MAIN TOPICS:",
		"FULL TRANSCRIPT:\n" + strings.Repeat("=", 60) + "\nthe book by the author\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderText() missing %q\n%s", want, got)
		}
	}

	if strings.Contains(got, "PLACES MENTIONED:") {
		t.Error("RenderText() rendered an empty places section")
	}
}

func TestDocument(t *testing.T) {
	ext := &Extraction{
		Segment:     youtube.ExtractedSegment{VideoID: "abc", StartSeconds: 5, EndSeconds: 10, Text: "hi"},
		Summary:     summarize.Result{Summary: "s"},
		ProcessedAt: fixedTime,
	}

	doc := ext.Document()
	if doc.Books == nil || doc.Topics == nil {
		t.Error("Document() lists must never be nil")
	}
	if doc.ProcessedAt != "2024-03-01T12:30:00Z" {
		t.Errorf("ProcessedAt = %q", doc.ProcessedAt)
	}
	if doc.StartTime != 5 || doc.EndTime != 10 || doc.Transcription != "hi" {
		t.Errorf("Document() = %+v", doc)
	}
}
