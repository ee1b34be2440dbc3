package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mgpai22/smriti/internal/audio"
	"github.com/mgpai22/smriti/internal/youtube"
)

func TestParseVerboseJSON(t *testing.T) {
	tests := []struct {
		name      string
		rawJSON   string
		wantCount int
		wantErr   bool
	}{
		{
			name: "segments",
			rawJSON: `{
				"text": "Hello world. How are you today?",
				"segments": [
					{"start": 0.0, "end": 1.5, "text": "Hello world."},
					{"start": 1.5, "end": 3.0, "text": "How are you today?"}
				],
				"language": "english",
				"duration": 3.0
			}`,
			wantCount: 2,
		},
		{
			name:      "text without segments",
			rawJSON:   `{"text": "Only text.", "segments": null, "duration": 2.5}`,
			wantCount: 1,
		},
		{
			name: "blank segments filtered",
			rawJSON: `{
				"text": "Hello",
				"segments": [
					{"start": 0.0, "end": 0.5, "text": ""},
					{"start": 0.5, "end": 1.5, "text": " Hello "},
					{"start": 1.5, "end": 2.0, "text": "   "}
				]
			}`,
			wantCount: 1,
		},
		{name: "empty", rawJSON: "", wantErr: true},
		{name: "invalid JSON", rawJSON: `{"text": "incomplete`, wantErr: true},
		{name: "nothing usable", rawJSON: `{"text": "", "segments": []}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVerboseJSON(tt.rawJSON)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result.Entries) != tt.wantCount {
				t.Errorf("got %d entries, want %d", len(result.Entries), tt.wantCount)
			}
			for _, e := range result.Entries {
				if e.Text == "" || e.Text != strings.TrimSpace(e.Text) {
					t.Errorf("entry text not trimmed: %q", e.Text)
				}
			}
		})
	}
}

func TestParseVerboseJSONTiming(t *testing.T) {
	result, err := parseVerboseJSON(`{"segments": [{"start": 1.5, "end": 4.0, "text": "x"}], "language": "en", "duration": 4}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := result.Entries[0]
	if got.Start != 1.5 || got.Duration != 2.5 {
		t.Errorf("entry = %+v, want start 1.5 duration 2.5", got)
	}
	if result.Language != "en" || result.Duration != 4*time.Second {
		t.Errorf("result meta = %q %v", result.Language, result.Duration)
	}
}

func TestParseSegments(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "plain array",
			input:     `[{"start": 0, "end": 2.5, "text": "Hello"}, {"start": 2.5, "end": 5, "text": "World"}]`,
			wantCount: 2,
		},
		{
			name:      "fenced with preamble",
			input:     "Here is the transcript:\n```json\n[{\"start\": 1, \"end\": 3, \"text\": \"Test\"}]\n```",
			wantCount: 1,
		},
		{
			name:      "inverted span clamps to zero duration",
			input:     `[{"start": 5, "end": 3, "text": "odd"}]`,
			wantCount: 1,
		},
		{name: "empty", input: "  ", wantErr: true},
		{name: "no array", input: "I could not hear anything.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := parseSegments(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(entries) != tt.wantCount {
				t.Errorf("got %d entries, want %d", len(entries), tt.wantCount)
			}
			for _, e := range entries {
				if e.Duration < 0 {
					t.Errorf("negative duration: %+v", e)
				}
			}
		})
	}
}

// returns one entry per chunk, named after the chunk path
type fakeTranscriber struct {
	failOn string
	calls  atomic.Int32
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (*Result, error) {
	f.calls.Add(1)
	if audioPath == f.failOn {
		return nil, errors.New("boom")
	}
	return &Result{Entries: []youtube.CaptionEntry{{Start: 1, Duration: 2, Text: audioPath}}}, nil
}

func (f *fakeTranscriber) Close() error { return nil }

func makeChunks(n int) []audio.ChunkInfo {
	chunks := make([]audio.ChunkInfo, n)
	for i := range chunks {
		chunks[i] = audio.ChunkInfo{
			Path:      fmt.Sprintf("chunk-%d", i),
			Index:     i,
			StartTime: time.Duration(i) * time.Minute,
			EndTime:   time.Duration(i+1) * time.Minute,
		}
	}
	return chunks
}

func TestTranscribeChunks(t *testing.T) {
	fake := &fakeTranscriber{}

	result, err := TranscribeChunks(context.Background(), fake, makeChunks(5), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(result.Entries))
	}
	for i, e := range result.Entries {
		if e.Text != fmt.Sprintf("chunk-%d", i) {
			t.Errorf("entry %d = %q, out of order", i, e.Text)
		}
		if want := float64(i*60 + 1); e.Start != want {
			t.Errorf("entry %d start = %v, want %v", i, e.Start, want)
		}
	}
	if result.Duration != 5*time.Minute {
		t.Errorf("duration = %v, want 5m", result.Duration)
	}
}

func TestTranscribeChunksFailure(t *testing.T) {
	fake := &fakeTranscriber{failOn: "chunk-2"}

	_, err := TranscribeChunks(context.Background(), fake, makeChunks(6), 1)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := fake.calls.Load(); got > 4 {
		t.Errorf("transcriber called %d times after failure, want early stop", got)
	}
}

func TestTranscribeChunksEmpty(t *testing.T) {
	result, err := TranscribeChunks(context.Background(), &fakeTranscriber{}, nil, 3)
	if err != nil || len(result.Entries) != 0 {
		t.Errorf("got %+v, %v; want empty result", result, err)
	}
}

func TestFactory(t *testing.T) {
	tests := []struct {
		provider Provider
		wantErr  bool
	}{
		{ProviderOpenAI, false},
		{"whisper", false},
		{ProviderGemini, false},
		{"unknown", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			tr, err := Factory(context.Background(), tt.provider, "fake-key", Options{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Factory(%q) err = %v, wantErr %v", tt.provider, err, tt.wantErr)
			}
			if tr != nil {
				_ = tr.Close()
			}
		})
	}

	if _, err := Factory(context.Background(), ProviderOpenAI, "", Options{}); err == nil {
		t.Error("expected error for missing API key")
	}
}
