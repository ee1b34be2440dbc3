package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/mgpai22/smriti/internal/knowledge"
	"github.com/mgpai22/smriti/internal/storage"
	"github.com/mgpai22/smriti/internal/transcript"
	"github.com/mgpai22/smriti/internal/youtube"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"en", []string{"en"}},
		{" en, es ,,fr ", []string{"en", "es", "fr"}},
		{" , ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := splitList(tt.raw)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("splitList(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestVideoIDFrom(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"rCtvAvZtJyE", "rCtvAvZtJyE"},
		{" rCtvAvZtJyE ", "rCtvAvZtJyE"},
		{"https://youtube.com/watch?v=rCtvAvZtJyE&t=30", "rCtvAvZtJyE"},
		{"https://youtu.be/DAQJvGjlgVM?t=89", "DAQJvGjlgVM"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := videoIDFrom(tt.input); got != tt.want {
				t.Errorf("videoIDFrom(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	value := map[string]any{"video_id": "abc", "count": 2}
	text := func() string { return "plain\n" }

	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{"", "plain\n", false},
		{"text", "plain\n", false},
		{"json", "{\n  \"count\": 2,\n  \"video_id\": \"abc\"\n}\n", false},
		{"JSON", "{\n  \"count\": 2,\n  \"video_id\": \"abc\"\n}\n", false},
		{"yaml", "count: 2\nvideo_id: abc\n", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := encode(tt.format, value, text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("encode(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("encode(%q) = %q, want %q", tt.format, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"spread   over\nlines", 30, "spread over lines"},
		{"abcdefghijkl", 8, "abcde..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFriendly(t *testing.T) {
	plain := errors.New("disk full")
	if got := friendly(plain); got != plain {
		t.Errorf("friendly(%v) = %v, want the error unchanged", plain, got)
	}

	wrapped := fmt.Errorf("failed to extract segment: %w", transcript.ErrTranscriptUnavailable)
	got := friendly(wrapped)
	if !errors.Is(got, transcript.ErrTranscriptUnavailable) {
		t.Errorf("friendly() lost the wrapped error: %v", got)
	}
	if !strings.HasPrefix(got.Error(), "This video doesn't have available transcripts.") {
		t.Errorf("friendly() = %q", got.Error())
	}
}

func TestSubtitlePath(t *testing.T) {
	seg := &youtube.ExtractedSegment{VideoID: "abc", StartSeconds: 89, EndSeconds: 139}
	if got := subtitlePath(seg, "srt"); got != "abc_89-139.srt" {
		t.Errorf("subtitlePath() = %q", got)
	}
}

func newFlagCommand(setup func(*cobra.Command)) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	setup(cmd)
	return cmd
}

func TestSearchQueryFromFlags(t *testing.T) {
	cmd := newFlagCommand(func(c *cobra.Command) {
		c.Flags().String("query", "", "")
		c.Flags().String("video", "", "")
		c.Flags().String("tags", "", "")
		c.Flags().Int("min-duration", 0, "")
		c.Flags().Int("max-duration", 0, "")
		c.Flags().Int("limit", storage.DefaultSearchLimit, "")
	})
	if err := cmd.ParseFlags([]string{
		"--query", "dune",
		"--video", "https://youtu.be/DAQJvGjlgVM",
		"--tags", "books, history",
		"--min-duration", "0",
	}); err != nil {
		t.Fatal(err)
	}

	q := searchQueryFromFlags(cmd)
	if q.Query != "dune" || q.VideoID != "DAQJvGjlgVM" || q.Limit != storage.DefaultSearchLimit {
		t.Errorf("query = %+v", q)
	}
	if len(q.Tags) != 2 || q.Tags[1] != "history" {
		t.Errorf("tags = %v", q.Tags)
	}
	if q.MinDuration == nil || *q.MinDuration != 0 {
		t.Errorf("explicit zero min duration should be kept, got %v", q.MinDuration)
	}
	if q.MaxDuration != nil {
		t.Errorf("unset max duration = %v, want nil", *q.MaxDuration)
	}
}

func TestSegmentUpdateFromFlags(t *testing.T) {
	flags := func(c *cobra.Command) {
		c.Flags().String("tags", "", "")
		c.Flags().String("notes", "", "")
		c.Flags().String("summary", "", "")
	}

	t.Run("nothing set", func(t *testing.T) {
		cmd := newFlagCommand(flags)
		if !segmentUpdateFromFlags(cmd).IsEmpty() {
			t.Error("expected an empty update")
		}
	})

	t.Run("clear tags", func(t *testing.T) {
		cmd := newFlagCommand(flags)
		if err := cmd.ParseFlags([]string{"--tags", "", "--notes", "reread"}); err != nil {
			t.Fatal(err)
		}
		update := segmentUpdateFromFlags(cmd)
		if update.Tags == nil || len(*update.Tags) != 0 || *update.Tags == nil {
			t.Errorf("tags = %v, want empty non-nil list", update.Tags)
		}
		if update.UserNotes == nil || *update.UserNotes != "reread" {
			t.Errorf("notes = %v", update.UserNotes)
		}
		if update.Summary != nil {
			t.Errorf("summary = %v, want nil", *update.Summary)
		}
	})
}

func TestPrintStored(t *testing.T) {
	ext := &knowledge.Extraction{
		Segment: youtube.ExtractedSegment{VideoID: "abc", StartSeconds: 10, EndSeconds: 20, Text: "hello"},
	}
	ext.Summary.Summary = "sum"
	ext.Summary.People = []string{"a", "b", "c", "d", "e", "f", "g"}

	var buf bytes.Buffer
	printStored(&buf, ext, "seg-1", []string{"x"})
	out := buf.String()

	for _, want := range []string{
		"Segment stored: seg-1",
		"Video: abc (10s - 20s)",
		"Books: 0, People: 7, Places: 0, Facts: 0, Topics: 0",
		"People (7):",
		"  ... and 2 more",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// run executes the real command tree with the given arguments.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

const testSRT = `1
00:00:01,000 --> 00:00:03,000
first line

2
00:00:03,000 --> 00:00:06,000
second line

3
00:00:20,000 --> 00:00:22,000
much later
`

func TestExtractCommandFromCaptions(t *testing.T) {
	dir := t.TempDir()
	captions := filepath.Join(dir, "talk.srt")
	if err := os.WriteFile(captions, []byte(testSRT), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "segment.json")
	if _, err := run(t, "extract", "https://youtu.be/DAQJvGjlgVM",
		"--captions", captions,
		"--start", "0:02",
		"--duration", "5",
		"--format", "json",
		"--output", out,
	); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var seg youtube.ExtractedSegment
	if err := json.Unmarshal(raw, &seg); err != nil {
		t.Fatalf("invalid json output: %v\n%s", err, raw)
	}

	if seg.VideoID != "DAQJvGjlgVM" || seg.StartSeconds != 2 || seg.EndSeconds != 7 {
		t.Errorf("segment = %s %d-%d", seg.VideoID, seg.StartSeconds, seg.EndSeconds)
	}
	if seg.Text != "first line second line" {
		t.Errorf("text = %q", seg.Text)
	}
}

func TestLibraryCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "smriti.db")
	t.Setenv("SMRITI_STORAGE_BACKEND", "sqlite")
	t.Setenv("SMRITI_STORAGE_SQLITE_PATH", dbPath)

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	id, err := store.SaveSegment(ctx, &storage.Segment{
		VideoID:       "rCtvAvZtJyE",
		StartTime:     60,
		EndTime:       120,
		Transcription: "a long talk about dune",
		Summary:       "Dune and its author",
		Books:         []string{"Dune"},
		People:        []string{"Frank Herbert"},
		Tags:          []string{"books"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(ctx); err != nil {
		t.Fatal(err)
	}

	t.Run("stats", func(t *testing.T) {
		out, err := run(t, "stats", "--format", "json", "--output", "")
		if err != nil {
			t.Fatal(err)
		}
		var stats storage.Stats
		if err := json.Unmarshal([]byte(out), &stats); err != nil {
			t.Fatalf("invalid json: %v\n%s", err, out)
		}
		if stats.TotalSegments != 1 || stats.TotalKnowledgeEntities != 2 {
			t.Errorf("stats = %+v", stats)
		}
	})

	t.Run("search", func(t *testing.T) {
		out, err := run(t, "search", "--query", "herbert", "--format", "text", "--output", "")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "No matching segments.") {
			t.Errorf("summary and transcript do not mention herbert, got:\n%s", out)
		}

		out, err = run(t, "search", "--query", "DUNE", "--format", "text", "--output", "")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, id) || !strings.Contains(out, "1 segment(s)") {
			t.Errorf("search output:\n%s", out)
		}
	})

	t.Run("retrieve", func(t *testing.T) {
		out, err := run(t, "retrieve", "https://youtube.com/watch?v=rCtvAvZtJyE", "--format", "text", "--output", "")
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"Found 1 segments", "Time Range: 01:00 - 02:00", "Total extracted entities: 2"} {
			if !strings.Contains(out, want) {
				t.Errorf("retrieve output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		if _, err := run(t, "update", id, "--notes", "reread", "--output", ""); err != nil {
			t.Fatal(err)
		}
		if _, err := run(t, "delete", id, "--output", ""); err != nil {
			t.Fatal(err)
		}
		_, err := run(t, "delete", id, "--output", "")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("second delete error = %v, want ErrNotFound", err)
		}
	})
}
