package audio

import (
	"slices"
	"testing"
	"time"
)

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", `{"format":{"duration":"12.500000"}}`, 12500 * time.Millisecond, false},
		{"missing", `{"format":{}}`, 0, true},
		{"garbage", `not json`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeDuration([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanChunks(t *testing.T) {
	plan := planChunks("/tmp/in/talk.mp3", "/tmp/out", 150*time.Second, time.Minute)

	if len(plan) != 3 {
		t.Fatalf("got %d chunks, want 3", len(plan))
	}
	if plan[2].StartTime != 2*time.Minute || plan[2].EndTime != 150*time.Second {
		t.Errorf("last chunk = %v-%v, want 2m0s-2m30s", plan[2].StartTime, plan[2].EndTime)
	}
	if plan[1].Path != "/tmp/out/talk_chunk_001.mp3" {
		t.Errorf("chunk path = %q", plan[1].Path)
	}
	for i, c := range plan {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
	}

	if got := planChunks("a.mp3", "out", 0, time.Minute); len(got) != 0 {
		t.Errorf("empty input produced %d chunks", len(got))
	}
}

func TestClipStreamArgs(t *testing.T) {
	args := clipStream("in.mp4", "out.mp3", 5*time.Second, 10*time.Second, DefaultClipOptions()).
		Compile().Args

	for _, want := range []string{"-ss", "-i", "in.mp4", "-t", "-vn", "-acodec", "libmp3lame", "out.mp3"} {
		if !slices.Contains(args, want) {
			t.Errorf("args %v missing %q", args, want)
		}
	}
	if slices.Index(args, "-ss") > slices.Index(args, "-i") {
		t.Errorf("seek must precede the input: %v", args)
	}

	whole := clipStream("in.mp4", "out.mp3", 0, 0, ClipOptions{Format: "aac", SampleRate: 16000, Channels: 1}).
		Compile().Args
	if slices.Contains(whole, "-ss") || slices.Contains(whole, "-t") {
		t.Errorf("unbounded clip should not seek or limit: %v", whole)
	}
	if !slices.Contains(whole, "aac") {
		t.Errorf("expected aac codec: %v", whole)
	}
}

func TestIsMediaFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"talk.MP4", true},
		{"talk.mp3", true},
		{"talk.opus", true},
		{"talk.srt", false},
		{"talk", false},
	}
	for _, tt := range tests {
		if got := IsMediaFile(tt.path); got != tt.want {
			t.Errorf("IsMediaFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
