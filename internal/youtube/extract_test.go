package youtube

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeFetcher struct {
	entries   []CaptionEntry
	err       error
	gotID     string
	gotLangs  []string
	callCount int
}

func (f *fakeFetcher) Fetch(_ context.Context, videoID string, languages []string) ([]CaptionEntry, error) {
	f.callCount++
	f.gotID = videoID
	f.gotLangs = languages
	return f.entries, f.err
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantStart int
		wantEnd   int
		wantText  string
		wantURL   string
	}{
		{
			name:      "inline start and duration",
			req:       Request{URL: "https://www.youtube.com/watch?v=vid&t=3", Duration: "9"},
			wantStart: 3,
			wantEnd:   12,
			wantText:  "a b c",
			wantURL:   "https://www.youtube.com/watch?v=vid&t=3",
		},
		{
			name:      "explicit start overrides inline",
			req:       Request{URL: "https://youtu.be/vid?t=1", Start: "0:11", End: "0:14"},
			wantStart: 11,
			wantEnd:   14,
			wantText:  "c",
			wantURL:   "https://youtu.be/vid?t=11",
		},
		{
			name:      "zero duration means until the end",
			req:       Request{URL: "https://youtu.be/vid", Start: "6", Duration: "0"},
			wantStart: 6,
			wantEnd:   15,
			wantText:  "b c",
			wantURL:   "https://youtu.be/vid?t=6",
		},
		{
			name:      "no offsets",
			req:       Request{URL: "https://youtube.com/embed/vid"},
			wantStart: 0,
			wantEnd:   15,
			wantText:  "a b c",
			wantURL:   "https://youtube.com/embed/vid?t=0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{entries: sampleEntries()}

			seg, err := Extract(context.Background(), fetcher, tt.req)
			if err != nil {
				t.Fatalf("Extract() unexpected error: %v", err)
			}
			if fetcher.gotID != "vid" {
				t.Errorf("fetched video %q, want %q", fetcher.gotID, "vid")
			}
			if !reflect.DeepEqual(fetcher.gotLangs, DefaultLanguages) {
				t.Errorf("languages = %v, want %v", fetcher.gotLangs, DefaultLanguages)
			}
			if seg.StartSeconds != tt.wantStart || seg.EndSeconds != tt.wantEnd {
				t.Errorf("window = [%d, %d], want [%d, %d]",
					seg.StartSeconds, seg.EndSeconds, tt.wantStart, tt.wantEnd)
			}
			if seg.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", seg.Text, tt.wantText)
			}
			if seg.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", seg.URL, tt.wantURL)
			}
		})
	}
}

func TestExtractErrors(t *testing.T) {
	unavailable := errors.New("no captions")

	t.Run("invalid url skips the fetch", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		_, err := Extract(context.Background(), fetcher, Request{URL: "https://vimeo.com/1"})
		if !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("error = %v, want ErrInvalidURL", err)
		}
		if fetcher.callCount != 0 {
			t.Errorf("fetcher called %d times, want 0", fetcher.callCount)
		}
	})

	t.Run("bad end time", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		_, err := Extract(context.Background(), fetcher, Request{URL: "https://youtu.be/vid", End: "1:2:3:4"})
		if !errors.Is(err, ErrInvalidTimeFormat) {
			t.Fatalf("error = %v, want ErrInvalidTimeFormat", err)
		}
	})

	t.Run("end before start skips the fetch", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		_, err := Extract(context.Background(), fetcher, Request{URL: "https://youtu.be/vid", Start: "100", End: "10"})
		if !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("error = %v, want ErrInvalidWindow", err)
		}
		if fetcher.callCount != 0 {
			t.Errorf("fetcher called %d times, want 0", fetcher.callCount)
		}
	})

	t.Run("overflowing inline start", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		_, err := Extract(context.Background(), fetcher, Request{URL: "https://www.youtube.com/watch?v=abc&t=3000000000000000h"})
		if !errors.Is(err, ErrInvalidTimeFormat) {
			t.Fatalf("error = %v, want ErrInvalidTimeFormat", err)
		}
	})

	t.Run("start plus duration out of range", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		_, err := Extract(context.Background(), fetcher, Request{
			URL:      "https://youtu.be/vid",
			Start:    "9223372036854775000",
			Duration: "1000",
		})
		if !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("error = %v, want ErrInvalidWindow", err)
		}
	})

	t.Run("fetch error is passed through", func(t *testing.T) {
		fetcher := &fakeFetcher{err: unavailable}
		_, err := Extract(context.Background(), fetcher, Request{URL: "https://youtu.be/vid"})
		if !errors.Is(err, unavailable) {
			t.Fatalf("error = %v, want %v", err, unavailable)
		}
	})

	t.Run("custom languages", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		_, err := Extract(context.Background(), fetcher, Request{URL: "https://youtu.be/vid", Languages: []string{"de", "en"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(fetcher.gotLangs, []string{"de", "en"}) {
			t.Errorf("languages = %v", fetcher.gotLangs)
		}
	})
}
