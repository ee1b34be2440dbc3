package transcribe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mgpai22/smriti/internal/audio"
	"github.com/mgpai22/smriti/internal/youtube"
)

// transcription result, entry times relative to the transcribed file
type Result struct {
	Entries  []youtube.CaptionEntry
	Language string
	Duration time.Duration
}

// interface for audio transcription
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
	Close() error
}

// transcription service provider
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// transcription options
type Options struct {
	Language string // source language hint
	Model    string
	Prompt   string
}

// creates transcriber based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Transcriber, error) {
	switch provider {
	case ProviderOpenAI, "whisper":
		return NewOpenAITranscriber(ctx, apiKey, opts)
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type chunkResult struct {
	Index   int
	Entries []youtube.CaptionEntry
	Error   error
}

// TranscribeChunks runs t over chunks with up to concurrency workers and
// merges the entries in chunk order, shifted by each chunk's offset. The
// first failure cancels the remaining work.
func TranscribeChunks(
	ctx context.Context,
	t Transcriber,
	chunks []audio.ChunkInfo,
	concurrency int,
) (*Result, error) {
	if len(chunks) == 0 {
		return &Result{}, nil
	}
	if concurrency <= 0 {
		concurrency = 3
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workChan := make(chan audio.ChunkInfo)
	resultChan := make(chan chunkResult, len(chunks))

	var wg sync.WaitGroup
	for i := 0; i < concurrency && i < len(chunks); i++ {
		wg.Go(func() {
			for chunk := range workChan {
				if ctx.Err() != nil {
					return
				}
				entries, err := transcribeChunk(ctx, t, chunk)
				if err != nil {
					cancel()
				}
				resultChan <- chunkResult{Index: chunk.Index, Entries: entries, Error: err}
			}
		})
	}

	go func() {
		defer close(workChan)
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case workChan <- chunk:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]chunkResult, 0, len(chunks))
	var firstErr error
	for r := range resultChan {
		if r.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk %d failed: %w", r.Index, r.Error)
			}
			continue
		}
		results = append(results, r)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if len(results) != len(chunks) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("transcribed %d of %d chunks", len(results), len(chunks))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	var all []youtube.CaptionEntry
	for _, r := range results {
		all = append(all, r.Entries...)
	}

	return &Result{
		Entries:  all,
		Duration: chunks[len(chunks)-1].EndTime,
	}, nil
}

func transcribeChunk(
	ctx context.Context,
	t Transcriber,
	chunk audio.ChunkInfo,
) ([]youtube.CaptionEntry, error) {
	result, err := t.Transcribe(ctx, chunk.Path)
	if err != nil {
		return nil, err
	}
	return Shift(result.Entries, chunk.StartTime), nil
}

// Shift moves every entry later by offset.
func Shift(entries []youtube.CaptionEntry, offset time.Duration) []youtube.CaptionEntry {
	shifted := make([]youtube.CaptionEntry, len(entries))
	for i, e := range entries {
		e.Start += offset.Seconds()
		shifted[i] = e
	}
	return shifted
}

// fromSpan converts a start/end pair in seconds into a caption entry.
func fromSpan(start, end float64, text string) youtube.CaptionEntry {
	duration := end - start
	if duration < 0 {
		duration = 0
	}
	return youtube.CaptionEntry{Start: start, Duration: duration, Text: text}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
