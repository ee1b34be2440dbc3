package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/smriti/internal/ffmpeg"
)

// one piece of a split clip, with its offset into the source
type ChunkInfo struct {
	Path      string
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
}

// encoding settings for transcription input
type ClipOptions struct {
	Format     string // mp3 or aac
	SampleRate int    // Hz
	Channels   int    // 1=mono
	Bitrate    string // e.g. "64k"
}

func DefaultClipOptions() ClipOptions {
	return ClipOptions{
		Format:     "mp3",
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    "64k",
	}
}

// JSON output from ffprobe
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// duration of an audio/video file
func GetDuration(ctx context.Context, filePath string) (time.Duration, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return 0, fmt.Errorf("file not found: %s", filePath)
	}

	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeDuration(out.Bytes())
}

func parseProbeDuration(raw []byte) (time.Duration, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var seconds float64
	if _, err := fmt.Sscanf(probe.Format.Duration, "%f", &seconds); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// clipStream builds the ffmpeg invocation that cuts [start, start+length) out
// of inputPath as audio only. A zero length keeps everything after start.
func clipStream(
	inputPath, outputPath string,
	start, length time.Duration,
	opts ClipOptions,
) *ffmpeg.Stream {
	inKwargs := ffmpeg.KwArgs{}
	if start > 0 {
		inKwargs["ss"] = start.Seconds()
	}

	outKwargs := ffmpeg.KwArgs{
		"vn": "",
		"ar": opts.SampleRate,
		"ac": opts.Channels,
	}
	if length > 0 {
		outKwargs["t"] = length.Seconds()
	}

	switch opts.Format {
	case "aac":
		outKwargs["acodec"] = "aac"
	default:
		outKwargs["acodec"] = "libmp3lame"
	}
	if opts.Bitrate != "" {
		outKwargs["b:a"] = opts.Bitrate
	}

	return ffmpeg.Input(inputPath, inKwargs).
		Output(outputPath, outKwargs).
		OverWriteOutput()
}

// ExtractClip re-encodes the [start, end) window of a media file to a small
// mono audio file. end <= start means "until the end of the input".
func ExtractClip(
	ctx context.Context,
	inputPath, outputPath string,
	start, end time.Duration,
	opts ClipOptions,
) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	var length time.Duration
	if end > start {
		length = end - start
	}

	compiled := clipStream(inputPath, outputPath, start, length, opts).
		SetFfmpegPath(ffmpegPath).
		Compile()

	cmd := exec.CommandContext(ctx, compiled.Path, compiled.Args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clip extraction failed: %w: %s", err, lastLine(stderr.String()))
	}

	return nil
}

// Chunk splits an audio file into pieces of chunkDuration, extracting up to
// concurrency pieces at once (default 4).
func Chunk(
	ctx context.Context,
	audioPath string,
	chunkDuration time.Duration,
	outputDir string,
	concurrency int,
) ([]ChunkInfo, error) {
	if chunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", chunkDuration)
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	total, err := GetDuration(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio duration: %w", err)
	}

	plan := planChunks(audioPath, outputDir, total, chunkDuration)

	var (
		mu       sync.Mutex
		chunks   = make([]ChunkInfo, 0, len(plan))
		firstErr error
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, concurrency)

	for _, c := range plan {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(c ChunkInfo) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed || ctx.Err() != nil {
				return
			}

			err := ExtractClip(ctx, audioPath, c.Path, c.StartTime, c.EndTime, DefaultClipOptions())

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to create chunk %d: %w", c.Index, err)
				}
				return
			}
			chunks = append(chunks, c)
		}(c)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})

	return chunks, nil
}

func planChunks(
	audioPath, outputDir string,
	total, chunkDuration time.Duration,
) []ChunkInfo {
	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))

	var plan []ChunkInfo
	for i := 0; ; i++ {
		start := time.Duration(i) * chunkDuration
		if start >= total {
			break
		}
		end := min(start+chunkDuration, total)
		plan = append(plan, ChunkInfo{
			Path:      filepath.Join(outputDir, fmt.Sprintf("%s_chunk_%03d.mp3", baseName, i)),
			Index:     i,
			StartTime: start,
			EndTime:   end,
		})
	}
	return plan
}

var videoExts = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".mpeg": true, ".mpg": true, ".3gp": true,
}

var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".aac": true, ".flac": true, ".ogg": true,
	".m4a": true, ".wma": true, ".aiff": true, ".opus": true,
}

func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

func IsAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

func IsMediaFile(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
