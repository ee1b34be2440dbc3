package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

const (
	EnvFFmpegPath  = "SMRITI_FFMPEG_PATH"
	EnvFFprobePath = "SMRITI_FFPROBE_PATH"
)

var ErrNotFound = errors.New("ffmpeg binaries not found")

type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

var (
	ensureOnce sync.Once
	ensureErr  error
	ensurePath BinaryPaths
)

// Ensure resolves ffmpeg and ffprobe once per process: the SMRITI_FFMPEG_PATH
// and SMRITI_FFPROBE_PATH overrides first, then $PATH.
func Ensure() (BinaryPaths, error) {
	ensureOnce.Do(func() {
		ensurePath, ensureErr = Resolve(os.Getenv, exec.LookPath)
	})
	return ensurePath, ensureErr
}

func FFmpegPath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFmpeg, nil
}

func FFprobePath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFprobe, nil
}

// Resolve is Ensure without the process-wide cache.
func Resolve(
	getenv func(string) string,
	lookPath func(string) (string, error),
) (BinaryPaths, error) {
	paths := BinaryPaths{
		FFmpeg:  getenv(EnvFFmpegPath),
		FFprobe: getenv(EnvFFprobePath),
	}

	if paths.FFmpeg == "" {
		if found, err := lookPath("ffmpeg"); err == nil {
			paths.FFmpeg = found
		}
	}
	if paths.FFprobe == "" {
		if found, err := lookPath("ffprobe"); err == nil {
			paths.FFprobe = found
		}
	}

	var missing []string
	if paths.FFmpeg == "" {
		missing = append(missing, "ffmpeg")
	}
	if paths.FFprobe == "" {
		missing = append(missing, "ffprobe")
	}
	if len(missing) > 0 {
		return BinaryPaths{}, fmt.Errorf(
			"%w: %v (install ffmpeg or set %s and %s)",
			ErrNotFound, missing, EnvFFmpegPath, EnvFFprobePath,
		)
	}

	return paths, nil
}
