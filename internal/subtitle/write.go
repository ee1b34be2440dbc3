package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Write renders the track in the given format. Cues are renumbered from 1.
func Write(w io.Writer, track *Track, format Format) error {
	var stamp func(time.Duration) string
	switch format {
	case FormatSRT:
		stamp = formatSRTTime
	case FormatVTT:
		stamp = formatVTTTime
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	bw := bufio.NewWriter(w)
	if format == FormatVTT {
		fmt.Fprint(bw, "WEBVTT\n\n")
	}

	for i, entry := range track.Entries {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1,
			stamp(entry.StartTime),
			stamp(entry.EndTime),
			entry.Text,
		)
	}

	return bw.Flush()
}

// WriteFile picks the format from the extension and creates parent directories.
func WriteFile(path string, track *Track) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create subtitle file: %w", err)
	}

	if err := Write(file, track, format); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func formatSRTTime(d time.Duration) string {
	h, m, s, ms := clock(d)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func formatVTTTime(d time.Duration) string {
	h, m, s, ms := clock(d)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func clock(d time.Duration) (int, int, int, int) {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Millisecond)
	return int(d.Hours()),
		int(d.Minutes()) % 60,
		int(d.Seconds()) % 60,
		int(d.Milliseconds()) % 1000
}
