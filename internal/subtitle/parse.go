package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// 00:00:01,000 (srt), 00:00:01.000 or 00:01.000 (vtt)
	cueTimingRegex = regexp.MustCompile(
		`^\s*(?:(\d+):)?(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(?:(\d+):)?(\d{2}):(\d{2})[,.](\d{3})`,
	)
	// <c>, </c>, <00:00:01.500> and friends from auto-generated vtt
	inlineTagRegex = regexp.MustCompile(`<[^>]*>`)
)

// ParseFile opens an .srt or .vtt file.
func ParseFile(path string) (*Track, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", strings.ToUpper(string(format)), err)
	}
	defer func() {
		_ = file.Close()
	}()

	return Parse(file, format)
}

// Parse reads cues separated by blank lines. Cue identifiers are optional,
// and NOTE and STYLE blocks are skipped.
func Parse(r io.Reader, format Format) (*Track, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		entries   []Entry
		current   *Entry
		textLines []string
		lineNum   int
		skipBlock bool
	)

	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			entries = append(entries, *current)
		}
		current = nil
		textLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
			if format == FormatVTT && strings.HasPrefix(strings.TrimSpace(line), "WEBVTT") {
				skipBlock = true
				continue
			}
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			skipBlock = false
			flush()
			continue
		}
		if skipBlock {
			continue
		}
		if current == nil && (strings.HasPrefix(trimmed, "NOTE") || strings.HasPrefix(trimmed, "STYLE")) {
			skipBlock = true
			continue
		}

		if m := cueTimingRegex.FindStringSubmatch(line); m != nil {
			if current != nil && len(textLines) > 0 {
				flush()
			}
			start, err := cueTimestamp(m[1], m[2], m[3], m[4])
			if err != nil {
				return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
			}
			end, err := cueTimestamp(m[5], m[6], m[7], m[8])
			if err != nil {
				return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
			}
			current = &Entry{Index: len(entries) + 1, StartTime: start, EndTime: end}
			continue
		}

		if current == nil {
			// cue identifier
			continue
		}

		text := strings.TrimSpace(inlineTagRegex.ReplaceAllString(line, ""))
		if text != "" {
			textLines = append(textLines, text)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", strings.ToUpper(string(format)), err)
	}

	return &Track{Entries: entries, Format: format}, nil
}

func cueTimestamp(hours, minutes, secs, millis string) (time.Duration, error) {
	var total time.Duration
	if hours != "" {
		h, err := strconv.Atoi(hours)
		if err != nil {
			return 0, err
		}
		total += time.Duration(h) * time.Hour
	}
	for _, part := range []struct {
		value string
		unit  time.Duration
	}{
		{minutes, time.Minute},
		{secs, time.Second},
		{millis, time.Millisecond},
	} {
		n, err := strconv.Atoi(part.value)
		if err != nil {
			return 0, err
		}
		total += time.Duration(n) * part.unit
	}
	return total, nil
}
