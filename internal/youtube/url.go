package youtube

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidURL = errors.New("invalid YouTube URL")

	embedIDRegex = regexp.MustCompile(`embed/([a-zA-Z0-9_-]+)`)
)

// extracts the video id and the optional inline start offset (seconds)
func ParseURL(raw string) (string, *int, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}

	var (
		videoID string
		start   *int
	)

	switch parsed.Hostname() {
	case "youtube.com", "www.youtube.com":
		if parsed.Path == "/watch" {
			query := parsed.Query()
			videoID = query.Get("v")
			start, err = inlineStart(query.Get("t"))
			if err != nil {
				return "", nil, err
			}
			break
		}
		videoID, start, err = parseEmbed(raw, parsed)
		if err != nil {
			return "", nil, err
		}
	case "youtu.be", "www.youtu.be":
		videoID = strings.TrimLeft(parsed.Path, "/")
		start, err = inlineStart(parsed.Query().Get("t"))
		if err != nil {
			return "", nil, err
		}
	default:
		videoID, start, err = parseEmbed(raw, parsed)
		if err != nil {
			return "", nil, err
		}
	}

	if videoID == "" {
		return "", nil, fmt.Errorf("%w: could not extract video ID from %s", ErrInvalidURL, raw)
	}

	return videoID, start, nil
}

// embed URLs carry a plain integer "start" parameter instead of "t"
func parseEmbed(raw string, parsed *url.URL) (string, *int, error) {
	if !strings.Contains(raw, "youtube.com/embed/") {
		return "", nil, nil
	}

	match := embedIDRegex.FindStringSubmatch(raw)
	if match == nil {
		return "", nil, nil
	}

	param := parsed.Query().Get("start")
	if param == "" {
		return match[1], nil, nil
	}

	seconds, err := strconv.Atoi(param)
	if err != nil || seconds < 0 {
		return "", nil, fmt.Errorf("%w: invalid embed start %q", ErrInvalidTimeFormat, param)
	}

	return match[1], &seconds, nil
}

func inlineStart(param string) (*int, error) {
	if param == "" {
		return nil, nil
	}
	seconds, err := ParseTime(param)
	if err != nil {
		return nil, err
	}
	return &seconds, nil
}

// CleanURL drops any existing t parameter and pins the URL to start.
func CleanURL(raw string, start int) string {
	clean, _, _ := strings.Cut(raw, "&t=")
	clean, _, _ = strings.Cut(clean, "?t=")

	sep := "?"
	if strings.Contains(clean, "?") {
		sep = "&"
	}

	return fmt.Sprintf("%s%st=%d", clean, sep, start)
}

// IsYouTubeURL is a loose host check used for request validation.
func IsYouTubeURL(raw string) bool {
	return strings.Contains(raw, "youtube.com") || strings.Contains(raw, "youtu.be")
}
