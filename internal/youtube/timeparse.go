package youtube

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidTimeFormat = errors.New("invalid time format")

var (
	hoursRegex   = regexp.MustCompile(`(\d+)h`)
	minutesRegex = regexp.MustCompile(`(\d+)m`)
	secondsRegex = regexp.MustCompile(`(\d+)s`)
	digitsRegex  = regexp.MustCompile(`^\d+$`)
)

// ParseTime converts "89", "1:30", "1:24:07", "2m30s" or "1h30m45s" into
// seconds. Components are not range checked, so "99:99" is 6039.
func ParseTime(value string) (int, error) {
	if value == "" {
		return 0, nil
	}

	if digitsRegex.MatchString(value) {
		return atoi(value, value)
	}

	if strings.Contains(value, ":") {
		return parseClock(value)
	}

	total := 0
	found := false
	for _, unit := range []struct {
		re     *regexp.Regexp
		factor int
	}{
		{hoursRegex, 3600},
		{minutesRegex, 60},
		{secondsRegex, 1},
	} {
		match := unit.re.FindStringSubmatch(value)
		if match == nil {
			continue
		}
		n, err := atoi(match[1], value)
		if err != nil {
			return 0, err
		}
		if total, err = addScaled(total, n, unit.factor, value); err != nil {
			return 0, err
		}
		found = true
	}

	if found {
		return total, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, value)
}

// H:MM:SS or MM:SS
func parseClock(value string) (int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q has %d colon-separated parts", ErrInvalidTimeFormat, value, len(parts))
	}

	total := 0
	for _, part := range parts {
		if !digitsRegex.MatchString(part) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, value)
		}
		n, err := atoi(part, value)
		if err != nil {
			return 0, err
		}
		if total, err = addScaled(n, total, 60, value); err != nil {
			return 0, err
		}
	}

	return total, nil
}

// addScaled returns base + n*factor, failing instead of wrapping past MaxInt.
func addScaled(base, n, factor int, original string) (int, error) {
	if n > (math.MaxInt-base)/factor {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidTimeFormat, original)
	}
	return base + n*factor, nil
}

func atoi(s, original string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidTimeFormat, original, err)
	}
	return n, nil
}

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS once hours are involved.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
