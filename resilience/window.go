package resilience

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var windowUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseWindow parses a window string of the form "<integer> <unit>",
// where unit is second, minute, hour or day, optionally pluralised
// ("1 minute", "15 minutes", "2 Hours").
func ParseWindow(s string) (time.Duration, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}

	unit, ok := windowUnits[strings.TrimSuffix(fields[1], "s")]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit in %q", ErrInvalidWindow, s)
	}

	return time.Duration(n) * unit, nil
}

// MustParseWindow is like ParseWindow but panics on error.
func MustParseWindow(s string) time.Duration {
	d, err := ParseWindow(s)
	if err != nil {
		panic(err)
	}
	return d
}
