// Package formatting provides human-readable formatting and parsing utilities
// for common value types such as byte sizes.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var units = []string{
	"B", "KB", "MB",
	"GB", "TB", "PB",
	"EB", "ZB", "YB",
}

var bytesPattern = regexp.MustCompile(`^(\d+\.?\d*)\s*([A-Za-z]*)$`)

// FormatBytes converts a byte count to a human-readable string using base-1024 units.
// Negative precision values are clamped to zero.
func FormatBytes(n int64, precision int) string {
	if n == 0 {
		return "0 B"
	}

	if precision < 0 {
		precision = 0
	}

	f := float64(n)
	k := 1024.0
	i := int(math.Floor(math.Log(f) / math.Log(k)))

	if i >= len(units) {
		i = len(units) - 1
	}

	size := f / math.Pow(k, float64(i))
	formatted := strconv.FormatFloat(size, 'f', precision, 64)

	return formatted + " " + units[i]
}

// ParseBytes parses a human-readable byte size string (e.g., "50MB") into a byte count.
// Units are base-1024 and case-insensitive. "K", "KB", and "KiB" are equivalent,
// and likewise for every larger unit through YB. A bare number with no unit
// is treated as bytes. Sizes that overflow int64 are rejected.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	matches := bytesPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	exp, ok := unitExponent(matches[2])
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", matches[2])
	}

	size := value * math.Pow(1024, float64(exp))
	if size >= math.MaxInt64 {
		return 0, fmt.Errorf("byte size %q overflows int64", s)
	}
	return int64(size), nil
}

// unitExponent returns the power of 1024 named by unit.
func unitExponent(unit string) (int, bool) {
	u := strings.ToUpper(unit)
	if u == "" || u == "B" {
		return 0, true
	}

	u = strings.TrimSuffix(u, "B")
	u = strings.TrimSuffix(u, "I")
	idx := slices.IndexFunc(units[1:], func(name string) bool {
		return name[:1] == u
	})
	if idx == -1 || len(u) != 1 {
		return 0, false
	}
	return idx + 1, true
}
