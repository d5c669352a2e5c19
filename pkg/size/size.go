// Package size converts human-readable byte sizes such as "64k" or "2G" to
// byte counts and back. Units are binary: K=1024, M=1024², G=1024³, T=1024⁴.
package size

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned when a size string does not match
// <number>[K|M|G|T][B].
var ErrInvalidFormat = errors.New("invalid size format")

const (
	KiB int64 = 1 << (10 * (iota + 1))
	MiB
	GiB
	TiB
)

var sizeRe = regexp.MustCompile(`^(\d+\.?\d*)([KkMmGgTt]?)[Bb]?$`)

var multipliers = map[string]int64{
	"":  1,
	"K": KiB,
	"M": MiB,
	"G": GiB,
	"T": TiB,
}

// Parse returns the byte count for s. Fractional magnitudes are allowed and the
// result is truncated toward zero ("1.5k" is 1536).
func Parse(s string) (int64, error) {
	m := sizeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	mult := multipliers[strings.ToUpper(m[2])]

	// Whole numbers stay in integer arithmetic so large byte counts are exact.
	if !strings.Contains(m[1], ".") {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidFormat, s, err)
		}
		if n > math.MaxInt64/mult {
			return 0, fmt.Errorf("%w: %q: out of range", ErrInvalidFormat, s)
		}
		return n * mult, nil
	}

	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidFormat, s, err)
	}
	v := num * float64(mult)
	if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q: out of range", ErrInvalidFormat, s)
	}
	return int64(v), nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(s string) int64 {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Format renders n in the shortest canonical form Parse accepts, using the
// largest unit not exceeding n and at most one decimal place.
func Format(n int64) string {
	units := []struct {
		suffix string
		mult   int64
	}{{"T", TiB}, {"G", GiB}, {"M", MiB}, {"K", KiB}}

	for i, u := range units {
		if n < u.mult {
			continue
		}
		if n%u.mult == 0 {
			return fmt.Sprintf("%d%s", n/u.mult, u.suffix)
		}
		v := math.Round(float64(n)/float64(u.mult)*10) / 10
		if v >= 1024 && i > 0 {
			// 1023.96K rounds up into the next unit
			return fmt.Sprintf("1%s", units[i-1].suffix)
		}
		return strings.TrimSuffix(strconv.FormatFloat(v, 'f', 1, 64), ".0") + u.suffix
	}
	return strconv.FormatInt(n, 10)
}
