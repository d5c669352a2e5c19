package size

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"64k", 65536},
		{"64K", 65536},
		{"64KB", 65536},
		{"64kb", 65536},
		{"2G", 2147483648},
		{"1M", 1048576},
		{"1T", 1099511627776},
		{"512", 512},
		{"512B", 512},
		{"1.5k", 1536},
		{"0", 0},
		{"0.1k", 102},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "garbage", "-1k", "10X", "k", "1.2.3M", "1KiB", "1 0M",
		"8388608T", "9000000T", "99999999999999999999", "9223372036854775808", "8388608.5T"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFormat), "got %v", err)
		})
	}
}

func TestParseLargeExact(t *testing.T) {
	n, err := Parse("9007199254740993")
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), n)

	n, err = Parse("9223372036854775807")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), n)

	n, err = Parse("8388607T")
	require.NoError(t, err)
	assert.Equal(t, 8388607*TiB, n)
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("nope") })
	assert.Equal(t, 4*KiB, MustParse("4k"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "64K", Format(65536))
	assert.Equal(t, "2G", Format(2147483648))
	assert.Equal(t, "1.5G", Format(GiB+GiB/2))
	assert.Equal(t, "1000", Format(1000))
	assert.Equal(t, "0", Format(0))
}

func TestFormatRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, 1023, 1024, 4096, 65536, 1536, 3*MiB + 12345, 7 * GiB, 5*TiB + 3} {
		s := Format(n)
		got, err := Parse(s)
		require.NoError(t, err, s)

		// one decimal place of the chosen unit
		tolerance := int64(1)
		switch {
		case n >= TiB:
			tolerance = TiB / 10
		case n >= GiB:
			tolerance = GiB / 10
		case n >= MiB:
			tolerance = MiB / 10
		case n >= KiB:
			tolerance = KiB / 10
		}
		assert.InDelta(t, n, got, float64(tolerance), "%d -> %s -> %d", n, s, got)

		// canonical output is a fixed point
		assert.Equal(t, s, Format(got))
	}
}
