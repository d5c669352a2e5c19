// Package report renders campaign and sweep results for humans (tables) and
// for other tools (CSV, Prometheus textfile).
package report

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiBlue   = "\033[34m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
)

// Palette colors text with ANSI escapes when Enabled. The zero value is a
// no-op palette.
type Palette struct {
	Enabled bool
}

func (p Palette) wrap(code, s string) string {
	if !p.Enabled || s == "" {
		return s
	}
	return code + s + ansiReset
}

func (p Palette) Header(s string) string { return p.wrap(ansiBold+ansiBlue, s) }
func (p Palette) Info(s string) string   { return p.wrap(ansiBlue, s) }
func (p Palette) OK(s string) string     { return p.wrap(ansiGreen, s) }
func (p Palette) Warn(s string) string   { return p.wrap(ansiYellow, s) }
func (p Palette) Fail(s string) string   { return p.wrap(ansiRed, s) }

// NewPalette resolves a color mode ("auto", "always" or "never") for f. Auto
// enables color only on a terminal and honors NO_COLOR.
func NewPalette(mode string, f *os.File) Palette {
	switch strings.ToLower(mode) {
	case "always":
		return Palette{Enabled: true}
	case "never":
		return Palette{}
	}
	if os.Getenv("NO_COLOR") != "" || f == nil {
		return Palette{}
	}
	return Palette{Enabled: term.IsTerminal(int(f.Fd()))}
}

// FormatBandwidth scales bytes/s to KB/s, MB/s or GB/s, switching units at
// 1000 and 1,000,000 KB/s.
func FormatBandwidth(bytesPerSec float64) string {
	kb := bytesPerSec / 1024
	switch {
	case kb < 1000:
		return fmt.Sprintf("%.1f KB/s", kb)
	case kb < 1000000:
		return fmt.Sprintf("%.1f MB/s", kb/1024)
	default:
		return fmt.Sprintf("%.2f GB/s", kb/(1024*1024))
	}
}

// FormatIOPS prints whole operations below 1000 and "N.Nk" above.
func FormatIOPS(iops float64) string {
	if iops < 1000 {
		return fmt.Sprintf("%.0f", iops)
	}
	return fmt.Sprintf("%.1fk", iops/1000)
}
