package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minTrackable = 1
	maxTrackable = int64(time.Hour / time.Microsecond)
	sigFigs      = 3
)

// Latency is a mergeable distribution of durations, tracked at microsecond
// resolution between 1us and 1h. Larger values are clamped. A nil *Latency
// reads as empty.
type Latency struct {
	h *hdrhistogram.Histogram
}

func NewLatency() *Latency {
	return &Latency{h: hdrhistogram.New(minTrackable, maxTrackable, sigFigs)}
}

// Record adds one observation.
func (l *Latency) Record(d time.Duration) {
	us := d.Microseconds()
	if us < minTrackable {
		us = minTrackable
	}
	if us > maxTrackable {
		us = maxTrackable
	}
	_ = l.h.RecordValue(us)
}

// Merge folds other into l.
func (l *Latency) Merge(other *Latency) {
	if other == nil || other.h == nil {
		return
	}
	l.h.Merge(other.h)
}

func (l *Latency) Count() int64 {
	if l == nil || l.h == nil {
		return 0
	}
	return l.h.TotalCount()
}

// Percentile returns the value at p, where p is in [0, 100].
func (l *Latency) Percentile(p float64) time.Duration {
	if l.Count() == 0 {
		return 0
	}
	return time.Duration(l.h.ValueAtQuantile(p)) * time.Microsecond
}

func (l *Latency) Mean() time.Duration {
	if l.Count() == 0 {
		return 0
	}
	return time.Duration(l.h.Mean() * float64(time.Microsecond))
}

func (l *Latency) Max() time.Duration {
	if l.Count() == 0 {
		return 0
	}
	return time.Duration(l.h.Max()) * time.Microsecond
}
