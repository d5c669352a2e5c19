package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"

	"github.com/runningwild/hddbench/pkg/analyze"
	"github.com/runningwild/hddbench/pkg/size"
	"github.com/runningwild/hddbench/pkg/sweep"
)

// Printer writes aligned result tables to W.
type Printer struct {
	W       io.Writer
	Palette Palette
}

func NewPrinter(w io.Writer, p Palette) *Printer {
	return &Printer{W: w, Palette: p}
}

type rowKind int

const (
	rowHeader rowKind = iota
	rowData
	rowWarn
	rowTotal
)

// table lays rows out with tabwriter and colors whole lines afterwards, so
// escape codes never skew column widths.
type table struct {
	rows  [][]string
	kinds []rowKind
}

func (t *table) add(kind rowKind, cells ...string) {
	t.rows = append(t.rows, cells)
	t.kinds = append(t.kinds, kind)
}

func (p *Printer) render(t *table) error {
	var buf bytes.Buffer
	var tw tabwriter.Writer
	tw.Init(&buf, 4, 4, 2, ' ', 0)
	for _, row := range t.rows {
		fmt.Fprintln(&tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sc := bufio.NewScanner(&buf)
	for i := 0; sc.Scan(); i++ {
		line := strings.TrimRight(sc.Text(), " ")
		switch t.kinds[i] {
		case rowHeader:
			line = p.Palette.Header(line)
		case rowWarn:
			line = p.Palette.Warn(line)
		case rowTotal:
			line = p.Palette.Info(line)
		}
		if _, err := fmt.Fprintln(p.W, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func mbps(v float64) string { return fmt.Sprintf("%.2f MB/s", v) }

func seconds(d time.Duration) string { return fmt.Sprintf("%.2fs", d.Seconds()) }

// RunTable prints one row per run followed by a totals row built from sum.
func (p *Printer) RunTable(runs []analyze.RunStats, sum analyze.CampaignStats) error {
	t := &table{}
	t.add(rowHeader, "RUN", "FILE SIZE", "SYNC", "DURATION", "AGGREGATE", "PER-FILE", "SUCCESS", "DATA", "ERRORS")

	var files int
	for _, r := range runs {
		files += r.Files
		kind := rowData
		if r.ErrorCount() > 0 {
			kind = rowWarn
		}
		t.add(kind,
			fmt.Sprint(r.RunIndex),
			size.Format(r.FileSize),
			r.Policy.String(),
			seconds(r.Duration),
			mbps(r.OverallMBps),
			mbps(r.AvgPerFileMBps),
			fmt.Sprintf("%d/%d", r.SuccessfulFiles, r.Files),
			units.BytesSize(float64(r.BytesWritten)),
			fmt.Sprint(r.ErrorCount()),
		)
	}

	var fileSize, policy string
	if len(runs) > 0 {
		fileSize = size.Format(runs[0].FileSize)
		policy = runs[0].Policy.String()
	}
	t.add(rowTotal,
		"TOTAL",
		fileSize,
		policy,
		seconds(sum.AvgDuration),
		mbps(sum.AvgOverallMBps),
		mbps(sum.AvgPerFileMBps),
		fmt.Sprintf("%d/%d", sum.TotalFiles, files),
		units.BytesSize(float64(sum.TotalBytes)),
		fmt.Sprint(sum.TotalErrors),
	)
	if err := p.render(t); err != nil {
		return err
	}

	if sum.AvgReadMBps > 0 {
		fmt.Fprintf(p.W, "Read-back: %s average per file\n", mbps(sum.AvgReadMBps))
	}
	if l := sum.WriteLatency; l.Count() > 0 {
		fmt.Fprintf(p.W, "Write latency: p50 %v  p99 %v  max %v\n",
			l.Percentile(50).Round(time.Microsecond),
			l.Percentile(99).Round(time.Microsecond),
			l.Max().Round(time.Microsecond))
	}
	return nil
}

// Errors lists every probe failure grouped by run. Nothing is printed when
// all probes succeeded.
func (p *Printer) Errors(runs []analyze.RunStats) error {
	var total int
	for _, r := range runs {
		total += r.ErrorCount()
	}
	if total == 0 {
		return nil
	}

	fmt.Fprintln(p.W, p.Palette.Fail(fmt.Sprintf("%d probe error(s):", total)))
	for _, r := range runs {
		for _, err := range r.Errors {
			if _, werr := fmt.Fprintf(p.W, "  run %d: %v\n", r.RunIndex, err); werr != nil {
				return werr
			}
		}
	}
	return nil
}

// SweepTable prints the mixed workload results, one row per block size.
func (p *Printer) SweepTable(results []sweep.BlockSizeResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(p.W, p.Palette.Warn("No mixed workload results."))
		return err
	}
	t := &table{}
	t.add(rowHeader, "BLOCK", "READ BW", "READ IOPS", "WRITE BW", "WRITE IOPS", "TOTAL BW", "TOTAL IOPS")
	for _, r := range results {
		t.add(rowData,
			size.Format(r.BlockSize),
			FormatBandwidth(r.ReadBandwidth),
			FormatIOPS(r.ReadIOPS),
			FormatBandwidth(r.WriteBandwidth),
			FormatIOPS(r.WriteIOPS),
			FormatBandwidth(r.TotalBandwidth),
			FormatIOPS(r.TotalIOPS),
		)
	}
	if err := p.render(t); err != nil {
		return err
	}
	if knee, ok := sweep.Knee(results); ok {
		_, err := fmt.Fprintf(p.W, "Bandwidth knee: %s (%s)\n",
			size.Format(knee.BlockSize), FormatBandwidth(knee.TotalBandwidth))
		return err
	}
	return nil
}
