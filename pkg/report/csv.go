package report

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/runningwild/hddbench/pkg/analyze"
)

var csvHeader = []string{
	"run", "files", "file_size_bytes", "sync", "duration_seconds",
	"overall_mbps", "per_file_mbps", "read_mbps",
	"successful_files", "bytes_written", "errors",
	"write_p50_seconds", "write_p99_seconds",
}

// WriteCSV writes one row per run to path.
func WriteCSV(path string, runs []analyze.RunStats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range runs {
		if err := w.Write([]string{
			fmt.Sprint(r.RunIndex),
			fmt.Sprint(r.Files),
			fmt.Sprint(r.FileSize),
			r.Policy.String(),
			fmt.Sprintf("%.4f", r.Duration.Seconds()),
			fmt.Sprintf("%.2f", r.OverallMBps),
			fmt.Sprintf("%.2f", r.AvgPerFileMBps),
			fmt.Sprintf("%.2f", r.AvgReadMBps),
			fmt.Sprint(r.SuccessfulFiles),
			fmt.Sprint(r.BytesWritten),
			fmt.Sprint(r.ErrorCount()),
			fmt.Sprintf("%.6f", r.WriteLatency.Percentile(50).Seconds()),
			fmt.Sprintf("%.6f", r.WriteLatency.Percentile(99).Seconds()),
		}); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
