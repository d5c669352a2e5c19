package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/runningwild/hddbench/pkg/analyze"
	"github.com/runningwild/hddbench/pkg/size"
	"github.com/runningwild/hddbench/pkg/sweep"
)

const namespace = "hddbench"

// WriteMetrics exports the results as a Prometheus textfile (for the node
// exporter's textfile collector). The file is replaced atomically.
func WriteMetrics(path string, runs []analyze.RunStats, sum analyze.CampaignStats, blocks []sweep.BlockSizeResult) error {
	reg, err := newRegistry(runs, sum, blocks)
	if err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, reg)
}

func newRegistry(runs []analyze.RunStats, sum analyze.CampaignStats, blocks []sweep.BlockSizeResult) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	runMBps := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "throughput_mibps",
			Help:      "Per-run write throughput in MiB/s",
		},
		[]string{"run", "kind"},
	)
	runErrors := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "errors",
			Help:      "Probe errors in the run",
		},
		[]string{"run"},
	)
	campaign := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "summary",
			Help:      "Campaign aggregates",
		},
		[]string{"stat"},
	)
	latency := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "campaign",
			Name:      "write_latency_seconds",
			Help:      "Per-probe write latency quantiles across the campaign",
		},
		[]string{"quantile"},
	)
	blockBW := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mixed",
			Name:      "bandwidth_bytes_per_second",
			Help:      "Mixed workload bandwidth per block size",
		},
		[]string{"block_size", "direction"},
	)
	blockIOPS := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mixed",
			Name:      "iops",
			Help:      "Mixed workload IOPS per block size",
		},
		[]string{"block_size", "direction"},
	)

	for _, c := range []prometheus.Collector{runMBps, runErrors, campaign, latency, blockBW, blockIOPS} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	for _, r := range runs {
		run := fmt.Sprint(r.RunIndex)
		runMBps.WithLabelValues(run, "overall").Set(r.OverallMBps)
		runMBps.WithLabelValues(run, "per_file").Set(r.AvgPerFileMBps)
		runMBps.WithLabelValues(run, "read").Set(r.AvgReadMBps)
		runErrors.WithLabelValues(run).Set(float64(r.ErrorCount()))
	}

	campaign.WithLabelValues("runs").Set(float64(sum.Runs))
	campaign.WithLabelValues("avg_duration_seconds").Set(sum.AvgDuration.Seconds())
	campaign.WithLabelValues("avg_overall_mibps").Set(sum.AvgOverallMBps)
	campaign.WithLabelValues("avg_per_file_mibps").Set(sum.AvgPerFileMBps)
	campaign.WithLabelValues("avg_read_mibps").Set(sum.AvgReadMBps)
	campaign.WithLabelValues("total_files").Set(float64(sum.TotalFiles))
	campaign.WithLabelValues("total_bytes").Set(float64(sum.TotalBytes))
	campaign.WithLabelValues("total_errors").Set(float64(sum.TotalErrors))

	if sum.WriteLatency.Count() > 0 {
		for _, q := range []struct {
			label string
			p     float64
		}{{"0.5", 50}, {"0.99", 99}, {"1", 100}} {
			latency.WithLabelValues(q.label).Set(sum.WriteLatency.Percentile(q.p).Seconds())
		}
	}

	for _, b := range blocks {
		bs := size.Format(b.BlockSize)
		blockBW.WithLabelValues(bs, "read").Set(b.ReadBandwidth)
		blockBW.WithLabelValues(bs, "write").Set(b.WriteBandwidth)
		blockBW.WithLabelValues(bs, "total").Set(b.TotalBandwidth)
		blockIOPS.WithLabelValues(bs, "read").Set(b.ReadIOPS)
		blockIOPS.WithLabelValues(bs, "write").Set(b.WriteIOPS)
		blockIOPS.WithLabelValues(bs, "total").Set(b.TotalIOPS)
	}
	return reg, nil
}
