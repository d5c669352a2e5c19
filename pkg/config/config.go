// Package config loads and validates the hddbench YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/runningwild/hddbench/pkg/engine"
	"github.com/runningwild/hddbench/pkg/size"
)

// Config is the top-level configuration.
type Config struct {
	HDDTest HDDTest `yaml:"hddtest"`
	Mixed   Mixed   `yaml:"mixed"`
	Report  Report  `yaml:"report"`
	Log     Log     `yaml:"log"`

	// Parsed by Validate.
	fileSize   int64
	policy     engine.SyncPolicy
	blockSizes []int64
	probeSize  int64
	minFree    int64
}

// HDDTest configures the write/read campaign.
type HDDTest struct {
	Files    int    `yaml:"files"`
	Size     string `yaml:"size"` // e.g. "1M", "512k", "2G"
	Runs     int    `yaml:"runs"`
	Keep     bool   `yaml:"keep"`
	SyncMode string `yaml:"syncmode"` // "none", "direct", "dsync" or "sync"
	TestPath string `yaml:"test_path"`
	Debug    bool   `yaml:"debug"`
	Engine   string `yaml:"engine"` // "sync", "dd", "uring" or "aio"
}

// Mixed configures the fio block-size sweep.
type Mixed struct {
	Enabled    bool          `yaml:"enabled"`
	BlockSizes []string      `yaml:"block_sizes"`
	ReadPct    int           `yaml:"read_pct"` // 0-100
	QueueDepth int           `yaml:"queue_depth"`
	Jobs       int           `yaml:"jobs"`
	Runtime    time.Duration `yaml:"runtime"`
	Grace      time.Duration `yaml:"grace"`
	ProbeSize  string        `yaml:"probe_size"` // "" picks a default for the architecture
	MinFree    string        `yaml:"min_free"`   // "" picks a default for the architecture
	Direct     bool          `yaml:"direct"`
	IOEngine   string        `yaml:"ioengine"`
	FIOBinary  string        `yaml:"fio_binary"`
}

type Report struct {
	Color       string `yaml:"color"` // "auto", "always" or "never"
	CSV         string `yaml:"csv"`
	MetricsFile string `yaml:"metrics_file"`
}

type Log struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn" or "error"
	Format string `yaml:"format"` // "text" or "json"
}

// Error is a configuration problem. It is always fatal and reported before
// any I/O starts.
type Error struct {
	Field string
	Value string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(field string, value any, format string, args ...any) *Error {
	return &Error{Field: field, Value: fmt.Sprint(value), Err: fmt.Errorf(format, args...)}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HDDTest: HDDTest{
			Files:    4,
			Size:     "1M",
			Runs:     2,
			SyncMode: "none",
			TestPath: ".",
			Engine:   "sync",
		},
		Mixed: Mixed{
			Enabled:    true,
			BlockSizes: []string{"4k", "64k", "512k", "1m"},
			ReadPct:    50,
			QueueDepth: 64,
			Jobs:       4,
			Runtime:    30 * time.Second,
			Grace:      15 * time.Second,
			Direct:     true,
			IOEngine:   "libaio",
			FIOBinary:  "fio",
		},
		Report: Report{Color: "auto"},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file on top of Default. Keys missing from the file keep
// their default values. The result is not validated; callers apply any
// overrides and then call Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	// Unknown keys, such as a misspelled section, must not silently fall
	// back to defaults.
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Field: "config file", Value: path, Err: err}
	}
	if len(cfg.Mixed.BlockSizes) == 0 {
		cfg.Mixed.BlockSizes = Default().Mixed.BlockSizes
	}
	return cfg, nil
}

// Save writes c as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every field and caches parsed values. An unknown sync mode
// is not an error: it falls back to "none" with a warning on logger. All
// other problems return a *Error.
func (c *Config) Validate(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	t := &c.HDDTest

	if t.Files <= 0 {
		return invalid("hddtest.files", t.Files, "must be positive")
	}
	if t.Runs <= 0 {
		return invalid("hddtest.runs", t.Runs, "must be positive")
	}
	n, err := size.Parse(t.Size)
	if err != nil {
		return &Error{Field: "hddtest.size", Value: t.Size, Err: err}
	}
	if n <= 0 {
		return invalid("hddtest.size", t.Size, "must be at least one byte")
	}
	c.fileSize = n

	p, ok := engine.ParseSyncPolicy(t.SyncMode)
	if !ok {
		logger.Warn("unknown sync mode, falling back to none", "syncmode", t.SyncMode)
		t.SyncMode = engine.None.String()
	}
	c.policy = p

	switch strings.ToLower(t.Engine) {
	case "", "sync", "dd", "uring", "aio":
	default:
		return invalid("hddtest.engine", t.Engine, "want sync, dd, uring or aio")
	}

	if err := checkWritableDir(t.TestPath); err != nil {
		return &Error{Field: "hddtest.test_path", Value: t.TestPath, Err: err}
	}

	if err := c.validateMixed(); err != nil {
		return err
	}

	switch strings.ToLower(c.Report.Color) {
	case "", "auto", "always", "never":
	default:
		return invalid("report.color", c.Report.Color, "want auto, always or never")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return &Error{Field: "log.level", Value: c.Log.Level, Err: err}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return invalid("log.format", c.Log.Format, "want text or json")
	}
	return nil
}

func (c *Config) validateMixed() error {
	m := &c.Mixed
	if !m.Enabled {
		return nil
	}

	c.blockSizes = c.blockSizes[:0]
	for _, s := range m.BlockSizes {
		bs, err := size.Parse(s)
		if err != nil {
			return &Error{Field: "mixed.block_sizes", Value: s, Err: err}
		}
		if bs <= 0 {
			return invalid("mixed.block_sizes", s, "must be at least one byte")
		}
		c.blockSizes = append(c.blockSizes, bs)
	}
	if m.ReadPct < 0 || m.ReadPct > 100 {
		return invalid("mixed.read_pct", m.ReadPct, "must be between 0 and 100")
	}
	if m.QueueDepth <= 0 {
		return invalid("mixed.queue_depth", m.QueueDepth, "must be positive")
	}
	if m.Jobs <= 0 {
		return invalid("mixed.jobs", m.Jobs, "must be positive")
	}
	if m.Runtime < time.Second {
		return invalid("mixed.runtime", m.Runtime, "must be at least 1s")
	}
	if m.Grace < 0 {
		return invalid("mixed.grace", m.Grace, "must not be negative")
	}

	var err error
	if c.probeSize, err = optionalSize(m.ProbeSize); err != nil {
		return &Error{Field: "mixed.probe_size", Value: m.ProbeSize, Err: err}
	}
	if c.minFree, err = optionalSize(m.MinFree); err != nil {
		return &Error{Field: "mixed.min_free", Value: m.MinFree, Err: err}
	}
	return nil
}

func optionalSize(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	n, err := size.Parse(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}

// checkWritableDir verifies that dir exists, is a directory and accepts new
// files.
func checkWritableDir(dir string) error {
	if dir == "" {
		return errors.New("path is empty")
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.New("not a directory")
	}
	f, err := os.CreateTemp(dir, ".hddbench-probe-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return l, nil
}

// FileSize is the parsed hddtest.size. Valid after Validate.
func (c *Config) FileSize() int64 { return c.fileSize }

// Policy is the parsed hddtest.syncmode. Valid after Validate.
func (c *Config) Policy() engine.SyncPolicy { return c.policy }

// BlockSizes, ProbeSize and MinFree are the parsed mixed sizes. Zero means
// use the architecture default. Valid after Validate.
func (c *Config) BlockSizes() []int64 { return append([]int64(nil), c.blockSizes...) }
func (c *Config) ProbeSize() int64    { return c.probeSize }
func (c *Config) MinFree() int64      { return c.minFree }
