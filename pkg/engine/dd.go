package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DD runs each probe through the dd utility, one block of the full file size.
type DD struct {
	// Binary defaults to "dd".
	Binary string
	// Debug passes dd's output through instead of capturing it.
	Debug  bool
	Stdout io.Writer
	Stderr io.Writer
}

func (d *DD) Write(ctx context.Context, path string, size int64, policy SyncPolicy) (time.Duration, error) {
	args := []string{"if=/dev/zero", "of=" + path, fmt.Sprintf("bs=%d", size), "count=1"}
	if flag := policy.ddFlag(); flag != "" {
		args = append(args, "oflag="+flag)
	}
	return d.run(ctx, OpWrite, path, args)
}

func (d *DD) Read(ctx context.Context, path string, size int64) (time.Duration, error) {
	args := []string{"if=" + path, "of=/dev/null", fmt.Sprintf("bs=%d", size), "count=1"}
	return d.run(ctx, OpRead, path, args)
}

func (d *DD) run(ctx context.Context, op, path string, args []string) (time.Duration, error) {
	bin := d.Binary
	if bin == "" {
		bin = "dd"
	}
	cmd := exec.CommandContext(ctx, bin, args...)

	var out bytes.Buffer
	if d.Debug {
		cmd.Stdout = orDefault(d.Stdout, os.Stdout)
		cmd.Stderr = orDefault(d.Stderr, os.Stderr)
	} else {
		cmd.Stdout = &out
		cmd.Stderr = &out
	}

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if diag := diagnostic(out.String()); diag != "" {
			err = fmt.Errorf("%w: %s", err, diag)
		}
		return 0, &ProbeError{Op: op, Path: path, Err: err}
	}
	return time.Since(start), nil
}

func orDefault(w, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}

// diagnostic picks dd's own complaint out of its output, falling back to the
// last line when there is none.
func diagnostic(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for _, l := range lines {
		if strings.HasPrefix(l, "dd:") {
			return l
		}
	}
	return lines[len(lines)-1]
}
