// Package toolrun provides bounded subprocess execution for the external
// tools the agent drives (yt-dlp, ffmpeg, ffprobe) with structured results.
package toolrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 8 * 1024  // 8 KB tail of stderr kept for diagnostics
	maxStdoutBytes = 64 * 1024 // probe output is small; downloads log a lot
)

// ErrToolMissing indicates the external binary could not be found on PATH.
var ErrToolMissing = errors.New("external tool not found")

// Result is the structured outcome of executing an external tool.
type Result struct {
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	TimedOut   bool          `json:"timed_out"`
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r Result) IsSuccess() bool { return r.ExitCode == 0 && !r.TimedOut }

// Runner executes external tools as subprocesses. It is the single
// execution contract used by the fetch, verify and transform adapters,
// substitutable with a fake in tests.
type Runner interface {
	// Run executes name with args, force-terminating the process when the
	// timeout elapses. The returned error is non-nil only when the process
	// could not be started at all; a nonzero exit or a timeout is reported
	// through the Result.
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)
}

// ExecRunner is the production implementation of Runner.
type ExecRunner struct {
	logger *slog.Logger
}

// NewRunner creates an ExecRunner.
func NewRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = io.Writer(&limitedWriter{w: &stdoutBuf, limit: maxStdoutBytes})
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	err := cmd.Run()
	elapsed := time.Since(start)

	result := Result{
		Stdout:     stdoutBuf.String(),
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		if r.logger != nil {
			r.logger.Warn("external tool timed out",
				"tool", name,
				"timeout", timeout,
				"duration_ms", elapsed.Milliseconds(),
			)
		}
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if r.logger != nil {
				r.logger.Warn("external tool failed",
					"tool", name,
					"exit_code", result.ExitCode,
					"duration_ms", elapsed.Milliseconds(),
					"stderr_tail", truncate(result.StderrTail, 512),
				)
			}
			return result, nil
		}

		result.ExitCode = -1
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return result, fmt.Errorf("%w: %s", ErrToolMissing, name)
		}
		return result, fmt.Errorf("cannot run %s: %w", name, err)
	}

	if r.logger != nil {
		r.logger.Debug("external tool succeeded",
			"tool", name,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return result, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
