// Package verify checks downloaded artifacts for a decodable video stream
// using an external media prober. Corrupt artifacts are deleted so they are
// never reused by a later stage or run.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashreel/hashreel-agent/internal/toolrun"
)

// Verifier validates artifact integrity via ffprobe.
type Verifier struct {
	runner     toolrun.Runner
	proberPath string
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a Verifier.
func New(runner toolrun.Runner, proberPath string, timeout time.Duration, logger *slog.Logger) *Verifier {
	return &Verifier{
		runner:     runner,
		proberPath: proberPath,
		timeout:    timeout,
		logger:     logger,
	}
}

// Verify confirms the artifact at path contains a decodable video stream.
// On failure or timeout the artifact is deleted and an error returned. If
// the prober itself is missing the artifact is treated as passed in
// degraded-verification mode: a loud warning beats a dead pipeline, at the
// cost of possibly propagating a corrupt file downstream.
func (v *Verifier) Verify(ctx context.Context, path, itemID string) error {
	result, err := v.runner.Run(ctx, v.timeout, v.proberPath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		if errors.Is(err, toolrun.ErrToolMissing) {
			if v.logger != nil {
				v.logger.Error("prober not found, cannot verify integrity; keeping unverified artifact",
					"item_id", itemID,
					"tool", v.proberPath,
				)
			}
			return nil
		}
		v.removeArtifact(path, itemID)
		return fmt.Errorf("integrity probe for %s: %w", itemID, err)
	}

	if result.TimedOut {
		v.removeArtifact(path, itemID)
		return fmt.Errorf("integrity probe timed out for %s, assuming corrupt", itemID)
	}

	codec := strings.TrimSpace(result.Stdout)
	if result.ExitCode != 0 || codec == "" {
		if v.logger != nil {
			v.logger.Warn("integrity verification failed",
				"item_id", itemID,
				"exit_code", result.ExitCode,
				"stderr_tail", result.StderrTail,
			)
		}
		v.removeArtifact(path, itemID)
		return fmt.Errorf("no decodable video stream in artifact for %s", itemID)
	}

	if v.logger != nil {
		v.logger.Debug("artifact integrity verified", "item_id", itemID, "codec", codec)
	}
	return nil
}

func (v *Verifier) removeArtifact(path, itemID string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		if v.logger != nil {
			v.logger.Warn("cannot remove corrupt artifact", "item_id", itemID, "path", path, "error", err)
		}
	}
}
