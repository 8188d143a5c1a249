// Package fetch downloads source videos with an external fetch tool. A fetch
// is public-successful only after the downloaded artifact passes integrity
// verification; every failure path removes the partial file so a corrupt
// download is never reused.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hashreel/hashreel-agent/internal/toolrun"
	"github.com/hashreel/hashreel-agent/internal/verify"
)

// ErrFetcherMissing indicates the fetch tool is not installed. This is fatal
// for the whole run, unlike a per-item download failure: no further fetches
// can succeed without the tool.
var ErrFetcherMissing = errors.New("fetch tool not installed")

// Artifact is a downloaded, integrity-verified local video file.
type Artifact struct {
	ItemID string
	Path   string
	Size   int64
}

// Fetcher wraps the external download tool.
type Fetcher struct {
	runner      toolrun.Runner
	verifier    *verify.Verifier
	fetcherPath string
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates a Fetcher. The verifier runs as an inline continuation of every
// successful download.
func New(runner toolrun.Runner, verifier *verify.Verifier, fetcherPath string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		runner:      runner,
		verifier:    verifier,
		fetcherPath: fetcherPath,
		timeout:     timeout,
		logger:      logger,
	}
}

// Fetch downloads the video identified by itemID from sourceURL into destDir.
// Success requires a zero tool exit, a non-empty output file and a passing
// integrity verification.
func (f *Fetcher) Fetch(ctx context.Context, itemID, sourceURL, destDir string) (*Artifact, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create download directory: %w", err)
	}

	dest := filepath.Join(destDir, itemID+".mp4")

	result, err := f.runner.Run(ctx, f.timeout, f.fetcherPath,
		"--no-warnings",
		"--ignore-errors",
		"--retries", "3",
		"--fragment-retries", "3",
		"--no-playlist",
		"-o", dest,
		"--socket-timeout", "30",
		sourceURL,
	)
	if err != nil {
		if errors.Is(err, toolrun.ErrToolMissing) {
			if f.logger != nil {
				f.logger.Error("fetch tool not found, aborting run", "tool", f.fetcherPath, "fatal", true)
			}
			return nil, fmt.Errorf("%w: %s", ErrFetcherMissing, f.fetcherPath)
		}
		f.removePartial(dest, itemID)
		return nil, fmt.Errorf("download of %s: %w", itemID, err)
	}

	if result.TimedOut {
		f.removePartial(dest, itemID)
		return nil, fmt.Errorf("download of %s timed out after %s", itemID, f.timeout)
	}

	info, statErr := os.Stat(dest)
	if result.ExitCode != 0 || statErr != nil || info.Size() == 0 {
		if f.logger != nil {
			f.logger.Warn("download failed",
				"item_id", itemID,
				"exit_code", result.ExitCode,
				"stderr_tail", result.StderrTail,
			)
		}
		f.removePartial(dest, itemID)
		return nil, fmt.Errorf("download of %s failed with exit %d", itemID, result.ExitCode)
	}

	// Inline continuation: a fetch only succeeds once the artifact is known
	// to contain a decodable video stream. The verifier deletes the file on
	// failure.
	if err := f.verifier.Verify(ctx, dest, itemID); err != nil {
		return nil, err
	}

	if f.logger != nil {
		f.logger.Info("video downloaded", "item_id", itemID, "size_bytes", info.Size())
	}

	return &Artifact{ItemID: itemID, Path: dest, Size: info.Size()}, nil
}

func (f *Fetcher) removePartial(dest, itemID string) {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		if f.logger != nil {
			f.logger.Warn("cannot remove partial download", "item_id", itemID, "path", dest, "error", err)
		}
	}
}
