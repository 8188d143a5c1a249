// Package transform applies the mirror/border-crop edit to a downloaded
// artifact with an external encoder. The source file is never overwritten;
// the transformed video is written to a separate output directory and any
// partial output is removed on failure or timeout.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashreel/hashreel-agent/internal/toolrun"
)

// Encoder constants for the fixed quality profile
const (
	VideoCodec   = "libx264"
	VideoPreset  = "medium"
	VideoCRF     = "23"
	AudioCodec   = "aac"
	AudioBitrate = "128k"

	// Output suffix
	EditedSuffix = "_edited"

	OutputExtensionMP4 = ".mp4"
)

// ErrEncoderMissing indicates the transcode tool is not installed. Fatal for
// the whole run.
var ErrEncoderMissing = errors.New("transcode tool not installed")

// Spec describes the visual edit. CropPercent is the fraction removed from
// each of the four borders, symmetric, valid in [0, 50).
type Spec struct {
	Mirror      bool
	CropPercent float64
}

// DefaultSpec returns the standard edit: horizontal flip plus a 2% border crop.
func DefaultSpec() Spec {
	return Spec{Mirror: true, CropPercent: 2}
}

// Geometry is a video's pixel dimensions as reported by the prober.
type Geometry struct {
	Width  int
	Height int
}

// Engine wraps the external probe and transcode tools.
type Engine struct {
	runner          toolrun.Runner
	encoderPath     string
	proberPath      string
	outputDir       string
	geometryTimeout time.Duration
	encodeTimeout   time.Duration
	logger          *slog.Logger
}

// New creates an Engine writing transformed videos into outputDir.
func New(runner toolrun.Runner, encoderPath, proberPath, outputDir string, geometryTimeout, encodeTimeout time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		runner:          runner,
		encoderPath:     encoderPath,
		proberPath:      proberPath,
		outputDir:       outputDir,
		geometryTimeout: geometryTimeout,
		encodeTimeout:   encodeTimeout,
		logger:          logger,
	}
}

// OutputPath returns the deterministic output location for an item.
func (e *Engine) OutputPath(itemID string) string {
	return filepath.Join(e.outputDir, itemID+EditedSuffix+OutputExtensionMP4)
}

// Apply transforms the artifact at sourcePath and returns the output path.
// The source is left in place; on any failure the partial output is removed
// and an error returned.
func (e *Engine) Apply(ctx context.Context, sourcePath, itemID string, spec Spec) (string, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return "", fmt.Errorf("transform input for %s: %w", itemID, err)
	}

	geom, err := e.probeGeometry(ctx, sourcePath)
	if err != nil {
		return "", fmt.Errorf("geometry probe for %s: %w", itemID, err)
	}

	filters := BuildFilters(geom, spec, e.logger)

	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("cannot create output directory: %w", err)
	}
	outputPath := e.OutputPath(itemID)

	args := []string{"-y", "-i", sourcePath}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	args = append(args,
		"-c:v", VideoCodec,
		"-preset", VideoPreset,
		"-crf", VideoCRF,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		outputPath,
	)

	result, err := e.runner.Run(ctx, e.encodeTimeout, e.encoderPath, args...)
	if err != nil {
		if errors.Is(err, toolrun.ErrToolMissing) {
			if e.logger != nil {
				e.logger.Error("transcode tool not found, aborting run", "tool", e.encoderPath, "fatal", true)
			}
			return "", fmt.Errorf("%w: %s", ErrEncoderMissing, e.encoderPath)
		}
		e.removePartial(outputPath, itemID)
		return "", fmt.Errorf("transcode of %s: %w", itemID, err)
	}

	if result.TimedOut {
		e.removePartial(outputPath, itemID)
		return "", fmt.Errorf("transcode of %s timed out after %s", itemID, e.encodeTimeout)
	}

	info, statErr := os.Stat(outputPath)
	if result.ExitCode != 0 || statErr != nil || info.Size() == 0 {
		if e.logger != nil {
			e.logger.Warn("transcode failed",
				"item_id", itemID,
				"exit_code", result.ExitCode,
				"stderr_tail", result.StderrTail,
			)
		}
		e.removePartial(outputPath, itemID)
		return "", fmt.Errorf("transcode of %s failed with exit %d", itemID, result.ExitCode)
	}

	if e.logger != nil {
		e.logger.Info("video transformed",
			"item_id", itemID,
			"output", outputPath,
			"size_bytes", info.Size(),
		)
	}
	return outputPath, nil
}

// probeGeometry asks the prober for the primary video stream's WxH.
func (e *Engine) probeGeometry(ctx context.Context, path string) (Geometry, error) {
	result, err := e.runner.Run(ctx, e.geometryTimeout, e.proberPath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	)
	if err != nil {
		return Geometry{}, err
	}
	if result.TimedOut || result.ExitCode != 0 {
		return Geometry{}, fmt.Errorf("prober exited %d (timed_out=%t): %s", result.ExitCode, result.TimedOut, result.StderrTail)
	}
	return ParseGeometry(result.Stdout)
}

// ParseGeometry parses the prober's "WIDTHxHEIGHT" output.
func ParseGeometry(out string) (Geometry, error) {
	parts := strings.SplitN(strings.TrimSpace(out), "x", 2)
	if len(parts) != 2 {
		return Geometry{}, fmt.Errorf("unparsable geometry %q", strings.TrimSpace(out))
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Geometry{}, fmt.Errorf("unparsable geometry %q", strings.TrimSpace(out))
	}
	return Geometry{Width: w, Height: h}, nil
}

// BuildFilters constructs the ordered encoder filter chain for the spec.
// CropPercent outside (0, 50) adds no crop stage; a crop that would leave a
// nonpositive dimension is skipped with a warning rather than failing the
// item. Crop dimensions are rounded down to even numbers for the codec.
func BuildFilters(g Geometry, spec Spec, logger *slog.Logger) []string {
	var filters []string

	if spec.Mirror {
		filters = append(filters, "hflip")
	}

	if spec.CropPercent > 0 && spec.CropPercent < 50 {
		cutW := int(float64(g.Width) * spec.CropPercent / 100.0)
		cutH := int(float64(g.Height) * spec.CropPercent / 100.0)

		outW := g.Width - 2*cutW
		outH := g.Height - 2*cutH
		outW -= outW % 2
		outH -= outH % 2

		if outW <= 0 || outH <= 0 {
			if logger != nil {
				logger.Warn("crop would leave no visible area, skipping crop stage",
					"width", g.Width,
					"height", g.Height,
					"crop_percent", spec.CropPercent,
				)
			}
		} else {
			filters = append(filters, fmt.Sprintf("crop=%d:%d:%d:%d", outW, outH, cutW, cutH))
		}
	}

	return filters
}

func (e *Engine) removePartial(outputPath, itemID string) {
	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		if e.logger != nil {
			e.logger.Warn("cannot remove partial transcode output", "item_id", itemID, "path", outputPath, "error", err)
		}
	}
}
