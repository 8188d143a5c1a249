// Package pipeline sequences a single hashtag run: discover candidate
// videos, fetch and verify each one, apply the edit chain, and commit
// successes to the processed ledger. Items are processed strictly in
// discovery order and one phase failure never aborts the run unless it
// proves a required external tool is absent entirely.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hashreel/hashreel-agent/internal/discover"
	"github.com/hashreel/hashreel-agent/internal/fetch"
	"github.com/hashreel/hashreel-agent/internal/transform"
)

// eventBuffer bounds the progress channel. The producer blocks once the
// consumer falls this far behind, preserving delivery order.
const eventBuffer = 256

// ItemStatus is the terminal state of one candidate within a run.
type ItemStatus string

const (
	ItemSucceeded       ItemStatus = "succeeded"
	ItemFetchFailed     ItemStatus = "fetch_failed"
	ItemTransformFailed ItemStatus = "transform_failed"
)

// ItemResult records how a single candidate fared.
type ItemResult struct {
	ID         string
	URL        string
	Status     ItemStatus
	OutputPath string // set when Status is ItemSucceeded
	Err        string // set when the item failed
}

// Outcome summarizes a completed run. Attempted counts items that entered
// processing; candidates skipped by an early stop are not counted.
type Outcome struct {
	Hashtag   string
	Attempted int
	Succeeded int
	Failed    int
	Items     []ItemResult
	Fatal     error
}

// Summary renders a one-line human-readable result.
func (o Outcome) Summary() string {
	if o.Fatal != nil {
		return fmt.Sprintf("run aborted for #%s: %v (succeeded %d, failed %d)",
			o.Hashtag, o.Fatal, o.Succeeded, o.Failed)
	}
	if o.Attempted == 0 {
		return fmt.Sprintf("no new videos for #%s", o.Hashtag)
	}
	return fmt.Sprintf("#%s: %d succeeded, %d failed of %d attempted",
		o.Hashtag, o.Succeeded, o.Failed, o.Attempted)
}

// Discoverer finds candidate videos for a hashtag, excluding IDs for which
// known returns true.
type Discoverer interface {
	Discover(ctx context.Context, hashtag string, want int, known func(string) bool) ([]discover.Candidate, error)
}

// ArtifactFetcher downloads and verifies a single video.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, itemID, sourceURL, destDir string) (*fetch.Artifact, error)
}

// Transformer applies the edit chain to a downloaded video and returns the
// output path.
type Transformer interface {
	Apply(ctx context.Context, sourcePath, itemID string, spec transform.Spec) (string, error)
}

// Ledger is the processed-video record the orchestrator consults and
// appends to.
type Ledger interface {
	Load() map[string]struct{}
	Append(id string) bool
}

// Orchestrator drives one run at a time. It is not safe for concurrent
// Run calls; callers serialize runs themselves.
type Orchestrator struct {
	discoverer  Discoverer
	fetcher     ArtifactFetcher
	transformer Transformer
	ledger      Ledger
	spec        transform.Spec
	videosDir   string
	logger      *slog.Logger

	events chan Event
	stop   atomic.Bool
}

// New builds an Orchestrator. The event channel is created per Orchestrator
// and closed when Run returns, so an Orchestrator serves exactly one run.
func New(d Discoverer, f ArtifactFetcher, t Transformer, l Ledger, spec transform.Spec, videosDir string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		discoverer:  d,
		fetcher:     f,
		transformer: t,
		ledger:      l,
		spec:        spec,
		videosDir:   videosDir,
		logger:      logger.With(slog.String("component", "pipeline")),
		events:      make(chan Event, eventBuffer),
	}
}

// Events returns the progress channel for this run. Events arrive in
// emission order and the channel is closed after the terminal Complete or
// Failed event.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// RequestStop asks the run to end at the next item boundary. In-flight
// external operations are not interrupted.
func (o *Orchestrator) RequestStop() {
	o.stop.Store(true)
}

func (o *Orchestrator) stopped(ctx context.Context) bool {
	return o.stop.Load() || ctx.Err() != nil
}

func (o *Orchestrator) emit(ev Event) {
	o.events <- ev
}

func (o *Orchestrator) status(msg string) {
	o.logger.Info(msg)
	o.emit(Event{Kind: EventStatus, Message: msg})
}

func (o *Orchestrator) warn(msg string, args ...any) {
	o.logger.Warn(msg, args...)
	o.emit(Event{Kind: EventLog, Level: slog.LevelWarn, Message: msg})
}

// Run executes one full discover/fetch/transform/commit cycle for hashtag,
// processing at most count new videos. It always returns an Outcome; Fatal
// is set only when a required tool or the browser backend is unavailable.
// The event channel is closed before Run returns.
func (o *Orchestrator) Run(ctx context.Context, hashtag string, count int) Outcome {
	defer close(o.events)

	outcome := Outcome{Hashtag: hashtag}
	log := o.logger.With(slog.String("hashtag", hashtag))

	o.status(fmt.Sprintf("discovering videos for #%s", hashtag))

	processed := o.ledger.Load()
	known := func(id string) bool {
		_, ok := processed[id]
		return ok
	}

	candidates, err := o.discoverer.Discover(ctx, hashtag, count, known)
	if err != nil {
		outcome.Fatal = fmt.Errorf("discovery: %w", err)
		log.Error("discovery failed", slog.Any("error", err))
		o.emit(Event{Kind: EventFailed, Message: outcome.Summary(), Outcome: &outcome})
		return outcome
	}
	if len(candidates) == 0 {
		o.status("nothing to do")
		o.emit(Event{Kind: EventComplete, Message: outcome.Summary(), Outcome: &outcome})
		return outcome
	}

	log.Info("candidates discovered", slog.Int("count", len(candidates)))
	total := len(candidates)

	for i, c := range candidates {
		if o.stopped(ctx) {
			o.warn("stop requested, ending run early",
				slog.Int("remaining", total-i))
			break
		}

		o.status(fmt.Sprintf("processing video %d/%d", i+1, total))
		outcome.Attempted++
		itemLog := log.With(slog.String("item_id", c.ID))

		artifact, err := o.fetcher.Fetch(ctx, c.ID, c.URL, o.videosDir)
		if err != nil {
			if errors.Is(err, fetch.ErrFetcherMissing) {
				outcome.Fatal = err
				outcome.Attempted--
				break
			}
			outcome.Failed++
			outcome.Items = append(outcome.Items, ItemResult{
				ID: c.ID, URL: c.URL, Status: ItemFetchFailed, Err: err.Error(),
			})
			itemLog.Warn("fetch failed, continuing", slog.Any("error", err))
			continue
		}

		outPath, err := o.transformer.Apply(ctx, artifact.Path, c.ID, o.spec)
		if err != nil {
			if errors.Is(err, transform.ErrEncoderMissing) {
				outcome.Fatal = err
				outcome.Attempted--
				break
			}
			outcome.Failed++
			outcome.Items = append(outcome.Items, ItemResult{
				ID: c.ID, URL: c.URL, Status: ItemTransformFailed, Err: err.Error(),
			})
			itemLog.Warn("transform failed, continuing", slog.Any("error", err))
			continue
		}

		if !o.ledger.Append(c.ID) {
			// Not fatal: the item was produced, it will just be
			// rediscovered and reprocessed on a future run.
			o.warn("ledger append failed, item may repeat next run",
				slog.String("item_id", c.ID))
		}

		outcome.Succeeded++
		outcome.Items = append(outcome.Items, ItemResult{
			ID: c.ID, URL: c.URL, Status: ItemSucceeded, OutputPath: outPath,
		})
		itemLog.Info("video processed", slog.String("output", outPath))
		o.emit(Event{Kind: EventProgress, Progress: float64(i+1) / float64(total)})
	}

	if outcome.Fatal != nil {
		log.Error("run aborted", slog.Any("error", outcome.Fatal))
		o.emit(Event{Kind: EventFailed, Message: outcome.Summary(), Outcome: &outcome})
		return outcome
	}

	log.Info("run complete",
		slog.Int("attempted", outcome.Attempted),
		slog.Int("succeeded", outcome.Succeeded),
		slog.Int("failed", outcome.Failed))
	o.emit(Event{Kind: EventComplete, Message: outcome.Summary(), Outcome: &outcome})
	return outcome
}
