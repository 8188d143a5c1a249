// Package discover enumerates candidate videos for a hashtag by driving a
// browser over the hashtag's listing page. IDs already present in the
// processed ledger are filtered out during the scan so the pipeline never
// re-downloads known items.
package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// minIDLength distinguishes content IDs from other numeric path segments;
// real video IDs are long numeric tokens.
const minIDLength = 16

// ErrBrowserUnavailable indicates the automation backend could not be used.
// Fatal for the whole discovery call.
var ErrBrowserUnavailable = errors.New("browser backend unavailable")

// Candidate is one discoverable video: a stable numeric ID plus the locator
// the fetcher downloads from.
type Candidate struct {
	ID  string
	URL string
}

// Browser abstracts the automation backend so discovery logic is testable
// without a real browser.
type Browser interface {
	// Navigate loads the given page.
	Navigate(ctx context.Context, pageURL string) error

	// WaitReady blocks until the listing surface shows at least one video
	// link, or the timeout elapses.
	WaitReady(ctx context.Context, timeout time.Duration) error

	// ScrollBottom triggers loading of more content.
	ScrollBottom(ctx context.Context) error

	// VideoLinks returns the hrefs of all video detail anchors currently in
	// the DOM.
	VideoLinks(ctx context.Context) ([]string, error)

	// Close releases the backend.
	Close() error
}

// Config bounds a discovery scan.
type Config struct {
	ScrollAttempts int
	ScrollPause    time.Duration
	PageWait       time.Duration
}

// Finder locates new candidate videos for a hashtag.
type Finder struct {
	browser Browser
	cfg     Config
	logger  *slog.Logger
}

// NewFinder creates a Finder over the given browser backend.
func NewFinder(browser Browser, cfg Config, logger *slog.Logger) *Finder {
	return &Finder{browser: browser, cfg: cfg, logger: logger}
}

// TagURL returns the listing page for a hashtag. A leading '#' is tolerated.
func TagURL(hashtag string) string {
	tag := strings.TrimPrefix(strings.TrimSpace(hashtag), "#")
	return "https://www.tiktok.com/tag/" + url.PathEscape(tag)
}

// Discover scans the hashtag listing until `want` new unseen IDs are
// collected or the scroll budget is exhausted. IDs for which known() returns
// true are skipped. The returned slice preserves discovery order and holds
// at most `want` entries.
func (f *Finder) Discover(ctx context.Context, hashtag string, want int, known func(string) bool) ([]Candidate, error) {
	if strings.TrimSpace(hashtag) == "" {
		return nil, fmt.Errorf("hashtag must not be empty")
	}
	if want <= 0 {
		return nil, fmt.Errorf("target count must be positive, got %d", want)
	}

	pageURL := TagURL(hashtag)
	if f.logger != nil {
		f.logger.Info("navigating to hashtag listing", "hashtag", hashtag, "url", pageURL)
	}

	if err := f.browser.Navigate(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	if err := f.browser.WaitReady(ctx, f.cfg.PageWait); err != nil {
		// Nothing rendered within the budget: return what we have (nothing)
		// rather than failing the run.
		f.warnEmpty(hashtag, err)
		return nil, nil
	}

	var candidates []Candidate
	seen := make(map[string]struct{})

	for attempt := 1; attempt <= f.cfg.ScrollAttempts; attempt++ {
		if f.logger != nil {
			f.logger.Debug("scrolling hashtag listing", "hashtag", hashtag, "attempt", attempt, "of", f.cfg.ScrollAttempts)
		}

		if err := f.browser.ScrollBottom(ctx); err != nil {
			if f.logger != nil {
				f.logger.Warn("scroll failed, stopping scan", "hashtag", hashtag, "error", err)
			}
			break
		}

		select {
		case <-ctx.Done():
			return candidates, ctx.Err()
		case <-time.After(f.cfg.ScrollPause):
		}

		links, err := f.browser.VideoLinks(ctx)
		if err != nil {
			if f.logger != nil {
				f.logger.Warn("cannot query video links", "hashtag", hashtag, "error", err)
			}
			continue
		}

		for _, href := range links {
			if !strings.Contains(href, "/video/") {
				continue
			}
			id := ExtractVideoID(href)
			if id == "" {
				// Not a content link; skip the element and keep scanning.
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if known != nil && known(id) {
				if f.logger != nil {
					f.logger.Debug("skipping already processed video", "item_id", id)
				}
				continue
			}

			if f.logger != nil {
				f.logger.Info("found new video", "item_id", id, "url", href)
			}
			candidates = append(candidates, Candidate{ID: id, URL: href})
			if len(candidates) >= want {
				break
			}
		}

		if len(candidates) >= want {
			if f.logger != nil {
				f.logger.Info("target count reached", "hashtag", hashtag, "count", len(candidates))
			}
			break
		}
	}

	if len(candidates) == 0 {
		f.warnEmpty(hashtag, nil)
	}

	return candidates, nil
}

// ExtractVideoID parses the trailing numeric path segment of a video detail
// link. Only purely numeric tokens longer than the minimum length are
// accepted; everything else returns "".
func ExtractVideoID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if len(seg) >= minIDLength && isNumeric(seg) {
			return seg
		}
	}
	return ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (f *Finder) warnEmpty(hashtag string, cause error) {
	if f.logger == nil {
		return
	}
	f.logger.Warn("no new video links found",
		"hashtag", hashtag,
		"error", cause,
		"likely_causes", "page structure changed; interstitial challenge or login wall; no unprocessed content for this tag",
	)
}
