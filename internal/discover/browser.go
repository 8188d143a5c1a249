package discover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.102 Safari/537.36"

// videoAnchorSelector matches video detail links on the listing surface.
const videoAnchorSelector = `a[href*="/video/"]`

const collectLinksJS = `Array.from(document.querySelectorAll('a[href*="/video/"]')).map(function (a) { return a.href; })`

// ChromeBrowser drives a Chrome instance over the DevTools protocol.
type ChromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *slog.Logger
}

// NewChromeBrowser launches a Chrome instance with the agent's fixed profile.
// Launch failure is reported immediately so the caller can treat a missing
// backend as fatal for discovery.
func NewChromeBrowser(ctx context.Context, headless bool, logger *slog.Logger) (*ChromeBrowser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if !headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Run an empty action to start the browser process now, not lazily on
	// first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("cannot launch browser: %w", err)
	}

	if logger != nil {
		logger.Debug("browser launched", "headless", headless)
	}

	return &ChromeBrowser{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

func (b *ChromeBrowser) Navigate(ctx context.Context, pageURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(b.ctx, chromedp.Navigate(pageURL))
}

func (b *ChromeBrowser) WaitReady(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(videoAnchorSelector, chromedp.ByQuery))
}

func (b *ChromeBrowser) ScrollBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(b.ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil))
}

func (b *ChromeBrowser) VideoLinks(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var hrefs []string
	if err := chromedp.Run(b.ctx, chromedp.Evaluate(collectLinksJS, &hrefs)); err != nil {
		return nil, err
	}
	return hrefs, nil
}

func (b *ChromeBrowser) Close() error {
	b.cancel()
	b.allocCancel()
	return nil
}

// ChromeFinder launches a fresh browser for each Discover call and tears it
// down when the call returns. It satisfies the pipeline's discoverer
// contract without holding a browser open between runs.
type ChromeFinder struct {
	cfg      Config
	headless bool
	logger   *slog.Logger
}

func NewChromeFinder(cfg Config, headless bool, logger *slog.Logger) *ChromeFinder {
	return &ChromeFinder{cfg: cfg, headless: headless, logger: logger}
}

func (c *ChromeFinder) Discover(ctx context.Context, hashtag string, want int, known func(string) bool) ([]Candidate, error) {
	browser, err := NewChromeBrowser(ctx, c.headless, c.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	defer browser.Close()

	return NewFinder(browser, c.cfg, c.logger).Discover(ctx, hashtag, want, known)
}
