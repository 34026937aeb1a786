// Package browser wraps chromedp behind a small session API. One Session is
// one headless browser + context pair; it is opened per company scrape and
// guaranteed to be released on every exit path.
package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/skalra/auros/internal/model"
)

// Anchor is one <a> element captured from a rendered page, with its
// DOM-resolved href.
type Anchor struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// anchorsJS enumerates every anchor with its text and resolved href.
const anchorsJS = `Array.from(document.querySelectorAll('a'))
	.map(a => ({ text: a.textContent || '', href: a.href || '' }))`

// bodyTextJS extracts the visible page text.
const bodyTextJS = `document.body.innerText`

// Config tunes rendering behavior.
type Config struct {
	SettleDelay time.Duration // extra wait after load for JS-rendered content
	PageTimeout time.Duration // per-navigation budget
	UserAgent   string
}

// Browser creates sessions. Safe for concurrent use; each session owns its
// own allocator so a crashed renderer cannot poison later scrapes.
type Browser struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Browser with defaults filled in.
func New(cfg Config, logger *slog.Logger) *Browser {
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 3 * time.Second
	}
	if cfg.PageTimeout == 0 {
		cfg.PageTimeout = 60 * time.Second
	}
	return &Browser{cfg: cfg, logger: logger}
}

// Session is a scoped browser + context pair. Close releases both.
type Session struct {
	browserCtx context.Context
	cancels    []context.CancelFunc
	cfg        Config
}

// NewSession launches a headless browser. The caller must Close it.
func (b *Browser) NewSession(ctx context.Context) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	if b.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so failures surface here rather
	// than on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, model.NewScrapeError("render", err)
	}
	b.logger.Debug("browser session started")

	return &Session{
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{browserCancel, allocCancel},
		cfg:        b.cfg,
	}, nil
}

// Close shuts down the browser and its allocator.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// Anchors renders pageURL, waits for the settle delay, and returns every
// anchor on the page. The tab is closed before returning.
func (s *Session) Anchors(ctx context.Context, pageURL string) ([]Anchor, error) {
	tabCtx, cancel := s.newTab(ctx)
	defer cancel()

	var anchors []Anchor
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en"}),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.Evaluate(anchorsJS, &anchors),
	)
	if err != nil {
		return nil, model.NewScrapeError("render", err)
	}
	return anchors, nil
}

// PageText renders pageURL and returns document.body.innerText. The tab is
// closed before returning.
func (s *Session) PageText(ctx context.Context, pageURL string) (string, error) {
	tabCtx, cancel := s.newTab(ctx)
	defer cancel()

	var text string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en"}),
		chromedp.Navigate(pageURL),
		chromedp.Evaluate(bodyTextJS, &text),
	)
	if err != nil {
		return "", model.NewScrapeError("render", err)
	}
	return text, nil
}

// newTab opens a tab in this session's browser, bounded by the page timeout
// and released when the caller's ctx is cancelled.
func (s *Session) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, s.cfg.PageTimeout)

	stop := context.AfterFunc(ctx, timeoutCancel)
	return timeoutCtx, func() {
		stop()
		timeoutCancel()
		tabCancel()
	}
}
