// internal/browser/session.go
// Package browser owns the lifecycle of one controlled Chrome session and
// is the only package that touches the browser automation engine. The rest
// of the pipeline drives it through Session and Page.
package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

// SessionConfig configures one browser session.
type SessionConfig struct {
	Headless       bool
	RequestDelay   time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	NavTimeout     time.Duration
}

// DefaultSessionConfig returns production-safe defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		Headless:       true,
		RequestDelay:   time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		NavTimeout:     30 * time.Second,
	}
}

// Session is one browser context. It owns zero or more open pages and is
// torn down on completion or fatal failure. Close is idempotent and safe on
// every exit path.
type Session struct {
	cfg         *SessionConfig
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	limiter     *rate.Limiter
	closeOnce   sync.Once
}

// NewSession launches a browser. The session inherits cancellation from
// ctx, so canceling the run tears the browser down. Launch failure yields a
// SessionStartError.
func NewSession(ctx context.Context, cfg *SessionConfig) (*Session, error) {
	if cfg == nil {
		cfg = DefaultSessionConfig()
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:         cfg,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
	}
	if cfg.RequestDelay > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}

	// Force the browser process to start now so a missing binary or
	// exhausted host surfaces here instead of on the first navigation.
	if err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight)),
	); err != nil {
		s.Close()
		return nil, &SessionStartError{Cause: err}
	}

	return s, nil
}

// Navigate opens url in a new page and waits for the document body. The
// configured request delay paces successive navigations. Timeouts and other
// navigation failures are reported distinctly so retries can differ.
func (s *Session) Navigate(ctx context.Context, url string) (*Page, error) {
	page, _, err := s.open(ctx, url, nil)
	return page, err
}

// NavigateCaptured opens url with network capture attached before the
// navigation starts, so API calls made while the page loads are observed.
func (s *Session) NavigateCaptured(ctx context.Context, url string, matcher Matcher) (*Page, *Interceptor, error) {
	return s.open(ctx, url, &matcher)
}

func (s *Session) open(ctx context.Context, url string, matcher *Matcher) (*Page, *Interceptor, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	page := &Page{ctx: tabCtx, cancel: tabCancel, url: url, navTimeout: s.cfg.NavTimeout}

	var ic *Interceptor
	if matcher != nil {
		var err error
		if ic, err = AttachInterceptor(page, *matcher); err != nil {
			tabCancel()
			return nil, nil, &NavigationError{URL: url, Cause: err}
		}
	}

	navCtx, navCancel := context.WithTimeout(tabCtx, s.cfg.NavTimeout)
	defer navCancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		tabCancel()
		if errors.Is(ctx.Err(), context.Canceled) {
			// Whole-run cancellation, not a per-step failure. An expired
			// deadline on ctx is a per-attempt budget and stays retryable.
			return nil, nil, ctx.Err()
		}
		return nil, nil, &NavigationError{
			URL:     url,
			Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
			Cause:   err,
		}
	}

	return page, ic, nil
}

// Close tears the session down. Safe to call repeatedly and after failures.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.allocCancel()
	})
}

// Page is one rendered document inside a Session.
type Page struct {
	ctx        context.Context
	cancel     context.CancelFunc
	url        string
	navTimeout time.Duration
}

// URL returns the address the page was opened with.
func (p *Page) URL() string { return p.url }

// Document snapshots the current DOM as a goquery document.
func (p *Page) Document(ctx context.Context) (*goquery.Document, error) {
	runCtx, cancel := p.bound(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Click clicks the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	runCtx, cancel := p.bound(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// WaitVisible blocks until selector is visible or timeout elapses.
func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := propagate(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Close releases the page's tab. Idempotent.
func (p *Page) Close() { p.cancel() }

// bound derives a chromedp-compatible context limited by the page's
// navigation timeout and canceled when the caller's ctx is.
func (p *Page) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(p.ctx, p.navTimeout)
	stop := propagate(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// propagate cancels cancel when ctx is done. The returned func releases the
// watcher goroutine.
func propagate(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
