// internal/scraper/runner.go
package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/realyield/auctionwatch/internal/browser"
	"github.com/realyield/auctionwatch/internal/utils"
	"github.com/realyield/auctionwatch/pkg/types"
)

// Normalizer converts a raw scrape into the export-ready record. It is
// total: malformed values degrade to sentinels, never to an error.
type Normalizer interface {
	Normalize(raw types.RawRecord) types.Record
}

// Observer receives run progress events. The monitoring package provides a
// Prometheus-backed implementation.
type Observer interface {
	PageVisited(source types.Source)
	ListingAttempted(source types.Source)
	ListingSucceeded(source types.Source)
	ListingSkipped(source types.Source, reason types.SkipReason)
	NavigationRetried(source types.Source)
}

type nopObserver struct{}

func (nopObserver) PageVisited(types.Source)                      {}
func (nopObserver) ListingAttempted(types.Source)                 {}
func (nopObserver) ListingSucceeded(types.Source)                 {}
func (nopObserver) ListingSkipped(types.Source, types.SkipReason) {}
func (nopObserver) NavigationRetried(types.Source)                {}

// NopObserver discards all events.
var NopObserver Observer = nopObserver{}

// SessionNavigator adapts a browser session to the Navigator interface,
// attaching network capture when a matcher is set. Pages opened with capture
// satisfy PayloadSource.
type SessionNavigator struct {
	Session *browser.Session
	Capture *browser.Matcher
}

func (n *SessionNavigator) Navigate(ctx context.Context, url string) (ListingPage, error) {
	if n.Capture == nil {
		return n.Session.Navigate(ctx, url)
	}
	page, ic, err := n.Session.NavigateCaptured(ctx, url, *n.Capture)
	if err != nil {
		return nil, err
	}
	return &capturedPage{Page: page, ic: ic}, nil
}

type capturedPage struct {
	*browser.Page
	ic *browser.Interceptor
}

func (p *capturedPage) Payloads(ctx context.Context, window, settle time.Duration) []browser.Payload {
	return p.ic.Payloads(ctx, window, settle)
}

// Runner drives one scraping run for one source: discovery, per-listing
// retrying extraction, normalization and the final tally. It never aborts on
// per-listing failures; cancellation stops work and leaves the partial
// result for export.
type Runner struct {
	Profile *Profile

	// Nav opens index pages; Detail opens listing pages and may attach
	// network capture. Detail falls back to Nav when nil.
	Nav    Navigator
	Detail Navigator

	Retry      RetryPolicy
	Normalizer Normalizer
	Logger     utils.Logger
	Observer   Observer

	// MaxListings caps processed listings; 0 means unbounded.
	MaxListings int
}

// Run executes the pipeline and returns the accumulated result. The result
// is always usable for export, even after cancellation.
func (r *Runner) Run(ctx context.Context) *types.RunResult {
	result := types.NewRunResult(r.Profile.Source)
	log := r.logger().WithField("source", r.Profile.Source.String())

	refs := r.discover(ctx, log)
	log.Infof("discovered %d listings", len(refs))

	retry := r.Retry
	retry.OnRetry = func(attempt int, err error) {
		r.observer().NavigationRetried(r.Profile.Source)
		log.Debugf("attempt %d failed, retrying: %v", attempt, err)
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			log.Warnf("run canceled with %d of %d listings processed", result.Attempted, len(refs))
			break
		}
		if r.MaxListings > 0 && result.Attempted >= r.MaxListings {
			log.Infof("listing cap %d reached", r.MaxListings)
			break
		}
		r.processListing(ctx, retry, ref, result, log)
	}

	result.FinishedAt = time.Now()
	log.Infof("run finished: %s", result.Summary())
	for _, url := range result.StructureAlerts {
		log.Errorf("site structure may have changed, review selectors: %s", url)
	}
	return result
}

// discover walks the index and collects unique listing references in
// discovery order.
func (r *Runner) discover(ctx context.Context, log utils.Logger) []types.ListingRef {
	var refs []types.ListingRef
	seen := make(map[string]bool)
	lastPage := 0

	stop, err := r.Profile.Paginator.Run(ctx, r.Nav, r.Profile.StartURL, func(url string, page int) {
		if page != lastPage {
			lastPage = page
			r.observer().PageVisited(r.Profile.Source)
		}
		if seen[url] {
			return
		}
		seen[url] = true
		refs = append(refs, types.ListingRef{URL: url, Source: r.Profile.Source, Page: page})
	})
	switch {
	case err == nil:
		log.Debugf("discovery stopped: %s", stop)
	case errors.Is(err, context.Canceled):
		log.Warnf("discovery canceled after %d listings", len(refs))
	default:
		log.Warnf("discovery ended early (%s): %v", stop, err)
	}
	return refs
}

func (r *Runner) processListing(ctx context.Context, retry RetryPolicy, ref types.ListingRef, result *types.RunResult, log utils.Logger) {
	result.Attempted++
	r.observer().ListingAttempted(r.Profile.Source)

	var raw types.RawRecord
	err := retry.Do(ctx, func(ctx context.Context) error {
		page, err := r.detailNav().Navigate(ctx, ref.URL)
		if err != nil {
			return err
		}
		defer page.Close()

		rec, err := r.Profile.Extractor.Extract(ctx, page)
		if err != nil {
			return err
		}
		raw = rec
		return nil
	})
	if err != nil {
		r.recordFailure(ref, err, result, log)
		return
	}

	result.Records = append(result.Records, r.Normalizer.Normalize(raw))
	result.Succeeded++
	r.observer().ListingSucceeded(r.Profile.Source)
	log.Debugf("extracted %s", ref.URL)
}

func (r *Runner) recordFailure(ref types.ListingRef, err error, result *types.RunResult, log utils.Logger) {
	result.Failed++

	var reason types.SkipReason
	var extr *ExtractionError
	switch {
	case errors.Is(err, context.Canceled):
		reason = types.SkipCanceled
	case errors.As(err, &extr):
		switch extr.Kind {
		case MissingField:
			reason = types.SkipMissingField
		case MalformedField:
			reason = types.SkipMalformedField
		default:
			reason = types.SkipStructureChanged
			result.StructureAlerts = append(result.StructureAlerts, ref.URL)
		}
	default:
		reason = types.SkipRetryExhausted
	}

	result.RecordSkip(reason)
	r.observer().ListingSkipped(r.Profile.Source, reason)
	log.Warnf("listing skipped (%s): %s: %v", reason, ref.URL, err)
}

func (r *Runner) detailNav() Navigator {
	if r.Detail != nil {
		return r.Detail
	}
	return r.Nav
}

func (r *Runner) observer() Observer {
	if r.Observer != nil {
		return r.Observer
	}
	return NopObserver
}

func (r *Runner) logger() utils.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return utils.NewLogger()
}
