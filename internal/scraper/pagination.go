// internal/scraper/pagination.go
package scraper

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ListingPage is the slice of browser.Page the pagination and extraction
// layers need. Tests substitute fakes.
type ListingPage interface {
	URL() string
	Document(ctx context.Context) (*goquery.Document, error)
	Click(ctx context.Context, selector string) error
	Close()
}

// Navigator opens listing pages. browser.Session satisfies it through an
// adapter; tests fake it.
type Navigator interface {
	Navigate(ctx context.Context, url string) (ListingPage, error)
}

// StopReason records why pagination terminated. Each cause is distinct and
// observable for diagnostics.
type StopReason string

const (
	StopExhausted StopReason = "exhausted"
	StopMaxPages  StopReason = "max_pages"
	StopStagnated StopReason = "stagnated"
	StopCanceled  StopReason = "canceled"
)

// emitFunc receives each discovered listing URL with the 1-based index page
// it appeared on.
type emitFunc func(listingURL string, page int)

// Paginator walks a listing index and yields listing-detail URLs. The
// sequence restarts from page 1 on every run; there is no resumable cursor.
type Paginator interface {
	Run(ctx context.Context, nav Navigator, startURL string, emit emitFunc) (StopReason, error)
}

// IndexPaginator follows an explicit next-page control until it disappears,
// is disabled, or the page cap is reached.
type IndexPaginator struct {
	// LinkSelector matches anchors pointing at listing-detail pages.
	LinkSelector string
	// NextSelector matches the next-page control.
	NextSelector string
	// MaxPages caps the number of index pages visited; 0 means unbounded.
	MaxPages int
}

func (p *IndexPaginator) Run(ctx context.Context, nav Navigator, startURL string, emit emitFunc) (StopReason, error) {
	current := startURL
	for pageNum := 1; ; pageNum++ {
		if ctx.Err() != nil {
			return StopCanceled, ctx.Err()
		}

		page, err := nav.Navigate(ctx, current)
		if err != nil {
			return StopExhausted, err
		}
		doc, err := page.Document(ctx)
		if err != nil {
			page.Close()
			return StopExhausted, err
		}

		for _, link := range collectLinks(doc, p.LinkSelector, current) {
			emit(link, pageNum)
		}

		next := nextPageURL(doc, p.NextSelector, current)
		page.Close()

		if next == "" {
			return StopExhausted, nil
		}
		if p.MaxPages > 0 && pageNum >= p.MaxPages {
			return StopMaxPages, nil
		}
		current = next
	}
}

// LoadMorePaginator triggers a load-more control and polls for DOM growth.
// Pages that never terminate loading are guarded by the stagnation
// threshold: after that many consecutive polls with no new references the
// walk stops.
type LoadMorePaginator struct {
	LinkSelector     string
	LoadMoreSelector string
	// StagnationThreshold is the number of consecutive growth-free polls
	// tolerated before stopping.
	StagnationThreshold int
	PollInterval        time.Duration
	// MaxRounds caps load-more activations; 0 means unbounded.
	MaxRounds int
}

func (p *LoadMorePaginator) Run(ctx context.Context, nav Navigator, startURL string, emit emitFunc) (StopReason, error) {
	threshold := p.StagnationThreshold
	if threshold <= 0 {
		threshold = 3
	}

	page, err := nav.Navigate(ctx, startURL)
	if err != nil {
		return StopExhausted, err
	}
	defer page.Close()

	seen := make(map[string]bool)
	stagnant := 0

	for round := 1; ; round++ {
		if ctx.Err() != nil {
			return StopCanceled, ctx.Err()
		}

		doc, err := page.Document(ctx)
		if err != nil {
			return StopExhausted, err
		}

		grew := false
		for _, link := range collectLinks(doc, p.LinkSelector, startURL) {
			if !seen[link] {
				seen[link] = true
				grew = true
				emit(link, round)
			}
		}

		if grew {
			stagnant = 0
		} else {
			stagnant++
			if stagnant >= threshold {
				return StopStagnated, nil
			}
		}

		if p.MaxRounds > 0 && round >= p.MaxRounds {
			return StopMaxPages, nil
		}

		if err := page.Click(ctx, p.LoadMoreSelector); err != nil {
			// Control gone: the listing set is complete.
			return StopExhausted, nil
		}

		interval := p.PollInterval
		if interval <= 0 {
			interval = 2 * time.Second
		}
		select {
		case <-ctx.Done():
			return StopCanceled, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// collectLinks extracts absolute listing URLs matched by selector.
func collectLinks(doc *goquery.Document, selector, base string) []string {
	var links []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || href == "#" {
			return
		}
		if abs := resolveURL(base, href); abs != "" {
			links = append(links, abs)
		}
	})
	return links
}

// nextPageURL returns the absolute URL of an enabled next-page control, or
// "" when pagination is naturally exhausted.
func nextPageURL(doc *goquery.Document, selector, base string) string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	if _, disabled := sel.Attr("disabled"); disabled {
		return ""
	}
	if sel.HasClass("disabled") {
		return ""
	}
	href, ok := sel.Attr("href")
	if !ok || href == "" || href == "#" {
		return ""
	}
	return resolveURL(base, href)
}

func resolveURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := bu.Parse(href)
	if err != nil {
		return ""
	}
	return ref.String()
}
