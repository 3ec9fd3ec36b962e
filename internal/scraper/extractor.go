// internal/scraper/extractor.go
package scraper

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/realyield/auctionwatch/internal/browser"
	"github.com/realyield/auctionwatch/pkg/types"
)

// Extractor turns one listing detail page into a RawRecord. Implementations
// are pure over the page content: same page, same record. Failures are
// classified ExtractionErrors so the retry policy and the skip tally can
// tell a transient hiccup from a permanent structural mismatch.
type Extractor interface {
	Source() types.Source
	Extract(ctx context.Context, page ListingPage) (types.RawRecord, error)
}

// PayloadSource is satisfied by pages opened with network capture attached.
// Extractors that prefer structured API data over rendered HTML check for it
// and fall back to the DOM when capture came up empty.
type PayloadSource interface {
	Payloads(ctx context.Context, window, settle time.Duration) []browser.Payload
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// cleanText trims and collapses internal whitespace.
func cleanText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// firstText returns the cleaned text of the first node matching selector.
func firstText(doc *goquery.Document, selector string) string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	return cleanText(sel.Text())
}

// labelSibling scans spans for one whose text equals label and returns the
// cleaned text of the span immediately following it. Marketplace detail
// tables render label/value as adjacent spans.
func labelSibling(doc *goquery.Document, label string) string {
	var value string
	doc.Find("span").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.EqualFold(cleanText(sel.Text()), label) {
			return true
		}
		next := sel.NextFiltered("span")
		if next.Length() == 0 {
			next = sel.Next()
		}
		if next.Length() > 0 {
			value = cleanText(next.Text())
			return false
		}
		return true
	})
	return value
}

// brokerNames collects up to three broker names from the first nodes
// matching selector.
func brokerNames(doc *goquery.Document, selector string) [3]string {
	var names [3]string
	i := 0
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		name := cleanText(sel.Text())
		if name == "" {
			return true
		}
		names[i] = name
		i++
		return i < len(names)
	})
	return names
}

// missingField builds the skip-this-listing error for a required field that
// matched nothing.
func missingField(field, url string) error {
	return &ExtractionError{Kind: MissingField, Field: field, URL: url}
}

// structureChanged builds the layout-drift error for an absent structural
// anchor.
func structureChanged(anchor, url string) error {
	return &ExtractionError{Kind: StructureChanged, Field: anchor, URL: url}
}
