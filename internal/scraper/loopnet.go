// internal/scraper/loopnet.go
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/realyield/auctionwatch/pkg/types"
)

// LoopNet embeds its data in the page rather than behind an API: index pages
// carry a listings-schema JSON script, detail pages carry Angular state
// constants, a JSON-LD listing block and a handful of facts only present as
// prose. The extractor layers those, most structured first.

const (
	loopnetStartURL = "https://www.loopnet.com/search/commercial-real-estate/usa/auctions/"

	loopnetSchemaSelector = "script#listings-schema"
	loopnetPagingSelector = ".total-results-paging-digits"
)

var (
	netDateRE      = regexp.MustCompile(`/Date\((\d+)(?:[+-]\d{4})?\)/`)
	pagingDigitsRE = regexp.MustCompile(`(\d+)-(\d+)\s+of\s+(\d+)`)
	addressRE      = regexp.MustCompile(`(\d+\s+[^,]+,\s*[^,]+,\s*[A-Z]{2}\s+\d+)`)
	squareFootRE   = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*)\s*square\s*foot`)
	floorSizeRE    = regexp.MustCompile(`"Floor Size"[^}]*"value":\s*"([^"]+)"`)
	sizeDigitsRE   = regexp.MustCompile(`\d{1,3}(?:,\d{3})*`)
	builtInRE      = regexp.MustCompile(`(?i)Built\s+in\s+(\d{4})`)
	yearRE         = regexp.MustCompile(`\d{4}`)
)

// LoopNetPaginator walks the numbered index pages, reading listing URLs out
// of each page's listings-schema JSON. The walk ends at the page count the
// first page advertises, or earlier when a page yields no listings.
type LoopNetPaginator struct {
	MaxPages int
}

func (p *LoopNetPaginator) Run(ctx context.Context, nav Navigator, startURL string, emit emitFunc) (StopReason, error) {
	totalPages := 1
	for pageNum := 1; ; pageNum++ {
		if ctx.Err() != nil {
			return StopCanceled, ctx.Err()
		}

		pageURL := startURL
		if pageNum > 1 {
			pageURL = fmt.Sprintf("%s%d/", startURL, pageNum)
		}
		page, err := nav.Navigate(ctx, pageURL)
		if err != nil {
			return StopExhausted, err
		}
		doc, err := page.Document(ctx)
		page.Close()
		if err != nil {
			return StopExhausted, err
		}

		urls := loopnetSchemaURLs(doc)
		if len(urls) == 0 {
			return StopExhausted, nil
		}
		for _, u := range urls {
			emit(u, pageNum)
		}

		if pageNum == 1 {
			totalPages = loopnetTotalPages(doc)
		}
		if pageNum >= totalPages {
			return StopExhausted, nil
		}
		if p.MaxPages > 0 && pageNum >= p.MaxPages {
			return StopMaxPages, nil
		}
	}
}

type loopnetSchema struct {
	MainEntity struct {
		ItemListElement []struct {
			URL string `json:"url"`
		} `json:"itemListElement"`
	} `json:"mainEntity"`
}

func loopnetSchemaURLs(doc *goquery.Document) []string {
	raw := doc.Find(loopnetSchemaSelector).First().Text()
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var schema loopnetSchema
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return nil
	}
	var urls []string
	for _, item := range schema.MainEntity.ItemListElement {
		if item.URL != "" {
			urls = append(urls, item.URL)
		}
	}
	return urls
}

// loopnetTotalPages derives the page count from the "1-20 of 150" paging
// text, falling back to the highest numbered page link.
func loopnetTotalPages(doc *goquery.Document) int {
	if m := pagingDigitsRE.FindStringSubmatch(firstText(doc, loopnetPagingSelector)); m != nil {
		first, _ := strconv.Atoi(m[1])
		last, _ := strconv.Atoi(m[2])
		total, _ := strconv.Atoi(m[3])
		perPage := last - first + 1
		if perPage > 0 && total > 0 {
			return (total + perPage - 1) / perPage
		}
	}

	maxPage := 1
	doc.Find("a[data-pg]").Each(func(_ int, sel *goquery.Selection) {
		if v, ok := sel.Attr("data-pg"); ok {
			if n, err := strconv.Atoi(v); err == nil && n > maxPage {
				maxPage = n
			}
		}
	})
	return maxPage
}

type loopnetAuctionState struct {
	Auction struct {
		StartingBid         apiString `json:"StartingBid"`
		CurrentBid          apiString `json:"CurrentBid"`
		CurrentBidIncrement apiString `json:"CurrentBidIncrement"`
		StartTime           string    `json:"StartTime"`
		EndTime             string    `json:"EndTime"`
	} `json:"Auction"`
}

type loopnetProfileState struct {
	CategoryTitle string `json:"CategoryTitle"`
}

type loopnetListingLD struct {
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Provider    []struct {
		Type string `json:"@type"`
		Name string `json:"name"`
	} `json:"provider"`
}

// LoopNetExtractor extracts one LoopNet auction detail page.
type LoopNetExtractor struct{}

func (e *LoopNetExtractor) Source() types.Source { return types.SourceLoopNet }

func (e *LoopNetExtractor) Extract(ctx context.Context, page ListingPage) (types.RawRecord, error) {
	doc, err := page.Document(ctx)
	if err != nil {
		return types.RawRecord{}, err
	}
	html, err := doc.Html()
	if err != nil {
		return types.RawRecord{}, err
	}
	lower := strings.ToLower(html)
	if !strings.Contains(lower, "auction") && !strings.Contains(lower, "bid") {
		return types.RawRecord{}, structureChanged("auction content", page.URL())
	}

	rec := types.RawRecord{PropertyURL: page.URL(), Source: types.SourceLoopNet}

	// Angular state constants carry the bid schedule and amounts.
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, "auctionBannerState") {
			return true
		}
		raw := angularConstant(text, "auctionBannerState")
		if raw == nil {
			return true
		}
		var state loopnetAuctionState
		if json.Unmarshal(raw, &state) != nil {
			return true
		}
		rec.StartingBid = string(state.Auction.StartingBid)
		rec.CurrentBid = string(state.Auction.CurrentBid)
		rec.BiddingStarts = parseNetDate(state.Auction.StartTime)
		rec.BiddingEnds = parseNetDate(state.Auction.EndTime)
		return false
	})

	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, "listingProfileState") {
			return true
		}
		raw := angularConstant(text, "listingProfileState")
		if raw == nil {
			return false
		}
		var state loopnetProfileState
		if json.Unmarshal(raw, &state) == nil {
			rec.PropertyType = state.CategoryTitle
		}
		return false
	})

	// JSON-LD names the property, hides the address in the description and
	// lists the agents.
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var ld loopnetListingLD
		if json.Unmarshal([]byte(sel.Text()), &ld) != nil || ld.Type != "RealEstateListing" {
			return true
		}
		rec.PropertyName = cleanText(ld.Name)
		if m := addressRE.FindStringSubmatch(ld.Description); m != nil {
			rec.Address = m[1]
		}
		names := []*string{&rec.Broker1, &rec.Broker2, &rec.Broker3}
		i := 0
		for _, p := range ld.Provider {
			if p.Type != "RealEstateAgent" || cleanText(p.Name) == "" || i >= len(names) {
				continue
			}
			*names[i] = cleanText(p.Name)
			i++
		}
		return false
	})

	rec.BuildingSize = loopnetBuildingSize(html)
	rec.YearBuilt = loopnetYearBuilt(doc, html)

	if rec.PropertyName == "" {
		rec.PropertyName = cleanText(doc.Find("title").First().Text())
	}
	if rec.Address == "" {
		if m := addressRE.FindStringSubmatch(doc.Find("title").First().Text()); m != nil {
			rec.Address = m[1]
		}
	}
	if rec.PropertyName == "" && rec.Address == "" {
		return types.RawRecord{}, missingField("propertyName", page.URL())
	}
	return rec, nil
}

func loopnetBuildingSize(html string) string {
	if m := squareFootRE.FindStringSubmatch(html); m != nil {
		return strings.ReplaceAll(m[1], ",", "")
	}
	if m := floorSizeRE.FindStringSubmatch(html); m != nil {
		if n := sizeDigitsRE.FindString(m[1]); n != "" {
			return strings.ReplaceAll(n, ",", "")
		}
	}
	return ""
}

func loopnetYearBuilt(doc *goquery.Document, html string) string {
	if m := builtInRE.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	year := ""
	doc.Find("td[data-fact-type='YearBuiltRenovated'], td[data-fact-type='YearBuilt']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		// Renovated years follow a slash; the build year comes first.
		text := strings.SplitN(cleanText(sel.Text()), "/", 2)[0]
		if m := yearRE.FindString(text); m != "" {
			year = m
			return false
		}
		return true
	})
	return year
}

// angularConstant pulls the JSON object bound to a named Angular constant
// out of inline script text by matching braces.
func angularConstant(script, name string) []byte {
	idx := strings.Index(script, `"`+name+`"`)
	if idx < 0 {
		return nil
	}
	start := strings.Index(script[idx:], "{")
	if start < 0 {
		return nil
	}
	start += idx
	depth := 0
	for i := start; i < len(script); i++ {
		switch script[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(script[start : i+1])
			}
		}
	}
	return nil
}

// parseNetDate converts the .NET wire format /Date(1758556800000-0400)/ to
// RFC 3339 in UTC.
func parseNetDate(s string) string {
	m := netDateRE.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
