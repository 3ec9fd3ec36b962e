// internal/scraper/crexi.go
package scraper

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/realyield/auctionwatch/internal/browser"
	"github.com/realyield/auctionwatch/pkg/types"
)

// Crexi renders detail pages from three JSON APIs the front end calls while
// loading: /assets/{id}, /auctions/{id} and /assets/{id}/brokers. The
// extractor prefers those intercepted payloads and falls back to the
// rendered DOM when capture came up empty.

const (
	crexiStartURL     = "https://www.crexi.com/properties/Auctions?pageSize=60"
	crexiLinkSelector = "a.cui-card-cover-link"
	crexiNextSelector = "a[data-cy='nextPage']"

	crexiAnchorSelector  = "h1"
	crexiAddressSelector = "div.property-info-container.addresses h2.text"
	crexiDateSelector    = "span.date-formatted"
	crexiBrokerSelector  = "li div.name"
)

// CrexiCapture matches the property APIs called during detail-page render.
var CrexiCapture = browser.Matcher{
	URLContains: []string{"api.crexi.com"},
	Method:      "GET",
}

// apiString tolerates fields the APIs serve inconsistently as JSON string,
// number or null.
type apiString string

func (s *apiString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = apiString(v)
		return nil
	}
	*s = apiString(b)
	return nil
}

type crexiDetail struct {
	PropertyName     apiString `json:"propertyName"`
	PropertyAddress  apiString `json:"propertyAddress"`
	PropertyType     apiString `json:"propertyType"`
	AuctionStartsOn  apiString `json:"auctionStartsOn"`
	AuctionEndsOn    apiString `json:"auctionEndsOn"`
	StartingBid      apiString `json:"startingBid"`
	CurrentBidAmount apiString `json:"currentBidAmount"`
	AuctionStatus    apiString `json:"auctionStatus"`
	YearBuilt        apiString `json:"yearBuilt"`
	BuildingSize     apiString `json:"buildingSize"`
}

type crexiBroker struct {
	FirstName apiString `json:"firstName"`
	LastName  apiString `json:"lastName"`
	Brokerage struct {
		Name apiString `json:"name"`
	} `json:"brokerage"`
}

func (b crexiBroker) display() string {
	return cleanText(string(b.FirstName) + " " + string(b.LastName))
}

// CrexiExtractor extracts one Crexi auction detail page.
type CrexiExtractor struct {
	// CaptureWindow bounds how long to wait for the page's API calls;
	// SettleAfter is the quiet period that ends the wait early.
	CaptureWindow time.Duration
	SettleAfter   time.Duration
}

func (e *CrexiExtractor) Source() types.Source { return types.SourceCrexi }

func (e *CrexiExtractor) Extract(ctx context.Context, page ListingPage) (types.RawRecord, error) {
	if ps, ok := page.(PayloadSource); ok {
		window := e.CaptureWindow
		if window <= 0 {
			window = 15 * time.Second
		}
		settle := e.SettleAfter
		if settle <= 0 {
			settle = 2 * time.Second
		}
		if rec, ok := crexiFromAPI(page.URL(), ps.Payloads(ctx, window, settle)); ok {
			return rec, nil
		}
	}
	return e.extractDOM(ctx, page)
}

// crexiFromAPI assembles a record from intercepted payloads. Asset fields
// override auction fields where both are present. Reports ok=false when no
// usable payload arrived, signalling the DOM fallback.
func crexiFromAPI(pageURL string, payloads []browser.Payload) (types.RawRecord, bool) {
	var auction, asset *crexiDetail
	var brokers []crexiBroker

	for _, p := range payloads {
		switch classifyCrexiPayload(p.URL) {
		case "auction":
			var d crexiDetail
			if json.Unmarshal(p.Body, &d) == nil {
				auction = &d
			}
		case "asset":
			var d crexiDetail
			if json.Unmarshal(p.Body, &d) == nil {
				asset = &d
			}
		case "brokers":
			var bs []crexiBroker
			if json.Unmarshal(p.Body, &bs) == nil {
				brokers = bs
			}
		}
	}

	if auction == nil && asset == nil {
		return types.RawRecord{}, false
	}
	merged := crexiDetail{}
	if auction != nil {
		merged = *auction
	}
	if asset != nil {
		overlay(&merged, asset)
	}
	if merged.PropertyName == "" {
		return types.RawRecord{}, false
	}

	rec := types.RawRecord{
		PropertyName:  cleanText(string(merged.PropertyName)),
		Address:       cleanText(string(merged.PropertyAddress)),
		BiddingStarts: string(merged.AuctionStartsOn),
		BiddingEnds:   string(merged.AuctionEndsOn),
		StartingBid:   string(merged.StartingBid),
		PropertyType:  string(merged.PropertyType),
		YearBuilt:     string(merged.YearBuilt),
		BuildingSize:  string(merged.BuildingSize),
		PropertyURL:   pageURL,
		Source:        types.SourceCrexi,
		CurrentBid:    string(merged.CurrentBidAmount),
		AuctionStatus: string(merged.AuctionStatus),
	}
	names := []*string{&rec.Broker1, &rec.Broker2, &rec.Broker3}
	for i, b := range brokers {
		if i >= len(names) {
			break
		}
		*names[i] = b.display()
	}
	return rec, true
}

func classifyCrexiPayload(url string) string {
	switch {
	case strings.Contains(url, "/assets/") && strings.Contains(url, "/brokers"):
		return "brokers"
	case strings.Contains(url, "/assets/"):
		return "asset"
	case strings.Contains(url, "/auctions/"):
		return "auction"
	default:
		return ""
	}
}

func overlay(dst, src *crexiDetail) {
	fields := [][2]*apiString{
		{&dst.PropertyName, &src.PropertyName},
		{&dst.PropertyAddress, &src.PropertyAddress},
		{&dst.PropertyType, &src.PropertyType},
		{&dst.AuctionStartsOn, &src.AuctionStartsOn},
		{&dst.AuctionEndsOn, &src.AuctionEndsOn},
		{&dst.StartingBid, &src.StartingBid},
		{&dst.CurrentBidAmount, &src.CurrentBidAmount},
		{&dst.AuctionStatus, &src.AuctionStatus},
		{&dst.YearBuilt, &src.YearBuilt},
		{&dst.BuildingSize, &src.BuildingSize},
	}
	for _, f := range fields {
		if *f[1] != "" {
			*f[0] = *f[1]
		}
	}
}

// extractDOM reads the rendered detail page directly.
func (e *CrexiExtractor) extractDOM(ctx context.Context, page ListingPage) (types.RawRecord, error) {
	doc, err := page.Document(ctx)
	if err != nil {
		return types.RawRecord{}, err
	}

	if doc.Find(crexiAnchorSelector).Length() == 0 {
		return types.RawRecord{}, structureChanged(crexiAnchorSelector, page.URL())
	}

	name := firstText(doc, crexiAnchorSelector)
	if name == "" {
		return types.RawRecord{}, missingField("propertyName", page.URL())
	}

	brokers := brokerNames(doc, crexiBrokerSelector)
	return types.RawRecord{
		PropertyName:  name,
		Address:       firstText(doc, crexiAddressSelector),
		BiddingStarts: firstText(doc, crexiDateSelector),
		StartingBid:   crexiDetailValue(doc, "Starting Bid"),
		PropertyType:  crexiDetailValue(doc, "Property Type"),
		YearBuilt:     crexiDetailValue(doc, "Year Built"),
		Broker1:       brokers[0],
		Broker2:       brokers[1],
		Broker3:       brokers[2],
		BuildingSize:  crexiDetailValue(doc, "Square Footage"),
		PropertyURL:   page.URL(),
		Source:        types.SourceCrexi,
	}, nil
}

// crexiDetailValue reads the value span paired with a detail-name label.
func crexiDetailValue(doc *goquery.Document, label string) string {
	var value string
	doc.Find("span.detail-name").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.EqualFold(cleanText(sel.Text()), label) {
			return true
		}
		if v := sel.NextAllFiltered("span.detail-value").First(); v.Length() > 0 {
			value = cleanText(v.Text())
			return false
		}
		return true
	})
	return value
}
