// internal/scraper/rmi.go
package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/realyield/auctionwatch/pkg/types"
)

// RMI Marketplace renders everything server-side; the search index appends
// result cards in place, so discovery uses the incremental-load walk.

const (
	rmiStartURL         = "https://rimarketplace.com/commercial/search/lt=auction"
	rmiLinkSelector     = ".row .image a"
	rmiLoadMoreSelector = ".pagination a[aria-label='Next']"

	rmiAnchorSelector  = ".prty-head"
	rmiNameSelector    = ".table.prty-head > h1"
	rmiAddressSelector = "#propertyAddress"
	rmiAssetSelector   = ".asset_wrap.asset-tablee ul.row li"
	rmiBrokerSelector  = "li div.name"
)

// RMIExtractor extracts one RMI auction detail page.
type RMIExtractor struct{}

func (e *RMIExtractor) Source() types.Source { return types.SourceRMI }

func (e *RMIExtractor) Extract(ctx context.Context, page ListingPage) (types.RawRecord, error) {
	doc, err := page.Document(ctx)
	if err != nil {
		return types.RawRecord{}, err
	}

	if doc.Find(rmiAnchorSelector).Length() == 0 {
		return types.RawRecord{}, structureChanged(rmiAnchorSelector, page.URL())
	}

	name := firstText(doc, rmiNameSelector)
	if name == "" {
		return types.RawRecord{}, missingField("propertyName", page.URL())
	}

	brokers := brokerNames(doc, rmiBrokerSelector)
	return types.RawRecord{
		PropertyName:  name,
		Address:       firstText(doc, rmiAddressSelector),
		BiddingStarts: labelSibling(doc, "Bidding Starts"),
		BiddingEnds:   labelSibling(doc, "Bidding Ends"),
		StartingBid:   labelSibling(doc, "Starting Bid"),
		PropertyType:  rmiAssetValue(doc, "Property Type"),
		YearBuilt:     rmiAssetValue(doc, "Year Built"),
		Broker1:       brokers[0],
		Broker2:       brokers[1],
		Broker3:       brokers[2],
		BuildingSize:  labelSibling(doc, "Square Feet"),
		PropertyURL:   page.URL(),
		Source:        types.SourceRMI,
	}, nil
}

// rmiAssetValue reads the asset table, where label and value occupy
// consecutive list items.
func rmiAssetValue(doc *goquery.Document, label string) string {
	var value string
	doc.Find(rmiAssetSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.EqualFold(cleanText(sel.Find("span").First().Text()), label) {
			return true
		}
		if v := sel.Next().Find("span").First(); v.Length() > 0 {
			value = cleanText(v.Text())
			return false
		}
		return true
	})
	return value
}
