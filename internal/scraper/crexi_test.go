// internal/scraper/crexi_test.go
package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/realyield/auctionwatch/internal/browser"
	"github.com/realyield/auctionwatch/pkg/types"
)

func TestCrexiFromAPI(t *testing.T) {
	payloads := []browser.Payload{
		{
			URL: "https://api.crexi.com/auctions/12345",
			Body: []byte(`{
				"propertyName": "Old Name",
				"auctionStartsOn": "2025-10-06T16:00:00Z",
				"auctionEndsOn": "2025-10-08T16:00:00Z",
				"startingBid": 1250000,
				"currentBidAmount": 1300000,
				"auctionStatus": "Live"
			}`),
		},
		{
			URL: "https://api.crexi.com/assets/12345",
			Body: []byte(`{
				"propertyName": "Gateway Plaza",
				"propertyAddress": "100 Main St, Rochester, NY 14624",
				"propertyType": "Retail",
				"yearBuilt": 1987,
				"buildingSize": 43750
			}`),
		},
		{
			URL: "https://api.crexi.com/assets/12345/brokers",
			Body: []byte(`[
				{"firstName": "Dana", "lastName": "Reyes", "brokerage": {"name": "Reyes CRE"}},
				{"firstName": "Sam", "lastName": "Okafor"}
			]`),
		},
	}

	rec, ok := crexiFromAPI("https://www.crexi.com/properties/12345/gateway-plaza", payloads)
	if !ok {
		t.Fatal("crexiFromAPI reported no usable payloads")
	}
	if rec.PropertyName != "Gateway Plaza" {
		t.Errorf("PropertyName = %q: asset data must override auction data", rec.PropertyName)
	}
	if rec.Address != "100 Main St, Rochester, NY 14624" {
		t.Errorf("Address = %q", rec.Address)
	}
	if rec.BiddingStarts != "2025-10-06T16:00:00Z" || rec.BiddingEnds != "2025-10-08T16:00:00Z" {
		t.Errorf("bidding window = %q..%q", rec.BiddingStarts, rec.BiddingEnds)
	}
	if rec.StartingBid != "1250000" {
		t.Errorf("StartingBid = %q, want numeric payloads stringified", rec.StartingBid)
	}
	if rec.YearBuilt != "1987" || rec.BuildingSize != "43750" {
		t.Errorf("YearBuilt = %q, BuildingSize = %q", rec.YearBuilt, rec.BuildingSize)
	}
	if rec.Broker1 != "Dana Reyes" || rec.Broker2 != "Sam Okafor" || rec.Broker3 != "" {
		t.Errorf("brokers = %q, %q, %q", rec.Broker1, rec.Broker2, rec.Broker3)
	}
	if rec.AuctionStatus != "Live" || rec.CurrentBid != "1300000" {
		t.Errorf("diagnostics = %q, %q", rec.AuctionStatus, rec.CurrentBid)
	}
	if rec.Source != types.SourceCrexi {
		t.Errorf("Source = %q", rec.Source)
	}
}

func TestCrexiFromAPINoPayloads(t *testing.T) {
	if _, ok := crexiFromAPI("https://www.crexi.com/properties/1/x", nil); ok {
		t.Error("expected ok=false with no payloads")
	}
	// Unrelated traffic is not usable either.
	junk := []browser.Payload{{URL: "https://api.crexi.com/search", Body: []byte(`{}`)}}
	if _, ok := crexiFromAPI("https://www.crexi.com/properties/1/x", junk); ok {
		t.Error("expected ok=false with only unmatched payloads")
	}
}

func TestCrexiExtractDOMFallback(t *testing.T) {
	page := &fakePage{
		url: "https://www.crexi.com/properties/99/elm-tower",
		html: func() string {
			return `
			<h1>Elm Tower</h1>
			<div class="property-info-container addresses"><h2 class="text">55 Elm St, Buffalo, NY 14201</h2></div>
			<span class="date-formatted">10/6/2025</span>
			<span class="detail-name">Property Type</span><span class="detail-value">Office</span>
			<span class="detail-name">Year Built</span><span class="detail-value">1979</span>
			<span class="detail-name">Starting Bid</span><span class="detail-value">$450,000</span>
			<span class="detail-name">Square Footage</span><span class="detail-value">12,000</span>
			<ul>
				<li><div class="name">Dana Reyes</div></li>
				<li><div class="name">Sam Okafor</div></li>
			</ul>`
		},
	}

	e := &CrexiExtractor{}
	rec, err := e.Extract(context.Background(), page)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if rec.PropertyName != "Elm Tower" {
		t.Errorf("PropertyName = %q", rec.PropertyName)
	}
	if rec.Address != "55 Elm St, Buffalo, NY 14201" {
		t.Errorf("Address = %q", rec.Address)
	}
	if rec.StartingBid != "$450,000" || rec.PropertyType != "Office" || rec.YearBuilt != "1979" {
		t.Errorf("details = %q, %q, %q", rec.StartingBid, rec.PropertyType, rec.YearBuilt)
	}
	if rec.BuildingSize != "12,000" {
		t.Errorf("BuildingSize = %q", rec.BuildingSize)
	}
	if rec.BiddingStarts != "10/6/2025" {
		t.Errorf("BiddingStarts = %q", rec.BiddingStarts)
	}
	if rec.Broker1 != "Dana Reyes" || rec.Broker2 != "Sam Okafor" {
		t.Errorf("brokers = %q, %q", rec.Broker1, rec.Broker2)
	}
}

func TestCrexiExtractStructureChanged(t *testing.T) {
	page := &fakePage{
		url:  "https://www.crexi.com/properties/99/x",
		html: func() string { return `<div class="totally-new-layout"></div>` },
	}
	_, err := (&CrexiExtractor{}).Extract(context.Background(), page)

	var extr *ExtractionError
	if !errors.As(err, &extr) || extr.Kind != StructureChanged {
		t.Fatalf("err = %v, want StructureChanged", err)
	}
	if isTransient(err) {
		t.Error("structure changes must be permanent, not retried")
	}
}

func TestCrexiExtractMissingName(t *testing.T) {
	page := &fakePage{
		url:  "https://www.crexi.com/properties/99/x",
		html: func() string { return `<h1>   </h1>` },
	}
	_, err := (&CrexiExtractor{}).Extract(context.Background(), page)

	var extr *ExtractionError
	if !errors.As(err, &extr) || extr.Kind != MissingField {
		t.Fatalf("err = %v, want MissingField", err)
	}
}
