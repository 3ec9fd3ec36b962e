// internal/pipeline/normalize_test.go
package pipeline

import (
	"testing"
	"time"

	"github.com/realyield/auctionwatch/pkg/types"
)

func TestNormalizeCurrency(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name  string
		input string
		want  float64
		nilOK bool
	}{
		{name: "plain number", input: "1250000", want: 1250000},
		{name: "dollar sign and commas", input: "$1,250,000", want: 1250000},
		{name: "decimal amount", input: "$99,500.50", want: 99500.50},
		{name: "european decimal comma", input: "1500,75", want: 1500.75},
		{name: "european grouping", input: "1.250.000", nilOK: true},
		{name: "grouping commas only", input: "2,500,000", want: 2500000},
		{name: "zero", input: "0", want: 0},
		{name: "empty", input: "", nilOK: true},
		{name: "no digits", input: "TBD", nilOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := n.Normalize(types.RawRecord{StartingBid: tt.input, Source: types.SourceRMI})
			if tt.nilOK {
				if rec.StartingBid != nil {
					t.Errorf("StartingBid = %v, want nil", *rec.StartingBid)
				}
				return
			}
			if rec.StartingBid == nil {
				t.Fatalf("StartingBid = nil, want %v", tt.want)
			}
			if *rec.StartingBid != tt.want {
				t.Errorf("StartingBid = %v, want %v", *rec.StartingBid, tt.want)
			}
		})
	}
}

func TestNormalizeDates(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "rfc3339 utc", input: "2025-10-06T16:00:00Z", want: "2025-10-06T16:00:00Z"},
		{name: "zoneless iso defaults utc", input: "2025-10-06T16:00:00", want: "2025-10-06T16:00:00Z"},
		{name: "date only", input: "2025-10-06", want: "2025-10-06T00:00:00Z"},
		{name: "us slash", input: "10/6/2025", want: "2025-10-06T00:00:00Z"},
		{name: "long month", input: "October 6, 2025", want: "2025-10-06T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := n.Normalize(types.RawRecord{BiddingStarts: tt.input, Source: types.SourceLoopNet})
			if rec.BiddingStarts == nil {
				t.Fatalf("BiddingStarts = nil, want %s", tt.want)
			}
			if got := rec.BiddingStarts.Format(time.RFC3339); got != tt.want {
				t.Errorf("BiddingStarts = %s, want %s", got, tt.want)
			}
		})
	}

	rec := n.Normalize(types.RawRecord{BiddingStarts: "whenever", Source: types.SourceLoopNet})
	if rec.BiddingStarts != nil {
		t.Errorf("unparseable date should normalize to nil, got %v", rec.BiddingStarts)
	}
}

func TestNormalizeCrexiBiddingWindow(t *testing.T) {
	n := NewNormalizer(nil)

	rec := n.Normalize(types.RawRecord{
		BiddingStarts: "2025-10-06T16:00:00Z",
		Source:        types.SourceCrexi,
	})
	if rec.BiddingEnds == nil {
		t.Fatal("BiddingEnds = nil, want start + 48h")
	}
	want := time.Date(2025, 10, 8, 16, 0, 0, 0, time.UTC)
	if !rec.BiddingEnds.Equal(want) {
		t.Errorf("BiddingEnds = %v, want %v", rec.BiddingEnds, want)
	}

	// Only Crexi hides its auction end behind a fixed window.
	rec = n.Normalize(types.RawRecord{
		BiddingStarts: "2025-10-06T16:00:00Z",
		Source:        types.SourceLoopNet,
	})
	if rec.BiddingEnds != nil {
		t.Errorf("LoopNet BiddingEnds = %v, want nil", rec.BiddingEnds)
	}
}

func TestNormalizeSentinels(t *testing.T) {
	n := NewNormalizer(nil)

	rec := n.Normalize(types.RawRecord{
		PropertyName: "  Gateway   Plaza ",
		PropertyURL:  "https://example.com/p/1",
		Source:       types.SourceRMI,
	})

	if rec.PropertyName != "Gateway Plaza" {
		t.Errorf("PropertyName = %q, want collapsed whitespace", rec.PropertyName)
	}
	for field, got := range map[string]string{
		"Address":      rec.Address,
		"PropertyType": rec.PropertyType,
		"Broker1":      rec.Broker1,
		"Broker2":      rec.Broker2,
		"Broker3":      rec.Broker3,
		"BuildingSize": rec.BuildingSize,
	} {
		if got != types.NotAvailable {
			t.Errorf("%s = %q, want %q", field, got, types.NotAvailable)
		}
	}
	if rec.StartingBid != nil || rec.YearBuilt != nil || rec.BiddingStarts != nil || rec.BiddingEnds != nil {
		t.Error("unavailable numeric and temporal fields must be nil")
	}
}

func TestNormalizePropertyType(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		input string
		want  string
	}{
		{input: "RETAIL", want: "Retail"},
		{input: "mixed use", want: "Mixed Use"},
		{input: "Office", want: "Office"},
	}
	for _, tt := range tests {
		rec := n.Normalize(types.RawRecord{PropertyType: tt.input, Source: types.SourceCrexi})
		if rec.PropertyType != tt.want {
			t.Errorf("PropertyType(%q) = %q, want %q", tt.input, rec.PropertyType, tt.want)
		}
	}
}

func TestNormalizeYearBuilt(t *testing.T) {
	n := NewNormalizer(nil)

	rec := n.Normalize(types.RawRecord{YearBuilt: "1987", Source: types.SourceRMI})
	if rec.YearBuilt == nil || *rec.YearBuilt != 1987 {
		t.Errorf("YearBuilt = %v, want 1987", rec.YearBuilt)
	}

	rec = n.Normalize(types.RawRecord{YearBuilt: "Built in 1969", Source: types.SourceLoopNet})
	if rec.YearBuilt == nil || *rec.YearBuilt != 1969 {
		t.Errorf("YearBuilt = %v, want 1969", rec.YearBuilt)
	}

	for _, bad := range []string{"", "0", "unknown"} {
		rec = n.Normalize(types.RawRecord{YearBuilt: bad, Source: types.SourceRMI})
		if rec.YearBuilt != nil {
			t.Errorf("YearBuilt(%q) = %v, want nil", bad, *rec.YearBuilt)
		}
	}
}
