// internal/pipeline/normalize.go
// Package pipeline cleans raw scraped values into export-ready records.
package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/realyield/auctionwatch/internal/utils"
	"github.com/realyield/auctionwatch/pkg/types"
)

// biddingWindow is how long Crexi auctions run when the API reports a start
// but no end.
const biddingWindow = 48 * time.Hour

// dateFormats lists the renderings observed across the marketplaces. Zoned
// formats keep their zone; the rest are taken as UTC.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	currencyRE   = regexp.MustCompile(`[^\d.,]`)
	yearRE       = regexp.MustCompile(`\d{4}`)
)

// Normalizer converts RawRecords into Records. It is total: a value that
// cannot be parsed degrades to the N/A sentinel or a nil field, with a log
// line carrying the raw value, and never fails the listing.
type Normalizer struct {
	log   utils.Logger
	title cases.Caser
}

func NewNormalizer(log utils.Logger) *Normalizer {
	if log == nil {
		log = utils.NewLogger()
	}
	return &Normalizer{
		log:   log,
		title: cases.Title(language.AmericanEnglish),
	}
}

// Normalize cleans one raw record.
func (n *Normalizer) Normalize(raw types.RawRecord) types.Record {
	rec := types.Record{
		PropertyName: orNA(cleanText(raw.PropertyName)),
		Address:      orNA(cleanText(raw.Address)),
		PropertyType: orNA(n.propertyType(raw.PropertyType)),
		Broker1:      orNA(cleanText(raw.Broker1)),
		Broker2:      orNA(cleanText(raw.Broker2)),
		Broker3:      orNA(cleanText(raw.Broker3)),
		BuildingSize: orNA(buildingSize(raw.BuildingSize)),
		PropertyURL:  strings.TrimSpace(raw.PropertyURL),
		Source:       raw.Source,
	}

	rec.BiddingStarts = n.parseTime("biddingStarts", raw.BiddingStarts, raw.PropertyURL)
	rec.BiddingEnds = n.parseTime("biddingEnds", raw.BiddingEnds, raw.PropertyURL)
	if rec.BiddingEnds == nil && rec.BiddingStarts != nil && raw.Source == types.SourceCrexi {
		end := rec.BiddingStarts.Add(biddingWindow)
		rec.BiddingEnds = &end
	}

	rec.StartingBid = n.parseCurrency("startingBid", raw.StartingBid, raw.PropertyURL)
	rec.YearBuilt = n.parseYear(raw.YearBuilt, raw.PropertyURL)
	return rec
}

func (n *Normalizer) propertyType(s string) string {
	s = cleanText(s)
	if s == "" {
		return ""
	}
	return n.title.String(strings.ToLower(s))
}

// parseTime tries each known format, defaulting to UTC for zoneless values.
func (n *Normalizer) parseTime(field, s, url string) *time.Time {
	s = cleanText(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	n.log.Warnf("unparseable %s %q at %s", field, s, url)
	return nil
}

// parseCurrency accepts plain numbers, US-grouped and European-grouped
// amounts, with or without a currency symbol.
func (n *Normalizer) parseCurrency(field, s, url string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	cleaned := currencyRE.ReplaceAllString(s, "")
	if cleaned == "" {
		n.log.Warnf("unparseable %s %q at %s", field, s, url)
		return nil
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case hasComma:
		// A single comma followed by at most two digits is a European
		// decimal separator; anything else groups thousands.
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = parts[0] + "." + parts[1]
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		n.log.Warnf("unparseable %s %q at %s", field, s, url)
		return nil
	}
	return &v
}

func (n *Normalizer) parseYear(s, url string) *int {
	s = cleanText(s)
	if s == "" || s == "0" {
		return nil
	}
	m := yearRE.FindString(s)
	if m == "" {
		n.log.Warnf("unparseable yearBuilt %q at %s", s, url)
		return nil
	}
	v, _ := strconv.Atoi(m)
	return &v
}

func buildingSize(s string) string {
	s = cleanText(s)
	if s == "0" {
		return ""
	}
	return s
}

func cleanText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

func orNA(s string) string {
	if s == "" {
		return types.NotAvailable
	}
	return s
}
