// pkg/types/types.go
// Package types defines the shared data model for auctionwatch: the
// marketplace sources, the raw and normalized listing records, and the
// per-run result tally.
package types

import (
	"fmt"
	"strings"
	"time"
)

// NotAvailable is the explicit sentinel written for any field a source did
// not provide. Exported records never contain a bare empty string.
const NotAvailable = "N/A"

// Source identifies one of the supported auction marketplaces.
type Source string

const (
	SourceCrexi   Source = "crexi"
	SourceLoopNet Source = "loopnet"
	SourceRMI     Source = "rmi"
)

// ParseSource converts a user-supplied source name to a Source.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceCrexi:
		return SourceCrexi, nil
	case SourceLoopNet:
		return SourceLoopNet, nil
	case SourceRMI:
		return SourceRMI, nil
	default:
		return "", fmt.Errorf("unknown source %q (expected crexi, loopnet or rmi)", s)
	}
}

// String implements fmt.Stringer.
func (s Source) String() string { return string(s) }

// ListingRef is an opaque handle to one listing discovered during
// pagination. It is created on discovery and consumed exactly once by an
// extractor.
type ListingRef struct {
	URL    string
	Source Source
	// Page is the 1-based index page the reference was discovered on.
	Page int
}

// RawRecord holds the as-scraped field values for one listing before
// cleaning. All fields are free-form strings; empty means the site did not
// expose the value. Fields beyond the exported schema (CurrentBid,
// AuctionStatus) are retained for diagnostics only.
type RawRecord struct {
	PropertyName  string
	Address       string
	BiddingStarts string
	BiddingEnds   string
	StartingBid   string
	PropertyType  string
	YearBuilt     string
	Broker1       string
	Broker2       string
	Broker3       string
	BuildingSize  string
	PropertyURL   string
	Source        Source

	CurrentBid    string
	AuctionStatus string
}

// Record is the normalized, export-ready representation of one listing.
// String fields are never empty: unavailable values carry the NotAvailable
// sentinel. Nullable numeric and temporal fields are nil when unavailable.
type Record struct {
	PropertyName  string
	Address       string
	BiddingStarts *time.Time
	BiddingEnds   *time.Time
	StartingBid   *float64
	PropertyType  string
	YearBuilt     *int
	Broker1       string
	Broker2       string
	Broker3       string
	BuildingSize  string
	PropertyURL   string
	Source        Source
}

// SkipReason labels why a listing was skipped without aborting the run.
type SkipReason string

const (
	SkipMissingField     SkipReason = "missing_field"
	SkipMalformedField   SkipReason = "malformed_field"
	SkipStructureChanged SkipReason = "structure_changed"
	SkipRetryExhausted   SkipReason = "retry_exhausted"
	SkipCanceled         SkipReason = "canceled"
)

// RunResult accumulates the outcome of one scraping run. It is owned by the
// orchestrator and written out exactly once at export.
type RunResult struct {
	Source    Source
	Records   []Record
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int

	SkippedByReason map[SkipReason]int

	// StructureAlerts lists URLs where a structural anchor was missing,
	// signalling that the site layout likely changed. Surfaced at run end.
	StructureAlerts []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunResult creates an empty result for the given source.
func NewRunResult(source Source) *RunResult {
	return &RunResult{
		Source:          source,
		SkippedByReason: make(map[SkipReason]int),
		StartedAt:       time.Now(),
	}
}

// RecordSkip tallies one skipped listing under the given reason.
func (r *RunResult) RecordSkip(reason SkipReason) {
	r.Skipped++
	r.SkippedByReason[reason]++
}

// Summary renders a single-line human-readable tally.
func (r *RunResult) Summary() string {
	var reasons []string
	for reason, n := range r.SkippedByReason {
		reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
	}
	detail := ""
	if len(reasons) > 0 {
		detail = " (" + strings.Join(reasons, ", ") + ")"
	}
	return fmt.Sprintf("attempted=%d succeeded=%d failed=%d skipped=%d%s",
		r.Attempted, r.Succeeded, r.Failed, r.Skipped, detail)
}
