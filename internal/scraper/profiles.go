// internal/scraper/profiles.go
package scraper

import (
	"fmt"

	"github.com/realyield/auctionwatch/internal/browser"
	"github.com/realyield/auctionwatch/pkg/types"
)

// Profile bundles everything that differs per marketplace: where discovery
// starts, how the index is walked, how a detail page is read and whether
// detail pages want network capture.
type Profile struct {
	Source    types.Source
	StartURL  string
	Paginator Paginator
	Extractor Extractor

	// Capture, when non-nil, asks the session to attach network capture
	// before opening detail pages.
	Capture *browser.Matcher
}

// ProfileFor builds the profile for a source. maxPages caps how far
// discovery walks; 0 means unbounded.
func ProfileFor(source types.Source, maxPages int) (*Profile, error) {
	switch source {
	case types.SourceCrexi:
		capture := CrexiCapture
		return &Profile{
			Source:   source,
			StartURL: crexiStartURL,
			Paginator: &IndexPaginator{
				LinkSelector: crexiLinkSelector,
				NextSelector: crexiNextSelector,
				MaxPages:     maxPages,
			},
			Extractor: &CrexiExtractor{},
			Capture:   &capture,
		}, nil
	case types.SourceLoopNet:
		return &Profile{
			Source:    source,
			StartURL:  loopnetStartURL,
			Paginator: &LoopNetPaginator{MaxPages: maxPages},
			Extractor: &LoopNetExtractor{},
		}, nil
	case types.SourceRMI:
		return &Profile{
			Source:   source,
			StartURL: rmiStartURL,
			Paginator: &LoadMorePaginator{
				LinkSelector:     rmiLinkSelector,
				LoadMoreSelector: rmiLoadMoreSelector,
				MaxRounds:        maxPages,
			},
			Extractor: &RMIExtractor{},
		}, nil
	default:
		return nil, fmt.Errorf("no profile for source %q", source)
	}
}
