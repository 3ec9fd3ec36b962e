// internal/scraper/runner_test.go
package scraper

import (
	"context"
	"testing"

	"github.com/realyield/auctionwatch/internal/browser"
	"github.com/realyield/auctionwatch/internal/utils"
	"github.com/realyield/auctionwatch/pkg/types"
)

// stubPaginator emits a fixed list of URLs, one page per URL.
type stubPaginator struct {
	urls []string
}

func (p *stubPaginator) Run(_ context.Context, _ Navigator, _ string, emit emitFunc) (StopReason, error) {
	for i, u := range p.urls {
		emit(u, i+1)
	}
	return StopExhausted, nil
}

// stubExtractor returns a record named after the page URL, or the configured
// error for that URL.
type stubExtractor struct {
	fail  map[string]error
	calls int
}

func (e *stubExtractor) Source() types.Source { return types.SourceRMI }

func (e *stubExtractor) Extract(_ context.Context, page ListingPage) (types.RawRecord, error) {
	e.calls++
	if err := e.fail[page.URL()]; err != nil {
		return types.RawRecord{}, err
	}
	return types.RawRecord{
		PropertyName: "Listing " + page.URL(),
		PropertyURL:  page.URL(),
		Source:       types.SourceRMI,
	}, nil
}

type passNormalizer struct{}

func (passNormalizer) Normalize(raw types.RawRecord) types.Record {
	return types.Record{
		PropertyName: raw.PropertyName,
		PropertyURL:  raw.PropertyURL,
		Source:       raw.Source,
	}
}

type countingObserver struct {
	pages, attempted, succeeded, retries int
	skipped                              map[types.SkipReason]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{skipped: make(map[types.SkipReason]int)}
}

func (o *countingObserver) PageVisited(types.Source)      { o.pages++ }
func (o *countingObserver) ListingAttempted(types.Source) { o.attempted++ }
func (o *countingObserver) ListingSucceeded(types.Source) { o.succeeded++ }
func (o *countingObserver) ListingSkipped(_ types.Source, reason types.SkipReason) {
	o.skipped[reason]++
}
func (o *countingObserver) NavigationRetried(types.Source) { o.retries++ }

func quietRunner(p *Profile, nav Navigator, obs Observer) *Runner {
	return &Runner{
		Profile:    p,
		Nav:        nav,
		Retry:      fastPolicy(2),
		Normalizer: passNormalizer{},
		Logger:     utils.NewLoggerWithLevel(utils.ErrorLevel),
		Observer:   obs,
	}
}

func TestRunnerTally(t *testing.T) {
	urls := []string{"http://s/1", "http://s/2", "http://s/3", "http://s/4"}
	extractor := &stubExtractor{fail: map[string]error{
		"http://s/3": missingField("propertyName", "http://s/3"),
	}}
	profile := &Profile{
		Source:    types.SourceRMI,
		Paginator: &stubPaginator{urls: urls},
		Extractor: extractor,
	}
	nav := &fakeNavigator{
		pages: map[string]string{},
		fail: map[string]error{
			"http://s/4": &browser.NavigationError{URL: "http://s/4", Timeout: true},
		},
	}
	for _, u := range urls {
		nav.pages[u] = "<html></html>"
	}

	obs := newCountingObserver()
	result := quietRunner(profile, nav, obs).Run(context.Background())

	if result.Attempted != 4 || result.Succeeded != 2 || result.Failed != 2 {
		t.Errorf("tally = attempted %d, succeeded %d, failed %d, want 4/2/2",
			result.Attempted, result.Succeeded, result.Failed)
	}
	if result.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", result.Skipped)
	}
	if result.SkippedByReason[types.SkipMissingField] != 1 {
		t.Errorf("missing_field skips = %d, want 1", result.SkippedByReason[types.SkipMissingField])
	}
	if result.SkippedByReason[types.SkipRetryExhausted] != 1 {
		t.Errorf("retry_exhausted skips = %d, want 1", result.SkippedByReason[types.SkipRetryExhausted])
	}
	if len(result.Records) != 2 {
		t.Fatalf("Records = %d, want 2", len(result.Records))
	}
	if result.Records[0].PropertyURL != "http://s/1" || result.Records[1].PropertyURL != "http://s/2" {
		t.Errorf("records out of order: %s, %s", result.Records[0].PropertyURL, result.Records[1].PropertyURL)
	}
	if result.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}

	if obs.attempted != 4 || obs.succeeded != 2 {
		t.Errorf("observer = attempted %d, succeeded %d, want 4/2", obs.attempted, obs.succeeded)
	}
	if obs.pages != 4 {
		t.Errorf("observer pages = %d, want 4", obs.pages)
	}
	// The timing-out listing retries once before exhausting two attempts.
	if obs.retries != 1 {
		t.Errorf("observer retries = %d, want 1", obs.retries)
	}
}

func TestRunnerPermanentFailureNotRetried(t *testing.T) {
	extractor := &stubExtractor{fail: map[string]error{
		"http://s/1": structureChanged("h1", "http://s/1"),
	}}
	profile := &Profile{
		Source:    types.SourceRMI,
		Paginator: &stubPaginator{urls: []string{"http://s/1"}},
		Extractor: extractor,
	}
	nav := &fakeNavigator{pages: map[string]string{"http://s/1": "<html></html>"}}

	result := quietRunner(profile, nav, nil).Run(context.Background())

	if extractor.calls != 1 {
		t.Errorf("extractor called %d times, want 1", extractor.calls)
	}
	if result.SkippedByReason[types.SkipStructureChanged] != 1 {
		t.Errorf("structure_changed skips = %d, want 1", result.SkippedByReason[types.SkipStructureChanged])
	}
	if len(result.StructureAlerts) != 1 || result.StructureAlerts[0] != "http://s/1" {
		t.Errorf("StructureAlerts = %v, want the failing URL", result.StructureAlerts)
	}
}

func TestRunnerDedupesDiscovery(t *testing.T) {
	profile := &Profile{
		Source:    types.SourceRMI,
		Paginator: &stubPaginator{urls: []string{"http://s/1", "http://s/1", "http://s/2"}},
		Extractor: &stubExtractor{},
	}
	nav := &fakeNavigator{pages: map[string]string{
		"http://s/1": "<html></html>",
		"http://s/2": "<html></html>",
	}}

	obs := newCountingObserver()
	result := quietRunner(profile, nav, obs).Run(context.Background())

	if result.Attempted != 2 {
		t.Errorf("Attempted = %d, want 2 after dedupe", result.Attempted)
	}
	// Every index page counts, even when its listings were all seen before.
	if obs.pages != 3 {
		t.Errorf("observer pages = %d, want 3", obs.pages)
	}
}

func TestRunnerMaxListings(t *testing.T) {
	profile := &Profile{
		Source:    types.SourceRMI,
		Paginator: &stubPaginator{urls: []string{"http://s/1", "http://s/2", "http://s/3"}},
		Extractor: &stubExtractor{},
	}
	nav := &fakeNavigator{pages: map[string]string{}}
	for _, u := range []string{"http://s/1", "http://s/2", "http://s/3"} {
		nav.pages[u] = "<html></html>"
	}

	r := quietRunner(profile, nav, nil)
	r.MaxListings = 2
	result := r.Run(context.Background())

	if result.Attempted != 2 || result.Succeeded != 2 {
		t.Errorf("tally = attempted %d, succeeded %d, want 2/2", result.Attempted, result.Succeeded)
	}
}

func TestRunnerCancellationKeepsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel mid-run, after the first listing succeeds.
	extractor := &cancelAfterFirst{cancel: cancel}
	profile := &Profile{
		Source:    types.SourceRMI,
		Paginator: &stubPaginator{urls: []string{"http://s/1", "http://s/2", "http://s/3"}},
		Extractor: extractor,
	}
	nav := &fakeNavigator{pages: map[string]string{}}
	for _, u := range []string{"http://s/1", "http://s/2", "http://s/3"} {
		nav.pages[u] = "<html></html>"
	}

	result := quietRunner(profile, nav, nil).Run(ctx)

	if result.Attempted != 1 || result.Succeeded != 1 {
		t.Errorf("tally = attempted %d, succeeded %d, want 1/1", result.Attempted, result.Succeeded)
	}
	if len(result.Records) != 1 {
		t.Errorf("Records = %d, want the partial result kept", len(result.Records))
	}
}

type cancelAfterFirst struct {
	cancel context.CancelFunc
}

func (e *cancelAfterFirst) Source() types.Source { return types.SourceRMI }

func (e *cancelAfterFirst) Extract(_ context.Context, page ListingPage) (types.RawRecord, error) {
	defer e.cancel()
	return types.RawRecord{PropertyName: "only one", PropertyURL: page.URL(), Source: types.SourceRMI}, nil
}
