// internal/browser/interceptor.go
package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Matcher selects which network responses an Interceptor captures.
type Matcher struct {
	// URLContains captures a response when its URL contains any entry.
	URLContains []string
	// Method, when set, additionally restricts captures to requests using
	// this HTTP method.
	Method string
}

func (m Matcher) matchURL(url string) bool {
	for _, frag := range m.URLContains {
		if strings.Contains(url, frag) {
			return true
		}
	}
	return false
}

// Payload is one captured response body correlated to its request URL.
type Payload struct {
	URL  string
	Body []byte
}

type capturedResponse struct {
	url string
	id  network.RequestID
}

// Interceptor captures structured API responses that back a page, for sites
// that expose richer data over XHR than in their rendered HTML. The capture
// window is bound to the page's lifetime: once the page navigates away or
// closes, nothing further arrives.
type Interceptor struct {
	page    *Page
	matcher Matcher

	mu       sync.Mutex
	methods  map[network.RequestID]string
	captured []capturedResponse
	lastSeen time.Time
}

// AttachInterceptor enables network capture on page. It must be attached
// before the traffic of interest is triggered.
func AttachInterceptor(page *Page, matcher Matcher) (*Interceptor, error) {
	if err := chromedp.Run(page.ctx, network.Enable()); err != nil {
		return nil, err
	}

	ic := &Interceptor{
		page:    page,
		matcher: matcher,
		methods: make(map[network.RequestID]string),
	}

	chromedp.ListenTarget(page.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			ic.onRequest(e)
		case *network.EventResponseReceived:
			ic.onResponse(e)
		}
	})

	return ic, nil
}

func (ic *Interceptor) onRequest(e *network.EventRequestWillBeSent) {
	if ic.matcher.Method == "" {
		return
	}
	ic.mu.Lock()
	ic.methods[e.RequestID] = e.Request.Method
	ic.mu.Unlock()
}

// onResponse records every matching response. Body size is not consulted:
// the protocol reports bytes received so far, which can be zero until
// loading finishes. Unfetchable bodies are skipped at fetch time instead.
func (ic *Interceptor) onResponse(e *network.EventResponseReceived) {
	if !ic.matcher.matchURL(e.Response.URL) {
		return
	}
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.matcher.Method == "" || strings.EqualFold(ic.methods[e.RequestID], ic.matcher.Method) {
		ic.captured = append(ic.captured, capturedResponse{url: e.Response.URL, id: e.RequestID})
		ic.lastSeen = time.Now()
	}
}

// Payloads waits for matching traffic to settle, bounded by window, then
// fetches the captured response bodies. An empty result means the caller
// should fall back to DOM extraction; it is never an error by itself.
func (ic *Interceptor) Payloads(ctx context.Context, window, settle time.Duration) []Payload {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		ic.mu.Lock()
		last := ic.lastSeen
		ic.mu.Unlock()

		if !last.IsZero() && time.Since(last) > settle {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(250 * time.Millisecond):
		}
	}

	ic.mu.Lock()
	captured := make([]capturedResponse, len(ic.captured))
	copy(captured, ic.captured)
	ic.mu.Unlock()

	var payloads []Payload
	for _, c := range captured {
		var body []byte
		err := chromedp.Run(ic.page.ctx, chromedp.ActionFunc(func(runCtx context.Context) error {
			var err error
			body, err = network.GetResponseBody(c.id).Do(runCtx)
			return err
		}))
		if err != nil {
			// Bodies for evicted or redirected requests are gone; skip.
			continue
		}
		payloads = append(payloads, Payload{URL: c.url, Body: body})
	}
	return payloads
}
