// internal/scraper/errors.go
package scraper

import (
	"errors"
	"fmt"

	"github.com/realyield/auctionwatch/internal/browser"
)

// ExtractionErrorKind classifies why an extraction failed.
type ExtractionErrorKind int

const (
	// MissingField: a required selector or JSON path matched nothing. The
	// listing is skipped and the run continues.
	MissingField ExtractionErrorKind = iota
	// MalformedField: the selector matched but the value failed to parse.
	// Skipped, logged with the raw value for diagnosis.
	MalformedField
	// StructureChanged: a structural anchor locating the whole record block
	// is absent. The site layout likely changed; surfaced at run end but
	// never aborts the run.
	StructureChanged
)

func (k ExtractionErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case MalformedField:
		return "malformed_field"
	case StructureChanged:
		return "structure_changed"
	default:
		return "unknown"
	}
}

// ExtractionError is a classified, permanent extraction failure. Retrying
// cannot fix a structural mismatch, so the retry policy short-circuits on it.
type ExtractionError struct {
	Kind  ExtractionErrorKind
	Field string
	Raw   string
	URL   string
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("%s: field %q at %s", e.Kind, e.Field, e.URL)
	if e.Raw != "" {
		msg += fmt.Sprintf(" (raw value %q)", e.Raw)
	}
	return msg
}

// RetryExhaustedError reports that an operation failed on every attempt.
// The orchestrator treats it as skip-this-listing, never as run-fatal.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("exhausted %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// isTransient reports whether retrying err can plausibly succeed.
// Navigation failures and timeouts are transient; classified extraction
// errors are permanent.
func isTransient(err error) bool {
	var extr *ExtractionError
	if errors.As(err, &extr) {
		return false
	}
	var nav *browser.NavigationError
	if errors.As(err, &nav) {
		return true
	}
	if errors.Is(err, errEmptyPage) || errors.Is(err, errAttemptTimeout) {
		return true
	}
	return false
}

// errEmptyPage marks an empty-but-expected response, retried like a
// navigation hiccup.
var errEmptyPage = errors.New("page rendered no content")

// errAttemptTimeout replaces the raw context error of an expired attempt
// budget, keeping it distinct from whole-run cancellation.
var errAttemptTimeout = errors.New("attempt timed out")
