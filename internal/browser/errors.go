// internal/browser/errors.go
package browser

import "fmt"

// SessionStartError reports that the browser engine could not be launched.
// It is one of the two run-fatal conditions in the pipeline.
type SessionStartError struct {
	Cause error
}

func (e *SessionStartError) Error() string {
	return fmt.Sprintf("browser session start failed: %v", e.Cause)
}

func (e *SessionStartError) Unwrap() error { return e.Cause }

// NavigationError reports a failed page navigation. Timeout distinguishes a
// deadline expiry from other failures so the retry policy can back off
// differently.
type NavigationError struct {
	URL     string
	Timeout bool
	Cause   error
}

func (e *NavigationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("navigation to %s timed out: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Cause)
}

func (e *NavigationError) Unwrap() error { return e.Cause }
