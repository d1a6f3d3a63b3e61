package gtm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveTab means no browser tab could be resolved for the load.
	ErrNoActiveTab = errors.New("no active tab found")

	// ErrEmptyResult means the page has no recognizable user-defined variables.
	ErrEmptyResult = errors.New("no user-defined variables found: open the Tag Manager variables page and retry")

	// ErrConfirmTimeout means the host delete dialog never offered its confirm button.
	ErrConfirmTimeout = errors.New("delete confirmation did not appear in time")

	// ErrRowNotFound means the host page has no row for the requested variable.
	ErrRowNotFound = errors.New("variable row not found on page")
)

// FetchError records a failed reference lookup for one variable. It is
// recovered by substituting empty references and never aborts a batch.
type FetchError struct {
	Variable string
	URL      string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch references for %q (%s): %v", e.Variable, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
