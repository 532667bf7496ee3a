package types

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a wait for rendered content exceeds its budget
	ErrTimeout = errors.New("timed out waiting for page content")

	// ErrNoSearchResults is returned when a retailer search explicitly reports zero matches
	ErrNoSearchResults = errors.New("search returned no results")

	// ErrNotSupported is returned by variants whose site has no markup for an operation
	ErrNotSupported = errors.New("operation not supported by this retailer")

	// ErrLocationNotFound is returned when no pickup location matches the requested name
	ErrLocationNotFound = errors.New("pickup location not found")

	// ErrDatasetLocked is returned when another writer holds a retailer's dataset
	ErrDatasetLocked = errors.New("dataset is locked by another process")

	// ErrMerchantMismatch is returned when the flyer backend answers for a different merchant
	ErrMerchantMismatch = errors.New("flyer search returned a different merchant")
)

// SessionError reports that the browser process could not be started
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("failed to start browser session: %v", e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// AmbiguousMatchError reports a SKU lookup that did not resolve to exactly one product
type AmbiguousMatchError struct {
	Term    string
	Matches int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("search for %q matched %d products, want exactly 1", e.Term, e.Matches)
}
