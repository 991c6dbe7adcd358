package models

import (
	"errors"
	"fmt"
)

// ErrEmptyResult marks an attempt that rendered without a challenge but
// produced no items. It is soft: the session retries it like any other
// failure and returns an empty result once retries run out.
var ErrEmptyResult = errors.New("extraction returned no items")

// LaunchError is returned when the browser process could not be started.
type LaunchError struct {
	Attempts int
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ChallengeError is returned when a bot challenge persisted across every
// attempt of a search. Callers should wait or switch network identity.
type ChallengeError struct {
	Attempts  int
	Indicator string
}

func (e *ChallengeError) Error() string {
	if e.Indicator == "" {
		return fmt.Sprintf("challenge page persisted across %d attempt(s)", e.Attempts)
	}
	return fmt.Sprintf("challenge page persisted across %d attempt(s) (matched %q)", e.Attempts, e.Indicator)
}

// NavigationError wraps a single page-load failure.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// HarvestItemError describes why harvesting one item's comments degraded.
// It never aborts a batch.
type HarvestItemError struct {
	URL  string
	Step string
	Err  error
}

func (e *HarvestItemError) Error() string {
	return fmt.Sprintf("harvest %s: step %s: %v", e.URL, e.Step, e.Err)
}

func (e *HarvestItemError) Unwrap() error { return e.Err }

// IsChallenge reports whether err is, or wraps, a ChallengeError.
func IsChallenge(err error) bool {
	var ce *ChallengeError
	return errors.As(err, &ce)
}
