package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLockHeld     = errors.New("lock already held")

	ErrNoCandidates     = errors.New("no candidates")
	ErrConfiguration    = errors.New("configuration error")
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// NoCandidatesError reports a requested item without a single offer row.
// ItemID is zero when the whole order has no rows.
type NoCandidatesError struct {
	ItemID int64
}

func (e *NoCandidatesError) Error() string {
	if e.ItemID == 0 {
		return "no candidates: order has no offer rows"
	}
	return fmt.Sprintf("no candidates: requested item %d has no offers", e.ItemID)
}

func (e *NoCandidatesError) Unwrap() error { return ErrNoCandidates }

// ConfigurationError reports bad upstream data: malformed fee tiers, invalid
// offer values or a combination count the engine cannot represent.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// CapacityExceededError reports a combination space larger than the
// configured ceiling. Callers may retry with a narrower input.
type CapacityExceededError struct {
	Combinations int64
	Limit        int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d combinations, limit %d", e.Combinations, e.Limit)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

// User-facing messages for fatal optimization outcomes.
const (
	MsgNoData       = "no suitable products found"
	MsgTooMany      = "too many options to compare"
	MsgInternalFail = "optimization failed"
)

// StatusFor maps an optimization error to its terminal status and the
// message shown to the end user.
func StatusFor(err error) (Status, string) {
	switch {
	case err == nil:
		return StatusSuccess, ""
	case errors.Is(err, ErrNoCandidates):
		return StatusNoData, MsgNoData
	case errors.Is(err, ErrCapacityExceeded):
		return StatusFailed, MsgTooMany
	default:
		return StatusFailed, MsgInternalFail
	}
}
