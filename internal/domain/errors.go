package domain

import (
	"errors"
	"fmt"
)

// Insufficient is the structured "missing data" outcome of §7: insufficient
// candle history, no ATR, etc. Callers skip signal generation on this, they
// never treat it as an exception.
type Insufficient struct {
	What string
	Have int
	Need int
}

func (e *Insufficient) Error() string {
	return fmt.Sprintf("insufficient %s: have %d, need %d", e.What, e.Have, e.Need)
}

// AlreadyHandled is the structured "idempotent conflict" outcome of §7: a
// dedupe-index collision or an episode-cooldown rejection. Callers treat it
// as success, not failure.
type AlreadyHandled struct {
	Reason string
}

func (e *AlreadyHandled) Error() string {
	return "already handled: " + e.Reason
}

// IsAlreadyHandled reports whether err is (or wraps) an AlreadyHandled.
func IsAlreadyHandled(err error) bool {
	var ah *AlreadyHandled
	return errors.As(err, &ah)
}

// GateRejection is a non-error, explicit-reason-code outcome of a gate
// check (utility, averaging, brick movement, validation). It is recorded on
// the resulting Intent/ExitIntent, never thrown (§7).
type GateRejection struct {
	Reason string
}

func (e *GateRejection) Error() string {
	return "gate rejected: " + e.Reason
}
