package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Ledger errors
	ErrDuplicateAction = errors.New("duplicate action for idempotency key")
	ErrUnknownAction   = errors.New("unknown action type")
	ErrInvalidPoints   = errors.New("point value must be positive")

	// Badge catalog errors
	ErrBadgeNotFound         = errors.New("badge not found")
	ErrBadgeExists           = errors.New("badge already exists")
	ErrUnknownBadgeCondition = errors.New("unknown badge condition kind")
	ErrInvalidThreshold      = errors.New("badge threshold must be positive")

	// Coordinator errors
	ErrLockWaitExceeded = errors.New("award lock wait exceeded — retry")
	ErrUserRequired     = errors.New("user id is required")
)

// Retryable reports whether the caller may safely retry the same call.
// Domain rejections are final; everything else (lock-wait timeouts,
// transient store failures) may be retried, and the engine guarantees no
// partial effect was left behind.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrDuplicateAction),
		errors.Is(err, ErrUnknownAction),
		errors.Is(err, ErrInvalidPoints),
		errors.Is(err, ErrBadgeNotFound),
		errors.Is(err, ErrBadgeExists),
		errors.Is(err, ErrUnknownBadgeCondition),
		errors.Is(err, ErrInvalidThreshold),
		errors.Is(err, ErrUserRequired):
		return false
	}
	return true
}
