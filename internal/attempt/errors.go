package attempt

import "errors"

// Sentinel errors, mapped to HTTP status + reason codes at the API boundary.
var (
	ErrNotFound            = errors.New("attempt not found")
	ErrNotOwner            = errors.New("attempt owned by another user")
	ErrPaperUnavailable    = errors.New("paper unavailable")
	ErrInvalidMode         = errors.New("invalid attempt mode")
	ErrInvalidSectional    = errors.New("invalid sectional section")
	ErrSectionalNotAllowed = errors.New("sectional attempts not allowed")
	ErrLimitReached        = errors.New("attempt limit reached")
	ErrActiveConflict      = errors.New("conflicting active attempt")
	ErrInvalidState        = errors.New("action forbidden in current state")
	ErrSectionLocked       = errors.New("section is locked")
	ErrSessionConflict     = errors.New("session token mismatch")
	ErrInvalidQuestion     = errors.New("question does not belong to attempt")
	ErrTimeInflation       = errors.New("time remaining cannot increase")
	ErrBadInput            = errors.New("malformed input")

	// ErrDuplicateActive is the store-level uniqueness conflict; the lifecycle
	// manager treats it as "retry lookup", never as a hard failure.
	ErrDuplicateActive = errors.New("active attempt already exists")
)
