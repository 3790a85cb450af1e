// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidInput         = errors.New("invalid input provided")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrUserNotFound         = errors.New("user not found")
	ErrNoEligibleItem       = errors.New("no eligible item")
	ErrItemAlreadyPurchased = errors.New("item already purchased")
	ErrMalformedMessage     = errors.New("malformed message")
	ErrDuplicateEntry       = errors.New("duplicate entry") // e.g. seeding a username that already exists
	ErrUpstream             = errors.New("upstream service unavailable")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
