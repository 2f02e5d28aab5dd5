package onboarding

import "github.com/pkg/errors"

// Domain errors for the onboarding wizard core.
var (
	ErrCollectionInvariant = errors.New("cannot remove the last business draft while business ownership is active")
	ErrIndexOutOfRange     = errors.New("business draft index out of range")
	ErrNoBusinessOwnership = errors.New("session has no business ownership")
	ErrNotOnReviewStep     = errors.New("businesses can only be added from the review step")
)
