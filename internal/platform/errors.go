package platform

import "errors"

var (
	ErrNotFound             = errors.New("resource not found on platform")
	ErrAttemptLimitExceeded = errors.New("maximum attempts exceeded")
	ErrAlreadySubmitted     = errors.New("attempt already submitted")
	ErrAttemptExpired       = errors.New("attempt time has expired")
	ErrUnavailable          = errors.New("platform unavailable")
	ErrRejected             = errors.New("platform rejected request")
)
