package engine

import "errors"

// ===== ENGINE ERRORS =====

var (
	// Lifecycle errors
	ErrAttemptInProgress    = errors.New("an attempt is already in progress")
	ErrNoActiveAttempt      = errors.New("no active attempt")
	ErrSubmissionInProgress = errors.New("a submission is in progress")
	ErrAttemptNotActive     = errors.New("attempt is not active")
	ErrAlreadySubmitted     = errors.New("attempt already submitted")
	ErrNoResult             = errors.New("no result available")

	// Platform call failures surfaced to the caller
	ErrStartFailed  = errors.New("failed to start attempt")
	ErrSubmitFailed = errors.New("failed to submit attempt")

	// Input errors
	ErrUnknownQuestion   = errors.New("question does not belong to this attempt")
	ErrInvalidAnswer     = errors.New("answer value is invalid for question type")
	ErrIndexOutOfRange   = errors.New("question index out of range")
	ErrTimerAlreadyArmed = errors.New("timer is already armed")

	// Resume
	ErrNoCheckpoint = errors.New("no session checkpoint found")
)
