package errors

import "errors"

var (
	ErrInvalidInput          = errors.New("reputation: invalid input")
	ErrUnknownAction         = errors.New("reputation: unknown action type")
	ErrProfileNotFound       = errors.New("reputation: profile not found")
	ErrVersionConflict       = errors.New("reputation: profile version conflict")
	ErrConcurrentUpdate      = errors.New("reputation: concurrent update retries exhausted")
	ErrIdempotencyKeyMissing = errors.New("reputation: idempotency key missing")
	ErrIdempotencyConflict   = errors.New("reputation: idempotency key reused with different payload")
	ErrConflict              = errors.New("reputation: conflict")
)
