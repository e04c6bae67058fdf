package errors

import "errors"

var (
	ErrInvalidInput           = errors.New("badges: invalid input")
	ErrProfileNotFound        = errors.New("badges: profile not found")
	ErrConflict               = errors.New("badges: conflict")
	ErrInviteStatsUnavailable = errors.New("badges: invite stats unavailable")
)
