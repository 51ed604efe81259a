package services

import "errors"

// Caller-facing failures.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrContactUnavailable = errors.New("no registered email for identity")
	ErrNotFoundOrUsed     = errors.New("otp not found or already used")
	ErrExpired            = errors.New("otp expired")
	ErrInvalidCode        = errors.New("invalid otp")
	ErrAttemptsExceeded   = errors.New("too many invalid attempts")
)

// ErrInfra marks store, hasher, generator and notifier failures. Its cause is
// for the logs only.
var ErrInfra = errors.New("infrastructure failure")
