package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrNotOwner            = errors.New("not owner")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrExternalIDConflict  = errors.New("external task id already set")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedCallback   = errors.New("malformed webhook payload")
	ErrProviderFailure     = errors.New("provider failure")
)
