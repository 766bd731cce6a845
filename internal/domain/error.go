package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrReplyPending    = errors.New("a reply is still being composed")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrBusy            = errors.New("conversation is being updated elsewhere")
)
