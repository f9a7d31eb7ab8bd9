package domain

import "errors"

var (
	ErrNoUser            = errors.New("no authenticated user")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrUnknownKind       = errors.New("unknown profile kind")
	ErrRemoteUnavailable = errors.New("remote profile store unavailable")
)
