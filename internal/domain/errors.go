package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrBadWeights    = errors.New("composite weights must sum to 1.0")
	ErrNoBatch       = errors.New("no signal batch computed yet")
	ErrContextDone   = errors.New("context cancelled")
)
