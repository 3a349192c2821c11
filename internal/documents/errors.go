package documents

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrParseInFlight = errors.New("parse already in flight")
)
