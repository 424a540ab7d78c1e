package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrContractNotFound = errors.New("contract not found")
	ErrBadAddress       = errors.New("malformed address")
	ErrChecksum         = errors.New("invalid address checksum")
	ErrUnavailable      = errors.New("event source unavailable")
	ErrMalformedEvent   = errors.New("malformed event payload")
	ErrUnknownEvent     = errors.New("unknown event name")
	ErrMissingConfig    = errors.New("missing required configuration")
)
