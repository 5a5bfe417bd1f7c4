package codec

import "errors"

var (
	// ErrMalformed wraps every decode failure
	ErrMalformed = errors.New("malformed packet")

	ErrUnexpectedType = errors.New("unexpected major type")
	ErrTruncated      = errors.New("truncated input")
	ErrTooLarge       = errors.New("length exceeds limit")
	ErrBadMagic       = errors.New("missing magic tag")
	ErrInvalidInteger = errors.New("invalid integer encoding")
	ErrInvalidText    = errors.New("invalid text")
)
