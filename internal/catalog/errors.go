package catalog

import "errors"

var (
	ErrNotFound          = errors.New("service not found")
	ErrNilDB             = errors.New("database connection is nil")
	ErrInvalidRecord     = errors.New("invalid record")
	ErrUnknownSerializer = errors.New("unknown serializer")
)
