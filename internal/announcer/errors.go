package announcer

import "errors"

var (
	ErrConflict       = errors.New("service id is bound to another service")
	ErrInvalidService = errors.New("invalid service")
	ErrAlreadyRunning = errors.New("announcer is already running")
	ErrStopped        = errors.New("announcer is stopped")
)
