package watcher

import (
	"log/slog"
	"time"

	"usd/internal/metrics"
)

// Reloader is called with the watched file path once its changes settle
type Reloader interface {
	Reload(path string) error
}

// ReloaderFunc adapts a function to a Reloader
type ReloaderFunc func(path string) error

func (f ReloaderFunc) Reload(path string) error {
	return f(path)
}

// Config содержит настройки для FileWatcher
type Config struct {
	DebounceDuration time.Duration
	BufferSize       int
	IgnorePatterns   []string
	Logger           *slog.Logger
	// Metrics records events and errors, nil disables it
	Metrics *metrics.Metrics
}
