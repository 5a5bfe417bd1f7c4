package watcher

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	DefaultDebounceDuration = 250 * time.Millisecond
	DefaultBufferSize       = 100
)

var (
	// bbolt rewrites the file in place, editors and imports may replace or delete it
	WatchedEvents = fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove

	IgnoredPatterns = []string{
		":Zone.Identifier",
		".tmp",
		"~",
		".swp",
	}
)
