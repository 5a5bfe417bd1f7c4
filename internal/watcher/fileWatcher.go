package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"usd/internal/metrics"
	"usd/internal/util/logger/handlers/slogdiscard"
	"usd/internal/util/logger/sl"
)

// FileWatcher reloads files when they change. It watches the parent directory,
// so a file that is replaced or created later is still picked up.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	reloader  Reloader
	errors    chan error
	config    Config
	log       *slog.Logger
	debouncer *Debouncer
	metrics   *metrics.Metrics
	targets   map[string]struct{}
	dirs      map[string]struct{}
	stopChan  chan struct{}
	closed    bool
	wg        sync.WaitGroup
	mu        sync.RWMutex
}

func NewFileWatcher(r Reloader, config Config) (*FileWatcher, error) {
	if config.DebounceDuration == 0 {
		config.DebounceDuration = DefaultDebounceDuration
	}
	if config.BufferSize == 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.IgnorePatterns == nil {
		config.IgnorePatterns = IgnoredPatterns
	}
	if config.Logger == nil {
		config.Logger = slogdiscard.NewDiscardLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:   watcher,
		reloader:  r,
		errors:    make(chan error, config.BufferSize),
		config:    config,
		log:       config.Logger.With(slog.String("component", "watcher")),
		debouncer: NewDebouncer(config.DebounceDuration),
		metrics:   config.Metrics,
		targets:   make(map[string]struct{}),
		dirs:      make(map[string]struct{}),
		stopChan:  make(chan struct{}),
	}

	fw.wg.Add(1)
	go fw.run()

	return fw, nil
}

// Watch starts watching the file at path. The file may not exist yet, its directory must.
func (fw *FileWatcher) Watch(path string) error {
	op := "watcher.Watch"

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.closed {
		return ErrWatcherClosed
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidPath, path)
	}
	if _, ok := fw.targets[path]; ok {
		return fmt.Errorf("%w: %s", ErrPathAlreadyWatched, path)
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if _, ok := fw.dirs[dir]; !ok {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		fw.dirs[dir] = struct{}{}
	}

	fw.targets[path] = struct{}{}
	fw.metrics.WatchedFiles(len(fw.targets))
	fw.log.Debug("watching file", slog.String("op", op), slog.String("path", path))
	return nil
}

func (fw *FileWatcher) run() {
	defer fw.wg.Done()
	defer close(fw.errors)

	for {
		select {
		case <-fw.stopChan:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.shouldProcessEvent(event) {
				fw.processEvent(event)
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.handleError(err)
		}
	}
}

func (fw *FileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&WatchedEvents == 0 {
		return false
	}

	for _, pattern := range fw.config.IgnorePatterns {
		if strings.Contains(event.Name, pattern) {
			return false
		}
	}

	fw.mu.RLock()
	defer fw.mu.RUnlock()
	_, ok := fw.targets[filepath.Clean(event.Name)]
	return ok
}

func (fw *FileWatcher) processEvent(event fsnotify.Event) {
	fw.metrics.CatalogEvent(event.Op.String())
	path := filepath.Clean(event.Name)

	fw.debouncer.Debounce(path, func() {
		fw.log.Debug("reloading", slog.String("path", path), slog.String("event", event.Op.String()))
		if err := fw.reloader.Reload(path); err != nil {
			fw.handleError(fmt.Errorf("failed to reload %s: %w", path, err))
		}
	})
}

func (fw *FileWatcher) handleError(err error) {
	fw.metrics.WatchError()

	fw.mu.RLock()
	defer fw.mu.RUnlock()
	if fw.closed {
		return
	}

	select {
	case fw.errors <- err:
	default:
		fw.log.Warn("error buffer full, dropping error", sl.Err(err))
	}
}

func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return ErrWatcherClosed
	}
	fw.closed = true
	close(fw.stopChan)
	fw.mu.Unlock()

	fw.debouncer.Stop()
	fw.wg.Wait()
	fw.metrics.WatchedFiles(0)

	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	return nil
}

// Errors returns reload and watch errors. It is closed by Close.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}
