package dev

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
)

// ChangeType represents the type of file change.
type ChangeType int

const (
	ChangeCode ChangeType = iota
	ChangeCSS
	ChangeAsset
	ChangePayload
)

// Change represents a detected file change.
type Change struct {
	Path string
	Type ChangeType
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the directories to watch, recursively.
	Paths []string

	// Ignore patterns to skip (path substrings).
	Ignore []string

	// Debounce is the delay before triggering on a burst of changes.
	// Default 100ms.
	Debounce time.Duration
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"dist",
	"tmp",
	".vorma",
	".swp",
	"~",
}

// Watcher monitors files for changes and reports them debounced.
type Watcher struct {
	config   WatcherConfig
	onChange func(Change)

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]Change
	timer   *time.Timer
	closed  bool
}

// NewWatcher creates a watcher. Call Start to begin monitoring.
func NewWatcher(config WatcherConfig, onChange func(Change)) *Watcher {
	if config.Debounce <= 0 {
		config.Debounce = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}
	return &Watcher{
		config:   config,
		onChange: onChange,
		pending:  map[string]Change{},
	}
}

// Start begins monitoring. Directory registration retries with
// exponential backoff, since editors briefly remove and recreate trees.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	register := func() error {
		for _, root := range w.config.Paths {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() || w.ignored(path) {
					return nil
				}
				return fsw.Add(path)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(register, policy); err != nil {
		fsw.Close()
		return err
	}

	go w.loop()
	return nil
}

// Close stops monitoring.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New directories need registration for recursive coverage.
			if event.Op&fsnotify.Create != 0 {
				w.mu.Lock()
				if !w.closed {
					w.fsw.Add(event.Name)
				}
				w.mu.Unlock()
			}
			w.record(Change{Path: event.Name, Type: classify(event.Name)})
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) record(change Change) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[change.Path] = change
	if w.timer == nil {
		w.timer = time.AfterFunc(w.config.Debounce, w.flush)
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	changes := make([]Change, 0, len(w.pending))
	for _, c := range w.pending {
		changes = append(changes, c)
	}
	w.pending = map[string]Change{}
	w.timer = nil
	w.mu.Unlock()

	for _, c := range changes {
		w.onChange(c)
	}
}

func (w *Watcher) ignored(path string) bool {
	for _, pattern := range w.config.Ignore {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

func classify(path string) ChangeType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".css":
		return ChangeCSS
	case ".json":
		return ChangePayload
	case ".go", ".js", ".ts":
		return ChangeCode
	default:
		return ChangeAsset
	}
}
