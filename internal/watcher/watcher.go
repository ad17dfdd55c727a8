// Package watcher polls the project files a render depends on and reports
// changes after a quiet period.
package watcher

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"scadforge/internal/logging"
	"scadforge/internal/paths"
)

// EventType represents the type of file change
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

// Event is one detected change to a watched file
type Event struct {
	Type      EventType
	Path      string // project-relative
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChangeHandler is called with one debounced batch of changes
type ChangeHandler func(events []Event)

// Config contains watcher configuration
type Config struct {
	PollInterval time.Duration
	Debounce     time.Duration
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		PollInterval: 500 * time.Millisecond,
		Debounce:     300 * time.Millisecond,
	}
}

// stamp identifies one version of a file
type stamp struct {
	modTime time.Time
	size    int64
}

var absent stamp

// Watcher polls a set of project files
type Watcher struct {
	root      string
	config    Config
	logger    *logging.Logger
	debouncer *BatchDebouncer

	mu    sync.Mutex
	files map[string]stamp
}

// New creates a watcher for files below the project root
func New(root string, config Config, logger *logging.Logger, handler ChangeHandler) *Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	w := &Watcher{
		root:   root,
		config: config,
		logger: logger,
		files:  make(map[string]stamp),
	}
	w.debouncer = NewBatchDebouncer(config.Debounce, func(events []Event) {
		w.logger.Debug("File changes detected", map[string]interface{}{
			"eventCount": len(events),
		})
		if handler != nil {
			handler(events)
		}
	})
	return w
}

// SetFiles replaces the watched set with the given project-relative paths.
// Stamps of files already watched are kept so no change is lost.
func (w *Watcher) SetFiles(files []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := make(map[string]stamp, len(files))
	for _, f := range files {
		if s, ok := w.files[f]; ok {
			next[f] = s
			continue
		}
		next[f] = w.stat(f)
	}
	w.files = next
}

// Files returns the watched paths in lexical order
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Run polls until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("Watching for changes", map[string]interface{}{
		"files":          len(w.Files()),
		"pollIntervalMs": w.config.PollInterval.Milliseconds(),
	})

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()
	defer w.debouncer.Cancel()

	for {
		select {
		case <-ticker.C:
			w.Check()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Check compares every watched file against its last stamp and queues
// the differences. It returns the number of changes found.
func (w *Watcher) Check() int {
	w.mu.Lock()
	var events []Event
	now := time.Now()
	for f, last := range w.files {
		cur := w.stat(f)
		if cur == last {
			continue
		}
		ev := Event{Type: EventModify, Path: f, Timestamp: now}
		switch {
		case cur == absent:
			ev.Type = EventDelete
		case last == absent:
			ev.Type = EventCreate
		}
		w.files[f] = cur
		events = append(events, ev)
	}
	w.mu.Unlock()

	for _, ev := range events {
		w.debouncer.Add(ev)
	}
	return len(events)
}

// Flush delivers pending changes immediately
func (w *Watcher) Flush() {
	w.debouncer.Flush()
}

func (w *Watcher) stat(rel string) stamp {
	info, err := os.Stat(paths.JoinRepoPath(w.root, rel))
	if err != nil || info.IsDir() {
		return absent
	}
	return stamp{modTime: info.ModTime(), size: info.Size()}
}
