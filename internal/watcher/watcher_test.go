package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scadforge/internal/logging"
)

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventCreate, "create"},
		{EventModify, "modify"},
		{EventDelete, "delete"},
		{EventType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.eventType.String()
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewWatcherDefaultsPollInterval(t *testing.T) {
	w := New(t.TempDir(), Config{}, logging.NewNopLogger(), nil)
	if w.config.PollInterval != DefaultConfig().PollInterval {
		t.Errorf("PollInterval = %v, want %v", w.config.PollInterval, DefaultConfig().PollInterval)
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

type collector struct {
	mu      sync.Mutex
	batches [][]Event
}

func (c *collector) handle(events []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, events)
}

func (c *collector) all() [][]Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]Event(nil), c.batches...)
}

func TestWatcherCheckDetectsChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.scad", "include <lib/a.scad>")
	writeFile(t, root, "lib/a.scad", "cube(1);")

	var c collector
	w := New(root, Config{PollInterval: time.Hour, Debounce: time.Hour}, logging.NewNopLogger(), c.handle)
	w.SetFiles([]string{"main.scad", "lib/a.scad", "lib/b.scad"})

	if n := w.Check(); n != 0 {
		t.Fatalf("Expected no changes right after SetFiles, got %d", n)
	}

	writeFile(t, root, "lib/a.scad", "cube(2); // longer")
	writeFile(t, root, "lib/b.scad", "sphere(1);")
	if err := os.Remove(filepath.Join(root, "main.scad")); err != nil {
		t.Fatal(err)
	}

	if n := w.Check(); n != 3 {
		t.Fatalf("Expected 3 changes, got %d", n)
	}
	if n := w.Check(); n != 0 {
		t.Errorf("changes should be reported once, got %d more", n)
	}

	w.Flush()
	batches := c.all()
	if len(batches) != 1 {
		t.Fatalf("Expected 1 batch, got %d", len(batches))
	}

	got := make(map[string]EventType)
	for _, ev := range batches[0] {
		got[ev.Path] = ev.Type
	}
	want := map[string]EventType{
		"lib/a.scad": EventModify,
		"lib/b.scad": EventCreate,
		"main.scad":  EventDelete,
	}
	for path, typ := range want {
		if got[path] != typ {
			t.Errorf("%s: got %v, want %v", path, got[path], typ)
		}
	}
}

func TestWatcherSetFilesKeepsStamps(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.scad", "cube(1);")

	w := New(root, Config{PollInterval: time.Hour, Debounce: time.Hour}, logging.NewNopLogger(), nil)
	w.SetFiles([]string{"a.scad"})

	writeFile(t, root, "a.scad", "cube(12345);")
	w.SetFiles([]string{"a.scad", "b.scad"})

	if n := w.Check(); n != 1 {
		t.Errorf("a change made before SetFiles should still be reported, got %d changes", n)
	}
	files := w.Files()
	if len(files) != 2 || files[0] != "a.scad" || files[1] != "b.scad" {
		t.Errorf("Files() = %v", files)
	}
}

func TestWatcherRunDeliversDebouncedBatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.scad", "cube(1);")

	done := make(chan []Event, 1)
	w := New(root, Config{PollInterval: 10 * time.Millisecond, Debounce: 20 * time.Millisecond},
		logging.NewNopLogger(), func(events []Event) { done <- events })
	w.SetFiles([]string{"a.scad"})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	writeFile(t, root, "a.scad", "cube(100);")

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Path != "a.scad" {
			t.Errorf("unexpected batch %+v", events)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change batch delivered")
	}

	cancel()
	if err := <-errCh; err != context.Canceled {
		t.Errorf("Run should return context.Canceled, got %v", err)
	}
}

func TestBatchDebouncerAdd(t *testing.T) {
	var received []Event
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		received = events
		mu.Unlock()
	}

	b := NewBatchDebouncer(50*time.Millisecond, emit)

	b.Add(Event{Type: EventCreate, Path: "a.scad"})
	b.Add(Event{Type: EventModify, Path: "b.scad"})
	b.Add(Event{Type: EventDelete, Path: "c.scad"})

	if b.EventCount() != 3 {
		t.Errorf("EventCount() = %d, want 3", b.EventCount())
	}

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	if len(received) != 3 {
		t.Errorf("Should have received 3 events, got %d", len(received))
	}
	mu.Unlock()
}

func TestBatchDebouncerMergesPath(t *testing.T) {
	b := NewBatchDebouncer(time.Hour, nil)
	defer b.Cancel()

	b.Add(Event{Type: EventModify, Path: "a.scad"})
	b.Add(Event{Type: EventModify, Path: "b.scad"})
	b.Add(Event{Type: EventDelete, Path: "a.scad"})

	got := b.Pending()
	if len(got) != 2 {
		t.Fatalf("Expected 2 pending paths, got %d", len(got))
	}
	if got[0].Path != "a.scad" || got[0].Type != EventDelete {
		t.Errorf("a.scad should keep its first position with the latest type, got %+v", got[0])
	}
}

func TestBatchDebouncerMergeRules(t *testing.T) {
	tests := []struct {
		name  string
		types []EventType
		want  []EventType
	}{
		{"create then delete drops the path", []EventType{EventCreate, EventDelete}, nil},
		{"delete then create is a modify", []EventType{EventDelete, EventCreate}, []EventType{EventModify}},
		{"create then modify stays create", []EventType{EventCreate, EventModify}, []EventType{EventCreate}},
		{"modify then delete is a delete", []EventType{EventModify, EventDelete}, []EventType{EventDelete}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatchDebouncer(time.Hour, nil)
			defer b.Cancel()
			for _, typ := range tt.types {
				b.Add(Event{Type: typ, Path: "x.scad"})
			}

			got := b.Pending()
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d pending events, got %+v", len(tt.want), got)
			}
			for i := range got {
				if got[i].Type != tt.want[i] {
					t.Errorf("Expected %s, got %s", tt.want[i], got[i].Type)
				}
			}
		})
	}
}

func TestBatchDebouncerCancel(t *testing.T) {
	var called bool
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		called = true
		mu.Unlock()
	}

	b := NewBatchDebouncer(50*time.Millisecond, emit)
	b.Add(Event{Type: EventCreate, Path: "a.scad"})
	b.Cancel()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	if called {
		t.Error("Emit should not be called after cancel")
	}
	mu.Unlock()

	if b.EventCount() != 0 {
		t.Errorf("EventCount() = %d, want 0 after cancel", b.EventCount())
	}
}

func TestBatchDebouncerFlush(t *testing.T) {
	var received []Event
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		received = events
		mu.Unlock()
	}

	b := NewBatchDebouncer(500*time.Millisecond, emit)
	b.Add(Event{Type: EventCreate, Path: "a.scad"})
	b.Flush()

	mu.Lock()
	if len(received) != 1 {
		t.Errorf("Should have received 1 event, got %d", len(received))
	}
	mu.Unlock()

	if b.EventCount() != 0 {
		t.Errorf("EventCount() = %d, want 0 after flush", b.EventCount())
	}
}

func TestBatchDebouncerNoEmitWithNoEvents(t *testing.T) {
	var called bool
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		called = true
		mu.Unlock()
	}

	b := NewBatchDebouncer(10*time.Millisecond, emit)
	b.Flush()

	mu.Lock()
	if called {
		t.Error("Emit should not be called with no events")
	}
	mu.Unlock()
}
