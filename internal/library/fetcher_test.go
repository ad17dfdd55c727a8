package library

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"scadforge/internal/errors"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func TestDirFetcher(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"gears/spur.scad": "module spur(){}"})
	f := NewDirFetcher("/SFLibs/", dir)
	ctx := context.Background()

	data, err := f.Fetch(ctx, "/SFLibs/gears/./spur.scad")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "module spur(){}" {
		t.Errorf("Unexpected content %q", data)
	}

	tests := []string{
		"/SFLibs/missing.scad",
		"/vendor/knob.scad",
		"/SFLibsExtra/gears/spur.scad",
	}
	for _, p := range tests {
		if _, err := f.Fetch(ctx, p); !errors.HasCode(err, errors.MissingExternal) {
			t.Errorf("Fetch(%s): expected MISSING_EXTERNAL, got %v", p, err)
		}
	}
}

func TestHTTPFetcher(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Path == "/SFLibs/core.scad" {
			_, _ = w.Write([]byte("module core(){}"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/", nil)
	data, err := f.Fetch(context.Background(), "/SFLibs/x/../core.scad")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "module core(){}" {
		t.Errorf("Unexpected content %q", data)
	}
	if gotPath != "/SFLibs/core.scad" {
		t.Errorf("Expected normalized request path, got %s", gotPath)
	}

	_, err = f.Fetch(context.Background(), "/nope.scad")
	if !errors.HasCode(err, errors.MissingExternal) {
		t.Errorf("Expected MISSING_EXTERNAL for 404, got %v", err)
	}
}

// funcFetcher adapts a function to Fetcher
type funcFetcher func(ctx context.Context, p string) ([]byte, error)

func (f funcFetcher) Fetch(ctx context.Context, p string) ([]byte, error) { return f(ctx, p) }

func TestChain(t *testing.T) {
	miss := funcFetcher(func(_ context.Context, p string) ([]byte, error) {
		return nil, missingExternal(p, nil)
	})
	hit := funcFetcher(func(_ context.Context, p string) ([]byte, error) {
		return []byte("found " + p), nil
	})
	broken := funcFetcher(func(_ context.Context, p string) ([]byte, error) {
		return nil, errors.Newf(errors.InternalError, "boom")
	})

	data, err := Chain{miss, hit}.Fetch(context.Background(), "/a.scad")
	if err != nil || string(data) != "found /a.scad" {
		t.Errorf("Expected the second fetcher to answer, got %q (%v)", data, err)
	}

	if _, err := (Chain{broken, hit}).Fetch(context.Background(), "/a.scad"); !errors.HasCode(err, errors.InternalError) {
		t.Errorf("Expected non-missing errors to stop the chain, got %v", err)
	}

	if _, err := (Chain{}).Fetch(context.Background(), "/a.scad"); !errors.HasCode(err, errors.MissingExternal) {
		t.Errorf("Expected MISSING_EXTERNAL from an empty chain, got %v", err)
	}
}

func TestCachingFetcher(t *testing.T) {
	var calls int64
	inner := funcFetcher(func(_ context.Context, p string) ([]byte, error) {
		atomic.AddInt64(&calls, 1)
		if p == "/bad.scad" {
			return nil, missingExternal(p, nil)
		}
		return []byte(p), nil
	})

	f, err := NewCachingFetcher(inner, 4, nil)
	if err != nil {
		t.Fatalf("NewCachingFetcher failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if data, err := f.Fetch(context.Background(), "/lib/a.scad"); err != nil || string(data) != "/lib/a.scad" {
				t.Errorf("Fetch returned %q, %v", data, err)
			}
		}()
	}
	wg.Wait()

	if _, err := f.Fetch(context.Background(), "/lib/./a.scad"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	before := atomic.LoadInt64(&calls)
	if before < 1 || before > 16 {
		t.Errorf("Expected between 1 and 16 inner calls, got %d", before)
	}
	if _, err := f.Fetch(context.Background(), "/lib/a.scad"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if atomic.LoadInt64(&calls) != before {
		t.Error("a cached path should not reach the inner fetcher")
	}

	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), "/bad.scad"); err == nil {
			t.Fatal("Expected an error for /bad.scad")
		}
	}
	if atomic.LoadInt64(&calls) != before+2 {
		t.Error("failures should not be cached")
	}
	if f.Len() != 1 {
		t.Errorf("Expected 1 cached entry, got %d", f.Len())
	}
}
