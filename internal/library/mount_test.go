package library

import (
	"context"
	"reflect"
	"testing"

	"scadforge/internal/errors"
	"scadforge/internal/vmfs"
)

func TestMount(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"core.scad":         "module core(){}",
		"fasteners/m3.scad": "module m3(){}",
	})
	cat, err := BuildCatalog(dir)
	if err != nil {
		t.Fatalf("BuildCatalog failed: %v", err)
	}

	m := NewMounter(NewDirFetcher("/SFLibs", dir), cat, "", nil)
	fs := vmfs.NewMemFS()
	n, err := m.Mount(context.Background(), fs)
	if err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 files mounted, got %d", n)
	}

	want := []string{"/SFLibs/core.scad", "/SFLibs/fasteners/m3.scad"}
	if got := fs.Files(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	data, _ := fs.ReadFile("/SFLibs/fasteners/m3.scad")
	if string(data) != "module m3(){}" {
		t.Errorf("Unexpected mounted content %q", data)
	}
}

func TestMountMissingFile(t *testing.T) {
	dir := t.TempDir()
	cat := &Catalog{Entries: []Entry{{Name: "ghost.scad"}}}

	m := NewMounter(NewDirFetcher("/SFLibs", dir), cat, "/SFLibs", nil)
	if _, err := m.Mount(context.Background(), vmfs.NewMemFS()); !errors.HasCode(err, errors.MissingExternal) {
		t.Errorf("Expected MISSING_EXTERNAL, got %v", err)
	}
}

func TestMounterPrefixFromDescriptor(t *testing.T) {
	cat := &Catalog{Descriptor: Descriptor{Prefix: "/Vendor"}}
	if got := NewMounter(nil, cat, "", nil).Prefix(); got != "/Vendor" {
		t.Errorf("Expected /Vendor, got %s", got)
	}
}
