package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		segments []string
		want     string
	}{
		{"single file", []string{"a.scad"}, "a.scad"},
		{"dot segments", []string{"./lib/./gear.scad"}, "lib/gear.scad"},
		{"parent pops", []string{"lib/parts", "../gear.scad"}, "lib/gear.scad"},
		{"empty segments", []string{"lib//", "", "gear.scad"}, "lib/gear.scad"},
		{"leading slash dropped", []string{"/lib/gear.scad"}, "lib/gear.scad"},
		{"parent past root absorbed", []string{"../../x.scad"}, "x.scad"},
		{"everything cancels", []string{"a/b", "../.."}, ""},
		{"no segments", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.segments...); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.segments, got, tt.want)
			}
		})
	}
}

func TestNormalizeAbs(t *testing.T) {
	cases := map[string]string{
		"/SFLibs/core.scad":      "/SFLibs/core.scad",
		"//SFLibs/./core.scad":   "/SFLibs/core.scad",
		"/SFLibs/x/../core.scad": "/SFLibs/core.scad",
		"/..":                    "/",
	}
	for in, want := range cases {
		if got := NormalizeAbs(in); got != want {
			t.Errorf("NormalizeAbs(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinAndDir(t *testing.T) {
	if got := Join(Dir("designs/box.scad"), "helpers/x.scad"); got != "designs/helpers/x.scad" {
		t.Errorf("Join = %q, want designs/helpers/x.scad", got)
	}
	if got := Join(Dir("box.scad"), "helpers/x.scad"); got != "helpers/x.scad" {
		t.Errorf("Join from top level = %q, want helpers/x.scad", got)
	}
	if got := Dir("box.scad"); got != "" {
		t.Errorf("Dir(top-level) = %q, want empty", got)
	}
	if got := Dir("a/b/c.scad"); got != "a/b" {
		t.Errorf("Dir = %q, want a/b", got)
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		p, prefix string
		want      bool
	}{
		{"/SFLibs/core.scad", "/SFLibs", true},
		{"/SFLibs/core.scad", "/SFLibs/", true},
		{"/SFLibs", "/SFLibs", true},
		{"/SFLibsExtra/core.scad", "/SFLibs", false},
		{"/other/core.scad", "/SFLibs", false},
		{"/anything", "", true},
	}
	for _, tt := range tests {
		if got := HasPrefix(tt.p, tt.prefix); got != tt.want {
			t.Errorf("HasPrefix(%q, %q) = %v, want %v", tt.p, tt.prefix, got, tt.want)
		}
	}
}

func TestCanonicalizePath(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "lib")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file := filepath.Join(sub, "gear.scad")
	if err := os.WriteFile(file, []byte("module gear(){}"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := CanonicalizePath(file, root)
	if err != nil {
		t.Fatalf("CanonicalizePath failed: %v", err)
	}
	if got != "lib/gear.scad" {
		t.Errorf("Expected lib/gear.scad, got %s", got)
	}

	if !IsWithinRepo(file, root) {
		t.Error("file under root should be within repo")
	}
	if IsWithinRepo(filepath.Dir(root), root) {
		t.Error("parent of root should not be within repo")
	}
}

func TestJoinRepoPath(t *testing.T) {
	got := JoinRepoPath("/proj", "lib/gear.scad")
	want := filepath.Join("/proj", "lib", "gear.scad")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestEnsureDataDir(t *testing.T) {
	root := t.TempDir()
	dir, err := EnsureDataDir(root)
	if err != nil {
		t.Fatalf("EnsureDataDir failed: %v", err)
	}
	if dir != filepath.Join(root, DataDirName) {
		t.Errorf("Expected %s, got %s", filepath.Join(root, DataDirName), dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("data dir should exist: %v", err)
	}
}
