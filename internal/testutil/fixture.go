// Package testutil provides testing utilities for golden tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FixtureContext holds information about a loaded fixture.
type FixtureContext struct {
	// Name is the fixture directory name (e.g., "gearbox")
	Name string

	// Root is the absolute path to the fixture directory
	Root string

	// ProjectDir holds the fixture's project files
	ProjectDir string

	// LibraryDir holds the fixture's shared library; empty when it has none
	LibraryDir string

	// ExpectedDir is the path to the expected/ directory
	ExpectedDir string
}

// LoadFixture loads a project fixture, failing the test on error.
func LoadFixture(t *testing.T, name string) *FixtureContext {
	t.Helper()

	root := getFixturesRoot(t)
	fixtureDir := filepath.Join(root, name)

	projectDir := filepath.Join(fixtureDir, "project")
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		t.Fatalf("Fixture project not found: %s", projectDir)
	}

	libraryDir := filepath.Join(fixtureDir, "library")
	if _, err := os.Stat(libraryDir); os.IsNotExist(err) {
		libraryDir = ""
	}

	return &FixtureContext{
		Name:        name,
		Root:        fixtureDir,
		ProjectDir:  projectDir,
		LibraryDir:  libraryDir,
		ExpectedDir: filepath.Join(fixtureDir, "expected"),
	}
}

// ExpectedPath returns the path to a golden file within the fixture.
// The name should not include the .golden extension.
func (f *FixtureContext) ExpectedPath(name string) string {
	return filepath.Join(f.ExpectedDir, name+".golden")
}

// getFixturesRoot returns the absolute path to testdata/fixtures/.
func getFixturesRoot(t *testing.T) string {
	t.Helper()

	// Get the directory of this source file
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	fixturesRoot := filepath.Join(projectRoot, "testdata", "fixtures")

	if _, err := os.Stat(fixturesRoot); os.IsNotExist(err) {
		t.Fatalf("Fixtures root not found: %s", fixturesRoot)
	}

	return fixturesRoot
}

// AvailableFixtures returns the fixtures that have a project directory.
func AvailableFixtures(t *testing.T) []string {
	t.Helper()

	root := getFixturesRoot(t)
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("Failed to read fixtures directory: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || isHiddenDir(entry.Name()) {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), "project")); err == nil {
			names = append(names, entry.Name())
		}
	}
	return names
}

// ForEachFixture runs fn once per available fixture.
// Respects the -fixture flag.
func ForEachFixture(t *testing.T, fn func(t *testing.T, fixture *FixtureContext)) {
	t.Helper()

	names := AvailableFixtures(t)
	if len(names) == 0 {
		t.Skip("No fixtures available")
	}

	for _, name := range names {
		if !ShouldTestFixture(name) {
			continue
		}
		t.Run(name, func(t *testing.T) {
			fn(t, LoadFixture(t, name))
		})
	}
}

func isHiddenDir(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
