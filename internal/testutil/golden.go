package testutil

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	// updateGolden controls whether golden files should be updated.
	// Use: go test ./... -run TestGolden -update
	updateGolden = flag.Bool("update", false, "update golden files")

	// fixtureFilter limits which fixtures are tested.
	// Use: go test ./... -run TestGolden -fixture=gearbox
	fixtureFilter = flag.String("fixture", "", "filter fixtures (comma-separated)")
)

// ShouldUpdate returns true if golden files should be updated.
func ShouldUpdate() bool {
	return *updateGolden
}

// ShouldTestFixture returns true if the named fixture should be tested.
func ShouldTestFixture(name string) bool {
	if *fixtureFilter == "" {
		return true
	}
	for _, f := range strings.Split(*fixtureFilter, ",") {
		if strings.TrimSpace(f) == name {
			return true
		}
	}
	return false
}

// Normalize makes text stable across machines: CRLF becomes LF and the
// fixture's absolute path becomes <fixture>.
func Normalize(fixture *FixtureContext, text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, fixture.Root, "<fixture>")
}

// CompareGolden compares got against the golden file, failing with a diff on mismatch.
// If -update flag is set, updates the golden file instead of comparing.
func CompareGolden(t *testing.T, fixture *FixtureContext, name string, got string) {
	t.Helper()

	normalized := []byte(Normalize(fixture, got))
	goldenPath := fixture.ExpectedPath(name)

	if *updateGolden {
		UpdateGolden(t, fixture, name, normalized)
		t.Logf("Updated golden: %s", goldenPath)
		return
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("Golden file missing: %s\n\nGot:\n%s\n\nRun with -update to create:\n  go test ./... -run %s -update",
				goldenPath, string(normalized), t.Name())
		}
		t.Fatalf("Failed to read golden file: %v", err)
	}
	expected = bytes.ReplaceAll(expected, []byte("\r\n"), []byte("\n"))

	if !bytes.Equal(normalized, expected) {
		diff := unifiedDiff(string(expected), string(normalized), goldenPath)
		t.Fatalf("Golden mismatch for %s:\n%s\n\nRun with -update to refresh:\n  go test ./... -run %s -update",
			name, diff, t.Name())
	}
}

// UpdateGolden writes data to the golden file.
// Creates parent directories if they don't exist.
func UpdateGolden(t *testing.T, fixture *FixtureContext, name string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(fixture.ExpectedDir, 0o755); err != nil {
		t.Fatalf("Failed to create expected directory: %v", err)
	}
	if err := os.WriteFile(fixture.ExpectedPath(name), data, 0o644); err != nil {
		t.Fatalf("Failed to write golden file: %v", err)
	}
}

// unifiedDiff renders a line diff between the golden and actual text
func unifiedDiff(expected, got, path string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- %s (expected)\n", path)
	fmt.Fprintf(&buf, "+++ %s (got)\n", path)

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(expected, got)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			buf.WriteString(prefix + line + "\n")
		}
	}
	return buf.String()
}
