package parts

import (
	"reflect"
	"strings"
	"testing"

	"scadforge/internal/errors"
)

func TestIdentifyNoMarkers(t *testing.T) {
	got, err := Identify("module m(){cube(1);}")
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}

	want := map[string]*Part{
		"Full": {Name: "Full", OwnSourceCode: "module m(){cube(1);}"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %+v, got %+v", want["Full"], got["Full"])
	}
	if !IsFallback(got) {
		t.Error("IsFallback should recognise the no-marker result")
	}
}

func TestIdentifyNoMarkersKeepsWhitespace(t *testing.T) {
	got, err := Identify("\r\n// plain comment\r\ncube(1);\r\n\r\n")
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if got[FullPartName].OwnSourceCode != "\n// plain comment\ncube(1);\n\n" {
		t.Errorf("fallback should be the normalized script verbatim, got %q", got[FullPartName].OwnSourceCode)
	}
}

func TestIdentifyPreambleSharing(t *testing.T) {
	script := "CONST=1;\n\n// @export A\ncube(CONST);\n\n// @export B\nsphere(CONST);"

	got, err := Identify(script)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(got))
	}

	a, b := got["A"], got["B"]
	if a == nil || b == nil {
		t.Fatalf("Expected parts A and B, got %v", keys(got))
	}
	if !strings.HasPrefix(a.OwnSourceCode, "CONST=1;") || !strings.HasPrefix(b.OwnSourceCode, "CONST=1;") {
		t.Errorf("both parts should start with the preamble:\nA: %q\nB: %q", a.OwnSourceCode, b.OwnSourceCode)
	}
	if strings.Contains(a.OwnSourceCode, "// @export B") || strings.Contains(a.OwnSourceCode, "sphere") {
		t.Errorf("A contains B's block: %q", a.OwnSourceCode)
	}
	if strings.Contains(b.OwnSourceCode, "// @export A") || strings.Contains(b.OwnSourceCode, "cube") {
		t.Errorf("B contains A's block: %q", b.OwnSourceCode)
	}

	if a.OwnSourceCode != "CONST=1;\n\n\n\n// @export A\ncube(CONST);" {
		t.Errorf("Unexpected A source: %q", a.OwnSourceCode)
	}
	if b.OwnSourceCode != "CONST=1;\n\n\n\n// @export B\nsphere(CONST);" {
		t.Errorf("Unexpected B source: %q", b.OwnSourceCode)
	}
	if !a.Exported || !b.Exported {
		t.Error("plain markers should be exported")
	}
}

func TestIdentifyAutoNaming(t *testing.T) {
	script := strings.Join([]string{
		"// @export",
		"cube(1);",
		"// @export Lid",
		"cube(2);",
		"// !@export",
		"cube(3);",
	}, "\n")

	got, err := Identify(script)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}

	names := make([]string, 0, len(got))
	for _, p := range Ordered(got) {
		names = append(names, p.Name)
	}
	if !reflect.DeepEqual(names, []string{"Part1", "Lid", "Part3"}) {
		t.Errorf("Expected [Part1 Lid Part3], got %v", names)
	}
	if got["Part3"].Exported {
		t.Error("!@export should produce a non-exported part")
	}
	if !got["Lid"].Exported {
		t.Error("@export should produce an exported part")
	}
}

func TestIdentifyDuplicateName(t *testing.T) {
	script := "// @export X\ncube(1);\n// @export X\nsphere(1);"

	got, err := Identify(script)
	if err == nil {
		t.Fatalf("Expected an error, got %v", keys(got))
	}
	if got != nil {
		t.Error("no parts should be returned on a duplicate name")
	}
	if !errors.HasCode(err, errors.DuplicatePart) {
		t.Errorf("Expected DUPLICATE_PART, got %v", err)
	}
}

func TestIdentifyDuplicateOfAutoName(t *testing.T) {
	script := "// @export Part2\ncube(1);\n// @export\nsphere(1);"

	if _, err := Identify(script); !errors.HasCode(err, errors.DuplicatePart) {
		t.Errorf("an explicit name colliding with an auto name should fail, got %v", err)
	}
}

func TestIdentifyBlockSpans(t *testing.T) {
	tests := []struct {
		name      string
		script    string
		part      string
		wantStart int
		wantEnd   int
	}{
		{
			name:      "blank line after semicolon ends the block",
			script:    "// @export A\ncube(1);\n\ntrailing();",
			part:      "A",
			wantStart: 0,
			wantEnd:   2,
		},
		{
			name:      "blank line before any semicolon does not end the block",
			script:    "// @export A\ndifference() {\n\n  cube(2);\n}\n\nafter();",
			part:      "A",
			wantStart: 0,
			wantEnd:   5,
		},
		{
			name:      "no semicolon runs to end of file",
			script:    "// @export A\nmodule m() {}\n\n\nmodule n() {}",
			part:      "A",
			wantStart: 0,
			wantEnd:   5,
		},
		{
			name:      "next marker ends the block",
			script:    "// @export A\ncube(1);\n// @export B\nsphere(1);",
			part:      "A",
			wantStart: 0,
			wantEnd:   2,
		},
		{
			name:      "whitespace-only line counts as blank",
			script:    "x=1;\n// @export A\ncube(1);\n   \t\nrest();",
			part:      "A",
			wantStart: 1,
			wantEnd:   3,
		},
		{
			name:      "semicolon in a string still arms the heuristic",
			script:    "// @export A\necho(\"a;b\")\n\ncube(1);",
			part:      "A",
			wantStart: 0,
			wantEnd:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Identify(tt.script)
			if err != nil {
				t.Fatalf("Identify failed: %v", err)
			}
			p := got[tt.part]
			if p == nil {
				t.Fatalf("part %s missing, got %v", tt.part, keys(got))
			}
			if p.StartLine != tt.wantStart || p.EndLine != tt.wantEnd {
				t.Errorf("span = [%d,%d), want [%d,%d)", p.StartLine, p.EndLine, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestIdentifyTrailingContentExcluded(t *testing.T) {
	got, err := Identify("// @export A\ncube(1);\n\nunrelated();")
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if strings.Contains(got["A"].OwnSourceCode, "unrelated") {
		t.Errorf("content after the terminating blank line leaked into A: %q", got["A"].OwnSourceCode)
	}
}

func TestIdentifyCRLF(t *testing.T) {
	crlf, err := Identify("X=1;\r\n// @export A\r\ncube(X);\r\n\r\n// @export B\r\nsphere(X);")
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	lf, err := Identify("X=1;\n// @export A\ncube(X);\n\n// @export B\nsphere(X);")
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if !reflect.DeepEqual(crlf, lf) {
		t.Errorf("CRLF and LF inputs should partition identically")
	}
	if strings.Contains(crlf["A"].OwnSourceCode, "\r") {
		t.Error("output should not contain carriage returns")
	}
}

func TestIdentifyMarkerGrammar(t *testing.T) {
	tests := []struct {
		line     string
		isMarker bool
	}{
		{"// @export", true},
		{"   // @export Lid   ", true},
		{"//@export Lid", true},
		{"// !@export Debug", true},
		{"// @export two words", false},
		{"cube(1); // @export Lid", false},
		{"/* @export Lid */", false},
		{"// @exported", false},
		{"# @export", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Identify(tt.line + "\ncube(1);")
			if err != nil {
				t.Fatalf("Identify failed: %v", err)
			}
			if IsFallback(got) == tt.isMarker {
				t.Errorf("line %q: marker = %v, want %v", tt.line, !IsFallback(got), tt.isMarker)
			}
		})
	}
}

func TestIdentifyColor(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		color string
	}{
		{"double quoted", "color(\"rgb(255,0,0)\")\nchoroid_cut();", "rgb(255,0,0)"},
		{"single quoted", "color('red') cube(1);", "red"},
		{"bare token", "color(BodyColor) cube(1);", "BodyColor"},
		{"trimmed", "color(\"  teal \") cube(1);", "teal"},
		{"first wins", "color(\"red\") cube(1);\ncolor(\"blue\") cube(2);", "red"},
		{"absent", "cube(1);", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Identify("// @export P\n" + tt.body)
			if err != nil {
				t.Fatalf("Identify failed: %v", err)
			}
			if got["P"].Color != tt.color {
				t.Errorf("Color = %q, want %q", got["P"].Color, tt.color)
			}
		})
	}
}

func TestIdentifyColorScopedToBlock(t *testing.T) {
	script := "color(\"preamble\") cube(0);\n// @export A\ncube(1);\n// @export B\ncolor(\"green\") sphere(1);"
	got, err := Identify(script)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if got["A"].Color != "" {
		t.Errorf("A has no color call in its block, got %q", got["A"].Color)
	}
	if got["B"].Color != "green" {
		t.Errorf("B color = %q, want green", got["B"].Color)
	}
}

func TestIdentifyCompleteness(t *testing.T) {
	var b strings.Builder
	b.WriteString("include <lib.scad>\n")
	for i := 0; i < 12; i++ {
		b.WriteString("// @export\ncube(1);\n\n")
	}

	got, err := Identify(b.String())
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("Expected 12 parts, got %d", len(got))
	}

	for i, p := range Ordered(got) {
		if p.Index != i {
			t.Errorf("part %s has index %d, want %d", p.Name, p.Index, i)
		}
		if n := strings.Count(p.OwnSourceCode, "// @export"); n != 1 {
			t.Errorf("part %s should contain only its own marker, found %d", p.Name, n)
		}
		if !strings.HasPrefix(p.OwnSourceCode, "include <lib.scad>") {
			t.Errorf("part %s lost the preamble", p.Name)
		}
	}
}

func keys(m map[string]*Part) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
