// Package parts splits one script into per-part variants along its
// "// @export" markers.
//
// A marker line looks like
//
//	// @export Lid
//	// !@export Debug
//
// and starts a block that runs to the next marker, the end of the file, or
// the first blank line after a line containing ';', whichever comes first.
// Every part's source is the preamble before the first marker followed by
// that part's block only; the other blocks are removed from the text.
package parts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"scadforge/internal/errors"
)

// FullPartName names the single part returned for a script without markers
const FullPartName = "Full"

var (
	markerPattern = regexp.MustCompile(`^//\s*(!?)@export(?:\s+([A-Za-z0-9_.\-]+))?$`)
	colorPattern  = regexp.MustCompile(`\bcolor\s*\(\s*(?:"([^"]*)"|'([^']*)'|([^,)\s]+))\s*\)`)
)

// Part is one renderable variant of a script
type Part struct {
	Name          string `json:"name"`
	OwnSourceCode string `json:"ownSourceCode"`
	Color         string `json:"color,omitempty"`
	Exported      bool   `json:"exported"`

	// Index is the 0-based discovery order
	Index int `json:"index"`

	// StartLine and EndLine are the block's half-open, 0-based line range.
	// Both are zero for the Full fallback.
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

// block is the span of one export block
type block struct {
	name      string
	startLine int
	endLine   int
	exported  bool
}

// marker is a parsed marker line
type marker struct {
	line     int
	name     string
	exported bool
}

// Identify partitions text into parts keyed by name. A script without
// markers yields a single non-exported Full part holding the whole script.
// A name declared twice fails the whole call with DUPLICATE_PART.
func Identify(text string) (map[string]*Part, error) {
	text = normalizeNewlines(text)
	lines := strings.Split(text, "\n")

	markers := findMarkers(lines)
	if len(markers) == 0 {
		return map[string]*Part{
			FullPartName: {Name: FullPartName, OwnSourceCode: text},
		}, nil
	}

	blocks, err := spanBlocks(lines, markers)
	if err != nil {
		return nil, err
	}

	preamble := strings.Join(lines[:markers[0].line], "\n")
	result := make(map[string]*Part, len(blocks))
	for i, b := range blocks {
		body := strings.Join(lines[b.startLine:b.endLine], "\n")
		part := &Part{
			Name:          b.name,
			OwnSourceCode: strings.TrimSpace(preamble + "\n\n\n" + body),
			Exported:      b.exported,
			Index:         i,
			StartLine:     b.startLine,
			EndLine:       b.endLine,
		}
		if c, ok := ExtractColor(body); ok {
			part.Color = c
		}
		result[b.name] = part
	}
	return result, nil
}

// Ordered returns the parts in discovery order
func Ordered(parts map[string]*Part) []*Part {
	out := make([]*Part, 0, len(parts))
	for _, p := range parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// IsFallback reports whether parts is the no-marker result
func IsFallback(parts map[string]*Part) bool {
	if len(parts) != 1 {
		return false
	}
	p, ok := parts[FullPartName]
	return ok && !p.Exported && p.StartLine == 0 && p.EndLine == 0
}

// ExtractColor returns the argument of the first color(...) call in text
func ExtractColor(text string) (string, bool) {
	m := colorPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	for _, g := range m[1:] {
		if g != "" {
			return strings.TrimSpace(g), true
		}
	}
	// color("") matched with an empty quoted argument
	return "", true
}

func normalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}

func findMarkers(lines []string) []marker {
	var out []marker
	for i, line := range lines {
		m := markerPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		out = append(out, marker{line: i, name: m[2], exported: m[1] == ""})
	}
	return out
}

// spanBlocks names each marker and finds where its block ends
func spanBlocks(lines []string, markers []marker) ([]block, error) {
	blocks := make([]block, 0, len(markers))
	seen := make(map[string]bool, len(markers))

	for k, m := range markers {
		name := m.name
		if name == "" {
			name = fmt.Sprintf("Part%d", k+1)
		}
		if seen[name] {
			return nil, errors.New(errors.DuplicatePart,
				fmt.Sprintf("export name %q is declared more than once", name), nil).
				WithDetails(map[string]interface{}{"name": name, "line": m.line + 1})
		}
		seen[name] = true

		limit := len(lines)
		if k+1 < len(markers) {
			limit = markers[k+1].line
		}

		end := limit
		sawTerminator := false
		for i := m.line + 1; i < limit; i++ {
			if sawTerminator && strings.TrimSpace(lines[i]) == "" {
				end = i
				break
			}
			if strings.Contains(lines[i], ";") {
				sawTerminator = true
			}
		}

		blocks = append(blocks, block{
			name:      name,
			startLine: m.line,
			endLine:   end,
			exported:  m.exported,
		})
	}
	return blocks, nil
}
