package imports

import (
	"sort"
	"strings"

	"scadforge/internal/paths"
)

// DefaultVMRoot is the reserved namespace project files are mounted under
const DefaultVMRoot = "/project"

// Rewriter turns project imports into absolute VM paths so project files
// cannot collide with library or external namespaces once materialized.
type Rewriter struct {
	root     string
	resolver *Resolver
}

// NewRewriter creates a rewriter mounting the project at root.
// A nil resolver uses DefaultResolver.
func NewRewriter(root string, resolver *Resolver) *Rewriter {
	if resolver == nil {
		resolver = DefaultResolver()
	}
	root = paths.NormalizeAbs(root)
	if root == "/" {
		root = DefaultVMRoot
	}
	return &Rewriter{root: root, resolver: resolver}
}

// DefaultRewriter mounts at DefaultVMRoot with the default library prefix
func DefaultRewriter() *Rewriter {
	return NewRewriter(DefaultVMRoot, nil)
}

// Root returns the VM namespace root
func (w *Rewriter) Root() string {
	return w.root
}

// Resolver returns the resolver classifying imports
func (w *Rewriter) Resolver() *Resolver {
	return w.resolver
}

// ToVMPath maps a project-relative path into the VM namespace
func (w *Rewriter) ToVMPath(rel string) string {
	return paths.NormalizeAbs(w.root, rel)
}

// FromVMPath strips the VM root, the inverse of ToVMPath
func (w *Rewriter) FromVMPath(abs string) (string, bool) {
	abs = paths.NormalizeAbs(abs)
	if !paths.HasPrefix(abs, w.root) {
		return "", false
	}
	return paths.Normalize(strings.TrimPrefix(abs, w.root)), true
}

type splice struct {
	start, end int
	text       string
}

// Rewrite replaces every project-relative and project-root operand in text,
// as seen from the file at own, with its VM path. Only operand bytes change.
// External and library operands are left alone, which also makes Rewrite
// idempotent: rewritten operands are absolute.
func (w *Rewriter) Rewrite(text, own string) string {
	return spliceOperands(text, func(raw string) (string, bool) {
		ref := w.resolver.Classify(raw, own)
		if !ref.Kind.IsProject() {
			return "", false
		}
		vm := w.ToVMPath(ref.Resolved)
		return vm, vm != raw
	})
}

// RebaseAbsolute prefixes every absolute operand in text with hostRoot, so
// a VM materialized under hostRoot can be read by a process that sees the
// host filesystem. Applying it twice prefixes twice.
func RebaseAbsolute(text, hostRoot string) string {
	hostRoot = strings.TrimSuffix(hostRoot, "/")
	return spliceOperands(text, func(raw string) (string, bool) {
		if !paths.IsAbs(raw) {
			return "", false
		}
		return hostRoot + paths.NormalizeAbs(raw), true
	})
}

// spliceOperands replaces the operands for which replace returns true
func spliceOperands(text string, replace func(raw string) (string, bool)) string {
	ex := Extract(text)
	occs := make([]Occurrence, 0, len(ex.Includes)+len(ex.Meshes))
	occs = append(occs, ex.Includes...)
	occs = append(occs, ex.Meshes...)
	if len(occs) == 0 {
		return text
	}
	sort.SliceStable(occs, func(i, j int) bool { return occs[i].Start < occs[j].Start })

	splices := make([]splice, 0, len(occs))
	end := -1
	for _, occ := range occs {
		// The scanners are independent; a span seen twice is rewritten once.
		if occ.Start < end {
			continue
		}
		end = occ.End

		if repl, ok := replace(occ.Raw); ok {
			splices = append(splices, splice{start: occ.Start, end: occ.End, text: repl})
		}
	}
	if len(splices) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, s := range splices {
		b.WriteString(text[last:s.start])
		b.WriteString(s.text)
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// RewriteFileSet returns the text of every source file in set rewritten
// for the VM, keyed by VM path. Binary files are returned unchanged.
func (w *Rewriter) RewriteFileSet(set *FileSet) map[string][]byte {
	out := make(map[string][]byte, len(set.Files))
	for p, f := range set.Files {
		if f.Binary {
			out[w.ToVMPath(p)] = f.Data
			continue
		}
		out[w.ToVMPath(p)] = []byte(w.Rewrite(f.Text(), p))
	}
	return out
}

var defaultRewriter = DefaultRewriter()

// RewriteProjectImportsForVM rewrites text with the default VM root and library prefix
func RewriteProjectImportsForVM(text, own string) string {
	return defaultRewriter.Rewrite(text, own)
}

// ToVMProjectPath maps a project-relative path under the default VM root
func ToVMProjectPath(rel string) string {
	return defaultRewriter.ToVMPath(rel)
}
