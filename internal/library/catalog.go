package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"scadforge/internal/imports"
	"scadforge/internal/paths"
)

const (
	// CatalogFileName is written into the library directory
	CatalogFileName = "catalog.json"
	// DescriptorFileName optionally describes the library
	DescriptorFileName = "library.toml"
	// SourceExtension marks the files listed in a catalog
	SourceExtension = ".scad"
)

// Descriptor is the content of library.toml
type Descriptor struct {
	Name    string `toml:"name" json:"name,omitempty"`
	Prefix  string `toml:"prefix" json:"prefix,omitempty"`
	Version string `toml:"version" json:"version,omitempty"`
}

// Entry is one catalog node. In JSON a file is a bare name and a
// directory is a two-element array [name, [children...]].
type Entry struct {
	Name     string
	Dir      bool
	Children []Entry
}

// MarshalJSON implements json.Marshaler
func (e Entry) MarshalJSON() ([]byte, error) {
	if !e.Dir {
		return json.Marshal(e.Name)
	}
	children := e.Children
	if children == nil {
		children = []Entry{}
	}
	return json.Marshal([]interface{}{e.Name, children})
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*e = Entry{}
		return json.Unmarshal(data, &e.Name)
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("catalog entry must be a name or [name, children]: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("catalog directory entry has %d elements, want 2", len(pair))
	}
	var name string
	if err := json.Unmarshal(pair[0], &name); err != nil {
		return fmt.Errorf("catalog directory name: %w", err)
	}
	var children []Entry
	if err := json.Unmarshal(pair[1], &children); err != nil {
		return err
	}
	if children == nil {
		children = []Entry{}
	}
	*e = Entry{Name: name, Dir: true, Children: children}
	return nil
}

// Catalog lists every source file of a library
type Catalog struct {
	Descriptor Descriptor
	Entries    []Entry
}

// BuildCatalog walks dir in sorted order. Directories are always listed,
// even when they hold no source files; other files only when they end in .scad.
func BuildCatalog(dir string) (*Catalog, error) {
	desc, err := ReadDescriptor(dir)
	if err != nil {
		return nil, err
	}
	entries, err := buildTree(dir)
	if err != nil {
		return nil, err
	}
	return &Catalog{Descriptor: desc, Entries: entries}, nil
}

func buildTree(dir string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	entries := []Entry{}
	for _, item := range items {
		full := filepath.Join(dir, item.Name())
		isDir := item.IsDir()
		if item.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil {
				continue
			}
			isDir = info.IsDir()
		}

		switch {
		case isDir:
			children, err := buildTree(full)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Name: item.Name(), Dir: true, Children: children})
		case strings.HasSuffix(item.Name(), SourceExtension):
			entries = append(entries, Entry{Name: item.Name()})
		}
	}
	return entries, nil
}

// ReadDescriptor decodes dir/library.toml. A missing file yields a zero Descriptor.
func ReadDescriptor(dir string) (Descriptor, error) {
	var desc Descriptor
	path := filepath.Join(dir, DescriptorFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return desc, nil
	}
	if _, err := toml.DecodeFile(path, &desc); err != nil {
		return desc, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if desc.Prefix != "" {
		desc.Prefix = paths.NormalizeAbs(desc.Prefix)
	}
	return desc, nil
}

// Prefix returns the descriptor prefix or fallback
func (c *Catalog) Prefix(fallback string) string {
	if c.Descriptor.Prefix != "" {
		return c.Descriptor.Prefix
	}
	if fallback == "" {
		fallback = imports.DefaultLibraryPrefix
	}
	return paths.NormalizeAbs(fallback)
}

// Files flattens the catalog into slash paths relative to the library root
func (c *Catalog) Files() []string {
	var out []string
	var walk func(prefix string, entries []Entry)
	walk = func(prefix string, entries []Entry) {
		for _, e := range entries {
			p := e.Name
			if prefix != "" {
				p = prefix + "/" + e.Name
			}
			if e.Dir {
				walk(p, e.Children)
				continue
			}
			out = append(out, p)
		}
	}
	walk("", c.Entries)
	return out
}

// MarshalIndent renders the catalog in its on-disk form
func (c *Catalog) MarshalIndent() ([]byte, error) {
	entries := c.Entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// WriteCatalog writes dir/catalog.json
func WriteCatalog(dir string, c *Catalog) (string, error) {
	data, err := c.MarshalIndent()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, CatalogFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write catalog: %w", err)
	}
	return path, nil
}

// LoadCatalog reads dir/catalog.json and the descriptor beside it
func LoadCatalog(dir string) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Join(dir, CatalogFileName))
	if err != nil {
		return nil, err
	}
	return ParseCatalog(dir, data)
}

// ParseCatalog decodes catalog JSON; the descriptor is read from dir when non-empty
func ParseCatalog(dir string, data []byte) (*Catalog, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	c := &Catalog{Entries: entries}
	if dir != "" {
		desc, err := ReadDescriptor(dir)
		if err != nil {
			return nil, err
		}
		c.Descriptor = desc
	}
	return c, nil
}
