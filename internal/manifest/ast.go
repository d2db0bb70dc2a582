// Package manifest reads the declarative site manifest from disk. A manifest is a root TOML
// file plus any files it imports; the parser merges them into a single Tree and records a
// fingerprint of every file it read so the Source can later tell whether a reparse is needed.
package manifest

import (
	"slices"
	"time"
)

// DefaultNode is the node entry used when no candidate name matches.
const DefaultNode = "default"

// ResourceDecl is a resource as written in the manifest, before interpolation.
type ResourceDecl struct {
	Type   string         `toml:"type"`
	Title  string         `toml:"title"`
	Params map[string]any `toml:"params"`
}

// Class is a named, reusable group of resources.
type Class struct {
	Name      string         `toml:"-"`
	File      string         `toml:"-"`
	Inherits  string         `toml:"inherits"`
	Includes  []string       `toml:"includes"`
	Variables map[string]any `toml:"variables"`
	Resources []ResourceDecl `toml:"resources"`
}

// Node binds classes, variables and resources to a client name.
type Node struct {
	Name      string         `toml:"-"`
	File      string         `toml:"-"`
	Classes   []string       `toml:"classes"`
	Variables map[string]any `toml:"variables"`
	Resources []ResourceDecl `toml:"resources"`
}

// Tree is the merged syntax tree of a manifest and all of its imports.
type Tree struct {
	Root      string
	Includes  []string
	Variables map[string]any
	Resources []ResourceDecl
	Classes   map[string]*Class
	Nodes     map[string]*Node
	Files     FileSet
}

// ClassNames returns the defined class names in sorted order.
func (t *Tree) ClassNames() []string {
	names := make([]string, 0, len(t.Classes))
	for name := range t.Classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NodeNames returns the defined node names in sorted order.
func (t *Tree) NodeNames() []string {
	names := make([]string, 0, len(t.Nodes))
	for name := range t.Nodes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Fingerprint identifies the content of one manifest file at the time it was parsed.
type Fingerprint struct {
	Path    string
	ModTime time.Time
	Size    int64
	Digest  [32]byte
}

// FileSet is every file that contributed to a Tree, together with the import patterns that
// selected them. A new match for any pattern means the manifest has changed.
type FileSet struct {
	Files    []Fingerprint
	Patterns []string
}

// Paths returns the paths of all fingerprinted files in parse order.
func (fs FileSet) Paths() []string {
	paths := make([]string, 0, len(fs.Files))
	for _, f := range fs.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Contains reports whether path was part of the set.
func (fs FileSet) Contains(path string) bool {
	for _, f := range fs.Files {
		if f.Path == path {
			return true
		}
	}
	return false
}
