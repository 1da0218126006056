// Package vfs provides an in-memory model of the files a pipeline will
// produce, used to prove every step input exists before any real work runs.
package vfs

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type nodeKind uint8

const (
	kindDirectory nodeKind = iota
	kindFile
)

// Nodes live in a flat arena and reference children by index, so mutation
// during traversal never aliases a parent map. Detached subtrees stay in the
// arena; trees only live for one validation pass.
type node struct {
	kind     nodeKind
	children map[string]int
}

// Tree simulates filesystem state. Paths use forward slashes regardless of
// the host separator, leading "./" and "." components are ignored, and
// component comparison is exact. None of the operations return errors; acting
// on a missing path is a no-op.
type Tree struct {
	nodes []node
}

// New returns an empty tree rooted at an implicit directory.
func New() *Tree {
	return &Tree{nodes: []node{{kind: kindDirectory, children: map[string]int{}}}}
}

func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	components := raw[:0]
	for _, c := range raw {
		if c == "" || c == "." {
			continue
		}
		components = append(components, c)
	}
	return components
}

func (t *Tree) newNode(kind nodeKind) int {
	n := node{kind: kind}
	if kind == kindDirectory {
		n.children = map[string]int{}
	}
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

// AddFile records a file at path, creating intermediate directories. Adding a
// file where a directory already exists (or beneath a file) is silently
// ignored; the API is error-free by contract.
func (t *Tree) AddFile(path string) {
	components := splitPath(path)
	if len(components) == 0 {
		return
	}
	current := 0
	for i, component := range components {
		last := i == len(components)-1
		child, ok := t.nodes[current].children[component]
		if last {
			if ok && t.nodes[child].kind == kindDirectory {
				return
			}
			t.nodes[current].children[component] = t.newNode(kindFile)
			return
		}
		if !ok {
			child = t.newNode(kindDirectory)
			t.nodes[current].children[component] = child
		}
		if t.nodes[child].kind != kindDirectory {
			return
		}
		current = child
	}
}

// AddDir records a directory at path, creating intermediate directories.
// A file occupying any component stops the insertion.
func (t *Tree) AddDir(path string) {
	components := splitPath(path)
	if len(components) == 0 {
		return
	}
	current := 0
	for _, component := range components {
		child, ok := t.nodes[current].children[component]
		if !ok {
			child = t.newNode(kindDirectory)
			t.nodes[current].children[component] = child
		}
		if t.nodes[child].kind != kindDirectory {
			return
		}
		current = child
	}
}

func (t *Tree) lookup(path string) (int, bool) {
	components := splitPath(path)
	if len(components) == 0 {
		return 0, false
	}
	current := 0
	for i, component := range components {
		child, ok := t.nodes[current].children[component]
		if !ok {
			return 0, false
		}
		if i == len(components)-1 {
			return child, true
		}
		if t.nodes[child].kind != kindDirectory {
			return 0, false
		}
		current = child
	}
	return 0, false
}

// Exists reports whether a file or directory is present at path.
func (t *Tree) Exists(path string) bool {
	_, ok := t.lookup(path)
	return ok
}

// IsFile reports whether path names a file.
func (t *Tree) IsFile(path string) bool {
	idx, ok := t.lookup(path)
	return ok && t.nodes[idx].kind == kindFile
}

// IsDir reports whether path names a directory.
func (t *Tree) IsDir(path string) bool {
	idx, ok := t.lookup(path)
	return ok && t.nodes[idx].kind == kindDirectory
}

// Remove detaches the node at path, taking any subtree with it. Removing a
// missing path is a no-op.
func (t *Tree) Remove(path string) {
	components := splitPath(path)
	if len(components) == 0 {
		return
	}
	current := 0
	for i, component := range components {
		if i == len(components)-1 {
			delete(t.nodes[current].children, component)
			return
		}
		child, ok := t.nodes[current].children[component]
		if !ok || t.nodes[child].kind != kindDirectory {
			return
		}
		current = child
	}
}

// FindMatching walks the whole tree and returns every path, file or
// directory, whose slash-joined form matches the glob pattern. A malformed
// pattern yields an empty result. Results come back in sorted traversal
// order.
func (t *Tree) FindMatching(pattern string) []string {
	if !doublestar.ValidatePattern(pattern) {
		return nil
	}
	var results []string
	t.walk(0, "", func(path string, _ nodeKind) {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			results = append(results, path)
		}
	})
	return results
}

// FindInDirectory matches pattern against entries beneath dir. A dir of "",
// ".", or "./" searches from the root.
func (t *Tree) FindInDirectory(dir, pattern string) []string {
	prefix := strings.TrimSuffix(strings.TrimPrefix(dir, "./"), "/")
	if prefix == "" || prefix == "." {
		return t.FindMatching(pattern)
	}
	return t.FindMatching(prefix + "/" + pattern)
}

func (t *Tree) walk(idx int, base string, visit func(path string, kind nodeKind)) {
	names := make([]string, 0, len(t.nodes[idx].children))
	for name := range t.nodes[idx].children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := t.nodes[idx].children[name]
		path := name
		if base != "" {
			path = base + "/" + name
		}
		visit(path, t.nodes[child].kind)
		if t.nodes[child].kind == kindDirectory {
			t.walk(child, path, visit)
		}
	}
}
