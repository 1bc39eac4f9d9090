// File: internal/vfs/tree.go
package vfs

import (
	"fmt"
	"strings"
)

// Directory is an in-memory directory built from the node index.
type Directory struct {
	node   *Node
	parent *Directory // nil for the root
	dirs   []*Directory
	files  []*Node
}

func newDirectory(node *Node, parent *Directory) *Directory {
	return &Directory{node: node, parent: parent}
}

// Node returns the directory's node record
func (d *Directory) Node() *Node { return d.node }

// ID returns the directory's node id
func (d *Directory) ID() NodeID { return d.node.id }

// Name returns the directory name
func (d *Directory) Name() string { return d.node.name }

// Parent returns the parent directory, nil at the root
func (d *Directory) Parent() *Directory { return d.parent }

// IsRoot reports whether d is the root directory
func (d *Directory) IsRoot() bool { return d.parent == nil }

// IsEmpty reports whether d has no children
func (d *Directory) IsEmpty() bool { return len(d.dirs) == 0 && len(d.files) == 0 }

// Directories returns the child directories
func (d *Directory) Directories() []*Directory {
	return append([]*Directory(nil), d.dirs...)
}

// Files returns the child files
func (d *Directory) Files() []*Node {
	return append([]*Node(nil), d.files...)
}

// FindDirectory returns the child directory with name, matched case-insensitively
func (d *Directory) FindDirectory(name string) *Directory {
	name = strings.TrimSpace(name)
	for _, c := range d.dirs {
		if strings.EqualFold(c.node.name, name) {
			return c
		}
	}
	return nil
}

// FindFile returns the child file with name, matched case-insensitively
func (d *Directory) FindFile(name string) *Node {
	name = strings.TrimSpace(name)
	for _, f := range d.files {
		if strings.EqualFold(f.name, name) {
			return f
		}
	}
	return nil
}

// components returns the names from the root down to d, excluding the root
func (d *Directory) components() []string {
	var parts []string
	for c := d; c.parent != nil; c = c.parent {
		parts = append([]string{c.node.name}, parts...)
	}
	return parts
}

// Path returns the display path of d, e.g. \A\B
func (d *Directory) Path() string {
	return Separator + strings.Join(d.components(), Separator)
}

// childID is the id a new child called name would receive
func (d *Directory) childID(name string) NodeID {
	return Identify(normalizePath(append(d.components(), name)))
}

func (d *Directory) addDirectory(c *Directory) {
	c.parent = d
	d.dirs = append(d.dirs, c)
}

func (d *Directory) removeDirectory(c *Directory) {
	for i, x := range d.dirs {
		if x == c {
			d.dirs = append(d.dirs[:i], d.dirs[i+1:]...)
			return
		}
	}
}

func (d *Directory) addFile(n *Node) {
	d.files = append(d.files, n)
}

func (d *Directory) removeFile(n *Node) {
	for i, x := range d.files {
		if x == n {
			d.files = append(d.files[:i], d.files[i+1:]...)
			return
		}
	}
}

// Tree is the directory hierarchy rebuilt from the flat node list.
type Tree struct {
	root  *Directory
	count int
}

// Root returns the root directory
func (t *Tree) Root() *Directory { return t.root }

// FindDirectory returns the directory with id anywhere in the tree, or nil.
func (t *Tree) FindDirectory(id NodeID) *Directory {
	stack := []*Directory{t.root}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if d.node.id == id {
			return d
		}
		stack = append(stack, d.dirs...)
	}
	return nil
}

// buildTree attaches files to their directories and folds directories into
// their parents until only the root remains.
func buildTree(nodes []*Node, rootID NodeID) (*Tree, error) {
	var dirs []*Directory
	byID := make(map[NodeID]*Directory)
	var files []*Node

	for _, n := range nodes {
		if n.IsDirectory() {
			d := newDirectory(n, nil)
			dirs = append(dirs, d)
			byID[n.id] = d
		} else {
			files = append(files, n)
		}
	}

	var lost []string
	for _, f := range files {
		d, ok := byID[f.parent]
		if !ok {
			lost = append(lost, fmt.Sprintf("file %q (%08x)", f.name, uint32(f.id)))
			continue
		}
		d.addFile(f)
	}
	if len(lost) > 0 {
		return nil, newError(ErrLostAndFound, "buildTree", "", strings.Join(lost, ", "))
	}

	var free []*Directory
	for _, d := range dirs {
		if d.node.id == rootID {
			free = append(free, d)
			continue
		}
		p, ok := byID[d.node.parent]
		if !ok || p == d {
			free = append(free, d)
			continue
		}
		p.addDirectory(d)
	}

	if len(free) == 0 {
		return nil, newError(ErrRootNotFound, "buildTree", "", "")
	}
	if len(free) > 1 {
		var orphans []string
		for _, d := range free {
			if d.node.id != rootID {
				orphans = append(orphans, fmt.Sprintf("directory %q (%08x)", d.node.name, uint32(d.node.id)))
			}
		}
		if len(orphans) == len(free) {
			return nil, newError(ErrRootNotFound, "buildTree", "", strings.Join(orphans, ", "))
		}
		return nil, newError(ErrLostAndFound, "buildTree", "", strings.Join(orphans, ", "))
	}
	if free[0].node.id != rootID {
		return nil, newError(ErrRootNotFound, "buildTree", "",
			fmt.Sprintf("top directory is %q (%08x)", free[0].node.name, uint32(free[0].node.id)))
	}

	t := &Tree{root: free[0]}
	root := free[0]
	root.parent = nil

	// Directories caught in a parent cycle are never reachable from the root
	reached := 0
	stack := []*Directory{root}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached++
		stack = append(stack, d.dirs...)
	}
	if reached != len(dirs) {
		return nil, newError(ErrLostAndFound, "buildTree", "",
			fmt.Sprintf("%d directories unreachable from root", len(dirs)-reached))
	}
	t.count = reached

	return t, nil
}
