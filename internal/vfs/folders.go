package vfs

import (
	"time"
)

// EntryInfo is a snapshot of a directory entry.
type EntryInfo struct {
	Name       string    `json:"name" yaml:"name"`
	Directory  bool      `json:"directory" yaml:"directory"`
	Attributes string    `json:"attributes" yaml:"attributes"`
	Size       int64     `json:"size" yaml:"size"`
	Created    time.Time `json:"created" yaml:"created"`
	Modified   time.Time `json:"modified" yaml:"modified"`
}

func entryInfo(n *Node) EntryInfo {
	return EntryInfo{
		Name:       n.name,
		Directory:  n.IsDirectory(),
		Attributes: n.flags.String(),
		Size:       n.fileSize,
		Created:    n.created,
		Modified:   n.modified,
	}
}

// Root returns the root directory
func (fs *FS) Root() *Directory {
	if fs.tree == nil {
		return nil
	}
	return fs.tree.root
}

// CurrentFolder returns the working directory
func (fs *FS) CurrentFolder() *Directory { return fs.current }

// FullPath returns the path of the working directory, e.g. \A\B
func (fs *FS) FullPath() string {
	if fs.current == nil {
		return ""
	}
	return fs.current.Path()
}

// resolveDir walks path from the working directory, or from the root when it is absolute.
func (fs *FS) resolveDir(op, path string) (*Directory, error) {
	absolute, parts := splitPath(path)
	return fs.walk(op, path, absolute, parts)
}

func (fs *FS) walk(op, path string, absolute bool, parts []string) (*Directory, error) {
	d := fs.current
	if absolute {
		d = fs.tree.root
	}
	for _, part := range parts {
		switch part {
		case ".":
		case "..":
			if d.parent != nil {
				d = d.parent
			}
		default:
			next := d.FindDirectory(part)
			if next == nil {
				if d.FindFile(part) != nil {
					return nil, newError(ErrNotDirectory, op, path, part)
				}
				return nil, newError(ErrNotFound, op, path, "")
			}
			d = next
		}
	}
	return d, nil
}

// resolveParent returns the directory that holds the last component of path, and that component.
func (fs *FS) resolveParent(op, path string) (*Directory, string, error) {
	absolute, parts := splitPath(path)
	if len(parts) == 0 {
		return nil, "", newError(ErrInvalidName, op, path, "empty path")
	}
	dir, err := fs.walk(op, path, absolute, parts[:len(parts)-1])
	if err != nil {
		return nil, "", err
	}
	return dir, parts[len(parts)-1], nil
}

// CreateFolder creates a directory. Relative paths start at the working directory.
func (fs *FS) CreateFolder(path string) (*Directory, error) {
	if err := fs.requireOpen("CreateFolder"); err != nil {
		return nil, err
	}
	parent, name, err := fs.resolveParent("CreateFolder", path)
	if err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if parent.FindDirectory(name) != nil || parent.FindFile(name) != nil {
		return nil, newError(ErrAlreadyExists, "CreateFolder", path, "")
	}
	if err := fs.validate(ChangeCreateFolder, parent, name); err != nil {
		return nil, err
	}

	node, err := fs.index.CreateNode(parent.childID(name), parent.ID())
	if err != nil {
		return nil, fs.commit("CreateFolder", err)
	}
	node.name = name
	node.flags = FlagDirectory

	dir := newDirectory(node, parent)
	parent.addDirectory(dir)
	if err := fs.commit("CreateFolder", nil); err != nil {
		return nil, err
	}
	return dir, nil
}

// ChangeToFolder makes path the working directory.
func (fs *FS) ChangeToFolder(path string) (*Directory, error) {
	if err := fs.requireOpen("ChangeToFolder"); err != nil {
		return nil, err
	}
	d, err := fs.resolveDir("ChangeToFolder", path)
	if err != nil {
		return nil, err
	}
	fs.current = d
	return d, nil
}

// ChangeToRoot makes the root the working directory.
func (fs *FS) ChangeToRoot() error {
	if err := fs.requireOpen("ChangeToRoot"); err != nil {
		return err
	}
	fs.current = fs.tree.root
	return nil
}

// ChangeOneUp moves to the parent directory; at the root it does nothing.
func (fs *FS) ChangeOneUp() error {
	if err := fs.requireOpen("ChangeOneUp"); err != nil {
		return err
	}
	if fs.current.parent != nil {
		fs.current = fs.current.parent
	}
	return nil
}

// RemoveDirectory removes an empty directory.
func (fs *FS) RemoveDirectory(path string) error {
	if err := fs.requireOpen("RemoveDirectory"); err != nil {
		return err
	}
	d, err := fs.resolveDir("RemoveDirectory", path)
	if err != nil {
		return err
	}
	if d.IsRoot() {
		return newError(ErrInvalidOperation, "RemoveDirectory", path, "cannot remove the root")
	}
	if !d.IsEmpty() {
		return newError(ErrNotEmpty, "RemoveDirectory", path, "")
	}
	if err := fs.validate(ChangeRemoveFolder, d.parent, d.Name()); err != nil {
		return err
	}

	if fs.current == d {
		fs.current = d.parent
	}
	d.parent.removeDirectory(d)
	return fs.commit("RemoveDirectory", fs.index.RemoveNode(d.ID()))
}

// GetDirectories lists the directories in the working directory.
func (fs *FS) GetDirectories() []EntryInfo {
	if fs.current == nil {
		return nil
	}
	out := make([]EntryInfo, 0, len(fs.current.dirs))
	for _, d := range fs.current.dirs {
		out = append(out, entryInfo(d.node))
	}
	return out
}

// GetFiles lists the files in the working directory.
func (fs *FS) GetFiles() []EntryInfo {
	if fs.current == nil {
		return nil
	}
	out := make([]EntryInfo, 0, len(fs.current.files))
	for _, f := range fs.current.files {
		out = append(out, entryInfo(f))
	}
	return out
}
