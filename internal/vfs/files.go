package vfs

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-vfs/internal/vfs/checksum"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// copyBufferSize is the chunk size used when streaming host files in and out
const copyBufferSize = 4096

// PatchTransform converts host content before Patch stores it. It applies only
// to sources whose name ends in Extension, compared case-insensitively.
type PatchTransform interface {
	Extension() string
	Convert(src io.Reader) (io.ReadCloser, error)
}

// Touch creates an empty file.
func (fs *FS) Touch(path string) (*Node, error) {
	if err := fs.requireOpen("Touch"); err != nil {
		return nil, err
	}
	dir, name, err := fs.resolveParent("Touch", path)
	if err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if dir.FindFile(name) != nil || dir.FindDirectory(name) != nil {
		return nil, newError(ErrAlreadyExists, "Touch", path, "")
	}
	if err := fs.validate(ChangeTouch, dir, name); err != nil {
		return nil, err
	}

	node, err := fs.index.CreateNode(dir.childID(name), dir.ID())
	if err != nil {
		return nil, fs.commit("Touch", err)
	}
	node.name = name
	node.flags = FlagArchive

	dir.addFile(node)
	if err := fs.commit("Touch", nil); err != nil {
		return nil, err
	}
	return node, nil
}

// GetFile looks up a file by path. A leading separator starts at the root;
// "." and ".." are honoured and names match case-insensitively.
func (fs *FS) GetFile(path string) (*Node, error) {
	if err := fs.requireOpen("GetFile"); err != nil {
		return nil, err
	}
	dir, name, err := fs.resolveParent("GetFile", path)
	if err != nil {
		return nil, err
	}
	if f := dir.FindFile(name); f != nil {
		return f, nil
	}
	if dir.FindDirectory(name) != nil {
		return nil, newError(ErrIsDirectory, "GetFile", path, "")
	}
	return nil, newError(ErrNotFound, "GetFile", path, "")
}

// DeleteFile truncates a file, releasing its clusters, and removes its node.
func (fs *FS) DeleteFile(path string) error {
	if err := fs.requireOpen("DeleteFile"); err != nil {
		return err
	}
	dir, name, err := fs.resolveParent("DeleteFile", path)
	if err != nil {
		return err
	}
	node := dir.FindFile(name)
	if node == nil {
		return newError(ErrNotFound, "DeleteFile", path, "")
	}
	if err := fs.validate(ChangeDelete, dir, node.name); err != nil {
		return err
	}

	s := newStream(fs, node)
	if err := s.setLength(0); err != nil {
		return fs.commit("DeleteFile", err)
	}
	s.closed = true

	dir.removeFile(node)
	return fs.commit("DeleteFile", fs.index.RemoveNode(node.id))
}

// OpenStream opens a stream over a file node of this container.
func (fs *FS) OpenStream(node *Node) (*Stream, error) {
	if err := fs.requireOpen("OpenStream"); err != nil {
		return nil, err
	}
	if node == nil || fs.index.FindNode(node.id) != node {
		return nil, newError(ErrStaleStream, "OpenStream", "", "node is not part of the open container")
	}
	if node.IsDirectory() {
		return nil, newError(ErrIsDirectory, "OpenStream", node.name, "")
	}
	return newStream(fs, node), nil
}

// GetFileStream opens a stream over the file at path.
func (fs *FS) GetFileStream(path string) (*Stream, error) {
	node, err := fs.GetFile(path)
	if err != nil {
		return nil, err
	}
	return fs.OpenStream(node)
}

// SetFlags sets and clears attribute bits on a file or directory. The directory bit cannot change.
func (fs *FS) SetFlags(path string, set, clear Flags) error {
	if err := fs.requireOpen("SetFlags"); err != nil {
		return err
	}
	if (set|clear)&FlagDirectory != 0 {
		return newError(ErrInvalidOperation, "SetFlags", path, "directory attribute is fixed")
	}

	var node *Node
	if d, err := fs.resolveDir("SetFlags", path); err == nil {
		if d.IsRoot() {
			return newError(ErrInvalidOperation, "SetFlags", path, "root attributes are fixed")
		}
		node = d.node
	} else {
		if node, err = fs.GetFile(path); err != nil {
			return err
		}
	}

	node.setFlags(node.flags&^clear | set)
	return fs.commit("SetFlags", nil)
}

// Copy stores a host file in the working directory under its base name.
func (fs *FS) Copy(src string) (*Node, error) {
	if err := fs.requireOpen("Copy"); err != nil {
		return nil, err
	}
	if err := fs.requireHostFile("Copy", src); err != nil {
		return nil, err
	}

	node, err := fs.Touch(filepath.Base(src))
	if err != nil {
		return nil, err
	}
	if err := fs.commit("Copy", fs.copyInto(node, src, nil)); err != nil {
		// the reload brings back the empty file Touch committed
		if derr := fs.DeleteFile(node.name); derr != nil && !IsNotFound(derr) {
			return nil, errors.Join(err, derr)
		}
		return nil, err
	}
	return node, nil
}

// Patch makes dest hold the content of the host file src, creating dest if needed.
//
// Without a transform the copy is skipped when dest already holds the same
// bytes. With a transform the content is always rewritten, converted first when
// src carries the transform's extension.
func (fs *FS) Patch(src, dest string, t PatchTransform) (*Node, error) {
	if err := fs.requireOpen("Patch"); err != nil {
		return nil, err
	}
	if err := fs.requireHostFile("Patch", src); err != nil {
		return nil, err
	}

	node, err := fs.GetFile(dest)
	if IsNotFound(err) {
		node, err = fs.Touch(dest)
	}
	if err != nil {
		return nil, err
	}

	if t == nil {
		same, err := fs.sameContent(node, src)
		if err != nil {
			return nil, err
		}
		if same {
			fs.log.Debug("patch skipped, content unchanged", zap.String("src", src), zap.String("dest", dest))
			return node, nil
		}
	}

	if err := fs.commit("Patch", fs.copyInto(node, src, t)); err != nil {
		return nil, err
	}
	fs.log.Debug("patched", zap.String("src", src), zap.String("dest", dest), zap.Int64("size", node.fileSize))
	return node, nil
}

// Export writes the content of the file at path to the host file dst.
func (fs *FS) Export(path, dst string) error {
	s, err := fs.GetFileStream(path)
	if err != nil {
		return err
	}
	defer func() { s.closed = true }()

	out, err := fs.hostFs.Create(dst)
	if err != nil {
		return ioError("Export", dst, err)
	}

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(out, struct{ io.Reader }{s}, buf); err != nil {
		out.Close()
		return ioError("Export", dst, err)
	}
	if err := out.Close(); err != nil {
		return ioError("Export", dst, err)
	}
	return nil
}

func (fs *FS) requireHostFile(op, src string) error {
	info, err := fs.hostFs.Stat(src)
	if err != nil {
		exists, xerr := afero.Exists(fs.hostFs, src)
		if xerr == nil && !exists {
			return newError(ErrNotFound, op, src, "")
		}
		return ioError(op, src, err)
	}
	if info.IsDir() {
		return newError(ErrIsDirectory, op, src, "")
	}
	return nil
}

// copyInto replaces node's content with the host file src, converted by t when it applies.
func (fs *FS) copyInto(node *Node, src string, t PatchTransform) error {
	f, err := fs.hostFs.Open(src)
	if err != nil {
		return ioError("copy", src, err)
	}
	defer f.Close()

	var r io.Reader = f
	transformed := false
	if t != nil && matchExtension(src, t.Extension()) {
		rc, err := t.Convert(f)
		if err != nil {
			return fmt.Errorf("failed to transform %s: %w", src, err)
		}
		defer rc.Close()
		r = rc
		transformed = true
	}

	s := newStream(fs, node)
	defer func() { s.closed = true }()

	if err := s.setLength(0); err != nil {
		return err
	}
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(struct{ io.Writer }{s}, r, buf); err != nil {
		return ioError("copy", src, err)
	}

	if transformed {
		node.setFlags(node.flags | FlagTransformed)
	} else if node.flags.Has(FlagTransformed) {
		node.setFlags(node.flags &^ FlagTransformed)
	}
	return nil
}

// sameContent compares the CRC-32 of a stored file with that of a host file
func (fs *FS) sameContent(node *Node, src string) (bool, error) {
	info, err := fs.hostFs.Stat(src)
	if err != nil {
		return false, ioError("Patch", src, err)
	}
	if info.Size() != node.fileSize {
		return false, nil
	}

	f, err := fs.hostFs.Open(src)
	if err != nil {
		return false, ioError("Patch", src, err)
	}
	defer f.Close()

	want := checksum.New()
	if _, err := io.Copy(want, f); err != nil {
		return false, ioError("Patch", src, err)
	}

	got := checksum.New()
	s := newStream(fs, node)
	defer func() { s.closed = true }()
	if _, err := io.Copy(got, struct{ io.Reader }{s}); err != nil {
		return false, err
	}

	return want.Value() == got.Value(), nil
}

// matchExtension compares a file name against an extension with or without its leading dot
func matchExtension(name, ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.HasSuffix(strings.ToLower(name), ext)
}
