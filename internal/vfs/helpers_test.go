package vfs

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testContainer = "/containers/test.vfs"

// newTestFS creates a formatted container in memory
func newTestFS(t *testing.T, opts ...Option) (*FS, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/containers", 0o755))

	fs := New(testContainer, append([]Option{WithFs(mem)}, opts...)...)
	require.NoError(t, fs.Create(false, "test"))
	t.Cleanup(func() { fs.Close() })
	return fs, mem
}

// reopen closes fs and opens the same container again
func reopen(t *testing.T, fs *FS) {
	t.Helper()
	require.NoError(t, fs.Close())
	require.NoError(t, fs.Open())
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func writeFile(t *testing.T, fs *FS, path string, data []byte) *Node {
	t.Helper()
	node, err := fs.Touch(path)
	require.NoError(t, err)
	s, err := fs.OpenStream(node)
	require.NoError(t, err)
	n, err := s.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, s.Close())
	return node
}

func readFile(t *testing.T, fs *FS, path string) []byte {
	t.Helper()
	s, err := fs.GetFileStream(path)
	require.NoError(t, err)
	defer s.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(s)
	require.NoError(t, err)
	return buf.Bytes()
}

// flipByte corrupts one byte of the container file on the host
func flipByte(t *testing.T, mem afero.Fs, offset int64) {
	t.Helper()
	f, err := mem.OpenFile(testContainer, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	b := make([]byte, 1)
	_, err = f.ReadAt(b, offset)
	require.NoError(t, err)
	b[0] ^= 0xFF
	_, err = f.WriteAt(b, offset)
	require.NoError(t, err)
}

var errInjected = errors.New("injected write failure")

// faultyFs hands out files whose writes fail while *fail is set
type faultyFs struct {
	afero.Fs
	fail *bool
}

func (f faultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return faultyFile{File: file, fail: f.fail}, nil
}

type faultyFile struct {
	afero.File
	fail *bool
}

func (f faultyFile) WriteAt(p []byte, off int64) (int, error) {
	if *f.fail {
		return 0, errInjected
	}
	return f.File.WriteAt(p, off)
}

func (f faultyFile) Sync() error {
	if *f.fail {
		return errInjected
	}
	return f.File.Sync()
}
