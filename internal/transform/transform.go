// Package transform converts host content before it is patched into a container.
package transform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
	"howett.net/plist"
)

var (
	// ErrUnknownTransform is returned for a name no transform is registered under
	ErrUnknownTransform = errors.New("unknown transform")
	// ErrUnsupportedFile is returned when no transform applies to a file
	ErrUnsupportedFile = errors.New("unsupported file")
)

// Transform converts sources carrying one file extension.
type Transform struct {
	name    string
	ext     string
	magic   [][]byte
	convert func(io.Reader) (io.ReadCloser, error)
}

// Name returns the registered name, e.g. "gzip"
func (t *Transform) Name() string { return t.name }

// Extension returns the extension the transform applies to, without the dot
func (t *Transform) Extension() string { return t.ext }

// Convert wraps src so that reading yields the converted content.
func (t *Transform) Convert(src io.Reader) (io.ReadCloser, error) {
	rc, err := t.convert(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return rc, nil
}

// ForExtension returns a copy of t that applies to ext instead.
func (t *Transform) ForExtension(ext string) *Transform {
	c := *t
	c.ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return &c
}

func (t *Transform) matches(header []byte) bool {
	for _, m := range t.magic {
		if bytes.HasPrefix(header, m) {
			return true
		}
	}
	return false
}

var (
	Gunzip = &Transform{
		name:  "gzip",
		ext:   "gz",
		magic: [][]byte{{0x1F, 0x8B}},
		convert: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	}

	Bunzip2 = &Transform{
		name:  "bzip2",
		ext:   "bz2",
		magic: [][]byte{{0x42, 0x5A, 0x68}},
		convert: func(r io.Reader) (io.ReadCloser, error) {
			return bzip2.NewReader(r, nil)
		},
	}

	Unxz = &Transform{
		name:  "xz",
		ext:   "xz",
		magic: [][]byte{{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}},
		convert: func(r io.Reader) (io.ReadCloser, error) {
			xr, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(xr), nil
		},
	}

	Unzstd = &Transform{
		name:  "zstd",
		ext:   "zst",
		magic: [][]byte{{0x28, 0xB5, 0x2F, 0xFD}},
		convert: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
	}

	Unlz4 = &Transform{
		name:  "lz4",
		ext:   "lz4",
		magic: [][]byte{{0x04, 0x22, 0x4D, 0x18}},
		convert: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		},
	}

	// PlistXML rewrites binary, OpenStep or XML property lists as indented XML.
	PlistXML = &Transform{
		name:    "plist",
		ext:     "plist",
		magic:   [][]byte{[]byte("bplist00")},
		convert: plistToXML,
	}
)

var registry = map[string]*Transform{}

func init() {
	for _, t := range []*Transform{Gunzip, Bunzip2, Unxz, Unzstd, Unlz4, PlistXML} {
		registry[t.name] = t
	}
}

func plistToXML(r io.Reader) (io.ReadCloser, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var v interface{}
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, err.Error())
	}

	var buf bytes.Buffer
	enc := plist.NewEncoderForFormat(&buf, plist.XMLFormat)
	enc.Indent("\t")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

// Lookup returns the transform registered under name or extension.
func Lookup(name string) (*Transform, error) {
	key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	if t, ok := registry[key]; ok {
		return t, nil
	}
	for _, t := range registry {
		if t.ext == key {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTransform, name)
}

// Names lists the registered transform names in order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detect picks a transform from the leading bytes of a file
func Detect(header []byte) *Transform {
	for _, name := range Names() {
		if t := registry[name]; t.matches(header) {
			return t
		}
	}
	return nil
}

// ForFile picks the transform for a host file, by extension first and then by
// magic number. A match by magic number is bound to the file's own extension.
func ForFile(hostFs afero.Fs, name string) (*Transform, error) {
	ext := filepath.Ext(name)
	if ext != "" {
		if t, err := Lookup(ext); err == nil {
			return t, nil
		}
	}

	f, err := hostFs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}

	t := Detect(header[:n])
	if t == nil || ext == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
	}
	return t.ForExtension(ext), nil
}
