// File: internal/vfs/header.go
package vfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/deploymenttheory/go-vfs/internal/vfs/checksum"
)

// headerPhys is the on-disk volume header at byte 0.
type headerPhys struct {
	Signature    uint32                     // HeaderSignature
	Version      uint32                     // Format version
	Build        uint32                     // Build number of the writer
	Name         [NameSize]byte             // Volume label, space padded
	Created      int64                      // Unix nanoseconds
	Modified     int64                      // Unix nanoseconds
	ClusterSize  uint32                     // Bytes per cluster
	MapThreshold uint32                     // Number of bitmap clusters
	ClusterMaps  [ClusterMapThreshold]int32 // Bitmap cluster indices
	CRC          uint32                     // CRC-32 over all preceding fields
}

var headerSize = binary.Size(headerPhys{})

// Header is the in-memory volume header.
type Header struct {
	Version     uint32
	Build       uint32
	Created     time.Time
	Modified    time.Time
	ClusterSize int
	ClusterMaps [ClusterMapThreshold]ClusterID

	name  string
	dirty bool
}

func newHeader(clusterSize int, build uint32, label string) *Header {
	now := time.Now().UTC()
	h := &Header{
		Version:     CurrentVersion,
		Build:       build,
		Created:     now,
		Modified:    now,
		ClusterSize: clusterSize,
		name:        label,
		dirty:       true,
	}
	for i := range h.ClusterMaps {
		h.ClusterMaps[i] = ClusterID(i)
	}
	return h
}

// Name returns the stored volume label
func (h *Header) Name() string {
	return h.name
}

func (h *Header) setName(name string) {
	h.name = name
	h.touch()
}

func (h *Header) touch() {
	h.Modified = time.Now().UTC()
	h.dirty = true
}

// UsableClusterSize is the payload size of a data cluster
func (h *Header) UsableClusterSize() int {
	return h.ClusterSize - dataClusterOverhead
}

// RootCluster is the index of the first node-index block
func (h *Header) RootCluster() ClusterID {
	return ClusterMapThreshold
}

func (h *Header) serialize() []byte {
	raw := headerPhys{
		Signature:    HeaderSignature,
		Version:      h.Version,
		Build:        h.Build,
		Name:         packName(h.name),
		Created:      h.Created.UnixNano(),
		Modified:     h.Modified.UnixNano(),
		ClusterSize:  uint32(h.ClusterSize),
		MapThreshold: ClusterMapThreshold,
	}
	for i, id := range h.ClusterMaps {
		raw.ClusterMaps[i] = int32(id)
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, raw)
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[headerSize-4:], checksum.Sum(data[:headerSize-4]))
	return data
}

func parseHeader(data []byte) (*Header, error) {
	if len(data) < headerSize {
		return nil, newError(ErrCorrupt, "parseHeader", "header", "short header")
	}

	var raw headerPhys
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if raw.Signature != HeaderSignature {
		return nil, newError(ErrSignatureMismatch, "parseHeader", "header",
			fmt.Sprintf("found %#08x", raw.Signature))
	}
	if raw.Version > CurrentVersion {
		return nil, newError(ErrVersionMismatch, "parseHeader", "header",
			fmt.Sprintf("version %#x is newer than %#x", raw.Version, CurrentVersion))
	}
	if !checksum.Validate(data[:headerSize-4], raw.CRC) {
		return nil, newError(ErrChecksumMismatch, "parseHeader", "header", "")
	}
	if raw.MapThreshold != ClusterMapThreshold {
		return nil, newError(ErrCorrupt, "parseHeader", "header",
			fmt.Sprintf("unexpected map threshold %d", raw.MapThreshold))
	}
	if err := validateClusterSize(int(raw.ClusterSize)); err != nil {
		return nil, newError(ErrCorrupt, "parseHeader", "header", err.Error())
	}

	h := &Header{
		Version:     raw.Version,
		Build:       raw.Build,
		Created:     time.Unix(0, raw.Created).UTC(),
		Modified:    time.Unix(0, raw.Modified).UTC(),
		ClusterSize: int(raw.ClusterSize),
		name:        unpackName(raw.Name),
	}
	for i, id := range raw.ClusterMaps {
		h.ClusterMaps[i] = ClusterID(id)
	}
	return h, nil
}

func readHeader(r io.ReaderAt) (*Header, error) {
	data := make([]byte, headerSize)
	if n, err := r.ReadAt(data, 0); err != nil && !(err == io.EOF && n == len(data)) {
		if err == io.EOF {
			return nil, newError(ErrCorrupt, "readHeader", "header", "file too short")
		}
		return nil, ioError("readHeader", "header", err)
	}
	return parseHeader(data)
}

func (h *Header) write(w io.WriterAt) error {
	if !h.dirty {
		return nil
	}
	if _, err := w.WriteAt(h.serialize(), 0); err != nil {
		return ioError("writeHeader", "header", err)
	}
	h.dirty = false
	return nil
}

func validateClusterSize(size int) error {
	if size < MinClusterSize || size > MaxClusterSize || size%32 != 0 {
		return newError(ErrClusterSize, "validateClusterSize", fmt.Sprint(size),
			fmt.Sprintf("must be a multiple of 32 between %d and %d", MinClusterSize, MaxClusterSize))
	}
	return nil
}

// packName pads a name with spaces to NameSize bytes
func packName(name string) [NameSize]byte {
	var b [NameSize]byte
	for i := range b {
		b[i] = ' '
	}
	copy(b[:], name)
	return b
}

func unpackName(b [NameSize]byte) string {
	return strings.TrimRight(string(bytes.TrimRight(b[:], "\x00")), " ")
}
