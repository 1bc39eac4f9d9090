// File: internal/vfs/checksum/crc.go
package checksum

import (
	"encoding/binary"
	"hash/crc32"
)

// Polynomial is the reflected CRC-32 polynomial used for every checksum in a container.
const Polynomial = 0xEDB88320

var table = crc32.MakeTable(Polynomial)

// CRC accumulates a CRC-32 over values pushed in order.
// The register starts at 0xFFFFFFFF and Value returns it inverted.
type CRC struct {
	crc uint32
}

// New returns an empty accumulator.
func New() *CRC {
	return &CRC{}
}

// Push feeds raw bytes into the checksum.
func (c *CRC) Push(p []byte) {
	c.crc = crc32.Update(c.crc, table, p)
}

// PushUint32 feeds v in little-endian order.
func (c *CRC) PushUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	c.Push(b[:])
}

// PushInt32 feeds v in little-endian order.
func (c *CRC) PushInt32(v int32) {
	c.PushUint32(uint32(v))
}

// PushInt64 feeds v in little-endian order.
func (c *CRC) PushInt64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	c.Push(b[:])
}

// Value returns the checksum of everything pushed so far.
func (c *CRC) Value() uint32 {
	return c.crc
}

// Reset clears the accumulator.
func (c *CRC) Reset() {
	c.crc = 0
}

// Write implements io.Writer so content can be streamed into the checksum.
func (c *CRC) Write(p []byte) (int, error) {
	c.Push(p)
	return len(p), nil
}

// Sum returns the checksum of p.
func Sum(p []byte) uint32 {
	return crc32.Checksum(p, table)
}

// Validate compares the stored checksum against the checksum of p.
func Validate(p []byte, expected uint32) bool {
	return Sum(p) == expected
}
