// File: internal/vfs/types.go
package vfs

/*
Container layout

	0x000  volume header (plaintext, CRC protected)
	0x400  cluster 0

Cluster N lives at FirstClusterOffset + N*ClusterSize. Clusters 0..3 hold the
allocation bitmap, cluster 4 holds the first node-index block. Every cluster is
framed as signature | body | CRC-32 and encrypted as a whole.
*/

import "strings"

const (
	// DefaultExt is appended to container paths without an extension
	DefaultExt = ".vfs"

	// DefaultClusterSize is the cluster size used when formatting
	DefaultClusterSize = 8192

	// FirstClusterOffset is the byte offset of cluster 0
	FirstClusterOffset = 0x400

	// ClusterMapThreshold is the number of bitmap clusters; it is also the index of the root node block
	ClusterMapThreshold = 4

	// CurrentVersion is the format version written by this package
	CurrentVersion = 0x10A0

	// DefaultCacheSize is the data cluster cache capacity
	DefaultCacheSize = 64

	// NodeSize is the size of a serialized node record
	NodeSize = 128

	// NameSize is the maximum length of a node or volume name in bytes
	NameSize = 32

	// RootName is the name of the root directory node
	RootName = "ROOT"

	// MinClusterSize and MaxClusterSize bound the cluster sizes Format accepts
	MinClusterSize = 512
	MaxClusterSize = 1 << 20
)

// Signatures identifying each structure on disk
const (
	HeaderSignature      uint32 = 0x3F534652
	ClusterMapSignature  uint32 = 0x1494BFDA
	NodeSignature        uint32 = 0xA0BA0700
	NodeClusterSignature uint32 = 0x6CD353FA
	DataClusterSignature uint32 = 0xFAD53F33
)

const (
	// frame overhead of every cluster: signature and CRC
	clusterFrameSize = 8
	// data cluster overhead: frame plus previous and next links
	dataClusterOverhead = clusterFrameSize + 8
	// node block overhead: frame plus next block link
	nodeClusterOverhead = clusterFrameSize + 4
)

// ClusterID is the index of a cluster in the container
type ClusterID int32

// NoCluster marks an absent cluster link
const NoCluster ClusterID = -1

// NodeID identifies a node; it is the FNV-1a hash of the node's normalized path
type NodeID uint32

// NoParent is the parent identifier of the root node
const NoParent NodeID = 0xFFFFFFFF

// Flags are node attribute bits
type Flags uint32

const (
	FlagHidden      Flags = 1
	FlagArchive     Flags = 2
	FlagReadOnly    Flags = 4
	FlagEncrypted   Flags = 8
	FlagSymLink     Flags = 64
	FlagTransformed Flags = 128
	FlagSystem      Flags = 256
	FlagDirectory   Flags = 8192
)

var flagLetters = []struct {
	flag   Flags
	letter byte
}{
	{FlagArchive, 'A'},
	{FlagReadOnly, 'R'},
	{FlagHidden, 'H'},
	{FlagEncrypted, 'E'},
	{FlagSymLink, 'L'},
	{FlagTransformed, 'T'},
	{FlagSystem, 'S'},
	{FlagDirectory, 'D'},
}

// Has reports whether all bits of f2 are set
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// String renders the attributes as "ARHELTSD" with '-' for clear bits
func (f Flags) String() string {
	var sb strings.Builder
	for _, fl := range flagLetters {
		if f.Has(fl.flag) {
			sb.WriteByte(fl.letter)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// ParseFlags parses attribute letters ("AR", "hs") into flags
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, c := range strings.ToUpper(s) {
		found := false
		for _, fl := range flagLetters {
			if rune(fl.letter) == c {
				f |= fl.flag
				found = true
				break
			}
		}
		if !found {
			return 0, newError(ErrInvalidOperation, "ParseFlags", s, "unknown attribute "+string(c))
		}
	}
	return f, nil
}
