// File: internal/vfs/node.go
package vfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/deploymenttheory/go-vfs/internal/vfs/checksum"
)

// nodePhys is the 128-byte on-disk node record.
type nodePhys struct {
	Signature    uint32         // NodeSignature
	ID           uint32         // Hash of the normalized path
	Parent       uint32         // Parent directory id
	Flags        uint32         // Attribute bits
	Name         [NameSize]byte // Space padded name
	FileSize     int64          // Logical size in bytes
	ClusterCount int32          // Data clusters in the chain
	Created      int64          // Unix nanoseconds
	Modified     int64          // Unix nanoseconds
	FirstCluster int32          // Head of the data chain, -1 if none
	LastCluster  int32          // Tail of the data chain, -1 if none
	Reserved     [40]byte
	CRC          uint32 // CRC-32 over the preceding 124 bytes
}

// Node is a file or directory record.
type Node struct {
	id           NodeID
	parent       NodeID
	flags        Flags
	name         string
	fileSize     int64
	clusterCount int32
	created      time.Time
	modified     time.Time
	firstCluster ClusterID
	lastCluster  ClusterID

	dirty bool
	chain uint64 // bumped whenever clusters leave the chain
}

func newNode(id, parent NodeID) *Node {
	now := time.Now().UTC()
	return &Node{
		id:           id,
		parent:       parent,
		created:      now,
		modified:     now,
		firstCluster: NoCluster,
		lastCluster:  NoCluster,
		dirty:        true,
	}
}

func (n *Node) ID() NodeID              { return n.id }
func (n *Node) Parent() NodeID          { return n.parent }
func (n *Node) Flags() Flags            { return n.flags }
func (n *Node) Name() string            { return n.name }
func (n *Node) Size() int64             { return n.fileSize }
func (n *Node) ClusterCount() int       { return int(n.clusterCount) }
func (n *Node) Created() time.Time      { return n.created }
func (n *Node) Modified() time.Time     { return n.modified }
func (n *Node) FirstCluster() ClusterID { return n.firstCluster }
func (n *Node) LastCluster() ClusterID  { return n.lastCluster }
func (n *Node) IsDirectory() bool       { return n.flags.Has(FlagDirectory) }
func (n *Node) Dirty() bool             { return n.dirty }

func (n *Node) setName(name string) {
	n.name = name
	n.touch()
}

func (n *Node) setFlags(f Flags) {
	n.flags = f
	n.touch()
}

func (n *Node) setFileSize(size int64) {
	n.fileSize = size
	n.touch()
}

func (n *Node) touch() {
	n.modified = time.Now().UTC()
	n.dirty = true
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %08x %s", n.flags, uint32(n.id), n.name)
}

func (n *Node) serialize(b []byte) {
	raw := nodePhys{
		Signature:    NodeSignature,
		ID:           uint32(n.id),
		Parent:       uint32(n.parent),
		Flags:        uint32(n.flags),
		Name:         packName(n.name),
		FileSize:     n.fileSize,
		ClusterCount: n.clusterCount,
		Created:      n.created.UnixNano(),
		Modified:     n.modified.UnixNano(),
		FirstCluster: int32(n.firstCluster),
		LastCluster:  int32(n.lastCluster),
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, raw)
	copy(b, buf.Bytes())
	binary.LittleEndian.PutUint32(b[NodeSize-4:], checksum.Sum(b[:NodeSize-4]))
}

func parseNode(b []byte) (*Node, error) {
	var raw nodePhys
	if err := binary.Read(bytes.NewReader(b[:NodeSize]), binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse node: %w", err)
	}

	if raw.Signature != NodeSignature {
		return nil, newError(ErrSignatureMismatch, "parseNode", fmt.Sprintf("node %08x", raw.ID),
			fmt.Sprintf("found %#08x", raw.Signature))
	}
	if !checksum.Validate(b[:NodeSize-4], raw.CRC) {
		return nil, newError(ErrChecksumMismatch, "parseNode", fmt.Sprintf("node %08x", raw.ID), "")
	}

	return &Node{
		id:           NodeID(raw.ID),
		parent:       NodeID(raw.Parent),
		flags:        Flags(raw.Flags),
		name:         unpackName(raw.Name),
		fileSize:     raw.FileSize,
		clusterCount: raw.ClusterCount,
		created:      time.Unix(0, raw.Created).UTC(),
		modified:     time.Unix(0, raw.Modified).UTC(),
		firstCluster: ClusterID(raw.FirstCluster),
		lastCluster:  ClusterID(raw.LastCluster),
	}, nil
}
