package vfs

import (
	"encoding/binary"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// slotMap is the per-block occupancy bitmap, one bit per node slot.
type slotMap struct {
	bits      []byte
	slotCount int
	slotsFree int
}

func newSlotMap(slots int) *slotMap {
	return &slotMap{
		bits:      make([]byte, (slots+7)/8),
		slotCount: slots,
		slotsFree: slots,
	}
}

func (s *slotMap) used(i int) bool {
	return s.bits[i/8]&(1<<(i%8)) != 0
}

func (s *slotMap) set(i int, used bool) {
	bit := byte(1) << (i % 8)
	if (s.bits[i/8]&bit != 0) == used {
		return
	}
	if used {
		s.bits[i/8] |= bit
		s.slotsFree--
	} else {
		s.bits[i/8] &^= bit
		s.slotsFree++
	}
}

func (s *slotMap) freeSlot() int {
	for i := 0; i < s.slotCount; i++ {
		if !s.used(i) {
			return i
		}
	}
	return -1
}

// NodesPerBlock returns how many node records fit in one node-index block.
func NodesPerBlock(clusterSize int) int {
	n := (clusterSize - nodeClusterOverhead) / NodeSize
	for n > 0 && nodeClusterOverhead+(n+7)/8+n*NodeSize > clusterSize {
		n--
	}
	return n
}

// nodeCluster is one node-index block.
//
// Body: next block (4) | slot bitmap ceil(n/8) | n node records | padding
type nodeCluster struct {
	id    ClusterID
	next  ClusterID
	slots *slotMap
	nodes []*Node
	dirty bool
}

func newNodeCluster(id ClusterID, perBlock int) *nodeCluster {
	return &nodeCluster{
		id:    id,
		next:  NoCluster,
		slots: newSlotMap(perBlock),
		nodes: make([]*Node, perBlock),
		dirty: true,
	}
}

func (c *nodeCluster) isDirty() bool {
	if c.dirty {
		return true
	}
	for _, n := range c.nodes {
		if n != nil && n.dirty {
			return true
		}
	}
	return false
}

func (c *nodeCluster) clearDirty() {
	c.dirty = false
	for _, n := range c.nodes {
		if n != nil {
			n.dirty = false
		}
	}
}

func (c *nodeCluster) setNext(id ClusterID) {
	c.next = id
	c.dirty = true
}

func (c *nodeCluster) nodesOffset() int {
	return 4 + len(c.slots.bits)
}

func (c *nodeCluster) decode(body []byte) error {
	c.next = ClusterID(int32(binary.LittleEndian.Uint32(body)))
	for i := range c.slots.bits {
		c.slots.bits[i] = 0
	}
	c.slots.slotsFree = c.slots.slotCount

	bitmap := body[4:c.nodesOffset()]
	off := c.nodesOffset()
	for i := range c.nodes {
		c.nodes[i] = nil
		if bitmap[i/8]&(1<<(i%8)) == 0 {
			continue
		}
		n, err := parseNode(body[off+i*NodeSize:])
		if err != nil {
			return fmt.Errorf("node slot %d: %w", i, err)
		}
		c.nodes[i] = n
		c.slots.set(i, true)
	}
	c.dirty = false
	return nil
}

func (c *nodeCluster) encode(body []byte) {
	binary.LittleEndian.PutUint32(body, uint32(int32(c.next)))
	copy(body[4:], c.slots.bits)
	off := c.nodesOffset()
	for i, n := range c.nodes {
		if n != nil {
			n.serialize(body[off+i*NodeSize : off+(i+1)*NodeSize])
		}
	}
}

func (c *nodeCluster) createNode(id, parent NodeID) *Node {
	i := c.slots.freeSlot()
	if i < 0 {
		return nil
	}
	n := newNode(id, parent)
	c.nodes[i] = n
	c.slots.set(i, true)
	c.dirty = true
	return n
}

func (c *nodeCluster) removeNode(id NodeID) bool {
	for i, n := range c.nodes {
		if n != nil && n.id == id {
			c.nodes[i] = nil
			c.slots.set(i, false)
			c.dirty = true
			return true
		}
	}
	return false
}

// NodeIndex is the chain of node-index blocks rooted at the root cluster.
type NodeIndex struct {
	blocks   []*nodeCluster
	perBlock int
	maps     *ClusterMaps
	log      *zap.Logger
}

func newNodeIndex(root ClusterID, clusterSize int, maps *ClusterMaps, log *zap.Logger) *NodeIndex {
	perBlock := NodesPerBlock(clusterSize)
	return &NodeIndex{
		blocks:   []*nodeCluster{newNodeCluster(root, perBlock)},
		perBlock: perBlock,
		maps:     maps,
		log:      log,
	}
}

// CreateNode places a new node in the first block with a free slot, growing the chain if needed.
func (x *NodeIndex) CreateNode(id, parent NodeID) (*Node, error) {
	if x.FindNode(id) != nil {
		return nil, newError(ErrAlreadyExists, "CreateNode", fmt.Sprintf("node %08x", id), "")
	}

	for _, b := range x.blocks {
		if b.slots.slotsFree > 0 {
			return b.createNode(id, parent), nil
		}
	}

	slot := x.maps.GetFreeSlot()
	if slot == NoCluster {
		return nil, newError(ErrNoSpace, "CreateNode", fmt.Sprintf("node %08x", id), "no cluster for a new index block")
	}
	if err := x.maps.Set(slot, true); err != nil {
		return nil, err
	}

	block := newNodeCluster(slot, x.perBlock)
	x.blocks[len(x.blocks)-1].setNext(slot)
	x.blocks = append(x.blocks, block)
	x.log.Debug("node index grown", zap.Int32("cluster", int32(slot)), zap.Int("blocks", len(x.blocks)))

	return block.createNode(id, parent), nil
}

// RemoveNode frees the slot holding id.
func (x *NodeIndex) RemoveNode(id NodeID) error {
	for _, b := range x.blocks {
		if b.removeNode(id) {
			return nil
		}
	}
	return newError(ErrNotFound, "RemoveNode", fmt.Sprintf("node %08x", id), "")
}

// FindNode returns the node with id, or nil.
func (x *NodeIndex) FindNode(id NodeID) *Node {
	for _, b := range x.blocks {
		for _, n := range b.nodes {
			if n != nil && n.id == id {
				return n
			}
		}
	}
	return nil
}

// FindNodeByName returns the first node whose name matches case-insensitively, or nil.
func (x *NodeIndex) FindNodeByName(name string) *Node {
	name = strings.TrimSpace(name)
	for _, b := range x.blocks {
		for _, n := range b.nodes {
			if n != nil && strings.EqualFold(n.name, name) {
				return n
			}
		}
	}
	return nil
}

// Nodes returns every node in block and slot order.
func (x *NodeIndex) Nodes() []*Node {
	var out []*Node
	for _, b := range x.blocks {
		for _, n := range b.nodes {
			if n != nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// Clusters returns the clusters occupied by index blocks.
func (x *NodeIndex) Clusters() []ClusterID {
	out := make([]ClusterID, len(x.blocks))
	for i, b := range x.blocks {
		out[i] = b.id
	}
	return out
}

// Dirty reports whether any block or node has unsaved changes.
func (x *NodeIndex) Dirty() bool {
	for _, b := range x.blocks {
		if b.isDirty() {
			return true
		}
	}
	return false
}

func (x *NodeIndex) read(dev *device) error {
	root := x.blocks[0].id
	x.blocks = nil

	seen := make(map[ClusterID]bool)
	for id := root; id != NoCluster; {
		if seen[id] {
			return newError(ErrBrokenChain, "readNodeIndex", fmt.Sprintf("cluster %d", id), "index chain loops")
		}
		seen[id] = true

		block := newNodeCluster(id, x.perBlock)
		if err := dev.readCluster(id, NodeClusterSignature, block.decode); err != nil {
			return fmt.Errorf("failed to read node block %d: %w", id, err)
		}
		x.blocks = append(x.blocks, block)
		id = block.next
	}
	return nil
}

func (x *NodeIndex) write(dev *device) error {
	for _, b := range x.blocks {
		if !b.isDirty() {
			continue
		}
		if err := dev.writeCluster(b.id, NodeClusterSignature, b.encode); err != nil {
			return fmt.Errorf("failed to write node block %d: %w", b.id, err)
		}
		b.clearDirty()
	}
	return nil
}
