package vfs

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// clusterMap is one bitmap cluster: a bit per cluster index, set when in use.
type clusterMap struct {
	id        ClusterID
	words     []uint32
	slotCount int
	slotsFree int
	dirty     bool
}

func newClusterMap(id ClusterID, bodySize int) *clusterMap {
	n := bodySize / 4
	return &clusterMap{
		id:        id,
		words:     make([]uint32, n),
		slotCount: n * 32,
		slotsFree: n * 32,
		dirty:     true,
	}
}

func (m *clusterMap) used(i int) bool {
	return m.words[i/32]&(1<<(i%32)) != 0
}

// set changes slot i and adjusts the free count only when the bit actually flips
func (m *clusterMap) set(i int, used bool) {
	w, bit := i/32, uint32(1)<<(i%32)
	if (m.words[w]&bit != 0) == used {
		return
	}
	if used {
		m.words[w] |= bit
		m.slotsFree--
	} else {
		m.words[w] &^= bit
		m.slotsFree++
	}
	m.dirty = true
}

// freeSlot returns the lowest clear slot, or -1
func (m *clusterMap) freeSlot() int {
	for w, word := range m.words {
		if word == 0xFFFFFFFF {
			continue
		}
		return w*32 + bits.TrailingZeros32(^word)
	}
	return -1
}

func (m *clusterMap) decode(body []byte) error {
	free := m.slotCount
	for i := range m.words {
		m.words[i] = binary.LittleEndian.Uint32(body[i*4:])
		free -= bits.OnesCount32(m.words[i])
	}
	m.slotsFree = free
	m.dirty = false
	return nil
}

func (m *clusterMap) encode(body []byte) {
	for i, w := range m.words {
		binary.LittleEndian.PutUint32(body[i*4:], w)
	}
}

// ClusterMaps is the allocator: the bitmap clusters addressed as one global slot range.
//
// Released clusters are zeroed on disk at the next flush, after the bitmaps
// and node blocks that stop referencing them have been written.
type ClusterMaps struct {
	maps     []*clusterMap
	released map[ClusterID]struct{}
}

func newClusterMaps(header *Header, bodySize int) *ClusterMaps {
	cm := &ClusterMaps{released: make(map[ClusterID]struct{})}
	for _, id := range header.ClusterMaps {
		cm.maps = append(cm.maps, newClusterMap(id, bodySize))
	}
	return cm
}

// locate maps a global slot index to a bitmap and its local index
func (cm *ClusterMaps) locate(op string, index ClusterID) (*clusterMap, int, error) {
	i := int(index)
	if i >= 0 {
		for _, m := range cm.maps {
			if i < m.slotCount {
				return m, i, nil
			}
			i -= m.slotCount
		}
	}
	return nil, 0, newError(ErrOutOfRange, op, fmt.Sprintf("cluster %d", index), "")
}

// Used reports whether cluster index is allocated.
func (cm *ClusterMaps) Used(index ClusterID) (bool, error) {
	m, i, err := cm.locate("Used", index)
	if err != nil {
		return false, err
	}
	return m.used(i), nil
}

// Set marks cluster index used or free.
func (cm *ClusterMaps) Set(index ClusterID, used bool) error {
	m, i, err := cm.locate("Set", index)
	if err != nil {
		return err
	}
	m.set(i, used)
	if used {
		delete(cm.released, index)
	}
	return nil
}

// Release frees cluster index and schedules it to be zeroed on disk.
func (cm *ClusterMaps) Release(index ClusterID) error {
	if err := cm.Set(index, false); err != nil {
		return err
	}
	cm.released[index] = struct{}{}
	return nil
}

// clearReleased zeroes every released cluster that has not been reallocated
func (cm *ClusterMaps) clearReleased(dev *device) error {
	for id := range cm.released {
		if err := dev.clearCluster(id); err != nil {
			return err
		}
		delete(cm.released, id)
	}
	return nil
}

// GetFreeSlot returns the lowest free cluster index, or NoCluster when the container is full.
func (cm *ClusterMaps) GetFreeSlot() ClusterID {
	base := 0
	for _, m := range cm.maps {
		if m.slotsFree > 0 {
			if i := m.freeSlot(); i >= 0 {
				return ClusterID(base + i)
			}
		}
		base += m.slotCount
	}
	return NoCluster
}

// SlotCount is the total number of addressable clusters.
func (cm *ClusterMaps) SlotCount() int {
	n := 0
	for _, m := range cm.maps {
		n += m.slotCount
	}
	return n
}

// SlotsFree is the number of unallocated clusters.
func (cm *ClusterMaps) SlotsFree() int {
	n := 0
	for _, m := range cm.maps {
		n += m.slotsFree
	}
	return n
}

// SlotsUsed is the number of allocated clusters.
func (cm *ClusterMaps) SlotsUsed() int {
	return cm.SlotCount() - cm.SlotsFree()
}

// Dirty reports whether any bitmap has unsaved changes.
func (cm *ClusterMaps) Dirty() bool {
	if len(cm.released) > 0 {
		return true
	}
	for _, m := range cm.maps {
		if m.dirty {
			return true
		}
	}
	return false
}

func (cm *ClusterMaps) read(dev *device) error {
	for _, m := range cm.maps {
		if err := dev.readCluster(m.id, ClusterMapSignature, m.decode); err != nil {
			return fmt.Errorf("failed to read cluster map %d: %w", m.id, err)
		}
	}
	return nil
}

func (cm *ClusterMaps) write(dev *device) error {
	for _, m := range cm.maps {
		if !m.dirty {
			continue
		}
		if err := dev.writeCluster(m.id, ClusterMapSignature, m.encode); err != nil {
			return fmt.Errorf("failed to write cluster map %d: %w", m.id, err)
		}
		m.dirty = false
	}
	return nil
}
