package vfs

import "encoding/binary"

// dataCluster is one link of a file's cluster chain.
//
// Body: previous (4) | next (4) | payload
type dataCluster struct {
	id       ClusterID
	previous ClusterID
	next     ClusterID
	data     []byte
	dirty    bool
}

func newDataCluster(id ClusterID, usable int) *dataCluster {
	return &dataCluster{
		id:       id,
		previous: NoCluster,
		next:     NoCluster,
		data:     make([]byte, usable),
		dirty:    true,
	}
}

func (c *dataCluster) clusterID() ClusterID { return c.id }
func (c *dataCluster) isDirty() bool        { return c.dirty }

func (c *dataCluster) setNext(id ClusterID) {
	c.next = id
	c.dirty = true
}

func (c *dataCluster) decode(body []byte) error {
	c.previous = ClusterID(int32(binary.LittleEndian.Uint32(body)))
	c.next = ClusterID(int32(binary.LittleEndian.Uint32(body[4:])))
	copy(c.data, body[8:])
	c.dirty = false
	return nil
}

func (c *dataCluster) encode(body []byte) {
	binary.LittleEndian.PutUint32(body, uint32(int32(c.previous)))
	binary.LittleEndian.PutUint32(body[4:], uint32(int32(c.next)))
	copy(body[8:], c.data)
}
