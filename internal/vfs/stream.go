package vfs

import (
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"
)

// Stream gives random access to the bytes of a file node.
//
// The stream tracks the cluster holding the current position together with the
// byte interval [start, end] that cluster covers. Moving outside the interval
// walks the chain one link at a time.
type Stream struct {
	fs         *FS
	node       *Node
	generation uint64
	chain      uint64 // node.chain when current was loaded

	pos     int64
	index   int64     // position of the current cluster in the chain
	current ClusterID // NoCluster while the file has no clusters
	start   int64
	end     int64

	closed bool
}

func newStream(fs *FS, node *Node) *Stream {
	s := &Stream{
		fs:         fs,
		node:       node,
		generation: fs.generation,
	}
	s.rewind()
	return s
}

// Node returns the file node behind the stream
func (s *Stream) Node() *Node { return s.node }

// Length returns the file size
func (s *Stream) Length() int64 { return s.node.fileSize }

// Position returns the current offset
func (s *Stream) Position() int64 { return s.pos }

func (s *Stream) usable() int64 {
	return int64(s.fs.header.UsableClusterSize())
}

func (s *Stream) load(index int64, id ClusterID) {
	s.index = index
	s.current = id
	s.start = index * s.usable()
	s.end = s.start + s.usable() - 1
}

// rewind points the stream at the head of the chain
func (s *Stream) rewind() {
	s.chain = s.node.chain
	s.load(0, s.node.firstCluster)
}

// sync drops the cached chain position when clusters were released under it
// or when the chain was empty at the last access.
func (s *Stream) sync() {
	if s.chain != s.node.chain || s.current == NoCluster {
		s.rewind()
	}
}

func (s *Stream) check(op string) error {
	if s.closed {
		return newError(ErrClosed, op, s.node.name, "")
	}
	if !s.fs.IsOpen() || s.generation != s.fs.generation {
		return newError(ErrStaleStream, op, s.node.name, "")
	}
	s.sync()
	return nil
}

// cluster returns the current cluster through the cache
func (s *Stream) cluster() (*dataCluster, error) {
	if s.current == NoCluster {
		return nil, newError(ErrBrokenChain, "Stream", s.node.name,
			fmt.Sprintf("no cluster at chain position %d", s.index))
	}
	return s.fs.dataCluster(s.current)
}

// locate walks the chain until the current cluster covers pos
func (s *Stream) locate(pos int64) error {
	for pos < s.start {
		dc, err := s.cluster()
		if err != nil {
			return err
		}
		if dc.previous == NoCluster {
			return newError(ErrBrokenChain, "Stream", s.node.name,
				fmt.Sprintf("cluster %d has no previous link", dc.id))
		}
		from := dc.id
		s.load(s.index-1, dc.previous)
		prev, err := s.cluster()
		if err != nil {
			return err
		}
		if prev.next != from {
			return newError(ErrBrokenChain, "Stream", s.node.name,
				fmt.Sprintf("cluster %d does not link forward to %d", prev.id, from))
		}
	}

	for pos > s.end {
		dc, err := s.cluster()
		if err != nil {
			return err
		}
		if dc.next == NoCluster {
			return newError(ErrBrokenChain, "Stream", s.node.name,
				fmt.Sprintf("cluster %d has no next link", dc.id))
		}
		from := dc.id
		s.load(s.index+1, dc.next)
		next, err := s.cluster()
		if err != nil {
			return err
		}
		if next.previous != from {
			return newError(ErrBrokenChain, "Stream", s.node.name,
				fmt.Sprintf("cluster %d does not link back to %d", next.id, from))
		}
	}
	return nil
}

// Read implements io.Reader. Reads stop at the file size.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.check("Read"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= s.node.fileSize {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && s.pos < s.node.fileSize {
		if err := s.locate(s.pos); err != nil {
			return n, err
		}
		dc, err := s.cluster()
		if err != nil {
			return n, err
		}

		off := s.pos - s.start
		avail := min(s.end-s.pos+1, s.node.fileSize-s.pos)
		c := copy(p[n:], dc.data[off:off+avail])
		n += c
		s.pos += int64(c)
	}
	return n, nil
}

// ReadByte implements io.ByteReader
func (s *Stream) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Write implements io.Writer. Writing past the end grows the file; any gap reads as zeros.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.check("Write"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	end := s.pos + int64(len(p))
	if end < s.pos {
		return 0, newError(ErrOutOfRange, "Write", s.node.name, "position overflows")
	}
	if end > s.node.fileSize {
		if err := s.setLength(end); err != nil {
			return 0, err
		}
	}

	n := 0
	for n < len(p) {
		if err := s.locate(s.pos); err != nil {
			return n, err
		}
		dc, err := s.cluster()
		if err != nil {
			return n, err
		}

		off := s.pos - s.start
		c := copy(dc.data[off:], p[n:])
		dc.dirty = true
		n += c
		s.pos += int64(c)
	}
	s.node.touch()
	return n, nil
}

// WriteByte implements io.ByteWriter
func (s *Stream) WriteByte(b byte) error {
	_, err := s.Write([]byte{b})
	return err
}

// Seek implements io.Seeker. Seeking past the end does not allocate.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if err := s.check("Seek"); err != nil {
		return 0, err
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = s.node.fileSize + offset
	default:
		return 0, newError(ErrInvalidOperation, "Seek", s.node.name, fmt.Sprintf("invalid whence %d", whence))
	}
	if abs < 0 {
		return 0, newError(ErrOutOfRange, "Seek", s.node.name, "negative position")
	}
	s.pos = abs
	return abs, nil
}

// SetLength grows or truncates the file to length bytes.
func (s *Stream) SetLength(length int64) error {
	if err := s.check("SetLength"); err != nil {
		return err
	}
	if length < 0 {
		return newError(ErrOutOfRange, "SetLength", s.node.name, "negative length")
	}
	return s.setLength(length)
}

func (s *Stream) setLength(length int64) error {
	need := length / s.usable()
	if length%s.usable() != 0 {
		need++
	}
	if need > math.MaxInt32 || need > int64(s.fs.maps.SlotCount()) {
		return newError(ErrNoSpace, "SetLength", s.node.name,
			fmt.Sprintf("%d bytes need %d clusters", length, need))
	}

	// the chain decides, not the size: a failed growth may have left clusters behind
	switch count := int64(s.node.clusterCount); {
	case need > count:
		if err := s.fs.enhanceClusters(s.node, int32(need)); err != nil {
			return err
		}
	case need < count:
		if err := s.fs.reduceClusters(s.node, int32(need)); err != nil {
			return err
		}
	}

	if length < s.node.fileSize {
		if err := s.zeroTail(length); err != nil {
			return err
		}
	}

	s.sync()
	s.node.setFileSize(length)
	return nil
}

// zeroTail clears the bytes after length in the last cluster so later growth reads zeros
func (s *Stream) zeroTail(length int64) error {
	if s.node.clusterCount == 0 {
		return nil
	}
	off := length - int64(s.node.clusterCount-1)*s.usable()
	dc, err := s.fs.dataCluster(s.node.lastCluster)
	if err != nil {
		return err
	}
	if off < int64(len(dc.data)) {
		clear(dc.data[off:])
		dc.dirty = true
	}
	return nil
}

// Flush persists all pending container changes.
func (s *Stream) Flush() error {
	if err := s.check("Flush"); err != nil {
		return err
	}
	return s.fs.Flush()
}

// Close flushes the container and invalidates the stream.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.fs.IsOpen() || s.generation != s.fs.generation {
		return nil
	}
	return s.fs.Flush()
}

// enhanceClusters appends clusters to node's chain until it holds count.
// On failure the chain is cut back to its original length.
func (fs *FS) enhanceClusters(node *Node, count int32) (err error) {
	base := node.clusterCount
	if missing := int(count - base); missing > fs.maps.SlotsFree() {
		return newError(ErrNoSpace, "enhanceClusters", node.name,
			fmt.Sprintf("%d clusters requested, %d free", missing, fs.maps.SlotsFree()))
	}

	defer func() {
		if err == nil || node.clusterCount <= base {
			return
		}
		if rerr := fs.reduceClusters(node, base); rerr != nil {
			fs.log.Warn("cluster rollback failed", zap.String("file", node.name), zap.Error(rerr))
		}
	}()

	usable := fs.header.UsableClusterSize()
	for node.clusterCount < count {
		slot := fs.maps.GetFreeSlot()
		if slot == NoCluster {
			return newError(ErrNoSpace, "enhanceClusters", node.name, "")
		}
		if err := fs.maps.Set(slot, true); err != nil {
			return err
		}

		dc := newDataCluster(slot, usable)
		if node.clusterCount == 0 {
			node.firstCluster = slot
		} else {
			last, err := fs.dataCluster(node.lastCluster)
			if err != nil {
				_ = fs.maps.Set(slot, false)
				return err
			}
			last.setNext(slot)
			dc.previous = node.lastCluster
		}
		node.lastCluster = slot
		node.clusterCount++
		node.touch()

		if err := fs.cache.Append(dc); err != nil {
			return err
		}
		fs.log.Debug("cluster allocated", zap.String("file", node.name), zap.Int32("cluster", int32(slot)))
	}
	return nil
}

// reduceClusters frees clusters from the tail of node's chain until it holds count.
func (fs *FS) reduceClusters(node *Node, count int32) error {
	for node.clusterCount > count {
		id := node.lastCluster
		dc, err := fs.dataCluster(id)
		if err != nil {
			return err
		}
		prev := dc.previous

		fs.cache.Remove(id)
		if err := fs.maps.Release(id); err != nil {
			return err
		}

		node.lastCluster = prev
		node.clusterCount--
		node.chain++
		node.touch()
		fs.log.Debug("cluster released", zap.String("file", node.name), zap.Int32("cluster", int32(id)))
	}

	if node.clusterCount == 0 {
		node.firstCluster = NoCluster
		node.lastCluster = NoCluster
		return nil
	}

	last, err := fs.dataCluster(node.lastCluster)
	if err != nil {
		return err
	}
	if last.next != NoCluster {
		last.setNext(NoCluster)
	}
	return nil
}
