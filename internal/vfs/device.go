package vfs

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/deploymenttheory/go-vfs/internal/vfs/checksum"
	"github.com/deploymenttheory/go-vfs/internal/vfs/crypto"
	"github.com/spf13/afero"
)

// device reads and writes encrypted cluster frames on the backing file.
//
// Frame: signature (4) | body (clusterSize-8) | CRC-32 over signature and body (4)
type device struct {
	file        afero.File
	clusterSize int
	cipher      *crypto.ClusterCipher
}

func newDevice(file afero.File, clusterSize int, c *crypto.ClusterCipher) *device {
	return &device{
		file:        file,
		clusterSize: clusterSize,
		cipher:      c,
	}
}

// bodySize is the number of bytes a cluster kind may use between signature and CRC
func (d *device) bodySize() int {
	return d.clusterSize - clusterFrameSize
}

func (d *device) offset(id ClusterID) int64 {
	return FirstClusterOffset + int64(id)*int64(d.clusterSize)
}

// readCluster loads cluster id, checks its signature and CRC, and hands the body to decode.
func (d *device) readCluster(id ClusterID, signature uint32, decode func(body []byte) error) error {
	if id < 0 {
		return newError(ErrOutOfRange, "readCluster", fmt.Sprintf("cluster %d", id), "")
	}

	raw := make([]byte, d.clusterSize)
	if n, err := d.file.ReadAt(raw, d.offset(id)); err != nil && !(err == io.EOF && n == len(raw)) {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return ioError("readCluster", fmt.Sprintf("cluster %d", id), err)
	}

	frame, err := d.cipher.DecryptCluster(raw)
	if err != nil {
		return ioError("readCluster", fmt.Sprintf("cluster %d", id), err)
	}

	if sig := binary.LittleEndian.Uint32(frame); sig != signature {
		return newError(ErrSignatureMismatch, "readCluster", fmt.Sprintf("cluster %d", id),
			fmt.Sprintf("expected %#08x, found %#08x", signature, sig))
	}

	crcOffset := d.clusterSize - 4
	if !checksum.Validate(frame[:crcOffset], binary.LittleEndian.Uint32(frame[crcOffset:])) {
		return newError(ErrChecksumMismatch, "readCluster", fmt.Sprintf("cluster %d", id), "")
	}

	return decode(frame[4:crcOffset])
}

// writeCluster serializes a cluster through encode, seals it and writes it in place.
func (d *device) writeCluster(id ClusterID, signature uint32, encode func(body []byte)) error {
	if id < 0 {
		return newError(ErrOutOfRange, "writeCluster", fmt.Sprintf("cluster %d", id), "")
	}

	frame := make([]byte, d.clusterSize)
	binary.LittleEndian.PutUint32(frame, signature)

	crcOffset := d.clusterSize - 4
	encode(frame[4:crcOffset])
	binary.LittleEndian.PutUint32(frame[crcOffset:], checksum.Sum(frame[:crcOffset]))

	if _, err := d.file.WriteAt(d.cipher.EncryptCluster(frame), d.offset(id)); err != nil {
		return ioError("writeCluster", fmt.Sprintf("cluster %d", id), err)
	}
	return nil
}

// clearCluster overwrites a freed cluster with zero bytes.
func (d *device) clearCluster(id ClusterID) error {
	if _, err := d.file.WriteAt(make([]byte, d.clusterSize), d.offset(id)); err != nil {
		return ioError("clearCluster", fmt.Sprintf("cluster %d", id), err)
	}
	return nil
}

// sync flushes the backing file to stable storage.
func (d *device) sync() error {
	if err := d.file.Sync(); err != nil {
		return ioError("sync", d.file.Name(), err)
	}
	return nil
}
