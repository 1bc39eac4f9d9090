// File: internal/vfs/fs.go
package vfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deploymenttheory/go-vfs/internal/vfs/crypto"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// FS is an open (or closed) container file.
//
// A closed FS only accepts Create and Open. Every structural change is flushed
// on success; on failure the container is reloaded from disk before the error
// is returned, so in-memory state never drifts from what was last persisted.
type FS struct {
	path        string
	hostFs      afero.Fs
	log         *zap.Logger
	cipher      *crypto.ClusterCipher
	clusterSize int
	cacheSize   int
	build       uint32
	validators  []Validator

	file    afero.File
	dev     *device
	header  *Header
	maps    *ClusterMaps
	index   *NodeIndex
	cache   *Cache[*dataCluster]
	tree    *Tree
	current *Directory

	// bumped whenever in-memory state is rebuilt so older streams can detect it
	generation uint64
}

// New returns a closed FS for the container at path. A path without an
// extension gets DefaultExt.
func New(path string, opts ...Option) *FS {
	if filepath.Ext(path) == "" {
		path += DefaultExt
	}

	fs := &FS{
		path:        path,
		hostFs:      afero.NewOsFs(),
		log:         zap.NewNop(),
		cipher:      crypto.DefaultCipher(),
		clusterSize: DefaultClusterSize,
		cacheSize:   DefaultCacheSize,
		build:       1,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// WithContainer opens the container at path, runs fn and always closes it again.
func WithContainer(path string, fn func(*FS) error, opts ...Option) (err error) {
	fs := New(path, opts...)
	if err := fs.Open(); err != nil {
		return err
	}
	defer func() {
		if cerr := fs.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(fs)
}

// Path returns the host path of the container file
func (fs *FS) Path() string { return fs.path }

// IsOpen reports whether the container is open
func (fs *FS) IsOpen() bool {
	return fs.file != nil && fs.tree != nil
}

func (fs *FS) requireOpen(op string) error {
	if !fs.IsOpen() {
		return newError(ErrNotOpen, op, fs.path, "")
	}
	return nil
}

// Create creates and formats a new container file. An existing file is only
// replaced when force is set.
func (fs *FS) Create(force bool, label string) error {
	if err := fs.Close(); err != nil {
		return err
	}
	if err := validateClusterSize(fs.clusterSize); err != nil {
		return err
	}

	exists, err := afero.Exists(fs.hostFs, fs.path)
	if err != nil {
		return ioError("Create", fs.path, err)
	}
	if exists && !force {
		return newError(ErrAlreadyExists, "Create", fs.path, "")
	}

	f, err := fs.hostFs.OpenFile(fs.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ioError("Create", fs.path, err)
	}
	fs.file = f

	if err := fs.Format(label); err != nil {
		fs.abandon()
		return err
	}

	fs.log.Info("container created",
		zap.String("path", fs.path),
		zap.Int("cluster_size", fs.clusterSize),
		zap.String("label", label))
	return nil
}

// Open opens an existing container file and loads its state.
func (fs *FS) Open() error {
	if err := fs.Close(); err != nil {
		return err
	}

	exists, err := afero.Exists(fs.hostFs, fs.path)
	if err != nil {
		return ioError("Open", fs.path, err)
	}
	if !exists {
		return newError(ErrNotFound, "Open", fs.path, "")
	}

	f, err := fs.hostFs.OpenFile(fs.path, os.O_RDWR, 0)
	if err != nil {
		return ioError("Open", fs.path, err)
	}
	fs.file = f

	if err := fs.Reload(); err != nil {
		return err
	}

	fs.log.Info("container opened",
		zap.String("path", fs.path),
		zap.String("label", fs.GetLabel()),
		zap.Int("slots_used", fs.maps.SlotsUsed()))
	return nil
}

// Close flushes pending changes and releases the backing file. Closing a closed FS is a no-op.
func (fs *FS) Close() error {
	if fs.file == nil {
		return nil
	}

	var errs []error
	if fs.IsOpen() {
		errs = append(errs, fs.flush())
	}
	if err := fs.file.Close(); err != nil {
		errs = append(errs, ioError("Close", fs.path, err))
	}
	fs.reset()

	fs.log.Info("container closed", zap.String("path", fs.path))
	return errors.Join(errs...)
}

// abandon releases the backing file without flushing
func (fs *FS) abandon() {
	if fs.file != nil {
		fs.file.Close()
	}
	fs.reset()
}

func (fs *FS) reset() {
	fs.file = nil
	fs.dev = nil
	fs.header = nil
	fs.maps = nil
	fs.index = nil
	fs.cache = nil
	fs.tree = nil
	fs.current = nil
	fs.generation++
}

// Flush writes the header, bitmaps, node blocks and cached data clusters, in that order.
func (fs *FS) Flush() error {
	if err := fs.requireOpen("Flush"); err != nil {
		return err
	}
	return fs.flush()
}

func (fs *FS) flush() error {
	if fs.maps.Dirty() || fs.index.Dirty() || fs.cache.Dirty() {
		fs.header.touch()
	}
	if err := fs.header.write(fs.file); err != nil {
		return err
	}
	if err := fs.maps.write(fs.dev); err != nil {
		return err
	}
	if err := fs.index.write(fs.dev); err != nil {
		return err
	}
	if err := fs.maps.clearReleased(fs.dev); err != nil {
		return err
	}
	if err := fs.cache.Flush(); err != nil {
		return err
	}
	return fs.dev.sync()
}

// Reload discards in-memory state and rebuilds it from disk. If the container
// cannot be loaded it is closed and the error returned.
func (fs *FS) Reload() error {
	if fs.file == nil {
		return newError(ErrNotOpen, "Reload", fs.path, "")
	}

	var currentID NodeID
	if fs.current != nil {
		currentID = fs.current.ID()
	}

	if err := fs.load(); err != nil {
		fs.abandon()
		return err
	}

	if d := fs.tree.FindDirectory(currentID); d != nil {
		fs.current = d
	}
	return nil
}

func (fs *FS) load() error {
	header, err := readHeader(fs.file)
	if err != nil {
		return err
	}

	dev := newDevice(fs.file, header.ClusterSize, fs.cipher)

	maps := newClusterMaps(header, dev.bodySize())
	if err := maps.read(dev); err != nil {
		return err
	}

	index := newNodeIndex(header.RootCluster(), header.ClusterSize, maps, fs.log)
	if err := index.read(dev); err != nil {
		return err
	}

	tree, err := buildTree(index.Nodes(), RootID)
	if err != nil {
		return err
	}

	fs.generation++
	fs.header = header
	fs.dev = dev
	fs.maps = maps
	fs.index = index
	fs.tree = tree
	fs.current = tree.root
	fs.cache = NewCache(fs.cacheSize, fs.writeDataCluster)
	return nil
}

// Format initializes an empty container in the open file: header, bitmaps,
// root index block and the root directory.
func (fs *FS) Format(label string) error {
	if fs.file == nil {
		return newError(ErrNotOpen, "Format", fs.path, "")
	}
	label, err := normalizeLabel("Format", label)
	if err != nil {
		return err
	}
	if err := validateClusterSize(fs.clusterSize); err != nil {
		return err
	}

	fs.generation++
	fs.tree = nil
	fs.current = nil

	header := newHeader(fs.clusterSize, fs.build, label)
	dev := newDevice(fs.file, header.ClusterSize, fs.cipher)

	maps := newClusterMaps(header, dev.bodySize())
	for _, id := range header.ClusterMaps {
		if err := maps.Set(id, true); err != nil {
			return err
		}
	}
	if err := maps.Set(header.RootCluster(), true); err != nil {
		return err
	}

	index := newNodeIndex(header.RootCluster(), header.ClusterSize, maps, fs.log)
	root, err := index.CreateNode(RootID, NoParent)
	if err != nil {
		return err
	}
	root.name = RootName
	root.flags = FlagDirectory

	fs.header = header
	fs.dev = dev
	fs.maps = maps
	fs.index = index
	fs.cache = NewCache(max(fs.cacheSize/2, 1), fs.writeDataCluster)

	if err := fs.flush(); err != nil {
		return err
	}
	size := int64(FirstClusterOffset) + int64(header.ClusterSize)*(ClusterMapThreshold+1)
	if err := fs.file.Truncate(size); err != nil {
		return ioError("Format", fs.path, err)
	}

	tree, err := buildTree(index.Nodes(), RootID)
	if err != nil {
		return err
	}
	fs.tree = tree
	fs.current = tree.root

	fs.log.Info("container formatted", zap.String("path", fs.path), zap.Int("cluster_size", header.ClusterSize))
	return nil
}

// Label sets the volume label. Labels are stored upper case.
func (fs *FS) Label(name string) error {
	if err := fs.requireOpen("Label"); err != nil {
		return err
	}
	name, err := normalizeLabel("Label", name)
	if err != nil {
		return err
	}
	fs.header.setName(name)
	return fs.commit("Label", nil)
}

// normalizeLabel upper-cases a label before measuring it, case mapping can change its byte length.
func normalizeLabel(op, label string) (string, error) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if len(label) > NameSize {
		return "", newError(ErrInvalidName, op, label, "label longer than 32 bytes")
	}
	return label, nil
}

// GetLabel returns the volume label, or the container file name when no label is set.
func (fs *FS) GetLabel() string {
	if fs.header != nil {
		if name := strings.TrimSpace(fs.header.Name()); name != "" {
			return name
		}
	}
	base := filepath.Base(fs.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Header returns the volume header of an open container
func (fs *FS) Header() *Header { return fs.header }

// VolumeInfo summarizes an open container.
type VolumeInfo struct {
	Path         string    `json:"path" yaml:"path"`
	Label        string    `json:"label" yaml:"label"`
	Version      uint32    `json:"version" yaml:"version"`
	Build        uint32    `json:"build" yaml:"build"`
	ClusterSize  int       `json:"cluster_size" yaml:"cluster_size"`
	Created      time.Time `json:"created" yaml:"created"`
	Modified     time.Time `json:"modified" yaml:"modified"`
	SlotCount    int       `json:"slot_count" yaml:"slot_count"`
	SlotsUsed    int       `json:"slots_used" yaml:"slots_used"`
	SlotsFree    int       `json:"slots_free" yaml:"slots_free"`
	IndexBlocks  int       `json:"index_blocks" yaml:"index_blocks"`
	Nodes        int       `json:"nodes" yaml:"nodes"`
	CacheEntries int       `json:"cache_entries" yaml:"cache_entries"`
}

// Stat describes the open container.
func (fs *FS) Stat() (VolumeInfo, error) {
	if err := fs.requireOpen("Stat"); err != nil {
		return VolumeInfo{}, err
	}
	return VolumeInfo{
		Path:         fs.path,
		Label:        fs.GetLabel(),
		Version:      fs.header.Version,
		Build:        fs.header.Build,
		ClusterSize:  fs.header.ClusterSize,
		Created:      fs.header.Created,
		Modified:     fs.header.Modified,
		SlotCount:    fs.maps.SlotCount(),
		SlotsUsed:    fs.maps.SlotsUsed(),
		SlotsFree:    fs.maps.SlotsFree(),
		IndexBlocks:  len(fs.index.blocks),
		Nodes:        len(fs.index.Nodes()),
		CacheEntries: fs.cache.Len(),
	}, nil
}

// dataCluster returns cluster id from the cache, loading it from disk on a miss.
func (fs *FS) dataCluster(id ClusterID) (*dataCluster, error) {
	if dc, ok := fs.cache.Item(id); ok {
		return dc, nil
	}

	dc := newDataCluster(id, fs.header.UsableClusterSize())
	if err := fs.dev.readCluster(id, DataClusterSignature, dc.decode); err != nil {
		return nil, err
	}
	if err := fs.cache.Append(dc); err != nil {
		return nil, err
	}
	return dc, nil
}

func (fs *FS) writeDataCluster(dc *dataCluster) error {
	if err := fs.dev.writeCluster(dc.id, DataClusterSignature, dc.encode); err != nil {
		return fmt.Errorf("failed to write data cluster %d: %w", dc.id, err)
	}
	dc.dirty = false
	return nil
}

// validate runs the registered validators for a pending change
func (fs *FS) validate(op ChangeOp, dir *Directory, name string) error {
	for _, v := range fs.validators {
		if err := v(Change{Op: op, Directory: dir, Name: name}); err != nil {
			return &Error{Err: fmt.Errorf("%w: %w", ErrRejected, err), Op: op.String(), Object: name}
		}
	}
	return nil
}

// commit flushes a successful change. A failed change, or a failed flush,
// reloads the container before the error is returned.
func (fs *FS) commit(op string, err error) error {
	if err == nil {
		if err = fs.flush(); err == nil {
			return nil
		}
	}

	fs.log.Warn("change failed, reloading container", zap.String("op", op), zap.Error(err))
	if rerr := fs.Reload(); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}
