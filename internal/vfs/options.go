package vfs

import (
	"github.com/deploymenttheory/go-vfs/internal/vfs/crypto"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Option configures an FS.
type Option func(*FS)

// WithFs sets the host filesystem holding the container file and Copy/Patch sources.
func WithFs(hostFs afero.Fs) Option {
	return func(fs *FS) {
		fs.hostFs = hostFs
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(fs *FS) {
		if log != nil {
			fs.log = log
		}
	}
}

// WithCipher sets the cluster cipher. Containers can only be opened with the cipher they were written with.
func WithCipher(c *crypto.ClusterCipher) Option {
	return func(fs *FS) {
		if c != nil {
			fs.cipher = c
		}
	}
}

// WithClusterSize sets the cluster size used by Create and Format.
func WithClusterSize(size int) Option {
	return func(fs *FS) {
		fs.clusterSize = size
	}
}

// WithCacheSize sets the data cluster cache capacity.
func WithCacheSize(size int) Option {
	return func(fs *FS) {
		if size > 0 {
			fs.cacheSize = size
		}
	}
}

// WithBuild sets the build number recorded in the header on format.
func WithBuild(build uint32) Option {
	return func(fs *FS) {
		fs.build = build
	}
}

// WithValidator registers a callback consulted before every structural change.
func WithValidator(v Validator) Option {
	return func(fs *FS) {
		if v != nil {
			fs.validators = append(fs.validators, v)
		}
	}
}

// ChangeOp names a structural change.
type ChangeOp int

const (
	ChangeCreateFolder ChangeOp = iota
	ChangeRemoveFolder
	ChangeTouch
	ChangeDelete
)

func (op ChangeOp) String() string {
	switch op {
	case ChangeCreateFolder:
		return "create-folder"
	case ChangeRemoveFolder:
		return "remove-folder"
	case ChangeTouch:
		return "touch"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change describes a pending structural change.
type Change struct {
	Op        ChangeOp
	Directory *Directory // directory being modified
	Name      string     // child being added or removed
}

// Validator accepts a change by returning nil. Any error rejects it before anything is modified.
type Validator func(Change) error
