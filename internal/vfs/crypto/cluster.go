package crypto

import (
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// BlockSize is the cipher block size used for clusters.
	BlockSize = 32
	// KeySize is the cipher key size used for clusters.
	KeySize = 32
)

// Fixed container key and IV. Every container written without a passphrase uses these.
var (
	defaultKey = []byte{
		0x72, 0x7A, 0x62, 0x45, 0x66, 0x5A, 0x55, 0x31,
		0x59, 0x63, 0x32, 0x37, 0x61, 0x44, 0x73, 0x37,
		0x51, 0x75, 0x62, 0x4C, 0x64, 0xA7, 0x71, 0x6F,
		0x67, 0x41, 0x75, 0x43, 0x55, 0x31, 0x75, 0x4B,
	}
	defaultIV = []byte{
		0x5F, 0x6E, 0x7D, 0x8C, 0x9B, 0xAA, 0xB9, 0xC8,
		0xD7, 0xE6, 0xF5, 0x04, 0x5F, 0x6E, 0x7D, 0x8C,
		0x9B, 0xAA, 0xB9, 0xC8, 0xD7, 0xE6, 0xF5, 0x04,
		0x5F, 0x6E, 0x7D, 0x8C, 0x9B, 0xAA, 0xB9, 0xC8,
	}
)

// hkdf parameters for passphrase derived keys
var (
	passphraseSalt = []byte("go-vfs container key")
	passphraseInfo = []byte("cluster key+iv v1")
)

// ClusterCipher encrypts whole clusters with Rijndael-256 in CBC mode.
// Each call starts from the same IV so clusters are independent of one another.
type ClusterCipher struct {
	block cipher.Block
	iv    []byte
}

// NewClusterCipher creates a cluster cipher from a 32-byte key and a 32-byte IV.
func NewClusterCipher(key, iv []byte) (*ClusterCipher, error) {
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("IV must be %d bytes, got %d", BlockSize, len(iv))
	}
	if len(key) != KeySize {
		return nil, KeySizeError(len(key))
	}

	block, err := NewRijndael(key, BlockSize)
	if err != nil {
		return nil, err
	}

	return &ClusterCipher{
		block: block,
		iv:    append([]byte(nil), iv...),
	}, nil
}

// DefaultCipher returns the cipher keyed with the fixed container key and IV.
func DefaultCipher() *ClusterCipher {
	c, err := NewClusterCipher(defaultKey, defaultIV)
	if err != nil {
		panic(err)
	}
	return c
}

// PassphraseCipher derives the key and IV from a passphrase with HKDF-SHA256.
// An empty passphrase yields the default cipher.
func PassphraseCipher(passphrase string) (*ClusterCipher, error) {
	if passphrase == "" {
		return DefaultCipher(), nil
	}

	material := make([]byte, KeySize+BlockSize)
	kdf := hkdf.New(sha256.New, []byte(passphrase), passphraseSalt, passphraseInfo)
	if _, err := io.ReadFull(kdf, material); err != nil {
		return nil, fmt.Errorf("failed to derive cluster key: %w", err)
	}

	return NewClusterCipher(material[:KeySize], material[KeySize:])
}

// EncryptCluster encrypts p and returns the ciphertext.
// Input that is not a whole number of blocks is zero padded.
func (c *ClusterCipher) EncryptCluster(p []byte) []byte {
	n := (len(p) + BlockSize - 1) / BlockSize * BlockSize
	out := make([]byte, n)
	copy(out, p)
	if n == 0 {
		return out
	}

	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, out)
	return out
}

// DecryptCluster decrypts ciphertext produced by EncryptCluster.
func (c *ClusterCipher) DecryptCluster(p []byte) ([]byte, error) {
	if len(p)%BlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the block size")
	}

	out := make([]byte, len(p))
	if len(p) == 0 {
		return out, nil
	}

	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, p)
	return out, nil
}
