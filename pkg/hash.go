package sumcache

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprinter produces the two tokens the cache is built from.
// Implementations must be safe for concurrent use.
type Fingerprinter interface {
	QuickFingerprint(path string) (string, error)
	StrongHash(path string) (string, error)
}

// HashAlgorithm represents a hash algorithm configuration
type HashAlgorithm struct {
	Name    string
	Size    int    // digest bytes; stored tokens are 2*Size hex digits
	Sidecar string // per-directory sidecar holding this algorithm's digests
	NewFunc func() hash.Hash
}

// GetHashAlgorithm returns the hash algorithm configuration for the given name
func GetHashAlgorithm(name string) (*HashAlgorithm, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return &HashAlgorithm{
			Name:    "sha1",
			Size:    HashSizeSHA1,
			Sidecar: SHA1Sidecar,
			NewFunc: func() hash.Hash { return sha1.New() },
		}, nil
	case "sha256":
		return &HashAlgorithm{
			Name:    "sha256",
			Size:    HashSizeSHA256,
			Sidecar: SHA256Sidecar,
			NewFunc: func() hash.Hash { return sha256.New() },
		}, nil
	case "sha512":
		return &HashAlgorithm{
			Name:    "sha512",
			Size:    HashSizeSHA512,
			Sidecar: SHA512Sidecar,
			NewFunc: func() hash.Hash { return sha512.New() },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", name)
	}
}

// HashFile calculates the hash of a file using the specified algorithm,
// reading it bufferSize bytes at a time
func HashFile(filePath string, algorithm *HashAlgorithm, bufferSize int) ([]byte, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	if bufferSize <= 0 {
		bufferSize = 32 * 1024
	}

	hasher := algorithm.NewFunc()
	n, err := io.CopyBuffer(hasher, file, make([]byte, bufferSize))
	if err != nil {
		return nil, n, fmt.Errorf("failed to hash file %s: %w", filePath, err)
	}

	return hasher.Sum(nil), n, nil
}

// TokenLength is the hex length of a stored digest
func (a *HashAlgorithm) TokenLength() int {
	return 2 * a.Size
}

// FileHasher is the default Fingerprinter
type FileHasher struct {
	Algorithm  *HashAlgorithm
	BufferSize int // read size for the strong hash
	SampleSize int // bytes per quick fingerprint sample
}

// NewFileHasher builds a FileHasher from configuration values
func NewFileHasher(algorithm *HashAlgorithm, bufferSize, sampleSize int) *FileHasher {
	return &FileHasher{
		Algorithm:  algorithm,
		BufferSize: bufferSize,
		SampleSize: sampleSize,
	}
}

// StrongHash returns the hex digest of the whole file
func (fh *FileHasher) StrongHash(path string) (string, error) {
	sum, _, err := HashFile(path, fh.Algorithm, fh.BufferSize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// QuickFingerprint hashes the file size plus a head, middle and tail sample.
// Files no larger than three samples are read in full.
func (fh *FileHasher) QuickFingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	size := info.Size()

	sample := int64(fh.SampleSize)
	if sample <= 0 {
		sample = 64 * 1024
	}

	digest := xxhash.New()
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(size))
	digest.Write(sizeBuf[:])

	if size <= 3*sample {
		if _, err := io.Copy(digest, file); err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", path, err)
		}
	} else {
		buf := make([]byte, sample)
		for _, offset := range []int64{0, size/2 - sample/2, size - sample} {
			if _, err := file.ReadAt(buf, offset); err != nil && err != io.EOF {
				return "", fmt.Errorf("failed to sample file %s at %d: %w", path, offset, err)
			}
			digest.Write(buf)
		}
	}

	return fmt.Sprintf("%0*x", QuickTokenLength, digest.Sum64()), nil
}
