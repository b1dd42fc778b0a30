package sumcache

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// Sidecar file names
const (
	QuickSidecar  = "QDSUMS"
	SHA1Sidecar   = "SHA1SUMS"
	SHA256Sidecar = "SHA256SUMS"
	SHA512Sidecar = "SHA512SUMS"
)

// reservedNames are never written as records and never hashed as candidates
var reservedNames = map[string]bool{
	QuickSidecar:  true,
	SHA1Sidecar:   true,
	SHA256Sidecar: true,
	SHA512Sidecar: true,
}

// A sidecar being rewritten is a temporary ".<name>.tmp-*" file in the same directory
const (
	sidecarTempPrefix = "."
	sidecarTempSuffix = ".tmp-"
)

// IsReservedName reports whether name is one of the sidecar file names,
// or a temporary file left by rewriting one
func IsReservedName(name string) bool {
	if reservedNames[name] {
		return true
	}
	if !strings.HasPrefix(name, sidecarTempPrefix) {
		return false
	}
	base, _, found := strings.Cut(name[len(sidecarTempPrefix):], sidecarTempSuffix)
	return found && reservedNames[base]
}

// Run defaults
const (
	DefaultFlushBatch  = 100
	DefaultHashWorkers = 4
	DefaultHashBuffer  = "2M"
	DefaultQuickSample = "64K"
)

// Digest sizes in bytes
const (
	HashSizeSHA1   = 20
	HashSizeSHA256 = 32
	HashSizeSHA512 = 64
)

// QuickTokenLength is the hex length of a quick fingerprint
const QuickTokenLength = 16

// Record contexts inside a recordList
const (
	StoredContext  = "stored"
	PendingContext = "pending"
)

// MergeTheirs makes the incoming list win on key collisions
const MergeTheirs = zcsl.MergeTheirs
