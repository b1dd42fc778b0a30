package sumcache

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Decision is the outcome of the cache check for one file
type Decision int

const (
	Skip      Decision = iota // stored strong hash is trusted
	Recompute                 // strong hash must be (re)computed
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case Recompute:
		return "recompute"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// TokenLookup returns the token stored for name in dir
type TokenLookup interface {
	Lookup(dir, name string) (string, bool, error)
}

// Verdict carries the decision plus the tokens it was based on
type Verdict struct {
	Decision     Decision
	Quick        string // freshly computed quick fingerprint
	StoredQuick  string
	StoredStrong string
	HasStrong    bool
}

// CacheDecider decides hit or miss for a single file
type CacheDecider struct {
	hasher Fingerprinter
	quick  TokenLookup
	strong TokenLookup
}

// NewCacheDecider creates a decider over the given primitives
func NewCacheDecider(hasher Fingerprinter, quick, strong TokenLookup) *CacheDecider {
	return &CacheDecider{
		hasher: hasher,
		quick:  quick,
		strong: strong,
	}
}

// Decide returns Skip iff force is false, a strong hash is on record and the
// fresh quick fingerprint equals the stored one
func (cd *CacheDecider) Decide(path string, force bool) (Verdict, error) {
	dir, name := filepath.Split(path)
	dir = filepath.Clean(dir)

	var v Verdict
	var err error

	v.StoredStrong, v.HasStrong, err = cd.strong.Lookup(dir, name)
	if err != nil {
		return v, &ProcessingError{Path: path, Op: "lookup", Err: err}
	}

	v.Quick, err = cd.hasher.QuickFingerprint(path)
	if err != nil {
		return v, &ProcessingError{Path: path, Op: "quick", Err: err}
	}

	storedQuick, hasQuick, err := cd.quick.Lookup(dir, name)
	if err != nil {
		return v, &ProcessingError{Path: path, Op: "lookup", Err: err}
	}
	v.StoredQuick = storedQuick

	if !force && v.HasStrong && hasQuick && v.Quick == storedQuick {
		v.Decision = Skip
	} else {
		v.Decision = Recompute
	}

	if IsDebugEnabled("decide") {
		VerboseLog(LevelDebug, "%s: %s (force=%t stored=%t quick %s vs %s)",
			path, v.Decision, force, v.HasStrong, v.Quick, storedQuick)
	}
	return v, nil
}

// tokenIndex caches each directory's parsed sidecar for the length of a run
type tokenIndex struct {
	store *SidecarStore
	mu    sync.Mutex
	dirs  map[string]map[string]string
}

func newTokenIndex(store *SidecarStore) *tokenIndex {
	return &tokenIndex{
		store: store,
		dirs:  make(map[string]map[string]string),
	}
}

// Lookup implements TokenLookup, parsing dir's sidecar on first use
func (ti *tokenIndex) Lookup(dir, name string) (string, bool, error) {
	ti.mu.Lock()
	tokens, ok := ti.dirs[dir]
	ti.mu.Unlock()

	if !ok {
		records, err := ti.store.Load(dir)
		if err != nil {
			return "", false, err
		}
		tokens = records.toMap()

		ti.mu.Lock()
		if existing, raced := ti.dirs[dir]; raced {
			tokens = existing
		} else {
			ti.dirs[dir] = tokens
		}
		ti.mu.Unlock()
	}

	token, found := tokens[name]
	return token, found, nil
}
