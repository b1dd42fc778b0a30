package sumcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapLookup is a TokenLookup over "dir/name" keys
type mapLookup struct {
	tokens map[string]string
	err    error
}

func (m *mapLookup) Lookup(dir, name string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	token, ok := m.tokens[filepath.Join(dir, name)]
	return token, ok, nil
}

// fakeHasher returns fixed tokens and counts calls
type fakeHasher struct {
	mu          sync.Mutex
	quick       map[string]string
	strong      map[string]string
	quickErr    map[string]error
	strongErr   map[string]error
	strongCalls int
}

func (f *fakeHasher) QuickFingerprint(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.quickErr[path]; err != nil {
		return "", err
	}
	return f.quick[path], nil
}

func (f *fakeHasher) StrongHash(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strongCalls++
	if err := f.strongErr[path]; err != nil {
		return "", err
	}
	return f.strong[path], nil
}

func TestDecide(t *testing.T) {
	path := filepath.Join("/data", "a.txt")

	testCases := []struct {
		name        string
		storedQuick map[string]string
		stored      map[string]string
		force       bool
		expected    Decision
	}{
		{"hit", map[string]string{path: "q1"}, map[string]string{path: "s1"}, false, Skip},
		{"force", map[string]string{path: "q1"}, map[string]string{path: "s1"}, true, Recompute},
		{"quick changed", map[string]string{path: "q0"}, map[string]string{path: "s1"}, false, Recompute},
		{"no strong hash", map[string]string{path: "q1"}, map[string]string{}, false, Recompute},
		{"no quick token", map[string]string{}, map[string]string{path: "s1"}, false, Recompute},
		{"nothing stored", map[string]string{}, map[string]string{}, false, Recompute},
	}

	hasher := &fakeHasher{quick: map[string]string{path: "q1"}}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cd := NewCacheDecider(hasher, &mapLookup{tokens: tc.storedQuick}, &mapLookup{tokens: tc.stored})
			v, err := cd.Decide(path, tc.force)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v.Decision)
			assert.Equal(t, "q1", v.Quick)
			assert.Equal(t, tc.stored[path], v.StoredStrong)
		})
	}
	assert.Zero(t, hasher.strongCalls, "Decide must never compute the strong hash")
}

func TestDecideErrors(t *testing.T) {
	path := filepath.Join("/data", "a.txt")
	boom := errors.New("boom")

	hasher := &fakeHasher{quickErr: map[string]error{path: boom}}
	cd := NewCacheDecider(hasher, &mapLookup{}, &mapLookup{})
	_, err := cd.Decide(path, false)
	var perr *ProcessingError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "quick", perr.Op)
	assert.Equal(t, path, perr.Path)
	assert.ErrorIs(t, err, boom)

	cd = NewCacheDecider(&fakeHasher{}, &mapLookup{}, &mapLookup{err: boom})
	_, err = cd.Decide(path, false)
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "lookup", perr.Op)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "skip", Skip.String())
	assert.Equal(t, "recompute", Recompute.String())
	assert.Equal(t, "Decision(7)", Decision(7).String())
}

func TestTokenIndexParsesOnce(t *testing.T) {
	dir := t.TempDir()
	store := NewSidecarStore(SHA1Sidecar, nil)
	_, err := store.Flush(dir, []Record{{Name: "a.txt", Token: "aaa"}})
	require.NoError(t, err)

	index := newTokenIndex(store)
	token, ok, err := index.Lookup(dir, "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "aaa", token)

	// later rewrites are not seen within the same run
	_, err = store.Flush(dir, []Record{{Name: "a.txt", Token: "bbb"}})
	require.NoError(t, err)
	token, _, _ = index.Lookup(dir, "a.txt")
	assert.Equal(t, "aaa", token)

	_, ok, err = index.Lookup(dir, "missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcessingErrorFormat(t *testing.T) {
	err := &ProcessingError{Path: "/x/a.txt", Op: "hash", Err: os.ErrPermission}
	assert.Equal(t, fmt.Sprintf("/x/a.txt: hash failed: %v", os.ErrPermission), err.Error())
	assert.ErrorIs(t, err, os.ErrPermission)
}
