package sumcache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectStream(t *testing.T, e *Enumerator, args ...string) []string {
	t.Helper()
	out := make(chan string)
	errChan := make(chan error, 1)
	go func() {
		errChan <- e.Stream(make(chan struct{}), args, out)
	}()

	var paths []string
	for p := range out {
		paths = append(paths, p)
	}
	require.NoError(t, <-errChan)
	return paths
}

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range []string{"b.txt", "a.txt", "sub/c.txt", "sub/deep/d.log", SHA1Sidecar, "sub/" + QuickSidecar} {
		writeTestFile(t, filepath.Join(root, rel), []byte(rel))
	}
	return root
}

func TestStreamDirectoryImmediateFiles(t *testing.T) {
	root := makeTree(t)
	e, err := NewEnumerator(false, nil, nil)
	require.NoError(t, err)

	paths := collectStream(t, e, root)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.txt"),
	}, paths)
}

func TestStreamDirectoryRecursive(t *testing.T) {
	root := makeTree(t)
	e, err := NewEnumerator(true, nil, nil)
	require.NoError(t, err)

	paths := collectStream(t, e, root)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.txt"),
		filepath.Join(root, "sub", "c.txt"),
		filepath.Join(root, "sub", "deep", "d.log"),
	}, paths)
}

func TestStreamExcludes(t *testing.T) {
	root := makeTree(t)
	e, err := NewEnumerator(true, []string{"*.log", "**/sub/c.txt"}, nil)
	require.NoError(t, err)

	paths := collectStream(t, e, root)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.txt"),
	}, paths)
}

func TestStreamFilesAndMissing(t *testing.T) {
	root := makeTree(t)
	captureLog(t)
	e, err := NewEnumerator(false, nil, nil)
	require.NoError(t, err)

	// a missing path is still streamed so it is reported as a failure downstream
	paths := collectStream(t, e, filepath.Join(root, "b.txt"), filepath.Join(root, "nope"), filepath.Join(root, "a.txt"))
	assert.Equal(t, []string{
		filepath.Join(root, "b.txt"),
		filepath.Join(root, "nope"),
		filepath.Join(root, "a.txt"),
	}, paths)
}

func TestStreamSkipsSymlinks(t *testing.T) {
	root := makeTree(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")))
	e, err := NewEnumerator(false, nil, nil)
	require.NoError(t, err)

	paths := collectStream(t, e, root)
	assert.NotContains(t, paths, filepath.Join(root, "link.txt"))
}

func TestStreamStdin(t *testing.T) {
	stdin := strings.NewReader("one.txt\n\ntwo words.txt\r\n  \nthree.txt")
	e, err := NewEnumerator(false, nil, stdin)
	require.NoError(t, err)

	assert.Equal(t, []string{"one.txt", "two words.txt", "three.txt"}, collectStream(t, e))
}

func TestStreamDashReadsStdin(t *testing.T) {
	root := makeTree(t)
	e, err := NewEnumerator(false, nil, strings.NewReader("x\n"))
	require.NoError(t, err)

	paths := collectStream(t, e, filepath.Join(root, "a.txt"), "-")
	assert.Equal(t, []string{filepath.Join(root, "a.txt"), "x"}, paths)
}

func TestStreamNoStdin(t *testing.T) {
	e, err := NewEnumerator(false, nil, nil)
	require.NoError(t, err)

	out := make(chan string)
	go func() {
		for range out {
		}
	}()
	assert.Error(t, e.Stream(make(chan struct{}), nil, out))
}

func TestStreamShutdown(t *testing.T) {
	root := makeTree(t)
	e, err := NewEnumerator(true, nil, nil)
	require.NoError(t, err)

	shutdown := make(chan struct{})
	close(shutdown)
	// nobody reads out, so only shutdown can unblock the walk
	out := make(chan string)
	require.NoError(t, e.Stream(shutdown, []string{root}, out))
	_, open := <-out
	assert.False(t, open)
}

func TestCompileExcludes(t *testing.T) {
	globs, err := CompileExcludes([]string{"*.tmp", "build/**"})
	require.NoError(t, err)
	require.Len(t, globs, 2)
	assert.True(t, globs[0].Match("x.tmp"))
	assert.False(t, globs[0].Match("dir/x.tmp"))
	assert.True(t, globs[1].Match("build/a/b"))

	_, err = CompileExcludes([]string{"[abc"})
	assert.Error(t, err)
}
