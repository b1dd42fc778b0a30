package sumcache

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// CompileExcludes compiles glob patterns matched against slash-separated paths
func CompileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Enumerator turns command-line arguments into candidate file paths
type Enumerator struct {
	Recursive bool
	Stdin     io.Reader
	excludes  []glob.Glob
}

// NewEnumerator creates an enumerator with the given exclude patterns
func NewEnumerator(recursive bool, excludes []string, stdin io.Reader) (*Enumerator, error) {
	globs, err := CompileExcludes(excludes)
	if err != nil {
		return nil, err
	}
	return &Enumerator{
		Recursive: recursive,
		Stdin:     stdin,
		excludes:  globs,
	}, nil
}

// Excluded reports whether path matches an exclude pattern
func (e *Enumerator) Excluded(path string) bool {
	normalised := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, g := range e.excludes {
		if g.Match(normalised) || g.Match(base) {
			return true
		}
	}
	return false
}

// Stream sends candidate paths for args on out, closing it when done.
// No args, or a "-" argument, reads newline-separated paths from Stdin.
func (e *Enumerator) Stream(shutdownChan <-chan struct{}, args []string, out chan<- string) error {
	defer VerboseEnter()()
	defer close(out)

	if len(args) == 0 {
		args = []string{"-"}
	}

	for _, arg := range args {
		var err error
		if arg == "-" {
			err = e.streamReader(shutdownChan, out)
		} else {
			err = e.streamPath(shutdownChan, arg, out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// emit sends path unless it is excluded; false means shutdown
func (e *Enumerator) emit(shutdownChan <-chan struct{}, path string, out chan<- string) bool {
	if e.Excluded(path) {
		VerboseLog(LevelDetailed, "excluded %s", path)
		return true
	}
	select {
	case out <- path:
		return true
	case <-shutdownChan:
		return false
	}
}

func (e *Enumerator) streamReader(shutdownChan <-chan struct{}, out chan<- string) error {
	if e.Stdin == nil {
		return fmt.Errorf("no paths given and no stdin available")
	}
	scanner := bufio.NewScanner(e.Stdin)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !e.emit(shutdownChan, line, out) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading paths from stdin: %w", err)
	}
	return nil
}

// streamPath emits a file, or the regular files of a directory in sorted order
func (e *Enumerator) streamPath(shutdownChan <-chan struct{}, path string, out chan<- string) error {
	info, err := os.Stat(path)
	if err != nil {
		// passed on so the dispatcher records the failure
		VerboseLog(LevelDebug, "can not stat %s: %v", path, err)
		e.emit(shutdownChan, path, out)
		return nil
	}
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			VerboseLog(LevelDebug, "skipping non-regular file %s", path)
			return nil
		}
		e.emit(shutdownChan, path, out)
		return nil
	}

	stopped := false
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			Warnf("skipping %s: %v", p, err)
			if d != nil && d.IsDir() && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != path && !e.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		// symlinks are not followed
		if !d.Type().IsRegular() || IsReservedName(d.Name()) {
			return nil
		}
		if !e.emit(shutdownChan, p, out) {
			stopped = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", path, err)
	}
	if stopped {
		VerboseLog(LevelDebug, "walk of %s interrupted by shutdown", path)
	}
	return nil
}
