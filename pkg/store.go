package sumcache

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/vectorio"
)

// Conservative IOV_MAX, see golang/go#58623
const iovMax = 1024

// WriteError is a sidecar that could not be read back or rewritten
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("can not write to checksum file %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// SidecarStore is the per-directory name→token file called name
type SidecarStore struct {
	name       string
	tokenLen   int // hex digits per token, 0 accepts any token
	normalizer *PermissionNormalizer
}

// NewSidecarStore creates a store for sidecar files called name that
// accepts any token. normalizer may be nil.
func NewSidecarStore(name string, normalizer *PermissionNormalizer) *SidecarStore {
	return &SidecarStore{
		name:       name,
		normalizer: normalizer,
	}
}

// NewDigestStore creates the strong sidecar store for alg. Stored tokens
// that are not alg.TokenLength() hex digits are skipped on load.
func NewDigestStore(alg *HashAlgorithm, normalizer *PermissionNormalizer) *SidecarStore {
	return &SidecarStore{
		name:       alg.Sidecar,
		tokenLen:   alg.TokenLength(),
		normalizer: normalizer,
	}
}

// NewQuickStore creates the QDSUMS store
func NewQuickStore(normalizer *PermissionNormalizer) *SidecarStore {
	return &SidecarStore{
		name:       QuickSidecar,
		tokenLen:   QuickTokenLength,
		normalizer: normalizer,
	}
}

// Name returns the sidecar file name
func (s *SidecarStore) Name() string {
	return s.name
}

// Path returns the sidecar file for dir
func (s *SidecarStore) Path(dir string) string {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	return filepath.Join(dir, s.name)
}

// Load reads dir's sidecar. A missing file is an empty list.
func (s *SidecarStore) Load(dir string) (*recordList, error) {
	defer VerboseEnter()()
	records := newRecordList(16)
	path := s.Path(dir)

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		token, name, ok := parseRecordLine(line)
		if !ok {
			Warnf("skipping malformed line %d in %s", lineNum, path)
			continue
		}
		if !s.validToken(token) {
			Warnf("skipping line %d in %s: %q is not a %d digit hex token", lineNum, path, token, s.tokenLen)
			continue
		}
		records.Set(name, token, StoredContext)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	return records, nil
}

// parseRecordLine splits "<token>  <name>". A single space or tab is
// accepted as the separator too. Everything after it is the name.
func parseRecordLine(line string) (token, name string, ok bool) {
	idx := strings.IndexAny(line, " \t")
	if idx <= 0 {
		return "", "", false
	}
	token = line[:idx]
	if strings.HasPrefix(line[idx:], "  ") {
		name = line[idx+2:]
	} else {
		name = line[idx+1:]
	}
	if name == "" {
		return "", "", false
	}
	return token, name, true
}

func (s *SidecarStore) validToken(token string) bool {
	if s.tokenLen == 0 {
		return true
	}
	if len(token) != s.tokenLen {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// Lookup returns the token stored for name in dir's sidecar
func (s *SidecarStore) Lookup(dir, name string) (string, bool, error) {
	records, err := s.Load(dir)
	if err != nil {
		return "", false, err
	}
	token, ok := records.Get(name)
	return token, ok, nil
}

// Flush merges entries into dir's sidecar and rewrites it sorted by name.
// It returns the number of entries merged. Failures are logged and returned
// as *WriteError; the caller is not expected to escalate them.
func (s *SidecarStore) Flush(dir string, entries []Record) (int, error) {
	defer VerboseEnter()()
	path := s.Path(dir)
	VerboseLog(LevelDebug, "writing %d entries to %s", len(entries), path)

	records, err := s.Load(dir)
	if err != nil {
		werr := &WriteError{Path: path, Err: err}
		Warnf("%v", werr)
		return 0, werr
	}
	VerboseLog(LevelDetailed, "found %d entries in %s", records.Length(), path)

	pending := newRecordList(16)
	for _, e := range entries {
		pending.Set(e.Name, e.Token, PendingContext)
	}
	if err := records.Merge(pending); err != nil {
		werr := &WriteError{Path: path, Err: fmt.Errorf("failed to merge entries: %w", err)}
		Warnf("%v", werr)
		return 0, werr
	}
	VerboseLog(LevelDetailed, "now %d entries for %s", records.Length(), path)

	if err := s.write(path, records); err != nil {
		werr := &WriteError{Path: path, Err: err}
		Warnf("%v", werr)
		return 0, werr
	}

	// ownership and mode only matter once the write succeeded
	s.normalizer.Normalize(path)

	return len(entries), nil
}

// render produces one line per record, skipping reserved names
func render(records *recordList) [][]byte {
	lines := make([][]byte, 0, records.Length())
	records.ForEach(func(rec *Record, _ string) bool {
		if IsReservedName(rec.Name) {
			return true
		}
		if strings.ContainsAny(rec.Name, "\n\r") || strings.ContainsAny(rec.Token, " \t\n\r") {
			Warnf("not writing unrepresentable record %q", rec.Name)
			return true
		}
		lines = append(lines, []byte(rec.Token+"  "+rec.Name+"\n"))
		return true
	})
	return lines
}

// write renders records into a temporary file next to path with writev,
// chunked to respect IOV_MAX, then renames it over path
func (s *SidecarStore) write(path string, records *recordList) error {
	lines := render(records)

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	file, err := os.CreateTemp(filepath.Dir(path), sidecarTempPrefix+s.name+sidecarTempSuffix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	tempPath := file.Name()

	if err := writeLines(file, lines); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Chmod(mode); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to set mode on %s: %w", tempPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close %s: %w", tempPath, err)
	}

	// Atomic replace
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func writeLines(file *os.File, lines [][]byte) error {
	iovecs := make([]syscall.Iovec, 0, len(lines))
	expected := 0
	for _, line := range lines {
		iov := syscall.Iovec{Base: &line[0]}
		iov.SetLen(len(line))
		iovecs = append(iovecs, iov)
		expected += len(line)
	}

	written := 0
	for offset := 0; offset < len(iovecs); offset += iovMax {
		end := offset + iovMax
		if end > len(iovecs) {
			end = len(iovecs)
		}
		nw, err := vectorio.WritevRaw(uintptr(file.Fd()), iovecs[offset:end])
		if err != nil {
			return fmt.Errorf("vectorio: %w", err)
		}
		written += nw
	}

	if written != expected {
		return fmt.Errorf("incomplete write: wrote %d bytes, expected %d", written, expected)
	}
	return nil
}
