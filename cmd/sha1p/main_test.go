package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	sumcache "github.com/mattkeenan/sumcache/pkg"
)

// Test argument parsing
func TestArgumentParsing(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		errMsg  string
		check   func(*Arguments) bool
	}{
		{
			name: "No arguments",
			args: []string{},
			check: func(a *Arguments) bool {
				return len(a.Paths) == 0 && !a.Force && a.Threads == 0
			},
		},
		{
			name: "Short flags",
			args: []string{"-f", "-d", "-e", "-r", "-j", "8", "a.txt", "b.txt"},
			check: func(a *Arguments) bool {
				return a.Force && a.DoDotDirs && a.Echo && a.Recursive && a.Threads == 8 &&
					reflect.DeepEqual(a.Paths, []string{"a.txt", "b.txt"})
			},
		},
		{
			name: "Long flags",
			args: []string{"--force", "--do-dot-dirs", "--threads=2", "--fail-fast", "--debug", "decide"},
			check: func(a *Arguments) bool {
				return a.Force && a.DoDotDirs && a.Threads == 2 && a.FailFast && a.Debug == "decide"
			},
		},
		{
			name: "Repeated excludes and overrides",
			args: []string{"-x", "*.tmp", "-x", "*.bak", "-o", "flush_batch:10", "-o", "default:sha256"},
			check: func(a *Arguments) bool {
				return reflect.DeepEqual(a.Exclude, []string{"*.tmp", "*.bak"}) &&
					reflect.DeepEqual(a.Overrides, []string{"flush_batch:10", "default:sha256"})
			},
		},
		{
			name: "Dash is a path",
			args: []string{"-"},
			check: func(a *Arguments) bool {
				return reflect.DeepEqual(a.Paths, []string{"-"})
			},
		},
		{
			name:    "Verbose and silent",
			args:    []string{"-v", "-s"},
			wantErr: true,
			errMsg:  "mutually exclusive",
		},
		{
			name:    "Negative threads",
			args:    []string{"--threads=-3"},
			wantErr: true,
		},
		{
			name:    "Unknown flag",
			args:    []string{"--bogus"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			args, handled, err := parseArgs(tt.args, &stdout)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %v", tt.args)
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if handled {
				t.Fatal("Did not expect help or version to be handled")
			}
			if tt.check != nil && !tt.check(args) {
				t.Errorf("Unexpected parse result for %v: %+v", tt.args, args)
			}
		})
	}
}

func TestHelpAndVersion(t *testing.T) {
	var stdout bytes.Buffer
	_, handled, err := parseArgs([]string{"--help"}, &stdout)
	if err != nil || !handled {
		t.Fatalf("Expected help to be handled, got handled=%t err=%v", handled, err)
	}
	if !strings.Contains(stdout.String(), "--fail-fast") {
		t.Errorf("Expected help to list --fail-fast, got %q", stdout.String())
	}

	stdout.Reset()
	_, handled, err = parseArgs([]string{"--version"}, &stdout)
	if err != nil || !handled {
		t.Fatalf("Expected version to be handled, got handled=%t err=%v", handled, err)
	}
	if !strings.HasPrefix(stdout.String(), "sha1p ") {
		t.Errorf("Unexpected version output %q", stdout.String())
	}
}

// runTest runs the command with a private config file
func runTest(t *testing.T, stdin string, argv ...string) (int, string, string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config")
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", configPath}, argv...)
	code := run(full, strings.NewReader(stdin), &stdout, &stderr, make(chan struct{}))
	t.Cleanup(func() {
		sumcache.SetLogOutput(os.Stderr)
		sumcache.SetVerboseLevel(sumcache.LevelInfo)
		sumcache.SetDebugFlags("")
	})
	return code, stdout.String(), stderr.String()
}

func TestRunHashesDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runTest(t, "", "-e", "-j", "1", dir)
	if code != exitOK {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr)
	}

	expected := "a9993e364706816aba3e25717850c26c9cd0d89d  " + filepath.Join(dir, "a.txt") + "\n"
	if stdout != expected {
		t.Errorf("Expected echo %q, got %q", expected, stdout)
	}
	if !strings.Contains(stderr, "finished - flushing cache") {
		t.Errorf("Expected flush log line, got %q", stderr)
	}

	data, err := os.ReadFile(filepath.Join(dir, "SHA1SUMS"))
	if err != nil {
		t.Fatalf("SHA1SUMS not written: %v", err)
	}
	if string(data) != "a9993e364706816aba3e25717850c26c9cd0d89d  a.txt\n" {
		t.Errorf("Unexpected SHA1SUMS content %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "QDSUMS")); err != nil {
		t.Errorf("QDSUMS not written: %v", err)
	}
}

func TestRunSilent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := runTest(t, "", "-s", dir)
	if code != exitOK {
		t.Fatalf("Expected exit 0, got %d", code)
	}
	if strings.Contains(stderr, "[INFO]") {
		t.Errorf("Expected no info output in silent mode, got %q", stderr)
	}
}

func TestRunSha256Override(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := runTest(t, "", "-o", "default:sha256", dir)
	if code != exitOK {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr)
	}
	data, err := os.ReadFile(filepath.Join(dir, "SHA256SUMS"))
	if err != nil {
		t.Fatalf("SHA256SUMS not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad  a.txt") {
		t.Errorf("Unexpected SHA256SUMS content %q", data)
	}
}

func TestRunFailureExitCode(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.txt")

	code, _, stderr := runTest(t, missing+"\n")
	if code != exitFailed {
		t.Fatalf("Expected exit %d, got %d", exitFailed, code)
	}
	if !strings.Contains(stderr, "quick failed") {
		t.Errorf("Expected failure to be logged, got %q", stderr)
	}
}

func TestRunMissingArgumentExitCode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.txt")

	code, _, stderr := runTest(t, "", filepath.Join(dir, "a.txt"), missing)
	if code != exitFailed {
		t.Fatalf("Expected exit %d, got %d: %s", exitFailed, code, stderr)
	}
	if !strings.Contains(stderr, "quick failed") || !strings.Contains(stderr, "missing.txt") {
		t.Errorf("Expected failure for missing.txt to be logged, got %q", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "SHA1SUMS")); err != nil {
		t.Errorf("Expected the existing file to still be hashed: %v", err)
	}
}

func TestRunUsageExitCodes(t *testing.T) {
	tests := []struct {
		name string
		argv []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"bad override", []string{"-o", "hash_workers:0"}},
		{"unknown override key", []string{"-o", "colour:red"}},
		{"bad exclude", []string{"-x", "[oops"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runTest(t, "", tt.argv...)
			if code != exitUsage {
				t.Errorf("Expected exit %d, got %d (%s)", exitUsage, code, stderr)
			}
		})
	}
}
