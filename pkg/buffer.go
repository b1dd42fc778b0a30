package sumcache

import (
	"sort"
	"sync"
)

// pendingEntry is a freshly computed result waiting to be flushed
type pendingEntry struct {
	Name   string
	Strong string
	Quick  string
}

// pendingBuffer holds per-directory results for one run. Every field is
// guarded by mu; held only asserts that the lock is never re-entered.
type pendingBuffer struct {
	mu        sync.Mutex
	held      bool
	dirs      map[string][]pendingEntry
	processed int
}

func newPendingBuffer() *pendingBuffer {
	return &pendingBuffer{
		dirs: make(map[string][]pendingEntry),
	}
}

// withLock runs fn holding the buffer lock
func (pb *pendingBuffer) withLock(fn func()) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.held {
		panic("sumcache: pending buffer lock re-entered")
	}
	pb.held = true
	defer func() { pb.held = false }()
	fn()
}

// append adds an entry for dir; caller holds the lock
func (pb *pendingBuffer) append(dir string, e pendingEntry) {
	pb.dirs[dir] = append(pb.dirs[dir], e)
}

// tick increments the processed counter and reports whether it just
// reached a multiple of batch; caller holds the lock
func (pb *pendingBuffer) tick(batch int) (int, bool) {
	pb.processed++
	return pb.processed, batch > 0 && pb.processed%batch == 0
}

// nonEmpty returns directories with pending entries, sorted; caller holds the lock
func (pb *pendingBuffer) nonEmpty() []string {
	dirs := make([]string, 0, len(pb.dirs))
	for dir, entries := range pb.dirs {
		if len(entries) > 0 {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// take returns dir's entries and clears its buffer; caller holds the lock
func (pb *pendingBuffer) take(dir string) []pendingEntry {
	entries := pb.dirs[dir]
	pb.dirs[dir] = entries[:0:0]
	return entries
}
