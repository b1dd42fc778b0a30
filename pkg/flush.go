package sumcache

// FlushReason says why a flush-all ran
type FlushReason int

const (
	FlushThreshold FlushReason = iota // processed counter crossed a batch multiple
	FlushFinal                        // unconditional flush after all workers joined
)

func (r FlushReason) String() string {
	if r == FlushThreshold {
		return "threshold"
	}
	return "final"
}

// FlushEvent describes one completed flush-all
type FlushEvent struct {
	Reason      FlushReason
	Processed   int      // processed counter when the flush ran
	Directories []string // directories that had pending entries
	Entries     int      // entries handed to the stores
}

// batchFlusher merges pending buffers into the quick and strong sidecars
type batchFlusher struct {
	quick  *SidecarStore
	strong *SidecarStore
}

// flushAll flushes every directory with pending entries and clears its
// buffer. Caller holds the buffer lock. Returns the event and the number of
// sidecar writes that failed.
func (bf *batchFlusher) flushAll(pb *pendingBuffer, reason FlushReason) (FlushEvent, int) {
	defer VerboseEnter()()
	event := FlushEvent{Reason: reason, Processed: pb.processed}
	failures := 0

	for _, dir := range pb.nonEmpty() {
		entries := pb.take(dir)
		event.Directories = append(event.Directories, dir)
		event.Entries += len(entries)

		VerboseLog(LevelDebug, "flushing %d entries to dir %s", len(entries), dir)
		strong := make([]Record, len(entries))
		quick := make([]Record, len(entries))
		for i, e := range entries {
			strong[i] = Record{Name: e.Name, Token: e.Strong}
			quick[i] = Record{Name: e.Name, Token: e.Quick}
		}

		// the buffer is already cleared, so failed writes lose these entries
		if _, err := bf.strong.Flush(dir, strong); err != nil {
			failures++
		}
		if _, err := bf.quick.Flush(dir, quick); err != nil {
			failures++
		}
	}

	return event, failures
}
