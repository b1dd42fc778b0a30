package sumcache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// FileFailure is one file that could not be processed
type FileFailure struct {
	Path string
	Err  error
}

// RunSummary aggregates the outcome of a Dispatcher run
type RunSummary struct {
	Candidates       int   // paths received
	SkippedDotDirs   int   // paths below a hidden directory
	SkippedReserved  int   // sidecar files named as candidates
	Processed        int   // files dispatched to a worker
	Hits             int   // quick fingerprint matched, strong hash kept
	Recomputed       int   // strong hash computed
	BytesHashed      int64 // bytes read by the strong hash
	Failures         []FileFailure
	ThresholdFlushes int
	WriteFailures    int  // sidecar writes that were logged and dropped
	Interrupted      bool // shutdown stopped dispatching
	Stopped          bool // fail-fast stopped dispatching
}

// Err joins every per-file failure, or nil when there were none
func (s *RunSummary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(s.Failures))
	for i, f := range s.Failures {
		errs[i] = f.Err
	}
	return errors.Join(errs...)
}

func (s *RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d candidates, %d processed: %d cached, %d hashed (%s)",
		s.Candidates, s.Processed, s.Hits, s.Recomputed, humanize.IBytes(uint64(s.BytesHashed)))
	if s.SkippedDotDirs > 0 {
		fmt.Fprintf(&b, ", %d in dot dirs skipped", s.SkippedDotDirs)
	}
	if len(s.Failures) > 0 {
		fmt.Fprintf(&b, ", %d failed", len(s.Failures))
	}
	if s.WriteFailures > 0 {
		fmt.Fprintf(&b, ", %d sidecar writes lost", s.WriteFailures)
	}
	if s.Interrupted {
		b.WriteString(" (interrupted)")
	}
	return b.String()
}
