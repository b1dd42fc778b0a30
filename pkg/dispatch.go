package sumcache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Options controls one run of the Dispatcher
type Options struct {
	Workers        int       // concurrent hash workers
	Force          bool      // recompute even when the quick fingerprint matches
	IncludeDotDirs bool      // process files below hidden directories
	BatchSize      int       // processed files between threshold flushes
	FailFast       bool      // stop dispatching after the first failure
	Echo           io.Writer // when set, "<strong>  <path>" per processed file
}

// FileResult is the outcome of processing one file
type FileResult struct {
	Path     string
	Decision Decision
	Strong   string
	Size     int64 // bytes hashed, zero for hits
	Err      error
}

// Dispatcher runs files through the cache decision on a fixed worker pool
type Dispatcher struct {
	opts    Options
	hasher  Fingerprinter
	quick   *SidecarStore
	strong  *SidecarStore
	onFlush func(FlushEvent)
}

// NewDispatcher creates a dispatcher writing alg's strong hashes to
// alg.Sidecar and quick fingerprints to QDSUMS. normalizer may be nil.
func NewDispatcher(opts Options, hasher Fingerprinter, alg *HashAlgorithm, normalizer *PermissionNormalizer) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = DefaultHashWorkers
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultFlushBatch
	}
	return &Dispatcher{
		opts:   opts,
		hasher: hasher,
		quick:  NewQuickStore(normalizer),
		strong: NewDigestStore(alg, normalizer),
	}
}

// OnFlush registers fn to be called after every flush-all. fn runs while
// the buffer lock is held and must not block.
func (d *Dispatcher) OnFlush(fn func(FlushEvent)) {
	d.onFlush = fn
}

// HasHiddenDir reports whether any directory component of path starts with a dot
func HasHiddenDir(path string) bool {
	dir := filepath.Dir(filepath.Clean(path))
	for _, segment := range strings.Split(filepath.ToSlash(dir), "/") {
		if segment == "" || segment == "." || segment == ".." {
			continue
		}
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

// runState is everything owned by a single Run
type runState struct {
	d       *Dispatcher
	decider *CacheDecider
	buffer  *pendingBuffer
	flusher *batchFlusher

	jobChan    chan string
	resultChan chan FileResult
	wg         sync.WaitGroup

	stopChan chan struct{}
	stopOnce sync.Once

	// guarded by buffer.mu
	thresholdFlushes int
	writeFailures    int
}

// RunPaths is Run over a fixed list
func (d *Dispatcher) RunPaths(shutdownChan <-chan struct{}, paths []string) *RunSummary {
	pathChan := make(chan string)
	go func() {
		defer close(pathChan)
		for _, p := range paths {
			pathChan <- p
		}
	}()
	return d.Run(shutdownChan, pathChan)
}

// Run processes every path received until the channel closes or shutdownChan
// closes. In-flight files always finish and every pending result is flushed
// before Run returns.
func (d *Dispatcher) Run(shutdownChan <-chan struct{}, paths <-chan string) *RunSummary {
	defer VerboseEnter()()
	rs := &runState{
		d:          d,
		decider:    NewCacheDecider(d.hasher, newTokenIndex(d.quick), newTokenIndex(d.strong)),
		buffer:     newPendingBuffer(),
		flusher:    &batchFlusher{quick: d.quick, strong: d.strong},
		jobChan:    make(chan string, d.opts.Workers),
		resultChan: make(chan FileResult, d.opts.Workers),
		stopChan:   make(chan struct{}),
	}
	summary := &RunSummary{}

	for i := 0; i < d.opts.Workers; i++ {
		rs.wg.Add(1)
		go rs.worker()
	}

	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		rs.collect(summary)
	}()

	rs.feed(shutdownChan, paths, summary)

	Infof("processed all (%d) files - waiting for threads to finish", summary.Candidates)
	close(rs.jobChan)
	rs.wg.Wait()
	close(rs.resultChan)
	collectWg.Wait()

	Infof("finished - flushing cache")
	rs.buffer.withLock(func() {
		rs.flushAll(FlushFinal)
		summary.ThresholdFlushes = rs.thresholdFlushes
		summary.WriteFailures = rs.writeFailures
	})

	return summary
}

// feed filters candidates and hands them to the workers
func (rs *runState) feed(shutdownChan <-chan struct{}, paths <-chan string, summary *RunSummary) {
	defer func() {
		// let the producer finish if we stopped early
		go func() {
			for range paths {
			}
		}()
	}()

	for path := range paths {
		summary.Candidates++

		if IsReservedName(filepath.Base(path)) {
			summary.SkippedReserved++
			continue
		}
		if !rs.d.opts.IncludeDotDirs && HasHiddenDir(path) {
			VerboseLog(LevelDebug, "ignoring in dotdir %s", path)
			summary.SkippedDotDirs++
			continue
		}

		select {
		case <-shutdownChan:
			Warnf("shutdown requested, not dispatching further files")
			summary.Interrupted = true
			return
		case <-rs.stopChan:
			Warnf("stopping after first failure")
			summary.Stopped = true
			return
		default:
		}

		select {
		case rs.jobChan <- path:
		case <-shutdownChan:
			Warnf("shutdown requested, not dispatching further files")
			summary.Interrupted = true
			return
		case <-rs.stopChan:
			Warnf("stopping after first failure")
			summary.Stopped = true
			return
		}
	}
}

// worker hashes jobs until the job channel closes
func (rs *runState) worker() {
	defer rs.wg.Done()
	for path := range rs.jobChan {
		rs.resultChan <- rs.process(path)
	}
}

// process runs one file through the decision and records the result
func (rs *runState) process(path string) FileResult {
	res := FileResult{Path: path}
	dir, name := filepath.Split(path)
	dir = filepath.Clean(dir)

	verdict, err := rs.decider.Decide(path, rs.d.opts.Force)
	res.Decision = verdict.Decision
	if err == nil && verdict.Decision == Skip {
		res.Strong = verdict.StoredStrong
	}
	if err == nil && verdict.Decision == Recompute {
		res.Strong, err = rs.d.hasher.StrongHash(path)
		if err != nil {
			err = &ProcessingError{Path: path, Op: "hash", Err: err}
		} else {
			VerboseLog(LevelDebug, "hash of %s is %s", path, res.Strong)
			if info, statErr := os.Stat(path); statErr == nil {
				res.Size = info.Size()
			}
		}
	}
	res.Err = err

	rs.buffer.withLock(func() {
		if err == nil && verdict.Decision == Recompute {
			rs.buffer.append(dir, pendingEntry{Name: name, Strong: res.Strong, Quick: verdict.Quick})
		}
		if n, due := rs.buffer.tick(rs.d.opts.BatchSize); due {
			rs.flushAll(FlushThreshold)
			Infof("processed & written %d files", n)
		}
	})

	return res
}

// flushAll runs the batch flusher; caller holds the buffer lock
func (rs *runState) flushAll(reason FlushReason) {
	event, failures := rs.flusher.flushAll(rs.buffer, reason)
	if reason == FlushThreshold {
		rs.thresholdFlushes++
	}
	rs.writeFailures += failures
	if rs.d.onFlush != nil {
		rs.d.onFlush(event)
	}
}

// collect folds results into summary; it is the only writer of Echo
func (rs *runState) collect(summary *RunSummary) {
	for res := range rs.resultChan {
		summary.Processed++
		if res.Err != nil {
			Errorf("%v", res.Err)
			summary.Failures = append(summary.Failures, FileFailure{Path: res.Path, Err: res.Err})
			if rs.d.opts.FailFast {
				rs.stopOnce.Do(func() { close(rs.stopChan) })
			}
			continue
		}

		switch res.Decision {
		case Skip:
			summary.Hits++
		case Recompute:
			summary.Recomputed++
			summary.BytesHashed += res.Size
		}

		if rs.d.opts.Echo != nil {
			fmt.Fprintf(rs.d.opts.Echo, "%s  %s\n", res.Strong, res.Path)
		}
	}
}
