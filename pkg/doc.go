// Package sumcache maintains per-directory checksum sidecar files
// (SHA1SUMS, QDSUMS) and avoids re-hashing files whose cheap quick
// fingerprint has not changed since the last run.
//
// # Core API
//
// A Dispatcher runs candidate paths through a fixed pool of hash workers:
//
//	alg, _ := sumcache.GetHashAlgorithm("sha1")
//	hasher := sumcache.NewFileHasher(alg, 2<<20, 64<<10)
//	d := sumcache.NewDispatcher(sumcache.Options{Workers: 4}, hasher, alg, sumcache.NewPermissionNormalizer())
//	summary := d.RunPaths(shutdown, []string{"a.txt", "b.txt"})
//	fmt.Println(summary)
//
// Each file is a cache hit when a strong hash is on record for it and its
// fresh quick fingerprint equals the one stored in QDSUMS; otherwise the
// strong hash is recomputed. Fresh results are buffered per directory and
// merged into the sidecars every BatchSize processed files and once more
// after all workers have finished. Sidecars are rewritten sorted by name.
//
// # Enumeration
//
// An Enumerator expands files, directories and stdin into a stream of
// candidate paths that a Dispatcher consumes with Run.
//
// # Configuration
//
// Configuration is an INI file read by LoadConfig. Debug output:
//
//	sumcache.SetDebugFlags("decide,perms")
//	sumcache.SetVerboseLevel(1)
package sumcache
