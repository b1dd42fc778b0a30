package sumcache

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Bits cleared from the directory's mode to derive a sidecar's mode.
// Execute makes no sense on a text file; group/other lose write access.
const (
	sidecarClearExec  = unix.S_IXUSR | unix.S_IXGRP | unix.S_IXOTH
	sidecarClearWrite = unix.S_IWGRP | unix.S_IWOTH
	permBits          = 0o777
)

// PermissionNormalizer makes sidecar files owned like their directory.
// It only acts when running with root privilege.
type PermissionNormalizer struct {
	privileged func() bool
}

// NewPermissionNormalizer returns a normalizer that checks the effective uid
func NewPermissionNormalizer() *PermissionNormalizer {
	return &PermissionNormalizer{
		privileged: func() bool { return unix.Geteuid() == 0 },
	}
}

// SidecarMode derives the sidecar's permission bits from its directory's mode
func SidecarMode(dirMode uint32) uint32 {
	return dirMode & permBits &^ (sidecarClearExec | sidecarClearWrite)
}

// Normalize sets ownership and mode of the sidecar at path. Failures are
// logged and returned for counting; they never affect the hash cache.
func (pn *PermissionNormalizer) Normalize(path string) error {
	if pn == nil || pn.privileged == nil || !pn.privileged() {
		return nil
	}

	dir := filepath.Dir(path)
	var dirStat unix.Stat_t
	if err := unix.Stat(dir, &dirStat); err != nil {
		err = fmt.Errorf("failed to stat directory %s: %w", dir, err)
		Warnf("%v", err)
		return err
	}

	if _, err := os.Stat(path); err != nil {
		// nothing was written
		return nil
	}

	mode := SidecarMode(dirStat.Mode)
	if err := unix.Chmod(path, mode); err != nil {
		err = fmt.Errorf("failed to chmod %s to %o: %w", path, mode, err)
		Warnf("%v", err)
		return err
	}
	if err := unix.Chown(path, int(dirStat.Uid), int(dirStat.Gid)); err != nil {
		err = fmt.Errorf("failed to chown %s to %d:%d: %w", path, dirStat.Uid, dirStat.Gid, err)
		Warnf("%v", err)
		return err
	}

	if IsDebugEnabled("perms") {
		VerboseLog(LevelDebug, "normalised %s to %o %d:%d", path, mode, dirStat.Uid, dirStat.Gid)
	}
	return nil
}
