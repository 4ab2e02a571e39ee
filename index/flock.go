package index

import (
	"os"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"go.uber.org/zap"
)

// advisoryLock takes a best-effort, non-blocking advisory lock (flock(2))
// on f's underlying OS file; Open calls it on the roof file. If the lock
// is already held elsewhere the failure is only logged at Debug level and
// the caller carries on, so a second process opening the same directory
// is not stopped — this is not part of the core correctness
// contract (spec's concurrency model is in-process, lock-coupling only),
// it is a defensive supplement (SPEC_FULL.md §4). It is a silent no-op
// when f is not backed by a real OS file, e.g. under afero.MemMapFs in
// tests.
func advisoryLock(f afero.File, log *zap.Logger) {
	osFile, ok := f.(*os.File)
	if !ok {
		return
	}
	if err := unix.Flock(int(osFile.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		log.Debug("advisory lock unavailable", zap.Error(err), zap.String("file", f.Name()))
	}
}
