package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/gofrs/flock"

	"tilenorm/internal/config"
	"tilenorm/internal/failure"
	"tilenorm/internal/fileutil"
)

// LockPath is the lock file guarding runs against cfg's destination root.
func LockPath(cfg *config.Config) string {
	sum := sha256.Sum256([]byte(filepath.Clean(cfg.Paths.DestDir)))
	return filepath.Join(cfg.LockDir(), hex.EncodeToString(sum[:])[:16]+".lock")
}

func acquireLock(cfg *config.Config) (*flock.Flock, error) {
	if err := fileutil.EnsureDir(cfg.LockDir()); err != nil {
		return nil, failure.Wrap(failure.ErrPath, "init", "lock dir", cfg.LockDir(), err)
	}
	path := LockPath(cfg)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, failure.Wrap(failure.ErrPath, "init", "acquire lock", path, err)
	}
	if !ok {
		return nil, failure.Wrap(failure.ErrLocked, "init", "acquire lock",
			"another run is writing to "+cfg.Paths.DestDir, nil)
	}
	return lock, nil
}
