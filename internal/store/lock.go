package store

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

// ErrLocked is returned when another process holds the store lock.
var ErrLocked = eris.New("store: locked by another process")

// Lock is an exclusive advisory lock guarding the store for one run.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock file at path without blocking. Passes run one
// at a time; a second process gets ErrLocked.
func AcquireLock(path string) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "store: create lock dir %s", dir)
		}
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "store: lock %s", path)
	}
	if !ok {
		return nil, eris.Wrapf(ErrLocked, "store: lock %s", path)
	}
	return &Lock{fl: fl}, nil
}

// Release unlocks. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return eris.Wrap(l.fl.Unlock(), "store: unlock")
}
