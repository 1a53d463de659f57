package catalog

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock is an advisory file lock guarding the catalog against concurrent
// invocations of the tool. The catalog is a single-writer store; a second
// process must fail fast rather than interleave writes.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock file next to the catalog. Returns an error if
// another process already holds it.
func AcquireLock(lockPath string) (*Lock, error) {
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring catalog lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("catalog is in use by another pixsync process (lock: %s)", lockPath)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
