package cas

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// errLockBusy is returned by the platform flock wrappers when a
// non-blocking lock attempt fails because another holder has it.
var errLockBusy = errors.New("cas: lock busy")

const lockPollInterval = 20 * time.Millisecond

// digestLock coordinates concurrent Put calls that resolve to the same
// SHA-256 digest, both within one process (via inFlight) and across
// processes (via an advisory flock on a ".lock" file inside the blob's
// destination directory). Two fetches racing on identical content
// must not race on the temp-file-then-rename sequence below.
type digestLock struct {
	mu       sync.Mutex
	inFlight map[string]*sync.Mutex
}

func newDigestLock() *digestLock {
	return &digestLock{inFlight: make(map[string]*sync.Mutex)}
}

func (d *digestLock) lock(digest string) func() {
	d.mu.Lock()
	m, ok := d.inFlight[digest]
	if !ok {
		m = &sync.Mutex{}
		d.inFlight[digest] = m
	}
	d.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		d.mu.Lock()
		delete(d.inFlight, digest)
		d.mu.Unlock()
	}
}

// acquireDirLock takes an exclusive, non-blocking (polled) flock on a
// ".lock" file inside dir, so that a second process racing to create the
// same destination file waits rather than both racing os.Rename. Modeled
// on the advisory-flock discipline used to guard the embedded database
// directory: shared resource, single mutation ("create"), safe to poll.
func acquireDirLock(dir string, timeout time.Duration) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("cas: create dir %s: %w", dir, err)
	}
	lockPath := filepath.Join(dir, ".lock")
	// #nosec G304 - path derived from the CAS root configured at startup
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("cas: open lock %s: %w", lockPath, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := flockExclusiveNonBlock(f); err == nil {
			return f, nil
		} else if !errors.Is(err, errLockBusy) {
			_ = f.Close()
			return nil, fmt.Errorf("cas: flock %s: %w", lockPath, err)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("cas: flock %s: %w", lockPath, errLockBusy)
		}
		time.Sleep(lockPollInterval)
	}
}

func releaseDirLock(f *os.File) {
	_ = flockUnlock(f)
	_ = f.Close()
}
