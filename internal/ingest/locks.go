package ingest

import "sync"

// deviceLocks serializes same-device control read-modify-writes; different
// devices never block each other. Locks are never evicted: the set of live
// device ids is small and bounded by the deployment.
type deviceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{locks: make(map[string]*sync.Mutex)}
}

func (d *deviceLocks) lock(deviceID string) *sync.Mutex {
	d.mu.Lock()
	m, ok := d.locks[deviceID]
	if !ok {
		m = &sync.Mutex{}
		d.locks[deviceID] = m
	}
	d.mu.Unlock()

	m.Lock()
	return m
}
