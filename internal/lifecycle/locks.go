package lifecycle

import "sync"

// keyedMutex serializes mutations per ride ID within this process. Cross
// process safety comes from the store's conditional updates; this lock keeps
// single-process deployments strictly serialized and makes the duplicate
// interest check race-free against the memory store.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
