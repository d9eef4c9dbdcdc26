package pool

import "sync"

// walletLocks hands out one mutex per wallet. Entries are dropped once no
// caller holds or waits for them.
type walletLocks struct {
	mu    sync.Mutex
	locks map[string]*walletLock
}

type walletLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until wallet's mutex is held and returns its release func.
func (l *walletLocks) lock(wallet string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*walletLock)
	}
	wl, ok := l.locks[wallet]
	if !ok {
		wl = &walletLock{}
		l.locks[wallet] = wl
	}
	wl.refs++
	l.mu.Unlock()

	wl.mu.Lock()
	return func() {
		wl.mu.Unlock()

		l.mu.Lock()
		wl.refs--
		if wl.refs == 0 {
			delete(l.locks, wallet)
		}
		l.mu.Unlock()
	}
}
