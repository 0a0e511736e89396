package fingerprint

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// Locker serialises work on the same fingerprint inside one process while
// letting distinct fingerprints proceed in parallel. Keys hash onto a fixed
// set of mutex stripes, so two fingerprints may share a stripe.
type Locker struct {
	stripes []sync.Mutex
}

// NewLocker creates a Locker with n stripes (at least one).
func NewLocker(n int) *Locker {
	if n < 1 {
		n = 1
	}
	return &Locker{stripes: make([]sync.Mutex, n)}
}

func (l *Locker) stripe(fp model.Fingerprint) *sync.Mutex {
	return &l.stripes[xxhash.Sum64String(string(fp))%uint64(len(l.stripes))]
}

// Lock acquires the stripe for fp and returns its release function.
func (l *Locker) Lock(fp model.Fingerprint) (unlock func()) {
	mu := l.stripe(fp)
	mu.Lock()
	return mu.Unlock
}
