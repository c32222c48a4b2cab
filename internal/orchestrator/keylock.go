package orchestrator

import (
	"fmt"
	"sync"

	"github.com/openfolio/backend/internal/contracts"
)

// KeyLock enforces at most one in-flight run per computation unit.
// A trigger that finds the unit busy reports busy instead of queueing;
// the ledger makes the eventual rerun cheap, so piling up waiters buys
// nothing.
type KeyLock struct {
	mu     sync.Mutex
	locked map[string]bool
}

// NewKeyLock creates an empty key lock
func NewKeyLock() *KeyLock {
	return &KeyLock{locked: make(map[string]bool)}
}

func unitKey(ct contracts.ComputationType, vt contracts.ViewType, viewID string) string {
	return fmt.Sprintf("%s|%s|%s", ct, vt, viewID)
}

// TryAcquire attempts to claim a unit. False means a run is in flight.
func (k *KeyLock) TryAcquire(ct contracts.ComputationType, vt contracts.ViewType, viewID string) bool {
	key := unitKey(ct, vt, viewID)
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locked[key] {
		return false
	}
	k.locked[key] = true
	return true
}

// Release frees a claimed unit
func (k *KeyLock) Release(ct contracts.ComputationType, vt contracts.ViewType, viewID string) {
	key := unitKey(ct, vt, viewID)
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.locked, key)
}
