package memory

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/merkledrop-labs/merkledrop-go/pkg/store"
)

// MemoryClaimStore is an in-memory implementation of IClaimStore.
// All flags are lost when the process exits, so this is intended for tests
// and throwaway deployments.
type MemoryClaimStore struct {
	mu      sync.Mutex
	claimed map[common.Address]bool
	closed  bool
}

var _ store.IClaimStore = (*MemoryClaimStore)(nil)

// NewMemoryClaimStore creates a new in-memory claim store.
func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{claimed: make(map[common.Address]bool)}
}

// Claimed reports whether addr's flag is set.
func (m *MemoryClaimStore) Claimed(addr common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, fmt.Errorf("claim store is closed")
	}
	return m.claimed[addr], nil
}

// MarkClaimed stages the flag and commits it only after payout succeeds.
// The lock is held across payout, so no other call observes the intermediate
// state and a payout failure leaves the flag unset.
func (m *MemoryClaimStore) MarkClaimed(addr common.Address, payout func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("claim store is closed")
	}
	if m.claimed[addr] {
		return store.ErrAlreadyMarked
	}

	if payout != nil {
		if err := payout(); err != nil {
			return err
		}
	}

	m.claimed[addr] = true
	return nil
}

// ListClaimed returns all flagged addresses.
func (m *MemoryClaimStore) ListClaimed() ([]common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("claim store is closed")
	}

	result := make([]common.Address, 0, len(m.claimed))
	for addr := range m.claimed {
		result = append(result, addr)
	}
	return result, nil
}

// Close shuts down the store.
func (m *MemoryClaimStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// HealthCheck verifies the store is operational.
func (m *MemoryClaimStore) HealthCheck() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("claim store is closed")
	}
	return nil
}
