package store

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrAlreadyMarked is returned by MarkClaimed when the address's flag is
// already set. Implementations must detect this inside their transactional
// boundary so two concurrent claims for the same address cannot both succeed.
var ErrAlreadyMarked = errors.New("claim already recorded")

// IClaimStore persists the set of addresses that have exercised their claim.
// The set only grows: a flag transitions false to true at most once and no
// successful operation ever clears it. All implementations must be
// thread-safe.
type IClaimStore interface {
	// Claimed reports whether addr's flag is set.
	// Returns error only on storage failure.
	Claimed(addr common.Address) (bool, error)

	// MarkClaimed sets addr's flag and runs payout inside the same
	// transactional boundary: if payout returns an error the flag write is
	// rolled back and that error is returned unchanged. Returns
	// ErrAlreadyMarked without invoking payout if the flag was already set.
	MarkClaimed(addr common.Address, payout func() error) error

	// ListClaimed returns all flagged addresses in unspecified order.
	// Returns an empty slice if none exist, error only on storage failure.
	ListClaimed() ([]common.Address, error)

	// Close cleanly shuts down the store. Idempotent.
	// After Close, all other operations return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	// Returns nil if healthy, an error describing the problem if not.
	HealthCheck() error
}
