package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Entitlement is one row of the eligibility list: an address and the token
// amount it is entitled to claim. The distribution tree commits to the full
// set of entitlements.
type Entitlement struct {
	Address common.Address
	Amount  *uint256.Int
}

// Clone returns a deep copy so callers can hold entitlements without sharing
// the amount pointer.
func (e *Entitlement) Clone() *Entitlement {
	if e == nil {
		return nil
	}
	c := &Entitlement{Address: e.Address}
	if e.Amount != nil {
		c.Amount = e.Amount.Clone()
	}
	return c
}
