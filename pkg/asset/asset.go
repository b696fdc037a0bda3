package asset

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PayoutAsset is the external fungible-asset ledger a distributor draws
// payouts from. The distributor does not create or destroy the asset, it only
// holds a reference.
//
// Transfer reports ordinary failures, such as an underfunded pool, through its
// error value. Callers treat any error as "the transfer did not happen".
type PayoutAsset interface {
	// BalanceOf returns addr's current balance.
	BalanceOf(ctx context.Context, addr common.Address) (*uint256.Int, error)

	// Transfer moves amount from the asset's funding pool to addr.
	Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error
}
