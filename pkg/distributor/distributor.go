package distributor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/asset"
	"github.com/merkledrop-labs/merkledrop-go/pkg/merkle"
	"github.com/merkledrop-labs/merkledrop-go/pkg/store"
)

// ClaimedEvent is published on every successful claim.
type ClaimedEvent struct {
	Claimer common.Address
	Amount  *uint256.Int
}

// Distributor gates payouts from a token pool behind merkle proofs of
// entitlement, paying each caller at most once.
//
// The committed root and the payout asset are fixed at construction and never
// change afterwards. The claimed-set lives in the configured store and only
// ever grows. The claimed flag is keyed on the calling address, not the
// claimant in the proof: an address may claim on behalf of any entitlement,
// but doing so uses up its single claim slot.
type Distributor struct {
	root   [32]byte
	asset  asset.PayoutAsset
	claims store.IClaimStore
	logger *zap.Logger

	feed event.Feed

	// Serializes claims so each one sees the previous claim's full effect or
	// none of it.
	mu sync.Mutex
}

// Config holds distributor construction parameters.
type Config struct {
	// Root is the merkle root of the eligibility tree, computed off-system.
	// Stored verbatim: any 32-byte value is accepted, including all zeros.
	Root [32]byte

	// Asset is the payout source. Required.
	Asset asset.PayoutAsset

	// Claims is the claimed-set store. Required.
	Claims store.IClaimStore

	// Logger is optional; defaults to a no-op logger.
	Logger *zap.Logger
}

// New creates a Distributor.
func New(cfg Config) (*Distributor, error) {
	if cfg.Asset == nil {
		return nil, fmt.Errorf("payout asset is required")
	}
	if cfg.Claims == nil {
		return nil, fmt.Errorf("claim store is required")
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Distributor{
		root:   cfg.Root,
		asset:  cfg.Asset,
		claims: cfg.Claims,
		logger: log,
	}, nil
}

// Root returns the committed distribution root.
func (d *Distributor) Root() [32]byte {
	return d.root
}

// Asset returns the payout asset reference.
func (d *Distributor) Asset() asset.PayoutAsset {
	return d.asset
}

// HasClaimed reports whether addr has already exercised its claim.
func (d *Distributor) HasClaimed(addr common.Address) (bool, error) {
	return d.claims.Claimed(addr)
}

// SubscribeClaims delivers a ClaimedEvent to ch for every successful claim.
func (d *Distributor) SubscribeClaims(ch chan<- ClaimedEvent) event.Subscription {
	return d.feed.Subscribe(ch)
}

// Claim verifies that (claimant, amount) is a member of the committed
// distribution and pays amount out to caller.
//
// The claimed flag is written and the transfer executed inside one
// transactional boundary: a failed transfer rolls the flag back, so a
// legitimate claim is never burned by an underfunded pool. On success a
// ClaimedEvent is published.
func (d *Distributor) Claim(ctx context.Context, caller common.Address, claimant common.Address, amount *uint256.Int, proof [][32]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	claimed, err := d.claims.Claimed(caller)
	if err != nil {
		return fmt.Errorf("claim store lookup: %w", err)
	}
	if claimed {
		return ErrAlreadyClaimed
	}

	if !merkle.VerifyEntitlement(d.root, claimant, amount, proof) {
		return ErrInvalidProof
	}

	if amount == nil {
		amount = uint256.NewInt(0)
	}

	err = d.claims.MarkClaimed(caller, func() error {
		return d.asset.Transfer(ctx, caller, amount)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyMarked) {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	d.logger.Sugar().Infow("Claim paid out",
		"claimer", caller.Hex(),
		"claimant", claimant.Hex(),
		"amount", amount.Dec(),
	)
	d.feed.Send(ClaimedEvent{Claimer: caller, Amount: amount.Clone()})

	return nil
}
