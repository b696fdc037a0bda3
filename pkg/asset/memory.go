package asset

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// ErrInsufficientBalance is returned by Transfer when the funding pool cannot
// cover the requested amount.
var ErrInsufficientBalance = errors.New("insufficient balance")

// TokenLedger is an in-memory PayoutAsset backed by a single funding pool.
// Thread-safe. Intended for tests and single-process deployments; production
// embeddings typically wrap an on-chain token instead.
type TokenLedger struct {
	mu       sync.Mutex
	pool     *uint256.Int
	balances map[common.Address]*uint256.Int
}

var _ PayoutAsset = (*TokenLedger)(nil)

// NewTokenLedger creates a ledger whose funding pool holds supply tokens.
// A nil supply starts the pool empty.
func NewTokenLedger(supply *uint256.Int) *TokenLedger {
	if supply == nil {
		supply = uint256.NewInt(0)
	}
	return &TokenLedger{
		pool:     supply.Clone(),
		balances: make(map[common.Address]*uint256.Int),
	}
}

// Fund adds amount to the funding pool.
func (l *TokenLedger) Fund(amount *uint256.Int) {
	if amount == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pool.Add(l.pool, amount)
}

// PoolBalance returns the undistributed pool balance.
func (l *TokenLedger) PoolBalance() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Clone()
}

// BalanceOf returns addr's credited balance.
func (l *TokenLedger) BalanceOf(_ context.Context, addr common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.balances[addr]; ok {
		return b.Clone(), nil
	}
	return uint256.NewInt(0), nil
}

// Transfer draws amount from the funding pool and credits it to addr.
func (l *TokenLedger) Transfer(_ context.Context, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		amount = uint256.NewInt(0)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pool.Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "pool holds %s, need %s", l.pool.Dec(), amount.Dec())
	}

	l.pool.Sub(l.pool, amount)

	b, ok := l.balances[to]
	if !ok {
		b = uint256.NewInt(0)
		l.balances[to] = b
	}
	b.Add(b, amount)

	return nil
}
