package asset

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTokenLedgerTransfer(t *testing.T) {
	ctx := context.Background()
	ledger := NewTokenLedger(uint256.NewInt(1000))
	recipient := common.BigToAddress(big.NewInt(1))

	require.NoError(t, ledger.Transfer(ctx, recipient, uint256.NewInt(400)))

	balance, err := ledger.BalanceOf(ctx, recipient)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(400), balance)
	require.Equal(t, uint256.NewInt(600), ledger.PoolBalance())
}

func TestTokenLedgerInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	ledger := NewTokenLedger(uint256.NewInt(100))
	recipient := common.BigToAddress(big.NewInt(1))

	err := ledger.Transfer(ctx, recipient, uint256.NewInt(101))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInsufficientBalance))

	// Nothing moved
	balance, err := ledger.BalanceOf(ctx, recipient)
	require.NoError(t, err)
	require.True(t, balance.IsZero())
	require.Equal(t, uint256.NewInt(100), ledger.PoolBalance())
}

func TestTokenLedgerFund(t *testing.T) {
	ctx := context.Background()
	ledger := NewTokenLedger(nil)
	recipient := common.BigToAddress(big.NewInt(1))

	require.Error(t, ledger.Transfer(ctx, recipient, uint256.NewInt(1)))

	ledger.Fund(uint256.NewInt(50))
	require.NoError(t, ledger.Transfer(ctx, recipient, uint256.NewInt(50)))
	require.True(t, ledger.PoolBalance().IsZero())
}

func TestTokenLedgerUnknownAddress(t *testing.T) {
	ledger := NewTokenLedger(uint256.NewInt(10))

	balance, err := ledger.BalanceOf(context.Background(), common.BigToAddress(big.NewInt(99)))
	require.NoError(t, err)
	require.True(t, balance.IsZero())
}
