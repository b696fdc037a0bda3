package distributor

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/merkledrop-labs/merkledrop-go/pkg/asset"
	"github.com/merkledrop-labs/merkledrop-go/pkg/merkle"
	"github.com/merkledrop-labs/merkledrop-go/pkg/store/memory"
	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

func testAddr(n int64) common.Address {
	return common.BigToAddress(big.NewInt(n))
}

// testDistribution builds a small tree and a distributor over it with the
// given pool supply.
func testDistribution(t *testing.T, entries []*types.Entitlement, supply *uint256.Int) (*merkle.DistributionTree, *Distributor, *asset.TokenLedger) {
	t.Helper()

	tree, err := merkle.BuildDistributionTree(entries)
	require.NoError(t, err)

	ledger := asset.NewTokenLedger(supply)
	dist, err := New(Config{
		Root:   tree.Root,
		Asset:  ledger,
		Claims: memory.NewMemoryClaimStore(),
	})
	require.NoError(t, err)

	return tree, dist, ledger
}

func defaultEntries() []*types.Entitlement {
	return []*types.Entitlement{
		{Address: testAddr(1), Amount: uint256.NewInt(100)},
		{Address: testAddr(2), Amount: uint256.NewInt(250)},
		{Address: testAddr(3), Amount: uint256.NewInt(400)},
		{Address: testAddr(4), Amount: uint256.NewInt(50)},
	}
}

func TestClaimSucceeds(t *testing.T) {
	ctx := context.Background()
	tree, dist, ledger := testDistribution(t, defaultEntries(), uint256.NewInt(1000))

	target := tree.Entries[0]
	proof, err := tree.GenerateProof(0)
	require.NoError(t, err)

	require.NoError(t, dist.Claim(ctx, target.Address, target.Address, target.Amount, proof.Siblings))

	claimed, err := dist.HasClaimed(target.Address)
	require.NoError(t, err)
	require.True(t, claimed)

	balance, err := ledger.BalanceOf(ctx, target.Address)
	require.NoError(t, err)
	require.Equal(t, target.Amount, balance)
}

func TestClaimAtMostOnce(t *testing.T) {
	ctx := context.Background()
	tree, dist, _ := testDistribution(t, defaultEntries(), uint256.NewInt(1000))

	caller := tree.Entries[0].Address
	proof0, err := tree.GenerateProof(0)
	require.NoError(t, err)

	require.NoError(t, dist.Claim(ctx, caller, tree.Entries[0].Address, tree.Entries[0].Amount, proof0.Siblings))

	// Identical arguments fail
	err = dist.Claim(ctx, caller, tree.Entries[0].Address, tree.Entries[0].Amount, proof0.Siblings)
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	// A different, perfectly valid entitlement fails too: the guard keys on
	// the caller, regardless of arguments
	proof1, err := tree.GenerateProof(1)
	require.NoError(t, err)
	err = dist.Claim(ctx, caller, tree.Entries[1].Address, tree.Entries[1].Amount, proof1.Siblings)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestClaimCallerClaimantIndependence(t *testing.T) {
	ctx := context.Background()
	tree, dist, ledger := testDistribution(t, defaultEntries(), uint256.NewInt(1000))

	// An address outside the distribution claims on behalf of entry 0
	outsider := testAddr(77)
	target := tree.Entries[0]
	proof, err := tree.GenerateProof(0)
	require.NoError(t, err)

	require.NoError(t, dist.Claim(ctx, outsider, target.Address, target.Amount, proof.Siblings))

	// Payout goes to the caller, not the claimant
	balance, err := ledger.BalanceOf(ctx, outsider)
	require.NoError(t, err)
	require.Equal(t, target.Amount, balance)

	balance, err = ledger.BalanceOf(ctx, target.Address)
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	// The flag is set for the caller, not the claimant
	claimed, err := dist.HasClaimed(outsider)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = dist.HasClaimed(target.Address)
	require.NoError(t, err)
	require.False(t, claimed)

	// The entitlement's own address can still claim the same leaf
	require.NoError(t, dist.Claim(ctx, target.Address, target.Address, target.Amount, proof.Siblings))
}

func TestClaimInvalidProof(t *testing.T) {
	ctx := context.Background()
	tree, dist, _ := testDistribution(t, defaultEntries(), uint256.NewInt(1000))

	target := tree.Entries[0]
	proof, err := tree.GenerateProof(0)
	require.NoError(t, err)

	t.Run("Wrong amount", func(t *testing.T) {
		wrong := new(uint256.Int).AddUint64(target.Amount, 1)
		err := dist.Claim(ctx, target.Address, target.Address, wrong, proof.Siblings)
		require.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("Wrong claimant", func(t *testing.T) {
		err := dist.Claim(ctx, target.Address, testAddr(99), target.Amount, proof.Siblings)
		require.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("Tampered proof", func(t *testing.T) {
		tampered := make([][32]byte, len(proof.Siblings))
		copy(tampered, proof.Siblings)
		tampered[0][0] ^= 0xFF
		err := dist.Claim(ctx, target.Address, target.Address, target.Amount, tampered)
		require.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("Empty proof against multi-leaf root", func(t *testing.T) {
		err := dist.Claim(ctx, target.Address, target.Address, target.Amount, nil)
		require.ErrorIs(t, err, ErrInvalidProof)
	})

	// Failed attempts must not set the flag
	claimed, err := dist.HasClaimed(target.Address)
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestClaimCrossProofRejected(t *testing.T) {
	ctx := context.Background()
	amount := uint256.NewInt(100)
	entries := []*types.Entitlement{
		{Address: testAddr(1), Amount: amount},
		{Address: testAddr(2), Amount: amount},
	}
	tree, dist, _ := testDistribution(t, entries, uint256.NewInt(1000))

	proofB, err := tree.ProofFor(testAddr(2))
	require.NoError(t, err)

	err = dist.Claim(ctx, testAddr(1), testAddr(1), amount, proofB.Siblings)
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestClaimTransferFailureAtomicity(t *testing.T) {
	ctx := context.Background()
	tree, dist, ledger := testDistribution(t, defaultEntries(), uint256.NewInt(0))

	target := tree.Entries[0]
	proof, err := tree.GenerateProof(0)
	require.NoError(t, err)

	err = dist.Claim(ctx, target.Address, target.Address, target.Amount, proof.Siblings)
	require.ErrorIs(t, err, ErrTransferFailed)

	// The flag must still be unset so the claim can be retried after funding
	claimed, err := dist.HasClaimed(target.Address)
	require.NoError(t, err)
	require.False(t, claimed)

	ledger.Fund(uint256.NewInt(1000))
	require.NoError(t, dist.Claim(ctx, target.Address, target.Address, target.Amount, proof.Siblings))
}

func TestClaimSingleLeafEmptyProof(t *testing.T) {
	ctx := context.Background()
	entries := []*types.Entitlement{{Address: testAddr(9), Amount: uint256.NewInt(500)}}
	tree, dist, _ := testDistribution(t, entries, uint256.NewInt(500))

	require.Equal(t, merkle.HashEntitlement(testAddr(9), uint256.NewInt(500)), tree.Root)
	require.NoError(t, dist.Claim(ctx, testAddr(9), testAddr(9), uint256.NewInt(500), nil))
}

func TestClaimAgainstZeroRoot(t *testing.T) {
	// An all-zero root is accepted at construction; no proof can match it
	dist, err := New(Config{
		Asset:  asset.NewTokenLedger(uint256.NewInt(100)),
		Claims: memory.NewMemoryClaimStore(),
	})
	require.NoError(t, err)
	require.Equal(t, [32]byte{}, dist.Root())

	err = dist.Claim(context.Background(), testAddr(1), testAddr(1), uint256.NewInt(1), nil)
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestClaimedEventPublished(t *testing.T) {
	ctx := context.Background()
	tree, dist, _ := testDistribution(t, defaultEntries(), uint256.NewInt(1000))

	ch := make(chan ClaimedEvent, 4)
	sub := dist.SubscribeClaims(ch)
	defer sub.Unsubscribe()

	target := tree.Entries[2]
	proof, err := tree.GenerateProof(2)
	require.NoError(t, err)

	require.NoError(t, dist.Claim(ctx, target.Address, target.Address, target.Amount, proof.Siblings))

	select {
	case ev := <-ch:
		require.Equal(t, target.Address, ev.Claimer)
		require.Equal(t, target.Amount, ev.Amount)
	case <-time.After(time.Second):
		t.Fatal("expected a ClaimedEvent")
	}

	// Failed claims publish nothing
	err = dist.Claim(ctx, target.Address, target.Address, target.Amount, proof.Siblings)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
	require.Empty(t, ch)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Claims: memory.NewMemoryClaimStore()})
	require.Error(t, err)

	_, err = New(Config{Asset: asset.NewTokenLedger(nil)})
	require.Error(t, err)
}

func TestAccessors(t *testing.T) {
	tree, dist, ledger := testDistribution(t, defaultEntries(), uint256.NewInt(1))

	require.Equal(t, tree.Root, dist.Root())
	require.Same(t, ledger, dist.Asset().(*asset.TokenLedger))
}
