package merkle

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

// VerifyEntitlement reports whether the (claimant, amount) pair is a member of
// the distribution committed to by root, using the supplied sibling path.
//
// The accumulator starts at the leaf hash and is folded with each sibling in
// order using canonical pairing, so the same proof is valid regardless of
// whether the leaf was a left or right child at any level. An empty proof is
// the single-leaf case: the leaf itself must equal the root.
//
// The function is pure and never errors; a cryptographically wrong proof
// simply yields false.
func VerifyEntitlement(root [32]byte, claimant common.Address, amount *uint256.Int, proof [][32]byte) bool {
	acc := HashEntitlement(claimant, amount)
	for _, sibling := range proof {
		acc = hashPair(acc, sibling)
	}
	return acc == root
}

// HashEntitlement computes the leaf hash for one entitlement:
// keccak256(address || amount) with the address as 20 bytes followed by the
// amount as a 32-byte big-endian word, matching abi.encodePacked(address,
// uint256). A nil amount hashes as zero.
func HashEntitlement(addr common.Address, amount *uint256.Int) [32]byte {
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	word := amount.Bytes32()

	data := make([]byte, 0, 20+32)
	data = append(data, addr.Bytes()...)
	data = append(data, word[:]...)

	hash := crypto.Keccak256Hash(data)
	return [32]byte(hash)
}

// BuildDistributionTree creates a binary merkle tree from entitlements.
// The entitlements are sorted by address before building the tree to ensure
// deterministic roots regardless of input order.
//
// If there's an odd number of nodes at any level, the last node is duplicated.
func BuildDistributionTree(entries []*types.Entitlement) (*DistributionTree, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("cannot build distribution tree from empty entitlement list")
	}

	sorted := SortEntitlements(entries)

	// Hash all leaves
	leaves := make([][32]byte, len(sorted))
	for i, e := range sorted {
		leaves[i] = HashEntitlement(e.Address, e.Amount)
	}

	// Build tree levels bottom-up
	levels := make([][][32]byte, 0)
	levels = append(levels, leaves)

	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]
			right := left

			// If odd number of nodes, duplicate the last one
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}

			nextLevel = append(nextLevel, hashPair(left, right))
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	if len(currentLevel) != 1 {
		return nil, fmt.Errorf("distribution tree construction failed: final level has %d nodes instead of 1", len(currentLevel))
	}

	return &DistributionTree{
		Entries: sorted,
		Leaves:  leaves,
		Root:    currentLevel[0],
		levels:  levels,
	}, nil
}

// GenerateProof creates a merkle proof for the leaf at the given index.
// The proof consists of sibling hashes along the path from leaf to root.
func (dt *DistributionTree) GenerateProof(leafIndex int) (*EntitlementProof, error) {
	if leafIndex < 0 || leafIndex >= len(dt.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(dt.Leaves))
	}

	siblings := make([][32]byte, 0)
	index := leafIndex

	for level := 0; level < len(dt.levels)-1; level++ {
		currentLevel := dt.levels[level]

		var siblingIndex int
		if index%2 == 0 {
			siblingIndex = index + 1
		} else {
			siblingIndex = index - 1
		}

		// Last node on an odd-sized level pairs with itself
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index
		}

		siblings = append(siblings, currentLevel[siblingIndex])
		index = index / 2
	}

	return &EntitlementProof{
		LeafIndex: leafIndex,
		Leaf:      dt.Leaves[leafIndex],
		Siblings:  siblings,
	}, nil
}

// ProofFor generates a proof for the entitlement with the given address.
// Returns an error if the address is not part of the distribution.
func (dt *DistributionTree) ProofFor(addr common.Address) (*EntitlementProof, error) {
	for i, e := range dt.Entries {
		if e.Address == addr {
			return dt.GenerateProof(i)
		}
	}
	return nil, fmt.Errorf("address %s is not part of the distribution", addr.Hex())
}

// SortEntitlements returns a copy of entries sorted by address in ascending
// byte order. The input slice is not modified.
func SortEntitlements(entries []*types.Entitlement) []*types.Entitlement {
	sorted := make([]*types.Entitlement, len(entries))
	copy(sorted, entries)

	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Address.Bytes(), sorted[j].Address.Bytes()) < 0
	})

	return sorted
}

// hashPair computes keccak256 of two nodes concatenated in canonical order:
// the smaller node first, comparing the 32-byte values as unsigned big-endian
// integers (byte-lexicographic order is the same thing). This is what makes
// proofs position-free.
func hashPair(a, b [32]byte) [32]byte {
	data := make([]byte, 64)
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(data[0:32], a[:])
		copy(data[32:64], b[:])
	} else {
		copy(data[0:32], b[:])
		copy(data[32:64], a[:])
	}

	hash := crypto.Keccak256Hash(data)
	return [32]byte(hash)
}
