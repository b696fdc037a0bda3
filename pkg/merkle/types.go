package merkle

import "github.com/merkledrop-labs/merkledrop-go/pkg/types"

// DistributionTree is a binary merkle tree committing to a set of entitlements.
// The tree uses keccak256 hashing for Solidity compatibility, and internal
// nodes hash their children in canonical (sorted) order, so proofs carry no
// position information.
type DistributionTree struct {
	// Entries contains the entitlements in the order their leaves appear,
	// sorted by address.
	Entries []*types.Entitlement

	// Leaves contains the leaf hashes, aligned with Entries.
	Leaves [][32]byte

	// Root is the merkle root hash.
	Root [32]byte

	// levels stores all tree levels for proof generation.
	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}

// EntitlementProof is the sibling path proving one entitlement's inclusion.
type EntitlementProof struct {
	// LeafIndex is the index of the leaf in the sorted leaves array.
	LeafIndex int

	// Leaf is the hash of the entitlement being proven.
	Leaf [32]byte

	// Siblings contains the sibling hashes from leaf to root.
	// Siblings[0] is adjacent to the leaf, Siblings[len-1] is near the root.
	Siblings [][32]byte
}
