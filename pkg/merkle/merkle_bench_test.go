package merkle

import (
	"fmt"
	"testing"
)

// BenchmarkBuildDistributionTree benchmarks tree construction with various sizes
func BenchmarkBuildDistributionTree(b *testing.B) {
	sizes := []int{10, 50, 100, 200}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Entries_%d", size), func(b *testing.B) {
			entries := createTestEntitlements(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = BuildDistributionTree(entries)
			}
		})
	}
}

// BenchmarkGenerateProof benchmarks proof generation
func BenchmarkGenerateProof(b *testing.B) {
	sizes := []int{10, 50, 100, 200}

	for _, size := range sizes {
		entries := createTestEntitlements(size)
		tree, _ := BuildDistributionTree(entries)

		b.Run(fmt.Sprintf("Entries_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.GenerateProof(i % size)
			}
		})
	}
}

// BenchmarkVerifyEntitlement benchmarks proof verification
func BenchmarkVerifyEntitlement(b *testing.B) {
	sizes := []int{10, 50, 100, 200}

	for _, size := range sizes {
		entries := createTestEntitlements(size)
		tree, _ := BuildDistributionTree(entries)
		proof, _ := tree.GenerateProof(0)
		e := tree.Entries[0]

		b.Run(fmt.Sprintf("Entries_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = VerifyEntitlement(tree.Root, e.Address, e.Amount, proof.Siblings)
			}
		})
	}
}
