package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/merkledrop-labs/merkledrop-go/pkg/merkle"
	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

// eligibilityEntry is one row of the input file.
type eligibilityEntry struct {
	Address string `json:"address"`
	Amount  string `json:"amount"` // decimal or 0x-hex
}

// proofBundle is the published artifact for one entitlement.
type proofBundle struct {
	Address string   `json:"address"`
	Amount  string   `json:"amount"`
	Leaf    string   `json:"leaf"`
	Proof   []string `json:"proof"`
}

// treeOutput is the full artifact an operator publishes before deploying a
// distributor against the root.
type treeOutput struct {
	MerkleRoot string        `json:"merkle_root"`
	Proofs     []proofBundle `json:"proofs"`
}

func main() {
	app := &cli.App{
		Name:  "droptree",
		Usage: "Build a distribution tree from an eligibility list",
		Description: `Reads a JSON eligibility list ([{"address": "0x..", "amount": ".."}, ...]),
builds the distribution tree and prints the committed root together with a
merkle proof for every entitlement.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Path to the eligibility JSON file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the tree artifact to this file instead of stdout",
			},
		},
		Action: runDropTree,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runDropTree(c *cli.Context) error {
	raw, err := os.ReadFile(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to read eligibility file: %w", err)
	}

	var rows []eligibilityEntry
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("failed to parse eligibility file: %w", err)
	}

	entries := make([]*types.Entitlement, 0, len(rows))
	for i, row := range rows {
		if !common.IsHexAddress(row.Address) {
			return fmt.Errorf("entry %d: %q is not a hex address", i, row.Address)
		}
		amount, err := parseAmount(row.Amount)
		if err != nil {
			return fmt.Errorf("entry %d: invalid amount %q: %w", i, row.Amount, err)
		}
		entries = append(entries, &types.Entitlement{
			Address: common.HexToAddress(row.Address),
			Amount:  amount,
		})
	}

	tree, err := merkle.BuildDistributionTree(entries)
	if err != nil {
		return err
	}

	out := treeOutput{
		MerkleRoot: common.Hash(tree.Root).Hex(),
		Proofs:     make([]proofBundle, 0, len(tree.Entries)),
	}
	for i, e := range tree.Entries {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			return err
		}

		hexProof := make([]string, len(proof.Siblings))
		for j, h := range proof.Siblings {
			hexProof[j] = common.Hash(h).Hex()
		}

		out.Proofs = append(out.Proofs, proofBundle{
			Address: e.Address.Hex(),
			Amount:  e.Amount.Dec(),
			Leaf:    common.Hash(proof.Leaf).Hex(),
			Proof:   hexProof,
		})
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tree artifact: %w", err)
	}

	if path := c.String("output"); path != "" {
		if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write tree artifact: %w", err)
		}
		fmt.Printf("Wrote root %s and %d proofs to %s\n", out.MerkleRoot, len(out.Proofs), path)
		return nil
	}

	fmt.Println(string(encoded))
	return nil
}

func parseAmount(v string) (*uint256.Int, error) {
	if v == "" {
		return nil, fmt.Errorf("amount is required")
	}
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		return uint256.FromHex(v)
	}
	return uint256.FromDecimal(v)
}
