package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/merkledrop-labs/merkledrop-go/pkg/distributor"
)

// ClaimRequest is the POST /claim payload. The caller field stands in for an
// authenticated sender identity; a production embedding would derive it from
// request authentication instead of trusting the body.
type ClaimRequest struct {
	Caller   string   `json:"caller"`
	Claimant string   `json:"claimant"`
	Amount   string   `json:"amount"` // decimal or 0x-hex
	Proof    []string `json:"proof"`  // 32-byte hex hashes, leaf-adjacent first
}

// ClaimResponse is returned on a successful claim.
type ClaimResponse struct {
	RequestID string `json:"request_id"`
	Claimer   string `json:"claimer"`
	Amount    string `json:"amount"`
}

// ClaimedResponse is returned by GET /claimed.
type ClaimedResponse struct {
	Address string `json:"address"`
	Claimed bool   `json:"claimed"`
}

// RootResponse is returned by GET /root.
type RootResponse struct {
	MerkleRoot string `json:"merkle_root"`
}

// handleClaim verifies a proof and pays out
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.limiter != nil && !s.limiter.Allow() {
		http.Error(w, "Too many claim requests", http.StatusTooManyRequests)
		return
	}

	requestID := uuid.New().String()

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	if !common.IsHexAddress(req.Caller) {
		http.Error(w, "caller must be a hex address", http.StatusBadRequest)
		return
	}
	if !common.IsHexAddress(req.Claimant) {
		http.Error(w, "claimant must be a hex address", http.StatusBadRequest)
		return
	}
	caller := common.HexToAddress(req.Caller)
	claimant := common.HexToAddress(req.Claimant)

	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid amount: %v", err), http.StatusBadRequest)
		return
	}

	if s.maxProofLen > 0 && len(req.Proof) > s.maxProofLen {
		http.Error(w, fmt.Sprintf("proof exceeds %d elements", s.maxProofLen), http.StatusBadRequest)
		return
	}

	// Malformed proof entries get the same answer as a cryptographically wrong
	// proof: they could never recompute the committed root.
	proof, ok := parseProof(req.Proof)
	if !ok {
		http.Error(w, distributor.ErrInvalidProof.Error(), http.StatusBadRequest)
		return
	}

	if err := s.dist.Claim(r.Context(), caller, claimant, amount, proof); err != nil {
		s.logger.Sugar().Infow("Claim rejected",
			"request_id", requestID,
			"caller", caller.Hex(),
			"error", err,
		)

		switch {
		case errors.Is(err, distributor.ErrAlreadyClaimed):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, distributor.ErrInvalidProof):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, distributor.ErrTransferFailed):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	s.logger.Sugar().Infow("Claim accepted",
		"request_id", requestID,
		"caller", caller.Hex(),
		"amount", amount.Dec(),
	)

	writeJSON(w, http.StatusOK, ClaimResponse{
		RequestID: requestID,
		Claimer:   caller.Hex(),
		Amount:    amount.Dec(),
	})
}

// handleClaimed answers claimed-status lookups
func (s *Server) handleClaimed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addrParam := r.URL.Query().Get("address")
	if !common.IsHexAddress(addrParam) {
		http.Error(w, "address query parameter must be a hex address", http.StatusBadRequest)
		return
	}
	addr := common.HexToAddress(addrParam)

	claimed, err := s.dist.HasClaimed(addr)
	if err != nil {
		s.logger.Sugar().Errorw("Claimed lookup failed", "address", addr.Hex(), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ClaimedResponse{Address: addr.Hex(), Claimed: claimed})
}

// handleRoot returns the committed distribution root
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	root := s.dist.Root()
	writeJSON(w, http.StatusOK, RootResponse{MerkleRoot: common.Hash(root).Hex()})
}

// handleHealth is a liveness probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseAmount accepts a decimal or 0x-prefixed hex unsigned integer.
func parseAmount(v string) (*uint256.Int, error) {
	if v == "" {
		return nil, fmt.Errorf("amount is required")
	}
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		return uint256.FromHex(v)
	}
	return uint256.FromDecimal(v)
}

// parseProof decodes hex proof entries. Any entry that is not exactly 32
// bytes of valid hex makes the whole proof unusable.
func parseProof(entries []string) ([][32]byte, bool) {
	proof := make([][32]byte, 0, len(entries))
	for _, e := range entries {
		raw, err := hexutil.Decode(e)
		if err != nil || len(raw) != 32 {
			return nil, false
		}
		var h [32]byte
		copy(h[:], raw)
		proof = append(proof, h)
	}
	return proof, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
