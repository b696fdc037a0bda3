package distributor

import "errors"

// Claim failure kinds. All are terminal for the current call and surfaced
// directly to the caller; none leave partial state behind.
var (
	// ErrAlreadyClaimed means the calling address already holds a claimed
	// flag. Not retryable for that caller.
	ErrAlreadyClaimed = errors.New("drop already claimed")

	// ErrInvalidProof means the recomputed root does not match the committed
	// root. Covers wrong amounts, wrong claimants, and tampered, missing or
	// reordered proof elements. Retryable with corrected arguments.
	ErrInvalidProof = errors.New("invalid merkle proof")

	// ErrTransferFailed means the payout asset declined or could not complete
	// the transfer. The claimed flag is rolled back, so the claim is retryable
	// once the pool is replenished.
	ErrTransferFailed = errors.New("token transfer failed")
)
