// Package reveal runs the two-step decryption protocol: RequestReveal binds the
// folded output handles to a commitment and asks the oracle to decrypt them;
// HandleCallback accepts the oracle's answer only if the commitment still
// matches the live ledger, the proof verifies and the request was never
// finalized before.
package reveal

//go:generate mockgen -source reveal.go -destination reveal_mocks.go -package reveal

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/blake3"

	"BlindTally/internal/fhe"
)

var (
	// ErrBatchStillOpen is returned when a reveal is requested while the batch is open.
	ErrBatchStillOpen = errors.New("batch still open")

	// ErrEmptyBatch is returned when there are no contributions to reveal.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrReplayAttempt is returned for callbacks on an already finalized request.
	ErrReplayAttempt = errors.New("replay attempt")

	// ErrStateMismatch is returned when the ledger changed since the request.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrInvalidProof is returned when the oracle proof does not verify.
	ErrInvalidProof = errors.New("invalid proof")

	// ErrUnknownRequest is returned for callbacks with no stored context.
	ErrUnknownRequest = errors.New("unknown request")

	// ErrDuplicateRequest is returned when the oracle hands out a request id twice.
	ErrDuplicateRequest = errors.New("duplicate request id")

	// ErrMalformedCleartext is returned when verified cleartext does not decode.
	ErrMalformedCleartext = errors.New("malformed cleartext")

	// ErrMalformedRecord is returned when a stored context does not decode.
	ErrMalformedRecord = errors.New("malformed context record")
)

// Selector identifies the entry point the oracle must call back.
type Selector [4]byte

// NewSelector returns the first four bytes of Keccak-256(signature).
func NewSelector(signature string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(signature))[:4])

	return s
}

// CallbackSelector addresses HandleCallback.
var CallbackSelector = NewSelector("handleCallback(uint256,bytes,bytes)")

// Oracle is the asynchronous decryption service.
type Oracle interface {
	// RequestDecryption queues handles for decryption and returns a fresh
	// request id. The answer arrives later through the callback selector.
	RequestDecryption(handles []fhe.Handle, callback Selector) (uint64, error)
}

// ProofVerifier checks that cleartext is the oracle's answer to requestID.
type ProofVerifier interface {
	VerifyProof(requestID uint64, cleartext, proof []byte) error
}

// Commitment binds handles to one coordinator instance:
// BLAKE3(handle_1 || ... || handle_n || identity).
func Commitment(handles []fhe.Handle, identity common.Address) [32]byte {
	h := blake3.New()

	for _, handle := range handles {
		h.Write(handle[:])
	}
	h.Write(identity[:])

	var out [32]byte
	h.Sum(out[:0])

	return out
}
