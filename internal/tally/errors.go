package tally

import (
	"errors"

	"BlindTally/internal/access"
	"BlindTally/internal/fhe"
	"BlindTally/internal/ledger"
	"BlindTally/internal/ratelimit"
	"BlindTally/internal/reveal"
)

// ErrStoreDiverged is returned by Restore when a persistent store holds
// contributions that differ from the snapshot's.
var ErrStoreDiverged = errors.New("contribution store diverges from snapshot")

// Class groups failures by what the caller can do about them.
type Class int

const (
	ClassNone          Class = iota // ClassNone is the class of a nil error
	ClassAuthorization              // ClassAuthorization means the caller lacks the role
	ClassLifecycle                  // ClassLifecycle means the contract is in the wrong phase
	ClassThrottling                 // ClassThrottling means the caller must wait
	ClassIntegrity                  // ClassIntegrity means a protocol check refused the call
	ClassInternal                   // ClassInternal is anything else, e.g. storage failures
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassAuthorization:
		return "authorization"
	case ClassLifecycle:
		return "lifecycle"
	case ClassThrottling:
		return "throttling"
	case ClassIntegrity:
		return "protocol-integrity"
	default:
		return "internal"
	}
}

// classes maps each sentinel to its class. Integrity comes first so a wrapped
// chain carrying both an integrity and a lower-level error classifies as integrity.
var classes = []struct {
	class    Class
	sentinel []error
}{
	{ClassIntegrity, []error{
		reveal.ErrReplayAttempt,
		reveal.ErrStateMismatch,
		reveal.ErrInvalidProof,
		reveal.ErrUnknownRequest,
		reveal.ErrDuplicateRequest,
		reveal.ErrMalformedCleartext,
		ledger.ErrAlreadyCommitted,
		ledger.ErrSubsystemUninitialized,
		fhe.ErrUnknownHandle,
		fhe.ErrTypeMismatch,
		ErrStoreDiverged,
	}},
	{ClassAuthorization, []error{access.ErrNotOwner, access.ErrNotProvider}},
	{ClassLifecycle, []error{
		access.ErrPaused,
		ledger.ErrBatchClosed,
		ledger.ErrBatchAlreadyClosed,
		reveal.ErrBatchStillOpen,
		reveal.ErrEmptyBatch,
	}},
	{ClassThrottling, []error{ratelimit.ErrCooldownActive}},
}

// Classify maps err onto the failure taxonomy.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	for _, group := range classes {
		for _, sentinel := range group.sentinel {
			if errors.Is(err, sentinel) {
				return group.class
			}
		}
	}

	return ClassInternal
}
