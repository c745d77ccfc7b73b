// Package fhe models the homomorphic encryption subsystem as an opaque
// capability over ciphertext handles. Holders of a Handle never see plaintext;
// only a Decryptor (the decryption oracle) can open one.
package fhe

import (
	"encoding/hex"
	"errors"

	"github.com/holiman/uint256"
)

// HandleSize is the size of a ciphertext handle in bytes.
const HandleSize = 32

var (
	// ErrUninitialized is returned when the subsystem has not been set up.
	ErrUninitialized = errors.New("fhe subsystem uninitialized")

	// ErrUnknownHandle is returned for handles the subsystem never issued.
	ErrUnknownHandle = errors.New("unknown ciphertext handle")

	// ErrTypeMismatch is returned when an operand has the wrong encrypted type.
	ErrTypeMismatch = errors.New("ciphertext type mismatch")

	// ErrDivisionByZero is returned by DivScalar with a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")
)

// Handle is an opaque reference to an encrypted value.
type Handle [HandleSize]byte

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// String returns the first 8 bytes in hex, enough to tell handles apart in logs.
func (h Handle) String() string {
	return hex.EncodeToString(h[:8])
}

// HandleFromBytes copies b into a Handle. Returns false if b has the wrong size.
func HandleFromBytes(b []byte) (Handle, bool) {
	var h Handle
	if len(b) != HandleSize {
		return h, false
	}

	copy(h[:], b)

	return h, true
}

// Type is the encrypted type of a ciphertext.
type Type uint8

const (
	TypeBool   Type = 1 // TypeBool is an encrypted boolean (0 or 1)
	TypeUint64 Type = 2 // TypeUint64 is an encrypted 64-bit unsigned integer
)

// String returns the fhEVM-style type name.
func (t Type) String() string {
	switch t {
	case TypeBool:
		return "ebool"
	case TypeUint64:
		return "euint64"
	default:
		return "unknown"
	}
}

// Capability is the homomorphic surface available to the coordinator.
// Result handles of the arithmetic operations are a pure function of the
// operation and its operands.
type Capability interface {
	// Initialized reports whether the subsystem can accept operations.
	Initialized() bool

	// TypeOf returns the encrypted type of h.
	TypeOf(h Handle) (Type, error)

	// TrivialEncrypt encrypts a public constant.
	TrivialEncrypt(value uint64, t Type) (Handle, error)

	// Add returns a + b on TypeUint64, wrapping at 2^64.
	Add(a, b Handle) (Handle, error)

	// Or returns a | b on TypeBool.
	Or(a, b Handle) (Handle, error)

	// DivScalar returns a / divisor on TypeUint64, rounding down.
	DivScalar(a Handle, divisor uint64) (Handle, error)

	// GeScalar returns the TypeBool a >= bound.
	GeScalar(a Handle, bound uint64) (Handle, error)
}

// Decryptor opens ciphertexts. Only the decryption oracle holds one.
type Decryptor interface {
	Decrypt(h Handle) (Type, *uint256.Int, error)
}
