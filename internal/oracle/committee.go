// Package oracle is a local threshold decryption service. A committee of BLS
// signers attests to every cleartext it releases, and a Gateway queues
// requests and delivers answers to the registered callback asynchronously.
package oracle

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

var (
	// ErrMalformedProof is returned when a proof does not parse.
	ErrMalformedProof = errors.New("malformed proof")

	// ErrQuorumNotReached is returned when too few members signed.
	ErrQuorumNotReached = errors.New("quorum not reached")

	// ErrBadSignature is returned when the aggregated signature does not verify.
	ErrBadSignature = errors.New("bad aggregated signature")
)

// digestTag separates proof digests from other BLAKE3 uses.
var digestTag = []byte("blindtally-decryption-v1")

// QuorumSize returns the default number of signers for a committee of n: 67%, rounded up.
func QuorumSize(n int) int {
	return (n*67 + 99) / 100
}

// Digest is the message every member signs for a released cleartext:
// BLAKE3(tag || requestID (8B BE) || cleartext).
func Digest(requestID uint64, cleartext []byte) [32]byte {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], requestID)

	h := blake3.New()
	h.Write(digestTag)
	h.Write(id[:])
	h.Write(cleartext)

	var out [32]byte
	h.Sum(out[:0])

	return out
}

// Committee holds the oracle's signing members.
type Committee struct {
	members []*KeyPair // members are indexed by position in the signer bitmap
	quorum  int        // quorum is the number of signatures a proof needs
}

// NewCommittee derives size members from seed. A zero quorum selects QuorumSize(size).
func NewCommittee(seed []byte, size, quorum int) (*Committee, error) {
	if size <= 0 {
		return nil, fmt.Errorf("committee size must be positive, got %d", size)
	}

	if quorum == 0 {
		quorum = QuorumSize(size)
	}

	if quorum < 1 || quorum > size {
		return nil, fmt.Errorf("quorum %d out of range for committee of %d", quorum, size)
	}

	members := make([]*KeyPair, size)
	for i := range members {
		kp, err := DeriveKeyPair(seed, i)
		if err != nil {
			return nil, err
		}
		members[i] = kp
	}

	return &Committee{members: members, quorum: quorum}, nil
}

// Size returns the number of members.
func (c *Committee) Size() int { return len(c.members) }

// Quorum returns the number of signatures a proof needs.
func (c *Committee) Quorum() int { return c.quorum }

// PublicKeys returns every member's compressed public key, in member order.
func (c *Committee) PublicKeys() [][]byte {
	out := make([][]byte, len(c.members))
	for i, m := range c.members {
		out[i] = m.PublicKeyBytes()
	}

	return out
}

// Attest signs the digest of (requestID, cleartext) with the members in
// signers and returns the encoded proof.
func (c *Committee) Attest(requestID uint64, cleartext []byte, signers []int) ([]byte, error) {
	digest := Digest(requestID, cleartext)

	sigs := make([][]byte, 0, len(signers))
	for _, idx := range signers {
		if idx < 0 || idx >= len(c.members) {
			return nil, fmt.Errorf("signer %d outside committee of %d", idx, len(c.members))
		}
		sigs = append(sigs, c.members[idx].Sign(digest[:]))
	}

	agg, err := AggregateSignatures(sigs)
	if err != nil {
		return nil, fmt.Errorf("aggregate:\n%w", err)
	}

	return EncodeProof(BuildSignerBitmap(signers, len(c.members)), agg), nil
}

// AttestQuorum signs with the first Quorum members.
func (c *Committee) AttestQuorum(requestID uint64, cleartext []byte) ([]byte, error) {
	signers := make([]int, c.quorum)
	for i := range signers {
		signers[i] = i
	}

	return c.Attest(requestID, cleartext, signers)
}

// EncodeProof lays out a proof as: u16 bitmap length (BE) + bitmap + signature.
func EncodeProof(bitmap, signature []byte) []byte {
	out := make([]byte, 2+len(bitmap)+len(signature))
	binary.BigEndian.PutUint16(out, uint16(len(bitmap)))
	copy(out[2:], bitmap)
	copy(out[2+len(bitmap):], signature)

	return out
}

// DecodeProof splits a proof into bitmap and signature.
func DecodeProof(proof []byte) (bitmap, signature []byte, err error) {
	if len(proof) < 2 {
		return nil, nil, ErrMalformedProof
	}

	n := int(binary.BigEndian.Uint16(proof))
	if len(proof) != 2+n+SignatureSize {
		return nil, nil, fmt.Errorf("proof is %d bytes for a %d-byte bitmap:\n%w", len(proof), n, ErrMalformedProof)
	}

	return proof[2 : 2+n], proof[2+n:], nil
}

// Verifier checks committee proofs. It holds only public keys.
type Verifier struct {
	publicKeys [][]byte // publicKeys are indexed like the signer bitmap
	quorum     int      // quorum is the minimum number of signers
}

// NewVerifier creates a verifier for a committee with the given keys.
func NewVerifier(publicKeys [][]byte, quorum int) *Verifier {
	return &Verifier{publicKeys: publicKeys, quorum: quorum}
}

// VerifyProof checks that at least quorum distinct members signed
// Digest(requestID, cleartext).
func (v *Verifier) VerifyProof(requestID uint64, cleartext, proof []byte) error {
	bitmap, sig, err := DecodeProof(proof)
	if err != nil {
		return err
	}

	if len(bitmap) != (len(v.publicKeys)+7)/8 {
		return fmt.Errorf("bitmap is %d bytes for %d members:\n%w", len(bitmap), len(v.publicKeys), ErrMalformedProof)
	}

	signers := ParseSignerBitmap(bitmap)

	keys := make([][]byte, 0, len(signers))
	for _, idx := range signers {
		if idx >= len(v.publicKeys) {
			return fmt.Errorf("signer %d outside committee:\n%w", idx, ErrMalformedProof)
		}
		keys = append(keys, v.publicKeys[idx])
	}

	if len(keys) < v.quorum {
		return fmt.Errorf("%d of %d signers:\n%w", len(keys), v.quorum, ErrQuorumNotReached)
	}

	digest := Digest(requestID, cleartext)
	if !VerifyAggregated(sig, digest[:], keys) {
		return ErrBadSignature
	}

	return nil
}

// Verifier returns a verifier for this committee.
func (c *Committee) Verifier() *Verifier {
	return NewVerifier(c.PublicKeys(), c.quorum)
}
