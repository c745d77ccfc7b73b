package oracle

import (
	"bytes"
	"testing"
)

// TestSignVerify tests a single member signature.
func TestSignVerify(t *testing.T) {
	key, err := DeriveKeyPair([]byte("committee seed"), 0)
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}

	message := []byte("average=20")
	signature := key.Sign(message)

	if len(signature) != SignatureSize {
		t.Errorf("signature size: got %d, want %d", len(signature), SignatureSize)
	}

	if !VerifyAggregated(signature, message, [][]byte{key.PublicKeyBytes()}) {
		t.Error("valid signature should verify")
	}

	if VerifyAggregated(signature, []byte("average=21"), [][]byte{key.PublicKeyBytes()}) {
		t.Error("signature should not verify with wrong message")
	}
}

// TestDeriveKeyPairIsDeterministic tests that one seed reproduces each member.
func TestDeriveKeyPairIsDeterministic(t *testing.T) {
	seed := []byte("committee seed")

	a, err := DeriveKeyPair(seed, 0)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	b, _ := DeriveKeyPair(seed, 0)
	c, _ := DeriveKeyPair(seed, 1)

	if !bytes.Equal(a.PublicKeyBytes(), b.PublicKeyBytes()) {
		t.Error("same seed and index should give the same key")
	}

	if bytes.Equal(a.PublicKeyBytes(), c.PublicKeyBytes()) {
		t.Error("different indices should give different keys")
	}
}

// TestAggregateVerify tests aggregation over a subset of signers.
func TestAggregateVerify(t *testing.T) {
	message := []byte("digest")

	var sigs, pubs [][]byte
	for i := 0; i < 3; i++ {
		k, _ := DeriveKeyPair([]byte("aggregate seed"), i)
		sigs = append(sigs, k.Sign(message))
		pubs = append(pubs, k.PublicKeyBytes())
	}

	agg, err := AggregateSignatures(sigs)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if !VerifyAggregated(agg, message, pubs) {
		t.Error("aggregated signature should verify")
	}

	if VerifyAggregated(agg, message, pubs[:2]) {
		t.Error("aggregated signature should not verify with a missing key")
	}

	if _, err := AggregateSignatures(nil); err == nil {
		t.Error("empty aggregation should fail")
	}
}

// TestSignerBitmap tests bitmap round trip.
func TestSignerBitmap(t *testing.T) {
	bitmap := BuildSignerBitmap([]int{0, 3, 9, 42}, 10)

	if len(bitmap) != 2 {
		t.Fatalf("bitmap size: got %d, want 2", len(bitmap))
	}

	got := ParseSignerBitmap(bitmap)
	want := []int{0, 3, 9}

	if len(got) != len(want) {
		t.Fatalf("indices: got %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}
