package fhe

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// WordSize is the size of one packed cleartext word.
const WordSize = 32

// ErrMalformedCleartext is returned when packed cleartext does not decode.
var ErrMalformedCleartext = errors.New("malformed cleartext")

// PackWords concatenates values as 32-byte big-endian words, in order.
func PackWords(values ...*uint256.Int) []byte {
	out := make([]byte, 0, len(values)*WordSize)

	for _, v := range values {
		word := v.Bytes32()
		out = append(out, word[:]...)
	}

	return out
}

// UnpackWords splits data into exactly n words.
func UnpackWords(data []byte, n int) ([]*uint256.Int, error) {
	if len(data) != n*WordSize {
		return nil, fmt.Errorf("cleartext is %d bytes, want %d:\n%w", len(data), n*WordSize, ErrMalformedCleartext)
	}

	words := make([]*uint256.Int, n)
	for i := range words {
		words[i] = new(uint256.Int).SetBytes32(data[i*WordSize : (i+1)*WordSize])
	}

	return words, nil
}

// WordToUint64 decodes a TypeUint64 word.
func WordToUint64(w *uint256.Int) (uint64, error) {
	if !w.IsUint64() {
		return 0, fmt.Errorf("word %s exceeds 64 bits:\n%w", w.Hex(), ErrMalformedCleartext)
	}

	return w.Uint64(), nil
}

// WordToBool decodes a TypeBool word; only 0 and 1 are valid.
func WordToBool(w *uint256.Int) (bool, error) {
	if !w.IsUint64() || w.Uint64() > 1 {
		return false, fmt.Errorf("word %s is not a boolean:\n%w", w.Hex(), ErrMalformedCleartext)
	}

	return w.Uint64() == 1, nil
}
