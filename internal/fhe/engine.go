package fhe

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/zeebo/blake3"
)

// Opcodes mixed into derived handles.
const (
	opInput   byte = 0x01
	opTrivial byte = 0x02
	opAdd     byte = 0x10
	opOr      byte = 0x11
	opDiv     byte = 0x12
	opGe      byte = 0x13
)

// handleDomain separates engine handles from any other BLAKE3 use.
var handleDomain = []byte("blindtally-fhe-handle")

// ciphertext is the engine's record for one handle.
type ciphertext struct {
	typ   Type        // typ is the encrypted type
	value uint256.Int // value is the plaintext, never exposed through Capability
}

// Engine is an in-process stand-in for the FHE coprocessor. It keeps
// plaintexts behind handles and implements both Capability and Decryptor.
// The zero value is uninitialized; use NewEngine or call Init.
type Engine struct {
	mu    sync.RWMutex
	cts   map[Handle]ciphertext // cts maps issued handles to their plaintexts
	ready bool                  // ready is true once Init has run
}

// NewEngine returns an initialized Engine.
func NewEngine() *Engine {
	e := &Engine{}
	e.Init()

	return e
}

// Init prepares the engine for use. Calling it again is a no-op.
func (e *Engine) Init() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready {
		return
	}

	e.cts = make(map[Handle]ciphertext)
	e.ready = true
}

// Initialized reports whether Init has run.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.ready
}

// Encrypt produces a fresh TypeUint64 input ciphertext.
// Every call yields a new handle, even for equal values.
func (e *Engine) Encrypt(value uint64) (Handle, error) {
	return e.encryptInput(TypeUint64, uint256.NewInt(value))
}

// EncryptBool produces a fresh TypeBool input ciphertext.
func (e *Engine) EncryptBool(value bool) (Handle, error) {
	return e.encryptInput(TypeBool, boolWord(value))
}

// encryptInput stores value under a random-nonce handle.
func (e *Engine) encryptInput(t Type, value *uint256.Int) (Handle, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Handle{}, fmt.Errorf("draw input nonce:\n%w", err)
	}

	h := deriveHandle(opInput, t, nonce[:])

	return h, e.store(h, t, value)
}

// TypeOf returns the encrypted type of h.
func (e *Engine) TypeOf(h Handle) (Type, error) {
	ct, err := e.load(h)
	if err != nil {
		return 0, err
	}

	return ct.typ, nil
}

// TrivialEncrypt encrypts a public constant under a deterministic handle.
func (e *Engine) TrivialEncrypt(value uint64, t Type) (Handle, error) {
	var plain *uint256.Int

	switch t {
	case TypeUint64:
		plain = uint256.NewInt(value)
	case TypeBool:
		plain = boolWord(value != 0)
	default:
		return Handle{}, fmt.Errorf("trivial encrypt %s:\n%w", t, ErrTypeMismatch)
	}

	h := deriveHandle(opTrivial, t, scalarBytes(value))

	return h, e.store(h, t, plain)
}

// Add returns a + b, wrapping at 2^64.
func (e *Engine) Add(a, b Handle) (Handle, error) {
	x, y, err := e.loadPair(a, b, TypeUint64)
	if err != nil {
		return Handle{}, fmt.Errorf("add:\n%w", err)
	}

	var sum uint256.Int
	sum.Add(&x.value, &y.value)
	sum.And(&sum, uint64Mask)

	h := deriveHandle(opAdd, TypeUint64, a[:], b[:])

	return h, e.store(h, TypeUint64, &sum)
}

// Or returns a | b.
func (e *Engine) Or(a, b Handle) (Handle, error) {
	x, y, err := e.loadPair(a, b, TypeBool)
	if err != nil {
		return Handle{}, fmt.Errorf("or:\n%w", err)
	}

	var out uint256.Int
	out.Or(&x.value, &y.value)

	h := deriveHandle(opOr, TypeBool, a[:], b[:])

	return h, e.store(h, TypeBool, &out)
}

// DivScalar returns a / divisor, rounding down.
func (e *Engine) DivScalar(a Handle, divisor uint64) (Handle, error) {
	if divisor == 0 {
		return Handle{}, ErrDivisionByZero
	}

	x, err := e.loadTyped(a, TypeUint64)
	if err != nil {
		return Handle{}, fmt.Errorf("div:\n%w", err)
	}

	var quo uint256.Int
	quo.Div(&x.value, uint256.NewInt(divisor))

	h := deriveHandle(opDiv, TypeUint64, a[:], scalarBytes(divisor))

	return h, e.store(h, TypeUint64, &quo)
}

// GeScalar returns a >= bound as TypeBool.
func (e *Engine) GeScalar(a Handle, bound uint64) (Handle, error) {
	x, err := e.loadTyped(a, TypeUint64)
	if err != nil {
		return Handle{}, fmt.Errorf("ge:\n%w", err)
	}

	ge := !x.value.Lt(uint256.NewInt(bound))

	h := deriveHandle(opGe, TypeBool, a[:], scalarBytes(bound))

	return h, e.store(h, TypeBool, boolWord(ge))
}

// Decrypt returns the type and plaintext of h.
func (e *Engine) Decrypt(h Handle) (Type, *uint256.Int, error) {
	ct, err := e.load(h)
	if err != nil {
		return 0, nil, err
	}

	return ct.typ, ct.value.Clone(), nil
}

// store records a ciphertext. Re-storing a derived handle is harmless because
// equal handles always carry equal plaintexts.
func (e *Engine) store(h Handle, t Type, value *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return ErrUninitialized
	}

	e.cts[h] = ciphertext{typ: t, value: *value}

	return nil
}

// load returns the ciphertext for h.
func (e *Engine) load(h Handle) (ciphertext, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.ready {
		return ciphertext{}, ErrUninitialized
	}

	ct, ok := e.cts[h]
	if !ok {
		return ciphertext{}, fmt.Errorf("handle %s:\n%w", h, ErrUnknownHandle)
	}

	return ct, nil
}

// loadTyped returns the ciphertext for h, checking its type.
func (e *Engine) loadTyped(h Handle, t Type) (ciphertext, error) {
	ct, err := e.load(h)
	if err != nil {
		return ciphertext{}, err
	}

	if ct.typ != t {
		return ciphertext{}, fmt.Errorf("handle %s is %s, want %s:\n%w", h, ct.typ, t, ErrTypeMismatch)
	}

	return ct, nil
}

// loadPair loads two operands of the same type.
func (e *Engine) loadPair(a, b Handle, t Type) (ciphertext, ciphertext, error) {
	x, err := e.loadTyped(a, t)
	if err != nil {
		return ciphertext{}, ciphertext{}, err
	}

	y, err := e.loadTyped(b, t)
	if err != nil {
		return ciphertext{}, ciphertext{}, err
	}

	return x, y, nil
}

// uint64Mask truncates results to 64 bits.
var uint64Mask = new(uint256.Int).SetUint64(^uint64(0))

// deriveHandle computes BLAKE3(domain || op || type || parts...).
func deriveHandle(op byte, t Type, parts ...[]byte) Handle {
	h := blake3.New()
	h.Write(handleDomain)
	h.Write([]byte{op, byte(t)})

	for _, p := range parts {
		h.Write(p)
	}

	var out Handle
	h.Sum(out[:0])

	return out
}

// scalarBytes encodes a public operand for handle derivation.
func scalarBytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)

	return buf[:]
}

// boolWord returns 1 for true and 0 for false.
func boolWord(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}

	return uint256.NewInt(0)
}
