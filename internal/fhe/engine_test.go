package fhe

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// decryptUint64 opens h and checks it is a TypeUint64.
func decryptUint64(t *testing.T, e *Engine, h Handle) uint64 {
	t.Helper()

	typ, v, err := e.Decrypt(h)
	require.NoError(t, err)
	require.Equal(t, TypeUint64, typ)

	return v.Uint64()
}

func TestEncryptIssuesFreshHandles(t *testing.T) {
	e := NewEngine()

	a, err := e.Encrypt(5)
	require.NoError(t, err)
	b, err := e.Encrypt(5)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.Equal(t, uint64(5), decryptUint64(t, e, a))
}

func TestArithmetic(t *testing.T) {
	e := NewEngine()

	a, _ := e.Encrypt(250)
	b, _ := e.Encrypt(50)

	sum, err := e.Add(a, b)
	require.NoError(t, err)
	require.Equal(t, uint64(300), decryptUint64(t, e, sum))

	avg, err := e.DivScalar(sum, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(100), decryptUint64(t, e, avg))

	ge, err := e.GeScalar(avg, 100)
	require.NoError(t, err)
	typ, v, err := e.Decrypt(ge)
	require.NoError(t, err)
	require.Equal(t, TypeBool, typ)
	require.Equal(t, uint64(1), v.Uint64())

	lt, err := e.GeScalar(avg, 101)
	require.NoError(t, err)
	_, v, _ = e.Decrypt(lt)
	require.True(t, v.IsZero())
}

func TestAddWrapsAt64Bits(t *testing.T) {
	e := NewEngine()

	a, _ := e.Encrypt(^uint64(0))
	b, _ := e.Encrypt(2)

	sum, err := e.Add(a, b)
	require.NoError(t, err)
	require.Equal(t, uint64(1), decryptUint64(t, e, sum))
}

func TestOrOnBooleans(t *testing.T) {
	e := NewEngine()

	f, _ := e.EncryptBool(false)
	tr, _ := e.EncryptBool(true)

	out, err := e.Or(f, tr)
	require.NoError(t, err)
	_, v, _ := e.Decrypt(out)
	require.Equal(t, uint64(1), v.Uint64())
}

func TestDerivedHandlesAreDeterministic(t *testing.T) {
	e := NewEngine()

	a, _ := e.Encrypt(1)
	b, _ := e.Encrypt(2)

	s1, _ := e.Add(a, b)
	s2, _ := e.Add(a, b)
	require.Equal(t, s1, s2)

	z1, _ := e.TrivialEncrypt(0, TypeUint64)
	z2, _ := e.TrivialEncrypt(0, TypeUint64)
	require.Equal(t, z1, z2)

	zb, _ := e.TrivialEncrypt(0, TypeBool)
	require.NotEqual(t, z1, zb)

	s3, _ := e.Add(b, a)
	require.NotEqual(t, s1, s3)
}

func TestTypeAndHandleErrors(t *testing.T) {
	e := NewEngine()

	n, _ := e.Encrypt(1)
	f, _ := e.EncryptBool(true)

	_, err := e.Add(n, f)
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = e.Or(n, f)
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = e.Add(n, Handle{0xFF})
	require.ErrorIs(t, err, ErrUnknownHandle)

	_, err = e.DivScalar(n, 0)
	require.ErrorIs(t, err, ErrDivisionByZero)

	typ, err := e.TypeOf(f)
	require.NoError(t, err)
	require.Equal(t, TypeBool, typ)
}

func TestUninitializedEngineRejectsEverything(t *testing.T) {
	var e Engine

	require.False(t, e.Initialized())

	_, err := e.Encrypt(1)
	require.ErrorIs(t, err, ErrUninitialized)

	_, err = e.TypeOf(Handle{})
	require.ErrorIs(t, err, ErrUninitialized)

	e.Init()
	require.True(t, e.Initialized())
}

func TestPackAndUnpackWords(t *testing.T) {
	data := PackWords(uint256.NewInt(20), uint256.NewInt(1), uint256.NewInt(0))
	require.Len(t, data, 3*WordSize)
	require.Equal(t, byte(20), data[WordSize-1])

	words, err := UnpackWords(data, 3)
	require.NoError(t, err)

	avg, err := WordToUint64(words[0])
	require.NoError(t, err)
	require.Equal(t, uint64(20), avg)

	flag, err := WordToBool(words[1])
	require.NoError(t, err)
	require.True(t, flag)

	_, err = UnpackWords(data[:40], 3)
	require.ErrorIs(t, err, ErrMalformedCleartext)

	_, err = WordToBool(uint256.NewInt(2))
	require.ErrorIs(t, err, ErrMalformedCleartext)

	_, err = WordToUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 64))
	require.ErrorIs(t, err, ErrMalformedCleartext)
}
