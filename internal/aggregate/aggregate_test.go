package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"BlindTally/internal/fhe"
	"BlindTally/internal/ledger"
)

// sliceSource serves contributions from a slice.
type sliceSource []ledger.Contribution

func (s sliceSource) DataCount() uint64 { return uint64(len(s)) }

func (s sliceSource) Range(fn func(ledger.Contribution) error) error {
	for _, c := range s {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func buildSource(t *testing.T, e *fhe.Engine, values []uint64, flags []bool) sliceSource {
	t.Helper()

	var src sliceSource
	for i := range values {
		v, err := e.Encrypt(values[i])
		require.NoError(t, err)
		f, err := e.EncryptBool(flags[i])
		require.NoError(t, err)

		src = append(src, ledger.Contribution{ID: uint64(i + 1), Value: v, Flag: f})
	}

	return src
}

func open(t *testing.T, e *fhe.Engine, h fhe.Handle) uint64 {
	t.Helper()

	_, v, err := e.Decrypt(h)
	require.NoError(t, err)

	return v.Uint64()
}

func TestFoldReference(t *testing.T) {
	e := fhe.NewEngine()
	src := buildSource(t, e, []uint64{10, 20, 30}, []bool{false, false, true})

	res, err := NewEngine(e, 0).Fold(src)
	require.NoError(t, err)

	require.Equal(t, uint64(3), res.Count)
	require.Equal(t, uint64(60), open(t, e, res.Sum))
	require.Equal(t, uint64(20), open(t, e, res.Average))
	require.Equal(t, uint64(1), open(t, e, res.AnyFlagSet))
	require.Equal(t, uint64(0), open(t, e, res.ThresholdExceeded))

	require.Equal(t, []fhe.Handle{res.Average, res.AnyFlagSet, res.ThresholdExceeded}, res.Outputs())
	require.Len(t, res.Outputs(), OutputCount)
}

func TestFoldThresholdBoundary(t *testing.T) {
	e := fhe.NewEngine()
	src := buildSource(t, e, []uint64{100, 100}, []bool{false, false})

	res, err := NewEngine(e, DefaultThreshold).Fold(src)
	require.NoError(t, err)
	require.Equal(t, uint64(1), open(t, e, res.ThresholdExceeded))
	require.Equal(t, uint64(0), open(t, e, res.AnyFlagSet))

	res, err = NewEngine(e, 101).Fold(src)
	require.NoError(t, err)
	require.Equal(t, uint64(0), open(t, e, res.ThresholdExceeded))
}

func TestFoldIsDeterministic(t *testing.T) {
	e := fhe.NewEngine()
	src := buildSource(t, e, []uint64{5, 6, 7}, []bool{true, false, false})
	eng := NewEngine(e, 0)

	first, err := eng.Fold(src)
	require.NoError(t, err)
	second, err := eng.Fold(src)
	require.NoError(t, err)
	require.Equal(t, first, second)

	longer := append(src, buildSource(t, e, []uint64{1}, []bool{false})[0])
	longer[3].ID = 4

	third, err := eng.Fold(longer)
	require.NoError(t, err)
	require.NotEqual(t, first.Average, third.Average)
}

func TestFoldEmpty(t *testing.T) {
	_, err := NewEngine(fhe.NewEngine(), 0).Fold(sliceSource{})
	require.ErrorIs(t, err, ErrEmpty)
}

func TestFoldRejectsGaps(t *testing.T) {
	e := fhe.NewEngine()
	src := buildSource(t, e, []uint64{1, 2}, []bool{false, false})
	src[1].ID = 3

	_, err := NewEngine(e, 0).Fold(src)
	require.ErrorIs(t, err, ErrNonContiguous)
}
