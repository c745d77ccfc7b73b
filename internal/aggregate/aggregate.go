// Package aggregate folds the contribution sequence into the small set of
// encrypted statistics that may be revealed.
package aggregate

import (
	"errors"
	"fmt"

	"BlindTally/internal/fhe"
	"BlindTally/internal/ledger"
)

// DefaultThreshold is the average at or above which ThresholdExceeded is set.
const DefaultThreshold = 100

var (
	// ErrEmpty is returned when there is nothing to fold.
	ErrEmpty = errors.New("no contributions to fold")

	// ErrNonContiguous is returned when the source skips or repeats an id.
	ErrNonContiguous = errors.New("contribution ids are not contiguous")
)

// Source is the read side of the ledger.
type Source interface {
	DataCount() uint64
	Range(fn func(ledger.Contribution) error) error
}

// Result holds the derived ciphertexts of one fold.
type Result struct {
	Sum               fhe.Handle // Sum is the encrypted total of all values
	Count             uint64     // Count is the public number of contributions
	Average           fhe.Handle // Average is Sum / Count, rounded down
	AnyFlagSet        fhe.Handle // AnyFlagSet is the OR of all flags
	ThresholdExceeded fhe.Handle // ThresholdExceeded is Average >= threshold
}

// Outputs returns the revealable handles in packing order:
// average, any-flag-set, threshold-exceeded.
func (r Result) Outputs() []fhe.Handle {
	return []fhe.Handle{r.Average, r.AnyFlagSet, r.ThresholdExceeded}
}

// OutputCount is len(Result.Outputs()).
const OutputCount = 3

// Engine folds contributions with an FHE capability.
type Engine struct {
	fhe       fhe.Capability // fhe performs the homomorphic operations
	threshold uint64         // threshold is compared against the average
}

// NewEngine creates an engine. A zero threshold selects DefaultThreshold.
func NewEngine(capability fhe.Capability, threshold uint64) *Engine {
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	return &Engine{fhe: capability, threshold: threshold}
}

// Threshold returns the configured threshold.
func (e *Engine) Threshold() uint64 { return e.threshold }

// Fold visits ids 1..DataCount in ascending order. Equal ledger states yield
// byte-identical handles because every derived handle is a pure function of
// its operation and operands. Fold never mutates the source.
func (e *Engine) Fold(src Source) (Result, error) {
	count := src.DataCount()
	if count == 0 {
		return Result{}, ErrEmpty
	}

	sum, err := e.fhe.TrivialEncrypt(0, fhe.TypeUint64)
	if err != nil {
		return Result{}, fmt.Errorf("seed sum:\n%w", err)
	}

	anyFlag, err := e.fhe.TrivialEncrypt(0, fhe.TypeBool)
	if err != nil {
		return Result{}, fmt.Errorf("seed flag:\n%w", err)
	}

	next := uint64(1)

	err = src.Range(func(c ledger.Contribution) error {
		if c.ID != next {
			return fmt.Errorf("got id %d, want %d:\n%w", c.ID, next, ErrNonContiguous)
		}

		if sum, err = e.fhe.Add(sum, c.Value); err != nil {
			return fmt.Errorf("add contribution %d:\n%w", c.ID, err)
		}

		if anyFlag, err = e.fhe.Or(anyFlag, c.Flag); err != nil {
			return fmt.Errorf("or contribution %d:\n%w", c.ID, err)
		}

		next++

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if next-1 != count {
		return Result{}, fmt.Errorf("folded %d of %d contributions:\n%w", next-1, count, ErrNonContiguous)
	}

	avg, err := e.fhe.DivScalar(sum, count)
	if err != nil {
		return Result{}, fmt.Errorf("average:\n%w", err)
	}

	exceeded, err := e.fhe.GeScalar(avg, e.threshold)
	if err != nil {
		return Result{}, fmt.Errorf("threshold:\n%w", err)
	}

	return Result{
		Sum:               sum,
		Count:             count,
		Average:           avg,
		AnyFlagSet:        anyFlag,
		ThresholdExceeded: exceeded,
	}, nil
}
