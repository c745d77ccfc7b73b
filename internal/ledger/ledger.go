// Package ledger holds the append-only sequence of encrypted contributions and
// the batch lifecycle that gates admission.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"BlindTally/internal/access"
	"BlindTally/internal/events"
	"BlindTally/internal/fhe"
	"BlindTally/internal/logger"
	"BlindTally/internal/ratelimit"
)

var (
	// ErrBatchClosed is returned by Submit when no batch is open.
	ErrBatchClosed = errors.New("batch closed")

	// ErrBatchAlreadyClosed is returned by CloseBatch when no batch is open.
	ErrBatchAlreadyClosed = errors.New("batch already closed")

	// ErrAlreadyCommitted is returned when a handle was stored before.
	ErrAlreadyCommitted = errors.New("ciphertext already committed")

	// ErrSubsystemUninitialized is returned when the FHE subsystem is not ready.
	ErrSubsystemUninitialized = errors.New("fhe subsystem uninitialized")
)

// Ledger admits contributions into the current batch. It is not safe for
// concurrent use; the owning coordinator serializes every call.
type Ledger struct {
	registry  *access.Registry    // registry decides who may act
	limiter   *ratelimit.Tracker  // limiter throttles submissions per provider
	fhe       fhe.Capability      // fhe validates submitted handles
	store     Store               // store holds the contribution sequence
	sink      events.Sink         // sink receives lifecycle notifications
	batch     Batch               // batch is the current batch
	committed map[fhe.Handle]bool // committed holds every stored handle
	log       *slog.Logger
}

// New creates a ledger over store, rebuilding the committed-handle set from
// any contributions already in it. The initial batch is {ID: 0, Open: false}.
func New(registry *access.Registry, limiter *ratelimit.Tracker, capability fhe.Capability, store Store, sink events.Sink) (*Ledger, error) {
	if sink == nil {
		sink = events.Discard
	}

	l := &Ledger{
		registry:  registry,
		limiter:   limiter,
		fhe:       capability,
		store:     store,
		sink:      sink,
		committed: make(map[fhe.Handle]bool),
		log:       logger.Component("ledger"),
	}

	err := store.Range(1, store.Count(), func(c Contribution) error {
		l.committed[c.Value] = true
		l.committed[c.Flag] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index committed handles:\n%w", err)
	}

	return l, nil
}

// Batch returns the current batch.
func (l *Ledger) Batch() Batch { return l.batch }

// DataCount returns the number of contributions across all batches.
func (l *Ledger) DataCount() uint64 { return l.store.Count() }

// Get returns contribution id.
func (l *Ledger) Get(id uint64) (Contribution, error) { return l.store.Get(id) }

// Range calls fn for every contribution in ascending id order.
func (l *Ledger) Range(fn func(Contribution) error) error {
	return l.store.Range(1, l.store.Count(), fn)
}

// Committed reports whether h belongs to a stored contribution.
func (l *Ledger) Committed(h fhe.Handle) bool { return l.committed[h] }

// OpenBatch bumps the batch id and opens it. Opening while a batch is already
// open still bumps the id; earlier contributions keep their batch id.
func (l *Ledger) OpenBatch(caller common.Address) error {
	if err := l.registry.RequireOwner(caller); err != nil {
		return err
	}

	if err := l.registry.RequireNotPaused(); err != nil {
		return err
	}

	if l.batch.Open {
		l.log.Warn("opening batch over an open one", "previous", l.batch.ID)
	}

	l.batch = Batch{ID: l.batch.ID + 1, Open: true}

	l.log.Info("batch opened", "batch", l.batch.ID)
	l.sink.Emit(events.BatchOpened{BatchID: l.batch.ID})

	return nil
}

// CloseBatch stops admission into the current batch.
func (l *Ledger) CloseBatch(caller common.Address) error {
	if err := l.registry.RequireOwner(caller); err != nil {
		return err
	}

	if err := l.registry.RequireNotPaused(); err != nil {
		return err
	}

	if !l.batch.Open {
		return fmt.Errorf("batch %d:\n%w", l.batch.ID, ErrBatchAlreadyClosed)
	}

	l.batch.Open = false

	l.log.Info("batch closed", "batch", l.batch.ID, "contributions", l.store.Count())
	l.sink.Emit(events.BatchClosed{BatchID: l.batch.ID})

	return nil
}

// Submit admits (value, flag) from caller at time now and returns its id.
// All checks run before any state changes.
func (l *Ledger) Submit(caller common.Address, value, flag fhe.Handle, now uint64) (uint64, error) {
	if err := l.admit(caller, value, flag, now); err != nil {
		l.log.Debug("submission rejected", "provider", caller.Hex(), "error", err)
		return 0, err
	}

	c := Contribution{
		ID:       l.store.Count() + 1,
		BatchID:  l.batch.ID,
		Provider: caller,
		Value:    value,
		Flag:     flag,
	}

	if err := l.store.Append(c); err != nil {
		return 0, fmt.Errorf("store contribution:\n%w", err)
	}

	l.committed[value] = true
	l.committed[flag] = true
	l.limiter.Touch(caller, now)

	l.log.Debug("contribution admitted", "provider", caller.Hex(), "batch", c.BatchID, "id", c.ID)
	l.sink.Emit(events.DataSubmitted{Provider: caller, BatchID: c.BatchID, ContributionID: c.ID})

	return c.ID, nil
}

// admit runs every Submit check in order without mutating anything.
func (l *Ledger) admit(caller common.Address, value, flag fhe.Handle, now uint64) error {
	if err := l.registry.RequireProvider(caller); err != nil {
		return err
	}

	if err := l.registry.RequireNotPaused(); err != nil {
		return err
	}

	if err := l.limiter.Check(caller, l.registry.Cooldown(), now); err != nil {
		return err
	}

	if !l.batch.Open {
		return fmt.Errorf("batch %d:\n%w", l.batch.ID, ErrBatchClosed)
	}

	if l.fhe == nil || !l.fhe.Initialized() {
		return ErrSubsystemUninitialized
	}

	if err := l.checkFresh(value, fhe.TypeUint64); err != nil {
		return fmt.Errorf("value:\n%w", err)
	}

	if err := l.checkFresh(flag, fhe.TypeBool); err != nil {
		return fmt.Errorf("flag:\n%w", err)
	}

	if value == flag {
		return fmt.Errorf("value and flag share handle %s:\n%w", value, ErrAlreadyCommitted)
	}

	return nil
}

// checkFresh verifies h is a live ciphertext of type want that was never stored.
func (l *Ledger) checkFresh(h fhe.Handle, want fhe.Type) error {
	if h.IsZero() {
		return fhe.ErrUnknownHandle
	}

	if l.committed[h] {
		return fmt.Errorf("handle %s:\n%w", h, ErrAlreadyCommitted)
	}

	typ, err := l.fhe.TypeOf(h)
	if err != nil {
		return err
	}

	if typ != want {
		return fmt.Errorf("handle %s is %s, want %s:\n%w", h, typ, want, fhe.ErrTypeMismatch)
	}

	return nil
}

// Restore sets the current batch, used when loading a snapshot.
func (l *Ledger) Restore(b Batch) {
	l.batch = b
}
