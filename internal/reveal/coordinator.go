package reveal

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"BlindTally/internal/access"
	"BlindTally/internal/aggregate"
	"BlindTally/internal/events"
	"BlindTally/internal/fhe"
	"BlindTally/internal/ledger"
	"BlindTally/internal/logger"
	"BlindTally/internal/ratelimit"
)

// Ledger is the view of the ledger the coordinator reads.
type Ledger interface {
	aggregate.Source
	Batch() ledger.Batch
}

// Config wires a Coordinator.
type Config struct {
	Identity common.Address     // Identity scopes commitments to this deployment
	Ledger   Ledger             // Ledger is folded at request and callback time
	Folder   *aggregate.Engine  // Folder derives the revealable handles
	Registry *access.Registry   // Registry supplies the cooldown
	Limiter  *ratelimit.Tracker // Limiter throttles decryption requests
	Oracle   Oracle             // Oracle decrypts asynchronously
	Verifier ProofVerifier      // Verifier authenticates callbacks
	Contexts ContextStore       // Contexts persists requests
	Sink     events.Sink        // Sink receives request and completion events
}

// Coordinator owns the request/callback state machine. It is not safe for
// concurrent use; the owning coordinator serializes every call.
type Coordinator struct {
	cfg Config
	log *slog.Logger
}

// New creates a coordinator. A nil Contexts uses an in-memory store.
func New(cfg Config) *Coordinator {
	if cfg.Contexts == nil {
		cfg.Contexts = NewMemoryContextStore()
	}

	if cfg.Sink == nil {
		cfg.Sink = events.Discard
	}

	return &Coordinator{cfg: cfg, log: logger.Component("reveal")}
}

// Identity returns the deployment identity mixed into commitments.
func (c *Coordinator) Identity() common.Address { return c.cfg.Identity }

// RequestReveal folds the closed batch, commits to the output handles and asks
// the oracle to decrypt them. It returns as soon as the request is queued.
func (c *Coordinator) RequestReveal(requester common.Address, now uint64) (Context, error) {
	if c.cfg.Ledger.DataCount() == 0 {
		return Context{}, ErrEmptyBatch
	}

	batch := c.cfg.Ledger.Batch()
	if batch.Open {
		return Context{}, fmt.Errorf("batch %d:\n%w", batch.ID, ErrBatchStillOpen)
	}

	if err := c.cfg.Limiter.Check(requester, c.cfg.Registry.Cooldown(), now); err != nil {
		return Context{}, err
	}

	res, err := c.cfg.Folder.Fold(c.cfg.Ledger)
	if err != nil {
		return Context{}, fmt.Errorf("fold:\n%w", err)
	}

	handles := res.Outputs()
	commitment := Commitment(handles, c.cfg.Identity)

	requestID, err := c.cfg.Oracle.RequestDecryption(handles, CallbackSelector)
	if err != nil {
		return Context{}, fmt.Errorf("request decryption:\n%w", err)
	}

	// A reused id would overwrite a finalized context and reopen its latch.
	// The oracle has already queued the job by now; its answer is routed to
	// the stored context and passes only that context's commitment and latch.
	_, exists, err := c.cfg.Contexts.Get(requestID)
	if err != nil {
		return Context{}, fmt.Errorf("lookup request %d:\n%w", requestID, err)
	}

	if exists {
		c.log.Warn("oracle reused request id", "request", requestID)
		return Context{}, fmt.Errorf("request %d:\n%w", requestID, ErrDuplicateRequest)
	}

	ctx := Context{
		RequestID:  requestID,
		BatchID:    batch.ID,
		Commitment: commitment,
		Handles:    handles,
	}

	if err := c.cfg.Contexts.Put(ctx); err != nil {
		return Context{}, fmt.Errorf("store request %d:\n%w", requestID, err)
	}

	c.cfg.Limiter.Touch(requester, now)

	c.log.Info("decryption requested", "request", requestID, "batch", batch.ID, "contributions", res.Count)
	c.cfg.Sink.Emit(events.DecryptionRequested{RequestID: requestID, BatchID: batch.ID, Commitment: commitment})

	return ctx, nil
}

// HandleCallback finalizes requestID with the oracle's cleartext. Any caller
// may invoke it; every check runs before the context changes, so a rejected
// callback leaves no trace and a later valid one can still succeed.
func (c *Coordinator) HandleCallback(requestID uint64, cleartext, proof []byte) (Outcome, error) {
	ctx, ok, err := c.cfg.Contexts.Get(requestID)
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup request %d:\n%w", requestID, err)
	}

	if !ok {
		return Outcome{}, fmt.Errorf("request %d:\n%w", requestID, ErrUnknownRequest)
	}

	if ctx.Processed {
		c.log.Warn("callback replayed", "request", requestID)
		return Outcome{}, fmt.Errorf("request %d:\n%w", requestID, ErrReplayAttempt)
	}

	if err := c.checkState(ctx); err != nil {
		c.log.Warn("callback against drifted state", "request", requestID, "error", err)
		return Outcome{}, err
	}

	if err := c.cfg.Verifier.VerifyProof(requestID, cleartext, proof); err != nil {
		c.log.Warn("callback proof rejected", "request", requestID, "error", err)
		return Outcome{}, fmt.Errorf("request %d:\n%w\n%w", requestID, ErrInvalidProof, err)
	}

	outcome, err := decodeOutcome(cleartext)
	if err != nil {
		c.log.Error("verified cleartext does not decode", "request", requestID, "error", err)
		return Outcome{}, fmt.Errorf("request %d:\n%w", requestID, err)
	}

	ctx.Processed = true
	ctx.Outcome = outcome

	if err := c.cfg.Contexts.Put(ctx); err != nil {
		return Outcome{}, fmt.Errorf("finalize request %d:\n%w", requestID, err)
	}

	c.log.Info("decryption completed", "request", requestID, "batch", ctx.BatchID, "average", outcome.Average)
	c.cfg.Sink.Emit(events.DecryptionCompleted{
		RequestID:         requestID,
		BatchID:           ctx.BatchID,
		Average:           outcome.Average,
		AnyFlagSet:        outcome.AnyFlagSet,
		ThresholdExceeded: outcome.ThresholdExceeded,
	})

	return outcome, nil
}

// checkState re-folds the live ledger and compares it with what was requested.
func (c *Coordinator) checkState(ctx Context) error {
	if batch := c.cfg.Ledger.Batch(); batch.ID != ctx.BatchID {
		return fmt.Errorf("request %d: batch moved from %d to %d:\n%w", ctx.RequestID, ctx.BatchID, batch.ID, ErrStateMismatch)
	}

	res, err := c.cfg.Folder.Fold(c.cfg.Ledger)
	if err != nil {
		return fmt.Errorf("request %d: refold:\n%w\n%w", ctx.RequestID, ErrStateMismatch, err)
	}

	if Commitment(res.Outputs(), c.cfg.Identity) != ctx.Commitment {
		return fmt.Errorf("request %d: commitment changed:\n%w", ctx.RequestID, ErrStateMismatch)
	}

	return nil
}

// decodeOutcome reads the three words in packing order.
func decodeOutcome(cleartext []byte) (Outcome, error) {
	words, err := fhe.UnpackWords(cleartext, aggregate.OutputCount)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w\n%w", ErrMalformedCleartext, err)
	}

	var out Outcome

	if out.Average, err = fhe.WordToUint64(words[0]); err != nil {
		return Outcome{}, fmt.Errorf("average:\n%w\n%w", ErrMalformedCleartext, err)
	}

	if out.AnyFlagSet, err = fhe.WordToBool(words[1]); err != nil {
		return Outcome{}, fmt.Errorf("any flag:\n%w\n%w", ErrMalformedCleartext, err)
	}

	if out.ThresholdExceeded, err = fhe.WordToBool(words[2]); err != nil {
		return Outcome{}, fmt.Errorf("threshold:\n%w\n%w", ErrMalformedCleartext, err)
	}

	return out, nil
}

// Context returns the stored context for requestID.
func (c *Coordinator) Context(requestID uint64) (Context, bool, error) {
	return c.cfg.Contexts.Get(requestID)
}

// Contexts calls fn for every stored context.
func (c *Coordinator) Contexts(fn func(Context) error) error {
	return c.cfg.Contexts.Range(fn)
}
