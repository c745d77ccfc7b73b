// Package tally assembles the coordinator: one Contract owns the access
// registry, both rate limiters, the ledger and the reveal state machine, and
// serializes every call behind a single mutex.
package tally

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"BlindTally/internal/access"
	"BlindTally/internal/aggregate"
	"BlindTally/internal/events"
	"BlindTally/internal/fhe"
	"BlindTally/internal/ledger"
	"BlindTally/internal/logger"
	"BlindTally/internal/ratelimit"
	"BlindTally/internal/reveal"
)

// Config holds the deployment parameters.
type Config struct {
	Owner           common.Address // Owner administers the contract and is its first provider
	Identity        common.Address // Identity scopes state commitments to this deployment
	CooldownSeconds uint64         // CooldownSeconds is shared by both rate limiters
	Threshold       uint64         // Threshold is the average at which ThresholdExceeded sets; 0 means 100
}

// Deps are the collaborators a Contract runs against.
type Deps struct {
	FHE           fhe.Capability       // FHE validates and folds ciphertexts
	Oracle        reveal.Oracle        // Oracle decrypts asynchronously
	Verifier      reveal.ProofVerifier // Verifier authenticates callbacks
	Contributions ledger.Store         // Contributions defaults to an in-memory store
	Contexts      reveal.ContextStore  // Contexts defaults to an in-memory store
	Sink          events.Sink          // Sink receives every event; nil discards
	Clock         func() uint64        // Clock returns unix seconds; nil uses the wall clock
}

// Contract is the coordinator aggregate. It is safe for concurrent use.
type Contract struct {
	mu          sync.Mutex
	cfg         Config
	registry    *access.Registry    // registry holds owner, providers, pause and cooldown
	submissions *ratelimit.Tracker  // submissions throttles Submit per provider
	decryptions *ratelimit.Tracker  // decryptions throttles RequestReveal per requester
	ledger      *ledger.Ledger      // ledger holds contributions and the batch
	folder      *aggregate.Engine   // folder derives revealable handles
	reveal      *reveal.Coordinator // reveal runs the request/callback protocol
	clock       func() uint64
	log         *slog.Logger
}

// New creates a contract. The owner starts as the only provider, no batch is open.
func New(cfg Config, deps Deps) (*Contract, error) {
	if cfg.Owner == (common.Address{}) {
		return nil, fmt.Errorf("owner:\n%w", access.ErrZeroAddress)
	}

	if deps.Oracle == nil || deps.Verifier == nil {
		return nil, fmt.Errorf("oracle and verifier are required")
	}

	if deps.Contributions == nil {
		deps.Contributions = ledger.NewMemoryStore()
	}

	if deps.Contexts == nil {
		deps.Contexts = reveal.NewMemoryContextStore()
	}

	if deps.Sink == nil {
		deps.Sink = events.Discard
	}

	if deps.Clock == nil {
		deps.Clock = wallClock
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = aggregate.DefaultThreshold
	}

	c := &Contract{
		cfg:         cfg,
		registry:    access.NewRegistry(cfg.Owner, cfg.CooldownSeconds, deps.Sink),
		submissions: ratelimit.NewTracker("submission"),
		decryptions: ratelimit.NewTracker("decryption request"),
		folder:      aggregate.NewEngine(deps.FHE, cfg.Threshold),
		clock:       deps.Clock,
		log:         logger.Component("tally"),
	}

	l, err := ledger.New(c.registry, c.submissions, deps.FHE, deps.Contributions, deps.Sink)
	if err != nil {
		return nil, fmt.Errorf("open ledger:\n%w", err)
	}
	c.ledger = l

	c.reveal = reveal.New(reveal.Config{
		Identity: cfg.Identity,
		Ledger:   l,
		Folder:   c.folder,
		Registry: c.registry,
		Limiter:  c.decryptions,
		Oracle:   deps.Oracle,
		Verifier: deps.Verifier,
		Contexts: deps.Contexts,
		Sink:     deps.Sink,
	})

	c.log.Info("contract created",
		"owner", cfg.Owner.Hex(),
		"identity", cfg.Identity.Hex(),
		"cooldown", cfg.CooldownSeconds,
		"threshold", cfg.Threshold,
		"contributions", l.DataCount(),
	)

	return c, nil
}

// wallClock returns the current unix time in seconds.
func wallClock() uint64 {
	return uint64(time.Now().Unix())
}

// TransferOwnership hands administration to newOwner.
func (c *Contract) TransferOwnership(caller, newOwner common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.TransferOwnership(caller, newOwner)
}

// AddProvider grants submission rights to addr.
func (c *Contract) AddProvider(caller, addr common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.AddProvider(caller, addr)
}

// RemoveProvider revokes submission rights from addr.
func (c *Contract) RemoveProvider(caller, addr common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.RemoveProvider(caller, addr)
}

// SetCooldown changes the shared cooldown.
func (c *Contract) SetCooldown(caller common.Address, seconds uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.SetCooldown(caller, seconds)
}

// Pause suspends admission.
func (c *Contract) Pause(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.Pause(caller)
}

// Unpause resumes admission.
func (c *Contract) Unpause(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.Unpause(caller)
}

// OpenBatch opens a new batch.
func (c *Contract) OpenBatch(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ledger.OpenBatch(caller)
}

// CloseBatch closes the current batch.
func (c *Contract) CloseBatch(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ledger.CloseBatch(caller)
}

// Submit admits an encrypted (value, flag) pair and returns its id.
func (c *Contract) Submit(caller common.Address, value, flag fhe.Handle) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ledger.Submit(caller, value, flag, c.clock())
}

// RequestReveal asks the oracle to decrypt the statistics of the closed batch.
func (c *Contract) RequestReveal(requester common.Address) (reveal.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reveal.RequestReveal(requester, c.clock())
}

// HandleCallback finalizes a reveal with the oracle's answer.
func (c *Contract) HandleCallback(requestID uint64, cleartext, proof []byte) (reveal.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reveal.HandleCallback(requestID, cleartext, proof)
}

// Callback is HandleCallback shaped as an oracle receiver.
func (c *Contract) Callback(requestID uint64, cleartext, proof []byte) error {
	_, err := c.HandleCallback(requestID, cleartext, proof)
	return err
}
