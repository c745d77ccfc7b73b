package tally

import (
	"github.com/ethereum/go-ethereum/common"

	"BlindTally/internal/ledger"
	"BlindTally/internal/reveal"
)

// Owner returns the current owner.
func (c *Contract) Owner() common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.Owner()
}

// Identity returns the deployment identity.
func (c *Contract) Identity() common.Address {
	return c.cfg.Identity
}

// Threshold returns the reveal threshold.
func (c *Contract) Threshold() uint64 {
	return c.cfg.Threshold
}

// IsProvider reports whether addr may submit.
func (c *Contract) IsProvider(addr common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.IsProvider(addr)
}

// Providers returns the provider set sorted by address.
func (c *Contract) Providers() []common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.Providers()
}

// Paused reports whether admission is suspended.
func (c *Contract) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.Paused()
}

// Cooldown returns the shared cooldown in seconds.
func (c *Contract) Cooldown() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.registry.Cooldown()
}

// CurrentBatch returns the current batch.
func (c *Contract) CurrentBatch() ledger.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ledger.Batch()
}

// DataCount returns the number of contributions across all batches.
func (c *Contract) DataCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ledger.DataCount()
}

// Contribution returns contribution id.
func (c *Contract) Contribution(id uint64) (ledger.Contribution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ledger.Get(id)
}

// DecryptionContext returns the stored context for requestID.
func (c *Contract) DecryptionContext(requestID uint64) (reveal.Context, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reveal.Context(requestID)
}

// Result returns the finalized outcome of requestID. The bool is false while
// the request is unknown or still awaiting a valid callback.
func (c *Contract) Result(requestID uint64) (reveal.Outcome, bool, error) {
	ctx, ok, err := c.DecryptionContext(requestID)
	if err != nil || !ok || !ctx.Processed {
		return reveal.Outcome{}, false, err
	}

	return ctx.Outcome, true, nil
}

// LastSubmission returns actor's last admitted submission time.
func (c *Contract) LastSubmission(actor common.Address) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.submissions.Last(actor)
}

// LastDecryptionRequest returns actor's last accepted reveal request time.
func (c *Contract) LastDecryptionRequest(actor common.Address) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.decryptions.Last(actor)
}
