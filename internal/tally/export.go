package tally

import (
	"fmt"

	"BlindTally/internal/access"
	"BlindTally/internal/ledger"
	"BlindTally/internal/reveal"
	"BlindTally/internal/snapshot"
)

// Export captures the complete contract state.
func (c *Contract) Export() (snapshot.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg := c.registry.Export()

	s := snapshot.State{
		Owner:       reg.Owner,
		Identity:    c.cfg.Identity,
		Paused:      reg.Paused,
		Cooldown:    reg.Cooldown,
		Threshold:   c.cfg.Threshold,
		Batch:       c.ledger.Batch(),
		Providers:   reg.Providers,
		Submissions: c.submissions.Entries(),
		Decryptions: c.decryptions.Entries(),
	}

	err := c.ledger.Range(func(contribution ledger.Contribution) error {
		s.Contributions = append(s.Contributions, contribution)
		return nil
	})
	if err != nil {
		return snapshot.State{}, fmt.Errorf("export contributions:\n%w", err)
	}

	err = c.reveal.Contexts(func(ctx reveal.Context) error {
		s.Contexts = append(s.Contexts, ctx)
		return nil
	})
	if err != nil {
		return snapshot.State{}, fmt.Errorf("export contexts:\n%w", err)
	}

	return s, nil
}

// Restore rebuilds a contract from s. Contributions already present in
// deps.Contributions must equal the snapshot's prefix; they are kept and only
// the missing tail is appended, so a contract can resume over its own
// persistent stores. No events are emitted.
func Restore(s snapshot.State, deps Deps) (*Contract, error) {
	if deps.Contributions == nil {
		deps.Contributions = ledger.NewMemoryStore()
	}

	if deps.Contexts == nil {
		deps.Contexts = reveal.NewMemoryContextStore()
	}

	have, err := matchStore(deps.Contributions, s.Contributions)
	if err != nil {
		return nil, err
	}

	for _, contribution := range s.Contributions[have:] {
		if err := deps.Contributions.Append(contribution); err != nil {
			return nil, fmt.Errorf("restore contribution %d:\n%w", contribution.ID, err)
		}
	}

	for _, ctx := range s.Contexts {
		if err := deps.Contexts.Put(ctx); err != nil {
			return nil, fmt.Errorf("restore context %d:\n%w", ctx.RequestID, err)
		}
	}

	c, err := New(Config{
		Owner:           s.Owner,
		Identity:        s.Identity,
		CooldownSeconds: s.Cooldown,
		Threshold:       s.Threshold,
	}, deps)
	if err != nil {
		return nil, err
	}

	c.registry.Restore(access.State{
		Owner:     s.Owner,
		Providers: s.Providers,
		Paused:    s.Paused,
		Cooldown:  s.Cooldown,
	})
	c.ledger.Restore(s.Batch)
	c.submissions.Restore(s.Submissions)
	c.decryptions.Restore(s.Decryptions)

	c.log.Info("contract restored", "batch", s.Batch.ID, "contributions", len(s.Contributions), "contexts", len(s.Contexts))

	return c, nil
}

// matchStore checks that store is a prefix of want and returns its length.
func matchStore(store ledger.Store, want []ledger.Contribution) (uint64, error) {
	have := store.Count()
	if have > uint64(len(want)) {
		return 0, fmt.Errorf("store holds %d contributions, snapshot only %d:\n%w", have, len(want), ErrStoreDiverged)
	}

	for id := uint64(1); id <= have; id++ {
		got, err := store.Get(id)
		if err != nil {
			return 0, fmt.Errorf("read stored contribution %d:\n%w", id, err)
		}

		if got != want[id-1] {
			return 0, fmt.Errorf("contribution %d:\n%w", id, ErrStoreDiverged)
		}
	}

	return have, nil
}
