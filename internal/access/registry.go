// Package access tracks who may administer and feed the coordinator: the
// owner, the provider set, the pause flag and the shared cooldown parameter.
package access

import (
	"bytes"
	"errors"
	"log/slog"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"BlindTally/internal/events"
	"BlindTally/internal/logger"
)

var (
	// ErrNotOwner is returned when a non-owner calls an owner-only operation.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrNotProvider is returned when a non-provider tries to submit.
	ErrNotProvider = errors.New("caller is not a provider")

	// ErrPaused is returned when admission is suspended, or by Pause when it already is.
	ErrPaused = errors.New("contract is paused")

	// ErrZeroAddress is returned when ownership would be handed to the zero address.
	ErrZeroAddress = errors.New("zero address")
)

// Registry is the admission-control state. It is not safe for concurrent use;
// the owning coordinator serializes every call.
type Registry struct {
	owner     common.Address          // owner administers the registry
	providers map[common.Address]bool // providers may submit contributions
	paused    bool                    // paused suspends admission
	cooldown  uint64                  // cooldown in seconds, shared by both rate limiters
	sink      events.Sink             // sink receives a notification per effective mutation
	log       *slog.Logger
}

// State is the exportable form of a Registry.
type State struct {
	Owner     common.Address
	Providers []common.Address // Providers is sorted ascending
	Paused    bool
	Cooldown  uint64
}

// NewRegistry creates a registry whose owner is also its first provider.
func NewRegistry(owner common.Address, cooldown uint64, sink events.Sink) *Registry {
	if sink == nil {
		sink = events.Discard
	}

	return &Registry{
		owner:     owner,
		providers: map[common.Address]bool{owner: true},
		cooldown:  cooldown,
		sink:      sink,
		log:       logger.Component("access"),
	}
}

// Owner returns the current owner.
func (r *Registry) Owner() common.Address { return r.owner }

// IsOwner reports whether addr is the owner.
func (r *Registry) IsOwner(addr common.Address) bool { return addr == r.owner }

// IsProvider reports whether addr may submit.
func (r *Registry) IsProvider(addr common.Address) bool { return r.providers[addr] }

// Paused reports whether admission is suspended.
func (r *Registry) Paused() bool { return r.paused }

// Cooldown returns the cooldown in seconds.
func (r *Registry) Cooldown() uint64 { return r.cooldown }

// Providers returns the provider set sorted by address.
func (r *Registry) Providers() []common.Address {
	out := make([]common.Address, 0, len(r.providers))
	for addr := range r.providers {
		out = append(out, addr)
	}

	sortAddresses(out)

	return out
}

// RequireOwner fails with ErrNotOwner unless caller is the owner.
func (r *Registry) RequireOwner(caller common.Address) error {
	if caller != r.owner {
		return ErrNotOwner
	}

	return nil
}

// RequireProvider fails with ErrNotProvider unless caller is a provider.
func (r *Registry) RequireProvider(caller common.Address) error {
	if !r.providers[caller] {
		return ErrNotProvider
	}

	return nil
}

// RequireNotPaused fails with ErrPaused while admission is suspended.
func (r *Registry) RequireNotPaused() error {
	if r.paused {
		return ErrPaused
	}

	return nil
}

// TransferOwnership hands the registry to newOwner. The new owner does not
// become a provider automatically. Transferring to the current owner is a no-op.
func (r *Registry) TransferOwnership(caller, newOwner common.Address) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}

	if newOwner == (common.Address{}) {
		return ErrZeroAddress
	}

	if newOwner == r.owner {
		return nil
	}

	previous := r.owner
	r.owner = newOwner

	r.log.Info("ownership transferred", "previous", previous.Hex(), "current", newOwner.Hex())
	r.sink.Emit(events.OwnershipTransferred{Previous: previous, Current: newOwner})

	return nil
}

// AddProvider grants submission rights. Re-adding is a silent no-op.
func (r *Registry) AddProvider(caller, addr common.Address) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}

	if r.providers[addr] {
		return nil
	}

	r.providers[addr] = true
	r.sink.Emit(events.ProviderAdded{Provider: addr})

	return nil
}

// RemoveProvider revokes submission rights. Removing a non-provider is a silent no-op.
func (r *Registry) RemoveProvider(caller, addr common.Address) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}

	if !r.providers[addr] {
		return nil
	}

	delete(r.providers, addr)
	r.sink.Emit(events.ProviderRemoved{Provider: addr})

	return nil
}

// SetCooldown replaces the shared cooldown.
func (r *Registry) SetCooldown(caller common.Address, seconds uint64) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}

	previous := r.cooldown
	r.cooldown = seconds
	r.sink.Emit(events.CooldownSet{Previous: previous, Current: seconds})

	return nil
}

// Pause suspends admission. Pausing twice fails with ErrPaused.
func (r *Registry) Pause(caller common.Address) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}

	if r.paused {
		return ErrPaused
	}

	r.paused = true

	r.log.Info("contract paused", "by", caller.Hex())
	r.sink.Emit(events.ContractPaused{By: caller})

	return nil
}

// Unpause resumes admission. Unpausing a running registry is a no-op.
func (r *Registry) Unpause(caller common.Address) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}

	if !r.paused {
		return nil
	}

	r.paused = false

	r.log.Info("contract unpaused", "by", caller.Hex())
	r.sink.Emit(events.ContractUnpaused{By: caller})

	return nil
}

// Export returns a copy of the registry state.
func (r *Registry) Export() State {
	return State{
		Owner:     r.owner,
		Providers: r.Providers(),
		Paused:    r.paused,
		Cooldown:  r.cooldown,
	}
}

// Restore replaces the registry state without emitting events.
func (r *Registry) Restore(s State) {
	r.owner = s.Owner
	r.paused = s.Paused
	r.cooldown = s.Cooldown

	r.providers = make(map[common.Address]bool, len(s.Providers))
	for _, addr := range s.Providers {
		r.providers[addr] = true
	}
}

// sortAddresses sorts addrs ascending by bytes.
func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}
