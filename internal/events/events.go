// Package events defines the notifications the coordinator emits for external
// observers and indexers, and the sinks that deliver them.
package events

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Kind names an event type.
type Kind string

const (
	KindOwnershipTransferred Kind = "OwnershipTransferred"
	KindProviderAdded        Kind = "ProviderAdded"
	KindProviderRemoved      Kind = "ProviderRemoved"
	KindCooldownSet          Kind = "CooldownSet"
	KindContractPaused       Kind = "ContractPaused"
	KindContractUnpaused     Kind = "ContractUnpaused"
	KindBatchOpened          Kind = "BatchOpened"
	KindBatchClosed          Kind = "BatchClosed"
	KindDataSubmitted        Kind = "DataSubmitted"
	KindDecryptionRequested  Kind = "DecryptionRequested"
	KindDecryptionCompleted  Kind = "DecryptionCompleted"
)

// Event is implemented by every notification.
type Event interface {
	Kind() Kind
}

// OwnershipTransferred is emitted when the owner changes.
type OwnershipTransferred struct {
	Previous common.Address // Previous is the former owner
	Current  common.Address // Current is the new owner
}

// ProviderAdded is emitted when an address gains provider rights.
type ProviderAdded struct {
	Provider common.Address
}

// ProviderRemoved is emitted when an address loses provider rights.
type ProviderRemoved struct {
	Provider common.Address
}

// CooldownSet is emitted when the shared cooldown changes.
type CooldownSet struct {
	Previous uint64 // Previous is the former cooldown in seconds
	Current  uint64 // Current is the new cooldown in seconds
}

// ContractPaused is emitted when admission is suspended.
type ContractPaused struct {
	By common.Address
}

// ContractUnpaused is emitted when admission resumes.
type ContractUnpaused struct {
	By common.Address
}

// BatchOpened is emitted when a batch starts accepting contributions.
type BatchOpened struct {
	BatchID uint64
}

// BatchClosed is emitted when the current batch stops accepting contributions.
type BatchClosed struct {
	BatchID uint64
}

// DataSubmitted is emitted for every admitted contribution.
type DataSubmitted struct {
	Provider       common.Address // Provider is the submitting actor
	BatchID        uint64         // BatchID is the batch current at submission
	ContributionID uint64         // ContributionID is the assigned sequence id
}

// DecryptionRequested is emitted when a reveal is sent to the oracle.
type DecryptionRequested struct {
	RequestID  uint64   // RequestID is the oracle-assigned identifier
	BatchID    uint64   // BatchID is the batch being revealed
	Commitment [32]byte // Commitment binds the requested ciphertext handles
}

// DecryptionCompleted is emitted once per request when its result finalizes.
type DecryptionCompleted struct {
	RequestID         uint64
	BatchID           uint64
	Average           uint64
	AnyFlagSet        bool
	ThresholdExceeded bool
}

func (OwnershipTransferred) Kind() Kind { return KindOwnershipTransferred }
func (ProviderAdded) Kind() Kind        { return KindProviderAdded }
func (ProviderRemoved) Kind() Kind      { return KindProviderRemoved }
func (CooldownSet) Kind() Kind          { return KindCooldownSet }
func (ContractPaused) Kind() Kind       { return KindContractPaused }
func (ContractUnpaused) Kind() Kind     { return KindContractUnpaused }
func (BatchOpened) Kind() Kind          { return KindBatchOpened }
func (BatchClosed) Kind() Kind          { return KindBatchClosed }
func (DataSubmitted) Kind() Kind        { return KindDataSubmitted }
func (DecryptionRequested) Kind() Kind  { return KindDecryptionRequested }
func (DecryptionCompleted) Kind() Kind  { return KindDecryptionCompleted }

// Sink receives events synchronously, in emission order.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Emit delivers ev to every sink.
func (m Multi) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit appends ev.
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)

	return out
}

// Of returns the recorded events of the given kind.
func (r *Recorder) Of(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, ev := range r.events {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}

	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}
