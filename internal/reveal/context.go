package reveal

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	flatbuffers "github.com/google/flatbuffers/go"

	"BlindTally/internal/fhe"
	"BlindTally/internal/storage"
	"BlindTally/internal/types"
)

// Outcome is the decoded result of a finalized reveal.
type Outcome struct {
	Average           uint64
	AnyFlagSet        bool
	ThresholdExceeded bool
}

// Context records one decryption request.
type Context struct {
	RequestID  uint64       // RequestID is the oracle-assigned identifier
	BatchID    uint64       // BatchID is the batch current at request time
	Commitment [32]byte     // Commitment binds Handles to this coordinator
	Processed  bool         // Processed latches once the result finalizes
	Handles    []fhe.Handle // Handles are the ciphertexts sent for decryption
	Outcome    Outcome      // Outcome is valid only when Processed
}

// ContextStore keeps contexts by request id.
type ContextStore interface {
	// Put inserts or replaces ctx.
	Put(ctx Context) error

	// Get returns the context for requestID and whether it exists.
	Get(requestID uint64) (Context, bool, error)

	// Range calls fn for every context in ascending request id order.
	Range(fn func(Context) error) error
}

// MemoryContextStore keeps contexts in a map.
type MemoryContextStore struct {
	mu   sync.RWMutex
	ctxs map[uint64]Context
}

// NewMemoryContextStore creates an empty store.
func NewMemoryContextStore() *MemoryContextStore {
	return &MemoryContextStore{ctxs: make(map[uint64]Context)}
}

// Put stores a copy of ctx.
func (m *MemoryContextStore) Put(ctx Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx.Handles = append([]fhe.Handle(nil), ctx.Handles...)
	m.ctxs[ctx.RequestID] = ctx

	return nil
}

// Get returns a copy of the stored context.
func (m *MemoryContextStore) Get(requestID uint64) (Context, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ctx, ok := m.ctxs[requestID]
	ctx.Handles = append([]fhe.Handle(nil), ctx.Handles...)

	return ctx, ok, nil
}

// Range iterates in ascending request id order.
func (m *MemoryContextStore) Range(fn func(Context) error) error {
	m.mu.RLock()
	ids := make([]uint64, 0, len(m.ctxs))
	for id := range m.ctxs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		ctx, _, _ := m.Get(id)
		if err := fn(ctx); err != nil {
			return err
		}
	}

	return nil
}

// contextPrefix keys contexts: "x:" + request id (8B BE).
var contextPrefix = []byte("x:")

// DiskContextStore persists contexts in Pebble as types.RevealContext tables.
type DiskContextStore struct {
	db *storage.Storage
}

// NewDiskContextStore attaches a store to db.
func NewDiskContextStore(db *storage.Storage) *DiskContextStore {
	return &DiskContextStore{db: db}
}

// Put writes ctx.
func (s *DiskContextStore) Put(ctx Context) error {
	if err := s.db.Set(contextKey(ctx.RequestID), EncodeContext(ctx)); err != nil {
		return fmt.Errorf("write context %d:\n%w", ctx.RequestID, err)
	}

	return nil
}

// Get reads the context for requestID.
func (s *DiskContextStore) Get(requestID uint64) (Context, bool, error) {
	data, err := s.db.Get(contextKey(requestID))
	if err != nil {
		return Context{}, false, fmt.Errorf("read context %d:\n%w", requestID, err)
	}

	if data == nil {
		return Context{}, false, nil
	}

	ctx, err := DecodeContext(data)
	if err != nil {
		return Context{}, false, err
	}

	return ctx, true, nil
}

// Range scans every stored context.
func (s *DiskContextStore) Range(fn func(Context) error) error {
	return s.db.IteratePrefix(contextPrefix, func(_, value []byte) error {
		ctx, err := DecodeContext(value)
		if err != nil {
			return err
		}

		return fn(ctx)
	})
}

// contextKey builds "x:" + requestID.
func contextKey(requestID uint64) []byte {
	key := make([]byte, len(contextPrefix)+8)
	copy(key, contextPrefix)
	binary.BigEndian.PutUint64(key[len(contextPrefix):], requestID)

	return key
}

// EncodeContext serializes ctx as a types.RevealContext table.
func EncodeContext(ctx Context) []byte {
	builder := flatbuffers.NewBuilder(256)
	builder.Finish(BuildContext(builder, ctx))

	return builder.FinishedBytes()
}

// BuildContext writes ctx into builder and returns the table offset.
func BuildContext(builder *flatbuffers.Builder, ctx Context) flatbuffers.UOffsetT {
	handles := make([]byte, 0, len(ctx.Handles)*fhe.HandleSize)
	for _, h := range ctx.Handles {
		handles = append(handles, h[:]...)
	}

	commitmentOffset := builder.CreateByteVector(ctx.Commitment[:])
	handlesOffset := builder.CreateByteVector(handles)

	types.RevealContextStart(builder)
	types.RevealContextAddRequestId(builder, ctx.RequestID)
	types.RevealContextAddBatchId(builder, ctx.BatchID)
	types.RevealContextAddCommitment(builder, commitmentOffset)
	types.RevealContextAddProcessed(builder, ctx.Processed)
	types.RevealContextAddHandles(builder, handlesOffset)
	types.RevealContextAddAverage(builder, ctx.Outcome.Average)
	types.RevealContextAddAnyFlag(builder, ctx.Outcome.AnyFlagSet)
	types.RevealContextAddThresholdExceeded(builder, ctx.Outcome.ThresholdExceeded)

	return types.RevealContextEnd(builder)
}

// DecodeContext parses data produced by EncodeContext.
func DecodeContext(data []byte) (ctx Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx, err = Context{}, fmt.Errorf("%v:\n%w", r, ErrMalformedRecord)
		}
	}()

	if len(data) < flatbuffers.SizeUOffsetT {
		return Context{}, fmt.Errorf("context record too short: %d bytes", len(data))
	}

	return ReadContext(types.GetRootAsRevealContext(data, 0))
}

// ReadContext converts a decoded table, checking field sizes.
func ReadContext(t *types.RevealContext) (Context, error) {
	ctx := Context{
		RequestID: t.RequestId(),
		BatchID:   t.BatchId(),
		Processed: t.Processed(),
		Outcome: Outcome{
			Average:           t.Average(),
			AnyFlagSet:        t.AnyFlag(),
			ThresholdExceeded: t.ThresholdExceeded(),
		},
	}

	commitment := t.CommitmentBytes()
	if len(commitment) != len(ctx.Commitment) {
		return Context{}, fmt.Errorf("context %d: commitment is %d bytes", ctx.RequestID, len(commitment))
	}
	copy(ctx.Commitment[:], commitment)

	handles := t.HandlesBytes()
	if len(handles)%fhe.HandleSize != 0 {
		return Context{}, fmt.Errorf("context %d: handles are %d bytes", ctx.RequestID, len(handles))
	}

	for i := 0; i < len(handles); i += fhe.HandleSize {
		h, _ := fhe.HandleFromBytes(handles[i : i+fhe.HandleSize])
		ctx.Handles = append(ctx.Handles, h)
	}

	return ctx, nil
}
