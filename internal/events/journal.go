package events

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-msgpack/codec"

	"BlindTally/internal/logger"
	"BlindTally/internal/storage"
)

// journalPrefix is the Pebble key prefix for journal entries: "e:" + seq (8B BE).
var journalPrefix = []byte("e:")

// record is the msgpack wire form of one journal entry.
// Payload fields are positional per kind; see toRecord.
type record struct {
	Seq     uint64   // Seq is the 1-based position in the journal
	Kind    string   // Kind is the event kind
	Actors  [][]byte // Actors holds 20-byte addresses
	Numbers []uint64 // Numbers holds ids, times and counts
	Flags   []bool   // Flags holds boolean results
	Digest  []byte   // Digest holds a 32-byte commitment when present
}

// Journal persists every event to storage so indexers can replay them.
// Write failures are logged, never returned to the emitter.
type Journal struct {
	db     *storage.Storage
	handle *codec.MsgpackHandle
	mu     sync.Mutex
	seq    uint64 // seq is the last written sequence number
	log    *slog.Logger
}

// OpenJournal attaches a journal to db and resumes after the last entry.
func OpenJournal(db *storage.Storage) (*Journal, error) {
	key, _, err := db.Last(journalPrefix)
	if err != nil {
		return nil, fmt.Errorf("locate last journal entry:\n%w", err)
	}

	j := &Journal{db: db, handle: &codec.MsgpackHandle{}, log: logger.Component("journal")}

	if key != nil {
		if len(key) != len(journalPrefix)+8 {
			return nil, fmt.Errorf("malformed journal key %x", key)
		}
		j.seq = binary.BigEndian.Uint64(key[len(journalPrefix):])
	}

	return j, nil
}

// Emit appends ev to the journal.
func (j *Journal) Emit(ev Event) {
	if _, err := j.Append(ev); err != nil {
		j.log.Error("journal append failed", "kind", ev.Kind(), "error", err)
	}
}

// Append writes ev and returns its sequence number.
func (j *Journal) Append(ev Event) (uint64, error) {
	rec, err := toRecord(ev)
	if err != nil {
		return 0, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rec.Seq = j.seq + 1

	var data []byte
	if err := codec.NewEncoderBytes(&data, j.handle).Encode(rec); err != nil {
		return 0, fmt.Errorf("encode %s:\n%w", rec.Kind, err)
	}

	if err := j.db.Set(journalKey(rec.Seq), data); err != nil {
		return 0, fmt.Errorf("write journal entry %d:\n%w", rec.Seq, err)
	}

	j.seq = rec.Seq

	return rec.Seq, nil
}

// Len returns the number of entries written so far.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.seq
}

// Replay calls fn for every entry with sequence number >= from, in order.
func (j *Journal) Replay(from uint64, fn func(seq uint64, ev Event) error) error {
	return j.db.IteratePrefix(journalPrefix, func(key, value []byte) error {
		var rec record
		if err := codec.NewDecoderBytes(value, j.handle).Decode(&rec); err != nil {
			return fmt.Errorf("decode journal entry %x:\n%w", key, err)
		}

		if rec.Seq < from {
			return nil
		}

		ev, err := fromRecord(rec)
		if err != nil {
			return fmt.Errorf("journal entry %d:\n%w", rec.Seq, err)
		}

		return fn(rec.Seq, ev)
	})
}

// journalKey builds "e:" + seq.
func journalKey(seq uint64) []byte {
	key := make([]byte, len(journalPrefix)+8)
	copy(key, journalPrefix)
	binary.BigEndian.PutUint64(key[len(journalPrefix):], seq)

	return key
}

// toRecord flattens an event into its wire record.
func toRecord(ev Event) (record, error) {
	rec := record{Kind: string(ev.Kind())}

	switch e := ev.(type) {
	case OwnershipTransferred:
		rec.Actors = [][]byte{e.Previous.Bytes(), e.Current.Bytes()}
	case ProviderAdded:
		rec.Actors = [][]byte{e.Provider.Bytes()}
	case ProviderRemoved:
		rec.Actors = [][]byte{e.Provider.Bytes()}
	case CooldownSet:
		rec.Numbers = []uint64{e.Previous, e.Current}
	case ContractPaused:
		rec.Actors = [][]byte{e.By.Bytes()}
	case ContractUnpaused:
		rec.Actors = [][]byte{e.By.Bytes()}
	case BatchOpened:
		rec.Numbers = []uint64{e.BatchID}
	case BatchClosed:
		rec.Numbers = []uint64{e.BatchID}
	case DataSubmitted:
		rec.Actors = [][]byte{e.Provider.Bytes()}
		rec.Numbers = []uint64{e.BatchID, e.ContributionID}
	case DecryptionRequested:
		rec.Numbers = []uint64{e.RequestID, e.BatchID}
		rec.Digest = append([]byte(nil), e.Commitment[:]...)
	case DecryptionCompleted:
		rec.Numbers = []uint64{e.RequestID, e.BatchID, e.Average}
		rec.Flags = []bool{e.AnyFlagSet, e.ThresholdExceeded}
	default:
		return record{}, fmt.Errorf("unsupported event type %T", ev)
	}

	return rec, nil
}

// fromRecord rebuilds the typed event from a wire record.
func fromRecord(rec record) (Event, error) {
	if err := rec.checkShape(); err != nil {
		return nil, err
	}

	addr := func(i int) common.Address { return common.BytesToAddress(rec.Actors[i]) }

	switch Kind(rec.Kind) {
	case KindOwnershipTransferred:
		return OwnershipTransferred{Previous: addr(0), Current: addr(1)}, nil
	case KindProviderAdded:
		return ProviderAdded{Provider: addr(0)}, nil
	case KindProviderRemoved:
		return ProviderRemoved{Provider: addr(0)}, nil
	case KindCooldownSet:
		return CooldownSet{Previous: rec.Numbers[0], Current: rec.Numbers[1]}, nil
	case KindContractPaused:
		return ContractPaused{By: addr(0)}, nil
	case KindContractUnpaused:
		return ContractUnpaused{By: addr(0)}, nil
	case KindBatchOpened:
		return BatchOpened{BatchID: rec.Numbers[0]}, nil
	case KindBatchClosed:
		return BatchClosed{BatchID: rec.Numbers[0]}, nil
	case KindDataSubmitted:
		return DataSubmitted{Provider: addr(0), BatchID: rec.Numbers[0], ContributionID: rec.Numbers[1]}, nil
	case KindDecryptionRequested:
		ev := DecryptionRequested{RequestID: rec.Numbers[0], BatchID: rec.Numbers[1]}
		copy(ev.Commitment[:], rec.Digest)
		return ev, nil
	case KindDecryptionCompleted:
		return DecryptionCompleted{
			RequestID:         rec.Numbers[0],
			BatchID:           rec.Numbers[1],
			Average:           rec.Numbers[2],
			AnyFlagSet:        rec.Flags[0],
			ThresholdExceeded: rec.Flags[1],
		}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", rec.Kind)
	}
}

// shapes lists the positional field counts per kind: actors, numbers, flags, digest bytes.
var shapes = map[Kind][4]int{
	KindOwnershipTransferred: {2, 0, 0, 0},
	KindProviderAdded:        {1, 0, 0, 0},
	KindProviderRemoved:      {1, 0, 0, 0},
	KindCooldownSet:          {0, 2, 0, 0},
	KindContractPaused:       {1, 0, 0, 0},
	KindContractUnpaused:     {1, 0, 0, 0},
	KindBatchOpened:          {0, 1, 0, 0},
	KindBatchClosed:          {0, 1, 0, 0},
	KindDataSubmitted:        {1, 2, 0, 0},
	KindDecryptionRequested:  {0, 2, 0, 32},
	KindDecryptionCompleted:  {0, 3, 2, 0},
}

// checkShape rejects records whose payload does not match their kind.
func (rec record) checkShape() error {
	want, ok := shapes[Kind(rec.Kind)]
	if !ok {
		return fmt.Errorf("unknown event kind %q", rec.Kind)
	}

	got := [4]int{len(rec.Actors), len(rec.Numbers), len(rec.Flags), len(rec.Digest)}
	if got != want {
		return fmt.Errorf("%s payload shape %v, want %v", rec.Kind, got, want)
	}

	for _, a := range rec.Actors {
		if len(a) != common.AddressLength {
			return fmt.Errorf("%s actor length %d", rec.Kind, len(a))
		}
	}

	return nil
}
