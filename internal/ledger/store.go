package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"BlindTally/internal/storage"
)

var (
	// ErrNotFound is returned for contribution ids outside 1..Count.
	ErrNotFound = errors.New("contribution not found")

	// ErrOutOfSequence is returned when an append would leave a gap or reuse an id.
	ErrOutOfSequence = errors.New("contribution out of sequence")

	// ErrMalformedRecord is returned when a stored record does not decode.
	ErrMalformedRecord = errors.New("malformed contribution record")
)

// Store is the append-only contribution sequence.
type Store interface {
	// Append adds c, whose ID must be Count()+1.
	Append(c Contribution) error

	// Get returns the contribution with the given id.
	Get(id uint64) (Contribution, error)

	// Count returns the number of stored contributions.
	Count() uint64

	// Range calls fn for ids from..to inclusive, ascending.
	Range(from, to uint64, fn func(Contribution) error) error
}

// MemoryStore keeps contributions in a slice.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Contribution
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds c.
func (m *MemoryStore) Append(c Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if want := uint64(len(m.items)) + 1; c.ID != want {
		return fmt.Errorf("append id %d, want %d:\n%w", c.ID, want, ErrOutOfSequence)
	}

	m.items = append(m.items, c)

	return nil
}

// Get returns contribution id.
func (m *MemoryStore) Get(id uint64) (Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id == 0 || id > uint64(len(m.items)) {
		return Contribution{}, fmt.Errorf("id %d:\n%w", id, ErrNotFound)
	}

	return m.items[id-1], nil
}

// Count returns the number of contributions.
func (m *MemoryStore) Count() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return uint64(len(m.items))
}

// Range iterates ids from..to.
func (m *MemoryStore) Range(from, to uint64, fn func(Contribution) error) error {
	for id := from; id <= to && id != 0; id++ {
		c, err := m.Get(id)
		if err != nil {
			return err
		}

		if err := fn(c); err != nil {
			return err
		}
	}

	return nil
}

var (
	// contributionPrefix keys contributions: "c:" + id (8B BE).
	contributionPrefix = []byte("c:")

	// countKey holds the contribution count (8B BE).
	countKey = []byte("m:contributions")
)

// DiskStore persists contributions in Pebble. The count and the new record
// are written in one atomic batch, so a crash never leaves a gap.
type DiskStore struct {
	db    *storage.Storage
	mu    sync.RWMutex
	count uint64 // count mirrors countKey
}

// OpenDiskStore attaches to db and loads the current count.
func OpenDiskStore(db *storage.Storage) (*DiskStore, error) {
	data, err := db.Get(countKey)
	if err != nil {
		return nil, fmt.Errorf("load contribution count:\n%w", err)
	}

	s := &DiskStore{db: db}

	if data != nil {
		if len(data) != 8 {
			return nil, fmt.Errorf("malformed contribution count: %d bytes", len(data))
		}
		s.count = binary.BigEndian.Uint64(data)
	}

	return s, nil
}

// Append adds c.
func (s *DiskStore) Append(c Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if want := s.count + 1; c.ID != want {
		return fmt.Errorf("append id %d, want %d:\n%w", c.ID, want, ErrOutOfSequence)
	}

	count := make([]byte, 8)
	binary.BigEndian.PutUint64(count, c.ID)

	err := s.db.Write(
		storage.Put(contributionKey(c.ID), EncodeContribution(c)),
		storage.Put(countKey, count),
	)
	if err != nil {
		return fmt.Errorf("write contribution %d:\n%w", c.ID, err)
	}

	s.count = c.ID

	return nil
}

// Get reads contribution id.
func (s *DiskStore) Get(id uint64) (Contribution, error) {
	if id == 0 || id > s.Count() {
		return Contribution{}, fmt.Errorf("id %d:\n%w", id, ErrNotFound)
	}

	data, err := s.db.Get(contributionKey(id))
	if err != nil {
		return Contribution{}, fmt.Errorf("read contribution %d:\n%w", id, err)
	}

	if data == nil {
		return Contribution{}, fmt.Errorf("id %d missing below count:\n%w", id, ErrNotFound)
	}

	return DecodeContribution(data)
}

// Count returns the number of contributions.
func (s *DiskStore) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.count
}

// Range iterates ids from..to with a single prefix scan.
func (s *DiskStore) Range(from, to uint64, fn func(Contribution) error) error {
	if from == 0 || from > to {
		return nil
	}

	next := from

	err := s.db.IteratePrefix(contributionPrefix, func(key, value []byte) error {
		id := binary.BigEndian.Uint64(key[len(contributionPrefix):])
		if id < from {
			return nil
		}

		if id > to {
			return errStopRange
		}

		if id != next {
			return fmt.Errorf("id %d missing:\n%w", next, ErrNotFound)
		}

		c, err := DecodeContribution(value)
		if err != nil {
			return err
		}

		next++

		return fn(c)
	})

	if err != nil && !errors.Is(err, errStopRange) {
		return err
	}

	if next <= to {
		return fmt.Errorf("id %d missing:\n%w", next, ErrNotFound)
	}

	return nil
}

// errStopRange ends a prefix scan early.
var errStopRange = errors.New("stop range")

// contributionKey builds "c:" + id.
func contributionKey(id uint64) []byte {
	key := make([]byte, len(contributionPrefix)+8)
	copy(key, contributionPrefix)
	binary.BigEndian.PutUint64(key[len(contributionPrefix):], id)

	return key
}
