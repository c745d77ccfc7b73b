package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

const (
	// defaultSyncInterval is the default interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("storage closed")

// Op is one write inside an atomic batch. A nil Value deletes Key.
type Op struct {
	Key   []byte // Key is the key to write
	Value []byte // Value is the new value, nil for a delete
}

// Put returns a set operation.
func Put(key, value []byte) Op {
	return Op{Key: key, Value: value}
}

// Del returns a delete operation.
func Del(key []byte) Op {
	return Op{Key: key}
}

// Storage is a key-value store backed by Pebble.
// Writes use NoSync and a background goroutine syncs the WAL periodically,
// so a crash loses at most one sync interval of writes.
type Storage struct {
	db       *pebble.DB    // db is the underlying Pebble database
	stopSync chan struct{} // stopSync signals the sync goroutine to stop
	wg       sync.WaitGroup
	closeMu  sync.RWMutex // closeMu guards closed against in-flight operations
	closed   bool
}

// Options tunes the Pebble instance.
type Options struct {
	CacheSize    int64         // CacheSize is the block cache size in bytes
	MemTableSize uint64        // MemTableSize is the memtable size in bytes
	SyncInterval time.Duration // SyncInterval is the WAL sync period
}

// DefaultOptions returns options sized for a single coordinator.
func DefaultOptions() Options {
	return Options{
		CacheSize:    16 << 20,
		MemTableSize: 8 << 20,
		SyncInterval: defaultSyncInterval,
	}
}

// New opens a Storage at path with default options.
func New(path string) (*Storage, error) {
	return Open(path, DefaultOptions())
}

// Open opens a Storage at path and starts the WAL sync loop.
func Open(path string, opts Options) (*Storage, error) {
	pebbleOpts := &pebble.Options{
		Cache:                       pebble.NewCache(opts.CacheSize),
		MemTableSize:                opts.MemTableSize,
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s:\n%w", path, err)
	}

	interval := opts.SyncInterval
	if interval <= 0 {
		interval = defaultSyncInterval
	}

	s := &Storage{
		db:       db,
		stopSync: make(chan struct{}),
	}

	s.startSyncLoop(interval)

	return s, nil
}

// Get retrieves the value for key. Returns nil if the key does not exist.
func (s *Storage) Get(key []byte) ([]byte, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// Copy the value since it's invalid after closer.Close()
	result := make([]byte, len(value))
	copy(result, value)

	return result, nil
}

// Has reports whether key exists.
func (s *Storage) Has(key []byte) (bool, error) {
	value, err := s.Get(key)
	if err != nil {
		return false, err
	}

	return value != nil, nil
}

// Set stores a key-value pair.
func (s *Storage) Set(key, value []byte) error {
	return s.Write(Put(key, value))
}

// Delete removes a key from the store.
func (s *Storage) Delete(key []byte) error {
	return s.Write(Del(key))
}

// Write applies all operations atomically. Either all are written or none.
func (s *Storage) Write(ops ...Op) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		var err error
		if op.Value == nil {
			err = batch.Delete(op.Key, nil)
		} else {
			err = batch.Set(op.Key, op.Value, nil)
		}

		if err != nil {
			return fmt.Errorf("stage key %x:\n%w", op.Key, err)
		}
	}

	return batch.Commit(pebble.NoSync)
}

// IteratePrefix calls fn for each pair whose key starts with prefix, in
// ascending key order. Key and value are only valid during the call.
// If fn returns an error, iteration stops and the error is returned.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	iter, err := s.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// Last returns a copy of the greatest key and its value under prefix.
// Returns nil, nil when the prefix is empty.
func (s *Storage) Last(prefix []byte) ([]byte, []byte, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if s.closed {
		return nil, nil, ErrClosed
	}

	iter, err := s.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return nil, nil, err
	}
	defer iter.Close()

	if !iter.Last() {
		return nil, nil, iter.Error()
	}

	value, err := iter.ValueAndErr()
	if err != nil {
		return nil, nil, err
	}

	key := append([]byte(nil), iter.Key()...)
	val := append([]byte(nil), value...)

	return key, val, nil
}

// prefixOptions bounds an iterator to keys starting with prefix.
func prefixOptions(prefix []byte) *pebble.IterOptions {
	if len(prefix) == 0 {
		return nil
	}

	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	}
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil
}

// Close stops the sync goroutine, syncs once more and closes the database.
func (s *Storage) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	close(s.stopSync)
	s.wg.Wait()

	return errors.Join(s.sync(), s.db.Close())
}

// startSyncLoop starts the background goroutine that periodically syncs the WAL.
func (s *Storage) startSyncLoop(interval time.Duration) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync to disk.
func (s *Storage) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
