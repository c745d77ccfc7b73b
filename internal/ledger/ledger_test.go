package ledger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"BlindTally/internal/access"
	"BlindTally/internal/events"
	"BlindTally/internal/fhe"
	"BlindTally/internal/ratelimit"
	"BlindTally/internal/storage"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	provider = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type fixture struct {
	ledger   *Ledger
	registry *access.Registry
	engine   *fhe.Engine
	rec      *events.Recorder
}

func newFixture(t *testing.T, cooldown uint64, store Store) *fixture {
	t.Helper()

	rec := events.NewRecorder()
	reg := access.NewRegistry(owner, cooldown, rec)
	require.NoError(t, reg.AddProvider(owner, provider))

	engine := fhe.NewEngine()

	l, err := New(reg, ratelimit.NewTracker("submission"), engine, store, rec)
	require.NoError(t, err)

	return &fixture{ledger: l, registry: reg, engine: engine, rec: rec}
}

// inputs encrypts a fresh (value, flag) pair.
func (f *fixture) inputs(t *testing.T, value uint64, flag bool) (fhe.Handle, fhe.Handle) {
	t.Helper()

	v, err := f.engine.Encrypt(value)
	require.NoError(t, err)
	b, err := f.engine.EncryptBool(flag)
	require.NoError(t, err)

	return v, b
}

func (f *fixture) submit(t *testing.T, who common.Address, value uint64, now uint64) (uint64, error) {
	t.Helper()

	v, b := f.inputs(t, value, false)
	return f.ledger.Submit(who, v, b, now)
}

func TestInitialBatchIsClosed(t *testing.T) {
	f := newFixture(t, 0, NewMemoryStore())

	require.Equal(t, Batch{ID: 0, Open: false}, f.ledger.Batch())

	_, err := f.submit(t, provider, 1, 0)
	require.ErrorIs(t, err, ErrBatchClosed)

	require.ErrorIs(t, f.ledger.CloseBatch(owner), ErrBatchAlreadyClosed)
}

func TestIDsAreContiguousAcrossBatches(t *testing.T) {
	f := newFixture(t, 0, NewMemoryStore())

	var ids []uint64
	for batch := 0; batch < 3; batch++ {
		require.NoError(t, f.ledger.OpenBatch(owner))
		for i := 0; i < 2; i++ {
			id, err := f.submit(t, provider, uint64(i), uint64(batch*10+i))
			require.NoError(t, err)
			ids = append(ids, id)
		}
		require.NoError(t, f.ledger.CloseBatch(owner))
	}

	require.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, ids)
	require.Equal(t, uint64(6), f.ledger.DataCount())

	c, err := f.ledger.Get(5)
	require.NoError(t, err)
	require.Equal(t, uint64(3), c.BatchID)
	require.Equal(t, provider, c.Provider)

	var seen []uint64
	require.NoError(t, f.ledger.Range(func(c Contribution) error {
		seen = append(seen, c.ID)
		return nil
	}))
	require.Equal(t, ids, seen)
}

func TestOpenBatchWhileOpenBumpsID(t *testing.T) {
	f := newFixture(t, 0, NewMemoryStore())

	require.NoError(t, f.ledger.OpenBatch(owner))
	_, err := f.submit(t, provider, 1, 0)
	require.NoError(t, err)

	require.NoError(t, f.ledger.OpenBatch(owner))
	require.Equal(t, Batch{ID: 2, Open: true}, f.ledger.Batch())

	c, err := f.ledger.Get(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), c.BatchID)

	require.Equal(t, []events.Event{
		events.BatchOpened{BatchID: 1},
		events.BatchOpened{BatchID: 2},
	}, f.rec.Of(events.KindBatchOpened))
}

func TestBatchControlIsOwnerOnlyAndPausable(t *testing.T) {
	f := newFixture(t, 0, NewMemoryStore())

	require.ErrorIs(t, f.ledger.OpenBatch(provider), access.ErrNotOwner)

	require.NoError(t, f.registry.Pause(owner))
	require.ErrorIs(t, f.ledger.OpenBatch(owner), access.ErrPaused)
	require.ErrorIs(t, f.ledger.CloseBatch(owner), access.ErrPaused)
}

func TestNonProviderAlwaysRejected(t *testing.T) {
	f := newFixture(t, 0, NewMemoryStore())

	_, err := f.submit(t, stranger, 1, 0)
	require.ErrorIs(t, err, access.ErrNotProvider)

	require.NoError(t, f.ledger.OpenBatch(owner))
	_, err = f.submit(t, stranger, 1, 0)
	require.ErrorIs(t, err, access.ErrNotProvider)

	require.NoError(t, f.registry.Pause(owner))
	_, err = f.submit(t, stranger, 1, 0)
	require.ErrorIs(t, err, access.ErrNotProvider)

	require.Zero(t, f.ledger.DataCount())
}

func TestPausedRejectsProviders(t *testing.T) {
	f := newFixture(t, 0, NewMemoryStore())
	require.NoError(t, f.ledger.OpenBatch(owner))
	require.NoError(t, f.registry.Pause(owner))

	_, err := f.submit(t, provider, 1, 0)
	require.ErrorIs(t, err, access.ErrPaused)
}

func TestSubmissionCooldown(t *testing.T) {
	f := newFixture(t, 60, NewMemoryStore())
	require.NoError(t, f.ledger.OpenBatch(owner))

	_, err := f.submit(t, provider, 1, 1000)
	require.NoError(t, err)

	_, err = f.submit(t, provider, 2, 1030)
	require.ErrorIs(t, err, ratelimit.ErrCooldownActive)

	_, err = f.submit(t, provider, 3, 1060)
	require.NoError(t, err)

	require.Equal(t, uint64(2), f.ledger.DataCount())
}

func TestRejectedSubmissionDoesNotStampCooldown(t *testing.T) {
	f := newFixture(t, 60, NewMemoryStore())

	_, err := f.submit(t, provider, 1, 1000)
	require.ErrorIs(t, err, ErrBatchClosed)

	require.NoError(t, f.ledger.OpenBatch(owner))
	_, err = f.submit(t, provider, 1, 1001)
	require.NoError(t, err)
}

func TestReusedHandlesAreRejected(t *testing.T) {
	f := newFixture(t, 0, NewMemoryStore())
	require.NoError(t, f.ledger.OpenBatch(owner))

	v, b := f.inputs(t, 7, true)
	_, err := f.ledger.Submit(provider, v, b, 0)
	require.NoError(t, err)

	v2, b2 := f.inputs(t, 8, false)

	_, err = f.ledger.Submit(provider, v, b2, 1)
	require.ErrorIs(t, err, ErrAlreadyCommitted)

	_, err = f.ledger.Submit(provider, v2, b, 1)
	require.ErrorIs(t, err, ErrAlreadyCommitted)

	_, err = f.ledger.Submit(provider, b2, v2, 1)
	require.ErrorIs(t, err, fhe.ErrTypeMismatch)

	_, err = f.ledger.Submit(provider, fhe.Handle{}, b2, 1)
	require.ErrorIs(t, err, fhe.ErrUnknownHandle)

	require.True(t, f.ledger.Committed(v))
	require.False(t, f.ledger.Committed(v2))
	require.Equal(t, uint64(1), f.ledger.DataCount())
}

func TestUninitializedSubsystem(t *testing.T) {
	rec := events.NewRecorder()
	reg := access.NewRegistry(owner, 0, rec)

	l, err := New(reg, ratelimit.NewTracker("submission"), &fhe.Engine{}, NewMemoryStore(), rec)
	require.NoError(t, err)
	require.NoError(t, l.OpenBatch(owner))

	_, err = l.Submit(owner, fhe.Handle{1}, fhe.Handle{2}, 0)
	require.ErrorIs(t, err, ErrSubsystemUninitialized)
}

func TestSubmitEmitsDataSubmitted(t *testing.T) {
	f := newFixture(t, 0, NewMemoryStore())
	require.NoError(t, f.ledger.OpenBatch(owner))

	_, err := f.submit(t, provider, 1, 0)
	require.NoError(t, err)

	require.Equal(t, []events.Event{
		events.DataSubmitted{Provider: provider, BatchID: 1, ContributionID: 1},
	}, f.rec.Of(events.KindDataSubmitted))
}

func TestDiskStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	db, err := storage.New(path)
	require.NoError(t, err)

	store, err := OpenDiskStore(db)
	require.NoError(t, err)

	f := newFixture(t, 0, store)
	require.NoError(t, f.ledger.OpenBatch(owner))

	v, b := f.inputs(t, 42, true)
	_, err = f.ledger.Submit(provider, v, b, 0)
	require.NoError(t, err)
	_, err = f.submit(t, provider, 43, 1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = storage.New(path)
	require.NoError(t, err)
	defer db.Close()

	store, err = OpenDiskStore(db)
	require.NoError(t, err)
	require.Equal(t, uint64(2), store.Count())

	got, err := store.Get(1)
	require.NoError(t, err)
	require.Equal(t, Contribution{ID: 1, BatchID: 1, Provider: provider, Value: v, Flag: b}, got)

	reopened, err := New(f.registry, ratelimit.NewTracker("submission"), f.engine, store, nil)
	require.NoError(t, err)
	require.True(t, reopened.Committed(v))
	require.True(t, reopened.Committed(b))

	_, err = store.Get(3)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, store.Append(Contribution{ID: 5}), ErrOutOfSequence)
}

func TestStoresRangeSubsets(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer db.Close()

	disk, err := OpenDiskStore(db)
	require.NoError(t, err)

	for _, s := range []Store{NewMemoryStore(), disk} {
		for id := uint64(1); id <= 5; id++ {
			require.NoError(t, s.Append(Contribution{ID: id, Provider: provider, Value: fhe.Handle{byte(id)}, Flag: fhe.Handle{0, byte(id)}}))
		}

		var got []uint64
		require.NoError(t, s.Range(2, 4, func(c Contribution) error {
			got = append(got, c.ID)
			return nil
		}))
		require.Equal(t, []uint64{2, 3, 4}, got)

		err := s.Range(4, 6, func(Contribution) error { return nil })
		require.ErrorIs(t, err, ErrNotFound)
	}
}

func TestDecodeContributionRejectsCorruptRecords(t *testing.T) {
	data := EncodeContribution(Contribution{ID: 1, BatchID: 1, Provider: provider, Value: fhe.Handle{1}, Flag: fhe.Handle{2}})

	_, err := DecodeContribution(data[:len(data)/3])
	require.Error(t, err)

	_, err = DecodeContribution(bytes.Repeat([]byte{0xff}, 32))
	require.ErrorIs(t, err, ErrMalformedRecord)
}
