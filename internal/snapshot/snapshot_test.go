package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"BlindTally/internal/fhe"
	"BlindTally/internal/ledger"
	"BlindTally/internal/ratelimit"
	"BlindTally/internal/reveal"
	"BlindTally/internal/storage"
	"BlindTally/internal/types"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	provider = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	identity = common.HexToAddress("0x000000000000000000000000000000000000c0de")
)

func sampleState() State {
	return State{
		Owner:     owner,
		Identity:  identity,
		Paused:    true,
		Cooldown:  60,
		Threshold: 100,
		Batch:     ledger.Batch{ID: 2, Open: false},
		Providers: []common.Address{owner, provider},
		Contributions: []ledger.Contribution{
			{ID: 1, BatchID: 1, Provider: provider, Value: fhe.Handle{1}, Flag: fhe.Handle{2}},
			{ID: 2, BatchID: 2, Provider: owner, Value: fhe.Handle{3}, Flag: fhe.Handle{4}},
		},
		Contexts: []reveal.Context{
			{RequestID: 5, BatchID: 2, Commitment: [32]byte{7}, Processed: true,
				Handles: []fhe.Handle{{8}, {9}, {10}}, Outcome: reveal.Outcome{Average: 20, AnyFlagSet: true}},
		},
		Submissions: []ratelimit.Entry{{Actor: owner, Time: 1100}, {Actor: provider, Time: 1000}},
		Decryptions: []ratelimit.Entry{{Actor: owner, Time: 1200}},
	}
}

func TestEncodeDecode(t *testing.T) {
	s := sampleState()

	got, err := Decode(Encode(s))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestEncodeIsDeterministic(t *testing.T) {
	require.Equal(t, Encode(sampleState()), Encode(sampleState()))
}

func TestDecodeDetectsTampering(t *testing.T) {
	data := Encode(sampleState())

	snap := types.GetRootAsSnapshot(data, 0)
	require.True(t, snap.MutateCooldown(0))

	_, err := Decode(data)
	require.ErrorIs(t, err, ErrChecksum)
}

func TestDecodeRejectsTruncatedDocument(t *testing.T) {
	data := Encode(sampleState())

	_, err := Decode(data[:len(data)/3])
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Decode(data[:len(data)/2])
	require.Error(t, err)

	_, err = Decode(bytes.Repeat([]byte{0xff}, 64))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestUnpackRejectsGarbage(t *testing.T) {
	compressed, err := Compress(Encode(sampleState())[:40])
	require.NoError(t, err)

	_, err = Unpack(compressed)
	require.Error(t, err)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data := Encode(sampleState())
	require.True(t, types.GetRootAsSnapshot(data, 0).MutateVersion(Version+1))

	_, err := Decode(data)
	require.ErrorIs(t, err, ErrVersion)
}

func TestCheckpointRoundTrip(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = Load(db)
	require.ErrorIs(t, err, ErrNoCheckpoint)

	s := sampleState()
	require.NoError(t, Save(db, s))

	got, err := Load(db)
	require.NoError(t, err)
	require.Equal(t, s, got)

	raw, err := LoadRaw(db)
	require.NoError(t, err)

	plain, err := Decompress(raw)
	require.NoError(t, err)
	require.Equal(t, Encode(s), plain)
}
