package events

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"BlindTally/internal/storage"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func openTestJournal(t *testing.T) (*Journal, *storage.Storage, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "db")
	db, err := storage.New(path)
	require.NoError(t, err)

	j, err := OpenJournal(db)
	require.NoError(t, err)

	return j, db, path
}

func TestRecorderFiltersByKind(t *testing.T) {
	r := NewRecorder()
	sink := Multi{r, Discard, nil}

	sink.Emit(BatchOpened{BatchID: 1})
	sink.Emit(DataSubmitted{Provider: alice, BatchID: 1, ContributionID: 1})
	sink.Emit(BatchClosed{BatchID: 1})

	require.Equal(t, 3, r.Len())
	require.Equal(t, []Event{DataSubmitted{Provider: alice, BatchID: 1, ContributionID: 1}}, r.Of(KindDataSubmitted))
}

func TestJournalReplaysEveryKindInOrder(t *testing.T) {
	j, db, _ := openTestJournal(t)
	defer db.Close()

	commitment := [32]byte{1, 2, 3}
	written := []Event{
		OwnershipTransferred{Previous: alice, Current: bob},
		ProviderAdded{Provider: bob},
		ProviderRemoved{Provider: bob},
		CooldownSet{Previous: 0, Current: 60},
		ContractPaused{By: alice},
		ContractUnpaused{By: alice},
		BatchOpened{BatchID: 4},
		DataSubmitted{Provider: bob, BatchID: 4, ContributionID: 9},
		BatchClosed{BatchID: 4},
		DecryptionRequested{RequestID: 77, BatchID: 4, Commitment: commitment},
		DecryptionCompleted{RequestID: 77, BatchID: 4, Average: 20, AnyFlagSet: true},
	}

	for _, ev := range written {
		j.Emit(ev)
	}
	require.Equal(t, uint64(len(written)), j.Len())

	var replayed []Event
	err := j.Replay(1, func(seq uint64, ev Event) error {
		require.Equal(t, uint64(len(replayed)+1), seq)
		replayed = append(replayed, ev)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, written, replayed)
}

func TestJournalResumesSequenceAfterReopen(t *testing.T) {
	j, db, path := openTestJournal(t)

	_, err := j.Append(BatchOpened{BatchID: 1})
	require.NoError(t, err)
	_, err = j.Append(BatchClosed{BatchID: 1})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = storage.New(path)
	require.NoError(t, err)
	defer db.Close()

	j, err = OpenJournal(db)
	require.NoError(t, err)
	require.Equal(t, uint64(2), j.Len())

	seq, err := j.Append(BatchOpened{BatchID: 2})
	require.NoError(t, err)
	require.Equal(t, uint64(3), seq)

	var tail []Event
	require.NoError(t, j.Replay(3, func(_ uint64, ev Event) error {
		tail = append(tail, ev)
		return nil
	}))
	require.Equal(t, []Event{BatchOpened{BatchID: 2}}, tail)
}

func TestFromRecordRejectsWrongShape(t *testing.T) {
	_, err := fromRecord(record{Kind: string(KindDataSubmitted), Numbers: []uint64{1}})
	require.Error(t, err)

	_, err = fromRecord(record{Kind: "Nope"})
	require.Error(t, err)
}
