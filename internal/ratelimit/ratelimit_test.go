package ratelimit

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func TestFirstActionAlwaysPasses(t *testing.T) {
	last := map[common.Address]uint64{}

	require.NoError(t, CheckAndTouch(alice, last, 60, 0))
	require.Equal(t, uint64(0), last[alice])
}

func TestCooldownWindow(t *testing.T) {
	last := map[common.Address]uint64{}

	require.NoError(t, CheckAndTouch(alice, last, 60, 1000))
	require.ErrorIs(t, CheckAndTouch(alice, last, 60, 1059), ErrCooldownActive)
	require.Equal(t, uint64(1000), last[alice])

	require.NoError(t, CheckAndTouch(alice, last, 60, 1060))
	require.Equal(t, uint64(1060), last[alice])

	require.NoError(t, CheckAndTouch(bob, last, 60, 1061))
}

func TestClockGoingBackwardsIsThrottled(t *testing.T) {
	last := map[common.Address]uint64{alice: 500}

	require.ErrorIs(t, Check(alice, last, 0, 499), ErrCooldownActive)
	require.NoError(t, Check(alice, last, 0, 500))
}

func TestHugeCooldownDoesNotOverflow(t *testing.T) {
	last := map[common.Address]uint64{alice: 10}

	err := Check(alice, last, ^uint64(0), ^uint64(0))
	require.ErrorIs(t, err, ErrCooldownActive)
}

func TestTrackersAreIndependent(t *testing.T) {
	submissions := NewTracker("submission")
	requests := NewTracker("decryption request")

	require.NoError(t, submissions.CheckAndTouch(alice, 60, 100))

	require.NoError(t, requests.Check(alice, 60, 120))
	requests.Touch(alice, 120)

	err := submissions.CheckAndTouch(alice, 60, 130)
	require.ErrorIs(t, err, ErrCooldownActive)
	require.Contains(t, err.Error(), "submission")

	at, ok := requests.Last(alice)
	require.True(t, ok)
	require.Equal(t, uint64(120), at)

	_, ok = requests.Last(bob)
	require.False(t, ok)
}

func TestEntriesRestore(t *testing.T) {
	tr := NewTracker("submission")
	tr.Touch(bob, 2)
	tr.Touch(alice, 1)

	entries := tr.Entries()
	require.Equal(t, []Entry{{Actor: alice, Time: 1}, {Actor: bob, Time: 2}}, entries)

	other := NewTracker("submission")
	other.Restore(entries)
	require.Equal(t, entries, other.Entries())
}
