package access

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"BlindTally/internal/events"
	"BlindTally/internal/logger"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	provider = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func newTestRegistry() (*Registry, *events.Recorder) {
	rec := events.NewRecorder()
	return NewRegistry(owner, 60, rec), rec
}

func TestOwnerIsInitialProvider(t *testing.T) {
	r, rec := newTestRegistry()

	require.True(t, r.IsOwner(owner))
	require.True(t, r.IsProvider(owner))
	require.Equal(t, []common.Address{owner}, r.Providers())
	require.Equal(t, uint64(60), r.Cooldown())
	require.Zero(t, rec.Len())
}

func TestOwnerOnlyOperations(t *testing.T) {
	r, rec := newTestRegistry()

	require.ErrorIs(t, r.AddProvider(stranger, provider), ErrNotOwner)
	require.ErrorIs(t, r.RemoveProvider(stranger, owner), ErrNotOwner)
	require.ErrorIs(t, r.SetCooldown(stranger, 1), ErrNotOwner)
	require.ErrorIs(t, r.Pause(stranger), ErrNotOwner)
	require.ErrorIs(t, r.Unpause(stranger), ErrNotOwner)
	require.ErrorIs(t, r.TransferOwnership(stranger, stranger), ErrNotOwner)

	require.Zero(t, rec.Len())
	require.False(t, r.IsProvider(provider))
}

func TestProviderChangesAreIdempotent(t *testing.T) {
	r, rec := newTestRegistry()

	require.NoError(t, r.AddProvider(owner, provider))
	require.NoError(t, r.AddProvider(owner, provider))
	require.True(t, r.IsProvider(provider))
	require.Len(t, rec.Of(events.KindProviderAdded), 1)

	require.NoError(t, r.RemoveProvider(owner, provider))
	require.NoError(t, r.RemoveProvider(owner, provider))
	require.False(t, r.IsProvider(provider))
	require.Len(t, rec.Of(events.KindProviderRemoved), 1)

	require.ErrorIs(t, r.RequireProvider(provider), ErrNotProvider)
}

func TestPauseAndUnpause(t *testing.T) {
	r, rec := newTestRegistry()

	require.NoError(t, r.Unpause(owner))
	require.Zero(t, rec.Len())

	require.NoError(t, r.Pause(owner))
	require.True(t, r.Paused())
	require.ErrorIs(t, r.RequireNotPaused(), ErrPaused)
	require.ErrorIs(t, r.Pause(owner), ErrPaused)

	require.NoError(t, r.Unpause(owner))
	require.NoError(t, r.RequireNotPaused())

	require.Equal(t, []events.Event{
		events.ContractPaused{By: owner},
		events.ContractUnpaused{By: owner},
	}, rec.Events())
}

func TestSetCooldownEmitsPreviousAndCurrent(t *testing.T) {
	r, rec := newTestRegistry()

	require.NoError(t, r.SetCooldown(owner, 5))
	require.Equal(t, uint64(5), r.Cooldown())
	require.Equal(t, []events.Event{events.CooldownSet{Previous: 60, Current: 5}}, rec.Events())
}

func TestTransferOwnership(t *testing.T) {
	r, rec := newTestRegistry()

	require.ErrorIs(t, r.TransferOwnership(owner, common.Address{}), ErrZeroAddress)

	require.NoError(t, r.TransferOwnership(owner, owner))
	require.Zero(t, rec.Len())

	require.NoError(t, r.TransferOwnership(owner, provider))
	require.True(t, r.IsOwner(provider))
	require.False(t, r.IsProvider(provider))
	require.True(t, r.IsProvider(owner))
	require.ErrorIs(t, r.AddProvider(owner, stranger), ErrNotOwner)

	require.Equal(t, []events.Event{events.OwnershipTransferred{Previous: owner, Current: provider}}, rec.Events())
}

func TestExportRestore(t *testing.T) {
	r, _ := newTestRegistry()
	require.NoError(t, r.AddProvider(owner, stranger))
	require.NoError(t, r.AddProvider(owner, provider))
	require.NoError(t, r.Pause(owner))

	state := r.Export()
	require.Equal(t, []common.Address{owner, provider, stranger}, state.Providers)

	restored := NewRegistry(stranger, 0, nil)
	restored.Restore(state)

	require.Equal(t, state, restored.Export())
}

func TestLifecycleChangesLogUnderAccessComponent(t *testing.T) {
	var buf bytes.Buffer

	prev := slog.Default()
	slog.SetDefault(slog.New(logger.NewHandler(&buf)))
	defer slog.SetDefault(prev)

	r, _ := newTestRegistry()
	require.NoError(t, r.Pause(owner))

	line := buf.String()
	require.Contains(t, line, "[INF] contract paused")
	require.Contains(t, line, "component=access")
}
