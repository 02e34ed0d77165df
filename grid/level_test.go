package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLevel() Level {
	return Level{Index: 0, EntryPrice: dec("100"), ExitPrice: dec("101"), QtyPlanned: 10, Status: Planned}
}

func TestLevelBacktestLifecycle(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	lv := newLevel()

	require.NoError(t, lv.FillEntry(10, at))
	assert.Equal(t, EntryFilled, lv.Status)
	assert.True(t, lv.Triggered())
	assert.Equal(t, int64(10), lv.PendingExitQty())
	assert.Equal(t, int64(0), lv.PendingEntryQty())
	assert.True(t, lv.EntryFilledAt.Equal(at))

	later := at.Add(time.Hour)
	require.NoError(t, lv.FillExit(10, later))
	assert.Equal(t, Done, lv.Status)
	assert.True(t, lv.ExitFilledAt.Equal(later))
	assert.True(t, lv.Status.Terminal())
}

func TestLevelPlacedLifecycle(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	lv := newLevel()

	require.NoError(t, lv.PlaceEntry("ord-1"))
	assert.Equal(t, EntryPlaced, lv.Status)
	assert.Equal(t, "ord-1", lv.EntryOrderID)

	require.NoError(t, lv.FillEntry(5, at))
	assert.Equal(t, EntryPlaced, lv.Status, "partial fill keeps the order working")
	assert.Equal(t, int64(5), lv.PendingEntryQty())

	require.NoError(t, lv.SettleEntry())
	assert.Equal(t, EntryFilled, lv.Status)
	assert.Empty(t, lv.EntryOrderID)

	require.NoError(t, lv.PlaceExit("ord-2"))
	assert.Equal(t, ExitPlaced, lv.Status)
	require.NoError(t, lv.FillExit(2, at))
	assert.Equal(t, ExitPlaced, lv.Status)

	require.NoError(t, lv.SettleExit())
	assert.Equal(t, EntryFilled, lv.Status)
	assert.Equal(t, int64(3), lv.PendingExitQty())

	require.NoError(t, lv.PlaceExit("ord-3"))
	require.NoError(t, lv.FillExit(3, at))
	assert.Equal(t, Done, lv.Status)
}

func TestLevelSettleEntryWithoutFillReverts(t *testing.T) {
	t.Parallel()

	lv := newLevel()
	require.NoError(t, lv.PlaceEntry("ord-1"))
	require.NoError(t, lv.SettleEntry())
	assert.Equal(t, Planned, lv.Status)
	assert.False(t, lv.Triggered())
}

func TestLevelIllegalTransitions(t *testing.T) {
	t.Parallel()

	at := time.Now()

	lv := newLevel()
	err := lv.FillExit(10, at)
	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "PLANNED", se.From)
	assert.Equal(t, "DONE", se.To)
	assert.Equal(t, Planned, lv.Status)

	require.NoError(t, lv.FillEntry(10, at))
	require.NoError(t, lv.FillExit(10, at))

	require.ErrorAs(t, lv.FillEntry(1, at), &se)
	require.ErrorAs(t, lv.Cancel(), &se)
	require.ErrorAs(t, lv.PlaceExit("x"), &se)
	assert.Equal(t, Done, lv.Status)

	empty := newLevel()
	assert.Error(t, empty.FillEntry(0, at))
}

func TestLevelCancel(t *testing.T) {
	t.Parallel()

	lv := newLevel()
	require.NoError(t, lv.Cancel())
	assert.Equal(t, Cancelled, lv.Status)
	assert.True(t, lv.Status.Terminal())

	var se *StateError
	require.ErrorAs(t, lv.FillEntry(10, time.Now()), &se)

	open := newLevel()
	require.NoError(t, open.FillEntry(10, time.Now()))
	require.NoError(t, open.Cancel())
}

func TestLevelStatusCanTransition(t *testing.T) {
	t.Parallel()

	assert.True(t, Planned.CanTransition(EntryFilled))
	assert.True(t, EntryFilled.CanTransition(Done))
	assert.False(t, Planned.CanTransition(Done))
	assert.False(t, Done.CanTransition(Planned))
	assert.False(t, Cancelled.CanTransition(EntryFilled))
}

func TestEntryAndExitCrossed(t *testing.T) {
	t.Parallel()

	long := newLevel()
	assert.True(t, EntryCrossed(Long, long, dec("100")))
	assert.True(t, EntryCrossed(Long, long, dec("99.5")))
	assert.False(t, EntryCrossed(Long, long, dec("100.01")))

	reason, ok := ExitCrossed(Long, long, dec("101"))
	assert.True(t, ok)
	assert.Equal(t, ExitTarget, reason)
	_, ok = ExitCrossed(Long, long, dec("100.99"))
	assert.False(t, ok)

	short := Level{EntryPrice: dec("100"), ExitPrice: dec("99"), QtyPlanned: 1, Status: Planned}
	assert.True(t, EntryCrossed(Short, short, dec("100.5")))
	assert.False(t, EntryCrossed(Short, short, dec("99.99")))
	reason, ok = ExitCrossed(Short, short, dec("98"))
	assert.True(t, ok)
	assert.Equal(t, ExitTarget, reason)
}

func TestExitCrossedGuardianFirst(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(Long)
	cfg.GuardianMode = Absolute
	cfg.GuardianValue = dec("0.5")
	levels, err := BuildLadder(cfg)
	require.NoError(t, err)

	lv := levels[0]
	require.True(t, lv.GuardianPrice.Decimal.Equal(dec("100.5")))

	reason, ok := ExitCrossed(Long, lv, dec("100.5"))
	require.True(t, ok)
	assert.Equal(t, ExitGuardian, reason)

	reason, ok = ExitCrossed(Long, lv, dec("101"))
	require.True(t, ok)
	assert.Equal(t, ExitGuardian, reason, "guardian short-circuits the target")

	_, ok = ExitCrossed(Long, lv, dec("100.4"))
	assert.False(t, ok)
}
