package position

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantfix/pyra/types"
)

func TestSnapshotRoundTrip(t *testing.T) {
	p := New("IF2509")
	p.RefreshATR(2)
	require.NoError(t, p.ApplyFill(longFill(100, 3)))
	require.NoError(t, p.ApplyFill(longFill(102, 3)))

	snap := p.Snapshot()
	require.Equal(t, TrancheTwo, snap.State)
	require.Len(t, snap.Tranches, 2)

	restored, err := Restore(snap)
	require.NoError(t, err)
	require.Equal(t, p.TotalPosition(), restored.TotalPosition())
	require.Equal(t, p.OpenPrice(), restored.OpenPrice())
	require.Equal(t, p.StopPrice(), restored.StopPrice())

	// The restored position keeps pyramiding from where it left off.
	require.NoError(t, restored.ApplyFill(longFill(104, 3)))
	require.Equal(t, TrancheThree, restored.State())
}

func TestRestoreRejectsCorruptSnapshot(t *testing.T) {
	_, err := Restore(Snapshot{Instrument: "IF2509", State: State(9)})
	require.Error(t, err)

	// Tranche count must match the state index.
	_, err = Restore(Snapshot{
		Instrument: "IF2509",
		State:      TrancheTwo,
		Direction:  types.DirectionLong,
		Tranches:   []Tranche{{Price: 100, Volume: 3}},
	})
	require.Error(t, err)
}
