package engine

import (
	"testing"
	"time"

	"github.com/quantfix/pyra/position"
	"github.com/quantfix/pyra/types"
)

// fillFor acknowledges the latest placed order with the given reported
// resulting position.
func fillFor(t *testing.T, id string, dir types.Direction, price float64, volume, reported int) types.Fill {
	t.Helper()
	return types.Fill{
		Instrument:       testInstrument,
		OrderID:          id,
		Direction:        dir,
		Price:            price,
		Volume:           volume,
		Time:             barStart.Add(31 * time.Minute),
		ReportedPosition: reported,
	}
}

func TestEntryFillOpensTrancheAndIssuesStop(t *testing.T) {
	e, gw, _ := buildEngine(t)
	warmEngine(t, e, 100)

	e.OnTick(tick(106, 0))
	entry, _ := gw.LastPlaced()

	e.OnFill(fillFor(t, entry.ID, types.DirectionLong, 111, 5, 5))

	snap, _ := e.Snapshot(testInstrument)
	if snap.Position.State != position.TrancheOne {
		t.Fatalf("expected tranche_one, got %s", snap.Position.State)
	}
	if snap.Position.TotalPosition != 5 {
		t.Fatalf("expected total 5, got %d", snap.Position.TotalPosition)
	}
	// ATR 2: add-on at 111+1, volatility stop at 111-4; the exit channel
	// low (99) is looser, so the volatility stop wins.
	if snap.BuyPrice != 112 {
		t.Fatalf("expected add-on level 112, got %v", snap.BuyPrice)
	}
	if snap.ShortPrice != types.NoSignal {
		t.Fatalf("short side must be disabled while long, got %v", snap.ShortPrice)
	}
	if snap.StopPrice != 107 {
		t.Fatalf("expected stop 107, got %v", snap.StopPrice)
	}

	stop, ok := gw.LastPlaced()
	if !ok || !stop.Req.Stop {
		t.Fatalf("expected a stop order, got %+v", stop)
	}
	if stop.Req.Direction != types.DirectionShort || stop.Req.Volume != 5 || stop.Req.Price != 107 {
		t.Fatalf("unexpected stop order: %+v", stop.Req)
	}
}

func TestUnchangedStopIsNotReissued(t *testing.T) {
	e, gw, _ := buildEngine(t)
	warmEngine(t, e, 100)

	e.OnTick(tick(106, 0))
	entry, _ := gw.LastPlaced()
	e.OnFill(fillFor(t, entry.ID, types.DirectionLong, 111, 5, 5))

	before := len(gw.Placed())
	// Another steady bar: same ATR, same anchor, stop level unchanged.
	e.OnBar(steadyBar(31, 100))
	if got := len(gw.Placed()); got != before {
		t.Fatalf("stop reissued without a level change: %d -> %d placements", before, got)
	}
	if len(gw.Canceled()) != 0 {
		t.Fatalf("unexpected cancels: %v", gw.Canceled())
	}
}

func TestStopReissueCancelsPredecessor(t *testing.T) {
	e, gw, _ := buildEngine(t)
	warmEngine(t, e, 100)

	e.OnTick(tick(106, 0))
	entry, _ := gw.LastPlaced()
	e.OnFill(fillFor(t, entry.ID, types.DirectionLong, 111, 5, 5))
	firstStop, _ := gw.LastPlaced()

	// A second tranche moves the anchor: the stop must be replaced, and
	// the old stop canceled before the new one goes out.
	e.OnTick(tick(113, time.Second))
	addOn, _ := gw.LastPlaced()
	if addOn.Req.Stop || addOn.Req.Direction != types.DirectionLong {
		t.Fatalf("expected add-on entry, got %+v", addOn.Req)
	}
	e.OnFill(fillFor(t, addOn.ID, types.DirectionLong, 118, 5, 10))

	canceled := gw.Canceled()
	if len(canceled) != 1 || canceled[0] != firstStop.ID {
		t.Fatalf("expected old stop %s canceled, got %v", firstStop.ID, canceled)
	}
	newStop, _ := gw.LastPlaced()
	if !newStop.Req.Stop || newStop.Req.Volume != 10 || newStop.Req.Price != 114 { // 118 - 2*2
		t.Fatalf("unexpected replacement stop: %+v", newStop.Req)
	}

	snap, _ := e.Snapshot(testInstrument)
	if snap.Position.State != position.TrancheTwo || snap.Position.TotalPosition != 10 {
		t.Fatalf("pyramid did not advance: %+v", snap.Position)
	}
}

func TestStopFillResetsToReady(t *testing.T) {
	e, gw, _ := buildEngine(t)
	warmEngine(t, e, 100)

	e.OnTick(tick(106, 0))
	entry, _ := gw.LastPlaced()
	e.OnFill(fillFor(t, entry.ID, types.DirectionLong, 111, 5, 5))
	stop, _ := gw.LastPlaced()

	e.OnFill(fillFor(t, stop.ID, types.DirectionShort, 107, 5, 0))

	snap, _ := e.Snapshot(testInstrument)
	if snap.Position.State != position.Ready || snap.Position.TotalPosition != 0 {
		t.Fatalf("stop fill did not reset: %+v", snap.Position)
	}
	if len(snap.Position.Tranches) != 0 {
		t.Fatalf("tranche records survived the reset: %+v", snap.Position.Tranches)
	}
	// Levels revert to the breakout channel.
	if snap.BuyPrice != 101 || snap.ShortPrice != 99 {
		t.Fatalf("levels not re-armed after reset: buy=%v short=%v", snap.BuyPrice, snap.ShortPrice)
	}
	if snap.StopPrice != types.NoSignal {
		t.Fatalf("stop level survived the reset: %v", snap.StopPrice)
	}
}

func TestPartialStopFillDoesNotReset(t *testing.T) {
	e, gw, log := buildEngine(t)
	warmEngine(t, e, 100)

	e.OnTick(tick(106, 0))
	entry, _ := gw.LastPlaced()
	e.OnFill(fillFor(t, entry.ID, types.DirectionLong, 111, 5, 5))
	stop, _ := gw.LastPlaced()

	// Only 3 of 5 contracts traded: reported position is still 2.
	e.OnFill(fillFor(t, stop.ID, types.DirectionShort, 107, 3, 2))

	snap, _ := e.Snapshot(testInstrument)
	if snap.Position.State != position.TrancheOne {
		t.Fatalf("partial stop fill reset the pyramid: %+v", snap.Position)
	}
	if !log.Contains("partial_stop_fill") {
		t.Fatalf("partial stop fill not logged: %v", log.Messages())
	}
}

func TestPositionMismatchIsLoggedNotFatal(t *testing.T) {
	e, gw, log := buildEngine(t)
	warmEngine(t, e, 100)

	e.OnTick(tick(106, 0))
	entry, _ := gw.LastPlaced()
	// Routing reports 4 where our bookkeeping will say 5.
	e.OnFill(fillFor(t, entry.ID, types.DirectionLong, 111, 5, 4))

	if !log.Contains("position_mismatch") {
		t.Fatalf("mismatch not logged: %v", log.Messages())
	}
	// Processing continued: the stop order still went out.
	last, _ := gw.LastPlaced()
	if !last.Req.Stop {
		t.Fatalf("expected stop order after mismatch, got %+v", last.Req)
	}
}

func TestChannelClampsLooseVolatilityStop(t *testing.T) {
	e, gw, _ := buildEngine(t)
	warmEngine(t, e, 100)

	e.OnTick(tick(106, 0))
	entry, _ := gw.LastPlaced()
	// Filled well below the trigger: the volatility stop (100-4=96) sits
	// under the exit channel low (99), so the channel level wins.
	e.OnFill(fillFor(t, entry.ID, types.DirectionLong, 100, 5, 5))

	snap, _ := e.Snapshot(testInstrument)
	if snap.StopPrice != 99 {
		t.Fatalf("expected channel-clamped stop 99, got %v", snap.StopPrice)
	}
	stop, _ := gw.LastPlaced()
	if !stop.Req.Stop || stop.Req.Price != 99 {
		t.Fatalf("expected stop order at 99, got %+v", stop.Req)
	}
}

func TestChannelClampsLooseVolatilityStopShort(t *testing.T) {
	e, gw, _ := buildEngine(t)
	warmEngine(t, e, 100)

	e.OnTick(tick(94, 0))
	entry, _ := gw.LastPlaced()
	if entry.Req.Direction != types.DirectionShort {
		t.Fatalf("expected short entry, got %+v", entry.Req)
	}
	// Filled at 98: the volatility stop (98+4=102) sits above the exit
	// channel high (101), so the channel level wins.
	e.OnFill(fillFor(t, entry.ID, types.DirectionShort, 98, 5, -5))

	snap, _ := e.Snapshot(testInstrument)
	if snap.StopPrice != 101 {
		t.Fatalf("expected channel-clamped stop 101, got %v", snap.StopPrice)
	}
	stop, _ := gw.LastPlaced()
	if !stop.Req.Stop || stop.Req.Price != 101 || stop.Req.Direction != types.DirectionLong {
		t.Fatalf("expected covering stop at 101, got %+v", stop.Req)
	}
}

func TestFourTranchesExhaustEntries(t *testing.T) {
	e, gw, _ := buildEngine(t)
	warmEngine(t, e, 100)

	total := 0
	next := 106.0
	for i := 0; i < 4; i++ {
		e.OnTick(tick(next, time.Duration(i)*time.Second))
		entry, ok := gw.LastPlaced()
		if !ok || entry.Req.Stop {
			t.Fatalf("tranche %d: expected entry order, got %+v", i+1, entry)
		}
		total += entry.Req.Volume
		e.OnFill(fillFor(t, entry.ID, types.DirectionLong, entry.Req.Price, entry.Req.Volume, total))

		snap, _ := e.Snapshot(testInstrument)
		next = snap.BuyPrice + 1
	}

	snap, _ := e.Snapshot(testInstrument)
	if snap.Position.State != position.TrancheFour {
		t.Fatalf("expected tranche_four, got %s", snap.Position.State)
	}
	if snap.BuyPrice != types.NoSignal {
		t.Fatalf("entries must be exhausted in tranche_four, got buy=%v", snap.BuyPrice)
	}

	// A further breakout-sized tick places nothing.
	before := len(gw.Placed())
	e.OnTick(tick(500, time.Minute))
	// The rollover bar itself may replace the stop; entry orders must not
	// appear.
	for _, p := range gw.Placed()[before:] {
		if !p.Req.Stop {
			t.Fatalf("entry placed in tranche_four: %+v", p.Req)
		}
	}
}
