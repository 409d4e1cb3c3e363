package engine

import (
	"testing"

	"github.com/quantfix/pyra/config"
	"github.com/quantfix/pyra/testutils"
	"github.com/quantfix/pyra/types"
)

func openLongPosition(t *testing.T, e *Engine, gw *testutils.MockGateway) {
	t.Helper()
	warmEngine(t, e, 100)
	e.OnTick(tick(106, 0))
	entry, ok := gw.LastPlaced()
	if !ok {
		t.Fatal("entry order missing")
	}
	e.OnFill(fillFor(t, entry.ID, types.DirectionLong, 111, 5, 5))
}

func TestAccountUpdateTracksPeak(t *testing.T) {
	e, _, _ := buildEngine(t)
	e.OnAccount(types.AccountReport{Balance: 1_000_000, Available: 900_000})
	if e.Balance() != 1_000_000 {
		t.Fatalf("balance not recorded: %v", e.Balance())
	}
	// A lower balance keeps the old peak; no liquidation near the peak.
	e.OnAccount(types.AccountReport{Balance: 950_000})
	if e.Balance() != 950_000 {
		t.Fatalf("balance not updated: %v", e.Balance())
	}
}

func TestDrawdownTriggersCloseAll(t *testing.T) {
	e, gw, log := buildEngine(t)
	openLongPosition(t, e, gw)

	e.OnAccount(types.AccountReport{Balance: 1_000_000})
	before := len(gw.Placed())

	// Scenario: balance collapses to 0.9% of peak with a 1% trigger.
	e.OnAccount(types.AccountReport{Balance: 9_000})

	placed := gw.Placed()[before:]
	if len(placed) != 1 {
		t.Fatalf("expected one close-all order, got %d", len(placed))
	}
	req := placed[0].Req
	if req.Direction != types.DirectionShort || req.Offset != types.OffsetClose || req.Volume != 5 {
		t.Fatalf("unexpected close-all order: %+v", req)
	}
	// Aggressive: last tick 106 minus the 10-tick close slippage.
	if req.Price != 96 {
		t.Fatalf("expected close price 96, got %v", req.Price)
	}
	if !log.Contains("drawdown_limit_hit") {
		t.Fatalf("kill-switch not logged: %v", log.Messages())
	}
}

func TestDrawdownIgnoresFlatInstruments(t *testing.T) {
	e, gw, _ := buildEngine(t)
	warmEngine(t, e, 100) // flat, no position

	e.OnAccount(types.AccountReport{Balance: 1_000_000})
	before := len(gw.Placed())
	e.OnAccount(types.AccountReport{Balance: 9_000})

	if got := len(gw.Placed()) - before; got != 0 {
		t.Fatalf("close-all touched flat instrument: %d orders", got)
	}
}

func TestSuspendEntriesAfterDrawdown(t *testing.T) {
	cfg := config.Default()
	cfg.SuspendEntriesOnDrawdown = true
	cfg.Instruments = []config.InstrumentConfig{{Symbol: testInstrument, Multiplier: 300, TickSize: 0.2}}
	gw := testutils.NewMockGateway()
	log := testutils.NewMockLogger()
	e, err := New(cfg, gw, testutils.StaticContracts{testInstrument: {Multiplier: 300, TickSize: 0.2}}, log)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	warmEngine(t, e, 100)
	e.OnAccount(types.AccountReport{Balance: 1_000_000})
	e.OnAccount(types.AccountReport{Balance: 9_000}) // trips the kill-switch

	before := len(gw.Placed())
	e.OnTick(tick(106, 0))
	if len(gw.Placed()) != before {
		t.Fatal("entry placed while suspended")
	}

	// Recovery above the trigger threshold resumes trading.
	e.OnAccount(types.AccountReport{Balance: 50_000})
	if !log.Contains("entries_resumed") {
		t.Fatalf("resume not logged: %v", log.Messages())
	}
	e.OnTick(tick(106.5, 1))
	if len(gw.Placed()) != before+1 {
		t.Fatalf("entry not placed after resume: %d placements", len(gw.Placed()))
	}
}
