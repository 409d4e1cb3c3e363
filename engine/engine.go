package engine

import (
	"sync"

	"github.com/quantfix/pyra/config"
	"github.com/quantfix/pyra/gateway"
	"github.com/quantfix/pyra/indicator"
	"github.com/quantfix/pyra/logger"
	"github.com/quantfix/pyra/market"
	"github.com/quantfix/pyra/metrics"
	"github.com/quantfix/pyra/position"
	"github.com/quantfix/pyra/risk"
	"github.com/quantfix/pyra/types"
)

// ContractSource is the contract-metadata collaborator required by the
// position sizer.
type ContractSource interface {
	Contract(instrument string) (types.ContractMeta, error)
}

// HistoryLoader supplies historical bars for pre-warming the rolling
// buffers at initialization.
type HistoryLoader interface {
	LoadBars(instrument string, lookbackDays int) ([]types.Bar, error)
}

// Runtime is the per-instrument state bundle. It is exclusively owned by
// the engine, keyed by instrument, and never shared across instruments.
type Runtime struct {
	instrument string
	agg        *market.Aggregator
	pipe       *indicator.Pipeline
	pos        *position.Position
	working    workingOrders

	report indicator.Report
	warm   bool

	// cached breakout levels; types.NoSignal (or 0) disables a side
	buyPrice   float64
	shortPrice float64
	stopPrice  float64

	lastIssuedStop float64 // stop level of the currently working stop order
	lastPrice      float64
	openVolume     int

	excluded bool // sizing impossible: missing contract metadata
}

// Engine is the deterministic per-instrument decision core. All event
// callbacks (OnTick, OnBar, OnFill, OnAccount) and the snapshot and
// persistence methods must run on one event-loop goroutine: the runtime
// map and its bundles are unguarded. The mutex only makes the account
// aggregates readable from other goroutines via Balance.
type Engine struct {
	cfg       config.EngineConfig
	gw        gateway.Gateway
	contracts ContractSource
	log       logger.Logger

	runtimes map[string]*Runtime

	mu        sync.Mutex // guards balance/available/peak/suspended
	balance   float64
	available float64
	peak      float64
	suspended bool
}

func New(cfg config.EngineConfig, gw gateway.Gateway, contracts ContractSource, log logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		gw:        gw,
		contracts: contracts,
		log:       log,
		runtimes:  make(map[string]*Runtime),
	}, nil
}

// runtime returns the state bundle for an instrument, creating it on
// first use.
func (e *Engine) runtime(instrument string) *Runtime {
	rt, ok := e.runtimes[instrument]
	if !ok {
		rt = &Runtime{
			instrument: instrument,
			agg:        market.NewAggregator(instrument, e.cfg.Period),
			pipe:       indicator.NewPipeline(e.cfg.BufferSize, e.cfg.EntryChannelLength, e.cfg.ExitChannelLength, e.cfg.ATRLength),
			pos:        position.New(instrument),
			buyPrice:   types.NoSignal,
			shortPrice: types.NoSignal,
			stopPrice:  types.NoSignal,
		}
		e.runtimes[instrument] = rt
	}
	return rt
}

// Warmup replays historical bars through the indicator pipeline so that
// channel extremes and ATR are defined before the first live tick.
func (e *Engine) Warmup(loader HistoryLoader) error {
	for _, inst := range e.cfg.Instruments {
		bars, err := loader.LoadBars(inst.Symbol, e.cfg.WarmupDays)
		if err != nil {
			return err
		}
		rt := e.runtime(inst.Symbol)
		for _, bar := range bars {
			e.processBar(rt, bar)
		}
		e.log.Info("warmup_complete",
			logger.String("instrument", inst.Symbol),
			logger.Int("bars", len(bars)),
			logger.Float64("atr", rt.pipe.ATR()),
		)
	}
	return nil
}

// OnTick processes one market tick: breakout entry check first, then bar
// aggregation, with any completed bar flowing through the indicator and
// level pipeline.
func (e *Engine) OnTick(tick types.Tick) {
	rt := e.runtime(tick.Instrument)
	e.maybeEnter(rt, tick)
	rt.lastPrice = tick.Price
	if bar, done := rt.agg.Apply(tick); done {
		e.processBar(rt, bar)
	}
}

// OnBar feeds an externally aggregated completed bar (replay, day bars
// from a data vendor) through the same path a live rollover takes.
func (e *Engine) OnBar(bar types.Bar) {
	rt := e.runtime(bar.Instrument)
	rt.lastPrice = bar.Close
	e.processBar(rt, bar)
}

// maybeEnter places a breakout entry order when the tick trades through a
// cached entry level. At most one entry order per instrument may be
// working; a level of zero or NoSignal disables its side.
func (e *Engine) maybeEnter(rt *Runtime, tick types.Tick) {
	if rt.openVolume <= 0 || rt.working.hasEntry() || e.entriesSuspended() {
		return
	}

	switch {
	case rt.buyPrice > 0 && tick.Price > rt.buyPrice:
		price := tick.Price + e.cfg.EntrySlippageTicks
		e.placeEntry(rt, types.DirectionLong, price)
	case rt.shortPrice > 0 && tick.Price < rt.shortPrice:
		price := tick.Price - e.cfg.EntrySlippageTicks
		e.placeEntry(rt, types.DirectionShort, price)
	}
}

func (e *Engine) placeEntry(rt *Runtime, dir types.Direction, price float64) {
	id := e.gw.Place(types.OrderRequest{
		Instrument: rt.instrument,
		Direction:  dir,
		Offset:     types.OffsetOpen,
		Price:      price,
		Volume:     rt.openVolume,
	})
	if id == "" {
		// Routing refusal: nothing is recorded; the next tick through the
		// level retries naturally.
		metrics.OrdersRefused.Inc()
		e.log.Warn("entry_order_refused",
			logger.String("instrument", rt.instrument),
			logger.String("direction", string(dir)),
			logger.Float64("price", price),
		)
		return
	}
	if err := rt.working.setEntry(dir, id); err != nil {
		e.log.Warn("duplicate_order_outstanding",
			logger.String("instrument", rt.instrument),
			logger.String("direction", string(dir)),
			logger.String("order_id", id),
			logger.Err(err),
		)
	}
	metrics.OrdersPlaced.WithLabelValues("entry").Inc()
	e.log.Info("entry_order_placed",
		logger.String("instrument", rt.instrument),
		logger.String("direction", string(dir)),
		logger.String("state", rt.pos.State().String()),
		logger.Float64("price", price),
		logger.Int("volume", rt.openVolume),
		logger.String("order_id", id),
	)
}

// processBar runs the per-bar pipeline: stale entry cleanup, indicator
// update, sizing, ATR refresh and level recomputation.
func (e *Engine) processBar(rt *Runtime, bar types.Bar) {
	e.cancelStaleEntries(rt)

	report, ok := rt.pipe.Push(bar)
	if !ok {
		return
	}
	rt.report = report
	rt.warm = true

	if report.ATR == types.NoSignal {
		return
	}

	e.sizeOpenVolume(rt, report.ATR)
	rt.pos.RefreshATR(report.ATR)
	e.setPriceLevels(rt)
}

// sizeOpenVolume recomputes the entry volume from the latest ATR and
// account equity. Missing contract metadata is fatal for the instrument
// until the collaborator resolves it.
func (e *Engine) sizeOpenVolume(rt *Runtime, atr float64) {
	meta, err := e.contracts.Contract(rt.instrument)
	if err != nil || meta.Multiplier <= 0 {
		if !rt.excluded {
			e.log.Error("missing_contract_metadata",
				logger.String("instrument", rt.instrument),
				logger.String("state", rt.pos.State().String()),
				logger.Err(err),
			)
		}
		rt.excluded = true
		rt.openVolume = 0
		return
	}
	if rt.excluded {
		e.log.Info("instrument_reinstated", logger.String("instrument", rt.instrument))
		rt.excluded = false
	}

	volume, clamped, err := risk.OpenVolume(e.Balance(), e.cfg.RiskFraction, e.cfg.FallbackEquity, atr, meta)
	if err != nil {
		rt.excluded = true
		rt.openVolume = 0
		e.log.Error("sizing_failed",
			logger.String("instrument", rt.instrument),
			logger.Err(err),
		)
		return
	}
	if clamped {
		e.log.Warn("insufficient_capital",
			logger.String("instrument", rt.instrument),
			logger.Float64("atr", atr),
			logger.Float64("balance", e.Balance()),
		)
	}
	rt.openVolume = volume
}

// cancelStaleEntries drops entry orders left over from the previous bar
// that never filled.
func (e *Engine) cancelStaleEntries(rt *Runtime) {
	if rt.working.buy != "" {
		e.gw.Cancel(rt.working.buy)
		metrics.OrdersCanceled.WithLabelValues("entry").Inc()
		e.log.Info("stale_buy_order_canceled",
			logger.String("instrument", rt.instrument),
			logger.String("order_id", rt.working.buy),
		)
		rt.working.buy = ""
	}
	if rt.working.short != "" {
		e.gw.Cancel(rt.working.short)
		metrics.OrdersCanceled.WithLabelValues("entry").Inc()
		e.log.Info("stale_short_order_canceled",
			logger.String("instrument", rt.instrument),
			logger.String("order_id", rt.working.short),
		)
		rt.working.short = ""
	}
}

func (e *Engine) entriesSuspended() bool {
	if !e.cfg.SuspendEntriesOnDrawdown {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suspended
}

// Balance returns the latest reported account balance (zero until the
// first account update arrives).
func (e *Engine) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}
