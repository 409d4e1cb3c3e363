package indicator

import (
	"math"

	"github.com/quantfix/pyra/types"
)

// Report carries the channel extremes and the volatility measure computed
// from one completed bar.
type Report struct {
	ExitHigh  float64 // highest high over the exit (10-period) channel
	ExitLow   float64 // lowest low over the exit channel
	EntryHigh float64 // highest high over the entry (20-period) channel
	EntryLow  float64 // lowest low over the entry channel
	ATR       float64
}

// Pipeline maintains the rolling high/low/close windows for one instrument
// and derives channel extremes plus a Wilder-smoothed ATR on every
// completed bar. Channel windows exclude the newest bar.
type Pipeline struct {
	bufferSize int
	entryLen   int
	exitLen    int
	atrLen     int

	highs  *Buffer
	lows   *Buffer
	closes *Buffer

	prevClose float64
	trSum     float64
	trCount   int
	atrValue  float64
}

func NewPipeline(bufferSize, entryLen, exitLen, atrLen int) *Pipeline {
	return &Pipeline{
		bufferSize: bufferSize,
		entryLen:   entryLen,
		exitLen:    exitLen,
		atrLen:     atrLen,
		highs:      NewBuffer(bufferSize),
		lows:       NewBuffer(bufferSize),
		closes:     NewBuffer(bufferSize),
		atrValue:   types.NoSignal,
	}
}

// Push ingests a completed bar. The report is valid only once the rolling
// window is full; until then ok is false and no signal may be derived.
func (p *Pipeline) Push(bar types.Bar) (Report, bool) {
	p.updateATR(bar)

	p.highs.Push(bar.High)
	p.lows.Push(bar.Low)
	p.closes.Push(bar.Close)

	if !p.highs.Full() {
		return Report{}, false
	}
	return Report{
		ExitHigh:  p.highs.MaxExcludingLast(p.exitLen),
		ExitLow:   p.lows.MinExcludingLast(p.exitLen),
		EntryHigh: p.highs.MaxExcludingLast(p.entryLen),
		EntryLow:  p.lows.MinExcludingLast(p.entryLen),
		ATR:       p.atrValue,
	}, true
}

// ATR returns the current volatility value, or types.NoSignal while the
// true-range sample count is below the lookback.
func (p *Pipeline) ATR() float64 { return p.atrValue }

// Warm reports whether the rolling window has filled.
func (p *Pipeline) Warm() bool { return p.highs.Full() }

// updateATR folds one bar into the Wilder-smoothed true-range average.
// The first defined value is the plain mean of the first atrLen samples;
// every later bar applies atr = (atr*(n-1) + tr) / n.
func (p *Pipeline) updateATR(bar types.Bar) {
	tr := bar.High - bar.Low
	if p.prevClose != 0 {
		tr = math.Max(tr, math.Max(
			math.Abs(bar.High-p.prevClose),
			math.Abs(bar.Low-p.prevClose),
		))
	}
	p.prevClose = bar.Close

	p.trCount++
	switch {
	case p.trCount < p.atrLen:
		p.trSum += tr
	case p.trCount == p.atrLen:
		p.trSum += tr
		p.atrValue = p.trSum / float64(p.atrLen)
	default:
		p.atrValue = (p.atrValue*float64(p.atrLen-1) + tr) / float64(p.atrLen)
	}
}
