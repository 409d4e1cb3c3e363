package position

import (
	"errors"
	"time"

	"github.com/quantfix/pyra/types"
)

// MaxTranches is the number of sequential entries a single directional
// position may accumulate.
const MaxTranches = 4

// State of the pyramid. Transitions move strictly forward on entry fills
// and reset to Ready only when a stop fill flattens the position.
type State int

const (
	Ready State = iota
	TrancheOne
	TrancheTwo
	TrancheThree
	TrancheFour
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case TrancheOne:
		return "tranche_one"
	case TrancheTwo:
		return "tranche_two"
	case TrancheThree:
		return "tranche_three"
	case TrancheFour:
		return "tranche_four"
	default:
		return "invalid"
	}
}

var (
	// ErrDirectionMismatch flags an entry fill whose direction contradicts
	// the open position without flattening it. This should never happen
	// under correct order management; the caller logs and continues.
	ErrDirectionMismatch = errors.New("position: fill direction contradicts open position")

	// ErrEntriesExhausted flags an entry fill arriving after the fourth
	// tranche.
	ErrEntriesExhausted = errors.New("position: all tranches filled")
)

// Tranche records one pyramided entry.
type Tranche struct {
	Price  float64
	Volume int // signed: positive long, negative short
	Time   time.Time
	ATR    float64
}

// Position is the per-instrument pyramid bookkeeping. All fields are owned
// by the engine's per-instrument runtime; there is no internal locking.
type Position struct {
	instrument string
	state      State
	direction  types.Direction
	tranches   [MaxTranches]Tranche
	total      int

	openPrice float64 // next add-on entry level, NoSignal when exhausted
	stopPrice float64 // volatility-based protective stop level
	atr       float64 // latest ATR applied to the offsets
}

func New(instrument string) *Position {
	return &Position{
		instrument: instrument,
		openPrice:  types.NoSignal,
		stopPrice:  types.NoSignal,
	}
}

func (p *Position) Instrument() string         { return p.instrument }
func (p *Position) State() State               { return p.state }
func (p *Position) Direction() types.Direction { return p.direction }
func (p *Position) TotalPosition() int         { return p.total }
func (p *Position) OpenPrice() float64         { return p.openPrice }
func (p *Position) StopPrice() float64         { return p.stopPrice }

// Tranches returns the populated tranche records, oldest first.
func (p *Position) Tranches() []Tranche {
	n := int(p.state)
	out := make([]Tranche, n)
	copy(out, p.tranches[:n])
	return out
}

// ApplyFill advances the pyramid by one tranche. The fill must be in the
// position's direction (or establish it from Ready); volume is the
// unsigned executed quantity.
func (p *Position) ApplyFill(fill types.Fill) error {
	if p.state == TrancheFour {
		return ErrEntriesExhausted
	}
	if p.state != Ready && fill.Direction != p.direction {
		return ErrDirectionMismatch
	}
	if p.state == Ready {
		p.direction = fill.Direction
	}

	signed := fill.Volume
	if p.direction == types.DirectionShort {
		signed = -fill.Volume
	}
	idx := int(p.state)
	p.tranches[idx] = Tranche{
		Price:  fill.Price,
		Volume: signed,
		Time:   fill.Time,
		ATR:    p.atr,
	}
	p.total += signed

	switch p.state {
	case Ready:
		p.state = TrancheOne
	case TrancheOne:
		p.state = TrancheTwo
	case TrancheTwo:
		p.state = TrancheThree
	case TrancheThree:
		p.state = TrancheFour
	case TrancheFour:
		// unreachable, guarded above
	}
	p.reprice()
	return nil
}

// RefreshATR re-derives the open/stop levels for the active tranche from
// the latest volatility. The anchor stays the current tranche's fill
// price, so calling twice with the same ATR is a no-op. Ready positions
// only cache the ATR for the next first fill.
func (p *Position) RefreshATR(atr float64) {
	p.atr = atr
	p.reprice()
}

// reprice applies the ±atr/2 entry and ∓2·atr stop offsets to the fill
// price of the current tranche. In TrancheFour no further entry exists.
func (p *Position) reprice() {
	if p.state == Ready {
		return
	}
	anchor := p.tranches[int(p.state)-1].Price
	half := p.atr / 2
	wide := 2 * p.atr

	switch p.direction {
	case types.DirectionLong:
		p.openPrice = anchor + half
		p.stopPrice = anchor - wide
	case types.DirectionShort:
		p.openPrice = anchor - half
		p.stopPrice = anchor + wide
	case types.DirectionNone:
		// direction is always set outside Ready; nothing to derive
		return
	}
	if p.state == TrancheFour {
		p.openPrice = types.NoSignal
	}
}

// Reset clears every field back to a fresh Ready position. Triggered
// exclusively by a stop fill that brings the total position to zero.
func (p *Position) Reset() {
	*p = Position{
		instrument: p.instrument,
		openPrice:  types.NoSignal,
		stopPrice:  types.NoSignal,
	}
}
