package types

import "time"

// NoSignal marks a price level that carries no actionable signal
// (entry exhausted, channel not warmed up, side disabled).
const NoSignal float64 = -1

// Direction of a position or a fill. A fill in direction Long is a buy,
// a fill in direction Short is a sell.
type Direction string

const (
	DirectionNone  Direction = ""
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Opposite returns the mirror direction; DirectionNone maps to itself.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionNone
	}
}

// Offset distinguishes position-opening orders from position-closing ones.
type Offset string

const (
	OffsetOpen  Offset = "OPEN"
	OffsetClose Offset = "CLOSE"
)

// Tick is a single market price update for an instrument.
type Tick struct {
	Instrument string
	Price      float64
	Volume     float64
	Time       time.Time
}

// Bar is an OHLC aggregate of ticks over a fixed period. Open/High/Low/Close
// are mutated in place while the period is live and frozen once the period
// rolls over.
type Bar struct {
	Instrument string
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Start      time.Time
}

// OrderRequest is the abstract command handed to the order gateway.
// Stop marks a protective stop order; the gateway is expected to hold it
// until the stop level trades.
type OrderRequest struct {
	Instrument string
	Direction  Direction
	Offset     Offset
	Price      float64
	Volume     int
	Stop       bool
}

// Fill reports an executed trade back to the engine. ReportedPosition is
// the routing collaborator's view of the resulting signed position for the
// instrument; the engine treats it as authoritative when it disagrees with
// internal bookkeeping.
type Fill struct {
	Instrument       string
	OrderID          string
	Direction        Direction
	Price            float64
	Volume           int
	Time             time.Time
	ReportedPosition int
}

// AccountReport is the inbound account-update event.
type AccountReport struct {
	Balance   float64
	Available float64
}

// ContractMeta is the per-instrument metadata required for sizing.
type ContractMeta struct {
	Multiplier float64
	TickSize   float64
}
