package position

import (
	"fmt"

	"github.com/quantfix/pyra/types"
)

// Snapshot is the read-only, serializable view of a Position used for
// monitoring and persistence. The engine exports it on demand; the core
// performs no I/O itself.
type Snapshot struct {
	Instrument    string          `json:"instrument"`
	State         State           `json:"state"`
	Direction     types.Direction `json:"direction"`
	Tranches      []Tranche       `json:"tranches"`
	TotalPosition int             `json:"totalPosition"`
	OpenPrice     float64         `json:"openPrice"`
	StopPrice     float64         `json:"stopPrice"`
	ATR           float64         `json:"atr"`
}

// Snapshot exports the current bookkeeping.
func (p *Position) Snapshot() Snapshot {
	return Snapshot{
		Instrument:    p.instrument,
		State:         p.state,
		Direction:     p.direction,
		Tranches:      p.Tranches(),
		TotalPosition: p.total,
		OpenPrice:     p.openPrice,
		StopPrice:     p.stopPrice,
		ATR:           p.atr,
	}
}

// Restore rebuilds a Position from a persisted snapshot.
func Restore(snap Snapshot) (*Position, error) {
	if snap.State < Ready || snap.State > TrancheFour {
		return nil, fmt.Errorf("position: invalid state %d in snapshot for %s", snap.State, snap.Instrument)
	}
	if len(snap.Tranches) != int(snap.State) {
		return nil, fmt.Errorf("position: snapshot for %s has %d tranches in state %s", snap.Instrument, len(snap.Tranches), snap.State)
	}
	p := New(snap.Instrument)
	p.state = snap.State
	p.direction = snap.Direction
	copy(p.tranches[:], snap.Tranches)
	p.total = snap.TotalPosition
	p.openPrice = snap.OpenPrice
	p.stopPrice = snap.StopPrice
	p.atr = snap.ATR
	return p, nil
}
