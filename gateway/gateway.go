package gateway

import (
	"sync"

	"github.com/google/uuid"

	"github.com/quantfix/pyra/types"
)

// Gateway is the order-routing collaborator. Place returns the assigned
// order id, or the empty string when routing refuses the order (trading
// disabled, instrument locked). Cancel is best effort; canceling an
// unknown id is not an error.
type Gateway interface {
	Place(req types.OrderRequest) string
	Cancel(orderID string)
}

// Paper is an in-memory gateway for dry runs. Orders rest until the host
// pops them as fills; nothing ever reaches a broker.
type Paper struct {
	mu      sync.Mutex
	working map[string]types.OrderRequest
}

func NewPaper() *Paper {
	return &Paper{working: make(map[string]types.OrderRequest)}
}

func (p *Paper) Place(req types.OrderRequest) string {
	id := uuid.NewString()
	p.mu.Lock()
	p.working[id] = req
	p.mu.Unlock()
	return id
}

func (p *Paper) Cancel(orderID string) {
	p.mu.Lock()
	delete(p.working, orderID)
	p.mu.Unlock()
}

// Working returns a copy of the resting orders keyed by id.
func (p *Paper) Working() map[string]types.OrderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]types.OrderRequest, len(p.working))
	for id, req := range p.working {
		out[id] = req
	}
	return out
}

// Pop removes a resting order and returns it, e.g. to synthesize a fill
// during replay.
func (p *Paper) Pop(orderID string) (types.OrderRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.working[orderID]
	if ok {
		delete(p.working, orderID)
	}
	return req, ok
}
