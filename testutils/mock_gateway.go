package testutils

import (
	"fmt"
	"sync"

	"github.com/quantfix/pyra/types"
)

// MockGateway implements gateway.Gateway in-memory and records every
// placement and cancellation for assertions. Set Refuse to script a
// routing refusal (empty order id).
type MockGateway struct {
	mu       sync.Mutex
	next     int
	placed   []PlacedOrder
	canceled []string
	Refuse   bool
}

// PlacedOrder pairs an assigned id with the request that produced it.
type PlacedOrder struct {
	ID  string
	Req types.OrderRequest
}

func NewMockGateway() *MockGateway { return &MockGateway{} }

func (g *MockGateway) Place(req types.OrderRequest) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Refuse {
		return ""
	}
	g.next++
	id := fmt.Sprintf("order-%d", g.next)
	g.placed = append(g.placed, PlacedOrder{ID: id, Req: req})
	return id
}

func (g *MockGateway) Cancel(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.canceled = append(g.canceled, orderID)
}

// Placed returns a copy of every placement in order.
func (g *MockGateway) Placed() []PlacedOrder {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]PlacedOrder, len(g.placed))
	copy(out, g.placed)
	return out
}

// LastPlaced returns the most recent placement.
func (g *MockGateway) LastPlaced() (PlacedOrder, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.placed) == 0 {
		return PlacedOrder{}, false
	}
	return g.placed[len(g.placed)-1], true
}

// Canceled returns a copy of every canceled order id in order.
func (g *MockGateway) Canceled() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.canceled))
	copy(out, g.canceled)
	return out
}
