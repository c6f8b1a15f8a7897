// Package oms implements the authoritative in-memory snapshot of
// orders, trades, positions, accounts and contracts. It is written
// only by the event bus dispatcher goroutine; all other access is a
// read under a shared lock. It never calls back into adapters.
package oms

import (
	"sync"

	"github.com/rfzwl/janus/internal/domain"
	"github.com/rfzwl/janus/internal/eventbus"
)

// Cache is the OMS state cache.
type Cache struct {
	mu sync.RWMutex

	ordersByVt    map[string]domain.OrderData
	activeOrders  map[string]struct{}
	tradesByVt    map[string]domain.TradeData
	positionsByKey map[string]domain.PositionData
	accountsByAlias map[string]domain.AccountData
	contractsByVt map[string]domain.ContractData
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{
		ordersByVt:      make(map[string]domain.OrderData),
		activeOrders:    make(map[string]struct{}),
		tradesByVt:      make(map[string]domain.TradeData),
		positionsByKey:  make(map[string]domain.PositionData),
		accountsByAlias: make(map[string]domain.AccountData),
		contractsByVt:   make(map[string]domain.ContractData),
	}
}

// Attach subscribes the cache to ORDER/TRADE/POSITION/ACCOUNT/CONTRACT
// events on bus. Must be called before bus.Start so no event is missed.
func (c *Cache) Attach(bus *eventbus.Bus) {
	bus.Subscribe(domain.EventOrder, func(e domain.Event) { c.onOrder(*e.Order) })
	bus.Subscribe(domain.EventTrade, func(e domain.Event) { c.onTrade(*e.Trade) })
	bus.Subscribe(domain.EventPosition, func(e domain.Event) { c.onPosition(*e.Position) })
	bus.Subscribe(domain.EventAccount, func(e domain.Event) { c.onAccount(*e.Account) })
	bus.Subscribe(domain.EventContract, func(e domain.Event) { c.onContract(*e.Contract) })
}

func (c *Cache) onOrder(o domain.OrderData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ordersByVt[o.VtOrderID] = o
	if o.Status.IsActive() {
		c.activeOrders[o.VtOrderID] = struct{}{}
	} else {
		delete(c.activeOrders, o.VtOrderID)
	}
}

func (c *Cache) onTrade(t domain.TradeData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tradesByVt[t.VtTradeID] = t
}

func positionKey(p domain.PositionData) string {
	return p.AccountAlias + "|" + p.Symbol + "|" + string(p.Direction)
}

func (c *Cache) onPosition(p domain.PositionData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := positionKey(p)
	if p.Volume == 0 {
		delete(c.positionsByKey, key)
		return
	}
	c.positionsByKey[key] = p
}

func (c *Cache) onAccount(a domain.AccountData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountsByAlias[a.AccountAlias] = a
}

func (c *Cache) onContract(ct domain.ContractData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contractsByVt[ct.VtSymbol] = ct
}

// Order returns the cached order for vtOrderID, if present.
func (c *Cache) Order(vtOrderID string) (domain.OrderData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.ordersByVt[vtOrderID]
	return o, ok
}

// ActiveOrders returns a snapshot of all currently active orders.
func (c *Cache) ActiveOrders() []domain.OrderData {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.OrderData, 0, len(c.activeOrders))
	for id := range c.activeOrders {
		out = append(out, c.ordersByVt[id])
	}
	return out
}

// IsActive reports whether vtOrderID is currently in the active set.
func (c *Cache) IsActive(vtOrderID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.activeOrders[vtOrderID]
	return ok
}

// Position returns the cached position for an account/symbol/direction.
func (c *Cache) Position(accountAlias, symbol string, dir domain.Direction) (domain.PositionData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.positionsByKey[accountAlias+"|"+symbol+"|"+string(dir)]
	return p, ok
}

// NetPosition returns the signed net volume for an account/symbol,
// positive for long, negative for short, used by the router's
// short-sale policy (§4.7 step 3).
func (c *Cache) NetPosition(accountAlias, symbol string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var net float64
	if p, ok := c.positionsByKey[accountAlias+"|"+symbol+"|"+string(domain.DirectionLong)]; ok {
		net += p.Volume
	}
	if p, ok := c.positionsByKey[accountAlias+"|"+symbol+"|"+string(domain.DirectionShort)]; ok {
		net -= p.Volume
	}
	return net
}

// Account returns the cached account snapshot for alias.
func (c *Cache) Account(alias string) (domain.AccountData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.accountsByAlias[alias]
	return a, ok
}

// Contract returns the cached contract for a vt_symbol.
func (c *Cache) Contract(vtSymbol string) (domain.ContractData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ct, ok := c.contractsByVt[vtSymbol]
	return ct, ok
}

// Trades returns a snapshot of every recorded trade.
func (c *Cache) Trades() []domain.TradeData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.TradeData, 0, len(c.tradesByVt))
	for _, t := range c.tradesByVt {
		out = append(out, t)
	}
	return out
}

// Positions returns a snapshot of every non-zero position.
func (c *Cache) Positions() []domain.PositionData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.PositionData, 0, len(c.positionsByKey))
	for _, p := range c.positionsByKey {
		out = append(out, p)
	}
	return out
}
