package in_memory

import (
	"context"
	"sync"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
	"github.com/dkrasnova/marketplace-engine/internal/port"
)

var _ port.Cache = (*Cache)(nil)

type Cache struct {
	mu       sync.Mutex
	board    *domain.MarketSnapshot
	balances map[domain.TreasuryKey]uint64
}

func NewCache() *Cache {
	return &Cache{balances: make(map[domain.TreasuryKey]uint64)}
}

func (c *Cache) SetBoard(ctx context.Context, snap *domain.MarketSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cpy := *snap
	c.board = &cpy
	return nil
}

func (c *Cache) GetBoard(ctx context.Context) (*domain.MarketSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.board == nil {
		return nil, nil
	}
	cpy := *c.board
	return &cpy, nil
}

func (c *Cache) SetTreasuryBalance(ctx context.Context, key domain.TreasuryKey, balance uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[key] = balance
	return nil
}

func (c *Cache) GetTreasuryBalance(ctx context.Context, key domain.TreasuryKey) (uint64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bal, ok := c.balances[key]
	return bal, ok, nil
}
