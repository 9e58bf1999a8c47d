package in_memory

import (
	"context"
	"errors"
	"sync"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
	"github.com/dkrasnova/marketplace-engine/internal/port"
)

var _ port.Repository = (*MemoryRepo)(nil)

type MemoryRepo struct {
	mu          sync.Mutex
	asks        map[domain.AssetRef]*domain.Ask
	auctions    map[uint64]*domain.Auction
	bids        map[uint64]*domain.Bid
	sells       map[uint64]*domain.SellListing
	treasury    map[domain.TreasuryKey]uint64
	settlements []*domain.Settlement
	counters    domain.Counters
	snapshots   map[string]*domain.MarketSnapshot
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		asks:      make(map[domain.AssetRef]*domain.Ask),
		auctions:  make(map[uint64]*domain.Auction),
		bids:      make(map[uint64]*domain.Bid),
		sells:     make(map[uint64]*domain.SellListing),
		treasury:  make(map[domain.TreasuryKey]uint64),
		snapshots: make(map[string]*domain.MarketSnapshot),
	}
}

func (r *MemoryRepo) SaveAsk(ctx context.Context, a *domain.Ask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := *a
	r.asks[a.Asset] = &cpy
	return nil
}

func (r *MemoryRepo) DeleteAsk(ctx context.Context, asset domain.AssetRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.asks, asset)
	return nil
}

func (r *MemoryRepo) SaveAuction(ctx context.Context, a *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := *a
	r.auctions[a.ID] = &cpy
	return nil
}

func (r *MemoryRepo) DeleteAuction(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.auctions, id)
	return nil
}

func (r *MemoryRepo) SaveBid(ctx context.Context, b *domain.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := *b
	r.bids[b.ID] = &cpy
	return nil
}

func (r *MemoryRepo) DeleteBid(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bids, id)
	return nil
}

func (r *MemoryRepo) SaveSellListing(ctx context.Context, s *domain.SellListing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := *s
	r.sells[s.ID] = &cpy
	return nil
}

func (r *MemoryRepo) DeleteSellListing(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sells, id)
	return nil
}

func (r *MemoryRepo) UpsertTreasury(ctx context.Context, key domain.TreasuryKey, balance uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.treasury[key] = balance
	return nil
}

func (r *MemoryRepo) SaveSettlement(ctx context.Context, s *domain.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := *s
	r.settlements = append(r.settlements, &cpy)
	return nil
}

func (r *MemoryRepo) LoadSettlements(ctx context.Context, principal string) ([]*domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Settlement
	for _, s := range r.settlements {
		if s.Seller == principal || s.Buyer == principal {
			res = append(res, s)
		}
	}
	return res, nil
}

func (r *MemoryRepo) SaveCounters(ctx context.Context, c domain.Counters) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = c
	return nil
}

func (r *MemoryRepo) SaveSnapshot(ctx context.Context, snapshotID string, snap *domain.MarketSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := *snap
	r.snapshots[snapshotID] = &cpy
	return nil
}

func (r *MemoryRepo) LoadSnapshot(ctx context.Context, snapshotID string) (*domain.MarketSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snapshots[snapshotID]
	if !ok {
		return nil, errors.New("snapshot not found")
	}
	return snap, nil
}

func (r *MemoryRepo) LoadState(ctx context.Context) (*domain.MarketState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := &domain.MarketState{
		Treasury: make(map[domain.TreasuryKey]uint64, len(r.treasury)),
		Counters: r.counters,
	}
	for _, a := range r.asks {
		cpy := *a
		state.Asks = append(state.Asks, &cpy)
	}
	for _, a := range r.auctions {
		cpy := *a
		state.Auctions = append(state.Auctions, &cpy)
	}
	for _, b := range r.bids {
		cpy := *b
		state.Bids = append(state.Bids, &cpy)
	}
	for _, s := range r.sells {
		cpy := *s
		state.Sells = append(state.Sells, &cpy)
	}
	for k, v := range r.treasury {
		state.Treasury[k] = v
	}
	return state, nil
}

func (r *MemoryRepo) Close(ctx context.Context) {}
