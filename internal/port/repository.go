package port

import (
	"context"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
)

type Repository interface {
	SaveAsk(ctx context.Context, a *domain.Ask) error
	DeleteAsk(ctx context.Context, asset domain.AssetRef) error

	SaveAuction(ctx context.Context, a *domain.Auction) error
	DeleteAuction(ctx context.Context, id uint64) error

	SaveBid(ctx context.Context, b *domain.Bid) error
	DeleteBid(ctx context.Context, id uint64) error

	SaveSellListing(ctx context.Context, s *domain.SellListing) error
	DeleteSellListing(ctx context.Context, id uint64) error

	UpsertTreasury(ctx context.Context, key domain.TreasuryKey, balance uint64) error

	SaveSettlement(ctx context.Context, s *domain.Settlement) error
	LoadSettlements(ctx context.Context, principal string) ([]*domain.Settlement, error)

	SaveCounters(ctx context.Context, c domain.Counters) error

	SaveSnapshot(ctx context.Context, snapshotID string, snap *domain.MarketSnapshot) error
	LoadSnapshot(ctx context.Context, snapshotID string) (*domain.MarketSnapshot, error)

	// LoadState rehydrates every table and counter (used on startup).
	LoadState(ctx context.Context) (*domain.MarketState, error)
}
