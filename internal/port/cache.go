package port

import (
	"context"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
)

type Cache interface {
	SetBoard(ctx context.Context, snap *domain.MarketSnapshot) error
	GetBoard(ctx context.Context) (*domain.MarketSnapshot, error)
	SetTreasuryBalance(ctx context.Context, key domain.TreasuryKey, balance uint64) error
	GetTreasuryBalance(ctx context.Context, key domain.TreasuryKey) (uint64, bool, error)
}
