package port

import (
	"context"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
)

// AssetCustody is the external registry holding ownership records for
// non-fungible assets. The engine never mutates ownership itself; it only
// checks authorization and instructs transfers.
type AssetCustody interface {
	IsAuthorized(ctx context.Context, caller string, asset domain.AssetRef) (bool, error)
	OwnerOf(ctx context.Context, asset domain.AssetRef) (string, error)
	// Transfer fails if from is not the current owner or the registry
	// otherwise rejects the move.
	Transfer(ctx context.Context, asset domain.AssetRef, from, to string) error
}

// TokenPayment is the fungible payment collaborator. PullTransfer performs
// an authorized pull of amount from one principal to another and returns
// an error if the token declines (insufficient allowance or balance).
type TokenPayment interface {
	PullTransfer(ctx context.Context, token, from, to string, amount uint64) error
}
