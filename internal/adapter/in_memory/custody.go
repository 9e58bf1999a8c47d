package in_memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
	"github.com/dkrasnova/marketplace-engine/internal/port"
)

var _ port.AssetCustody = (*AssetRegistry)(nil)

// AssetRegistry is an in-process stand-in for the external custody
// collaborator: ownership records plus per-asset approvals. Used for local
// runs and tests; production deployments plug in the real registry at the
// same port.
type AssetRegistry struct {
	mu        sync.Mutex
	owners    map[domain.AssetRef]string
	approvals map[domain.AssetRef]string
}

func NewAssetRegistry() *AssetRegistry {
	return &AssetRegistry{
		owners:    make(map[domain.AssetRef]string),
		approvals: make(map[domain.AssetRef]string),
	}
}

// Mint assigns initial ownership of an asset.
func (r *AssetRegistry) Mint(asset domain.AssetRef, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[asset] = owner
}

// Approve lets operator move asset on the owner's behalf.
func (r *AssetRegistry) Approve(owner, operator string, asset domain.AssetRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[asset] != owner {
		return fmt.Errorf("approve: %s does not own %s", owner, asset)
	}
	r.approvals[asset] = operator
	return nil
}

// IsAuthorized reports whether caller owns the asset or holds an approval
// for it.
func (r *AssetRegistry) IsAuthorized(ctx context.Context, caller string, asset domain.AssetRef) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners[asset] == caller || r.approvals[asset] == caller, nil
}

func (r *AssetRegistry) OwnerOf(ctx context.Context, asset domain.AssetRef) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[asset]
	if !ok {
		return "", fmt.Errorf("asset %s not minted", asset)
	}
	return owner, nil
}

func (r *AssetRegistry) Transfer(ctx context.Context, asset domain.AssetRef, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[asset] != from {
		return fmt.Errorf("transfer: %s does not own %s", from, asset)
	}
	r.owners[asset] = to
	delete(r.approvals, asset)
	return nil
}
