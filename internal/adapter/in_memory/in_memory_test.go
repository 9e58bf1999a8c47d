package in_memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
)

var asset = domain.AssetRef{Collection: "art", TokenID: 7}

func TestAssetRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewAssetRegistry()
	r.Mint(asset, "alice")

	owner, err := r.OwnerOf(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	ok, err := r.IsAuthorized(ctx, "alice", asset)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.IsAuthorized(ctx, "bob", asset)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Error(t, r.Approve("bob", "market", asset))
	require.NoError(t, r.Approve("alice", "market", asset))
	ok, err = r.IsAuthorized(ctx, "market", asset)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Error(t, r.Transfer(ctx, asset, "bob", "carol"))
	require.NoError(t, r.Transfer(ctx, asset, "alice", "bob"))
	owner, err = r.OwnerOf(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	// transfer clears the approval
	ok, err = r.IsAuthorized(ctx, "market", asset)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.OwnerOf(ctx, domain.AssetRef{Collection: "art", TokenID: 99})
	assert.Error(t, err)
}

func TestTokenLedger(t *testing.T) {
	ctx := context.Background()
	l := NewTokenLedger("market")
	l.Mint("TOK", "alice", 10)

	// no allowance yet
	err := l.PullTransfer(ctx, "TOK", "alice", "market", 4)
	require.Error(t, err)

	l.Approve("TOK", "alice", 5)
	require.NoError(t, l.PullTransfer(ctx, "TOK", "alice", "market", 4))
	assert.Equal(t, uint64(6), l.BalanceOf("TOK", "alice"))
	assert.Equal(t, uint64(4), l.BalanceOf("TOK", "market"))

	// allowance was spent
	err = l.PullTransfer(ctx, "TOK", "alice", "market", 2)
	require.Error(t, err)

	// the operator moves its own funds without an allowance
	require.NoError(t, l.PullTransfer(ctx, "TOK", "market", "bob", 3))
	assert.Equal(t, uint64(3), l.BalanceOf("TOK", "bob"))

	// balance check precedes allowance check
	l.Approve("TOK", "bob", 100)
	err = l.PullTransfer(ctx, "TOK", "bob", "market", 50)
	require.Error(t, err)
}

func TestMemoryRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()

	ask := &domain.Ask{Exists: true, Seller: "alice", To: "bob", Price: 2, Medium: domain.Base(), Asset: asset}
	require.NoError(t, r.SaveAsk(ctx, ask))
	auction := &domain.Auction{ID: 1, Exists: true, Seller: "alice", FloorPrice: 2, Medium: domain.Token("TOK"), Asset: asset}
	require.NoError(t, r.SaveAuction(ctx, auction))
	bid := &domain.Bid{ID: 1, Price: 2, Buyer: "bob", Medium: domain.Token("TOK"), Asset: asset, AuctionID: 1}
	require.NoError(t, r.SaveBid(ctx, bid))
	sell := &domain.SellListing{ID: 1, Exists: true, Seller: "alice", Price: 3, Medium: domain.Base(), Asset: asset}
	require.NoError(t, r.SaveSellListing(ctx, sell))
	key := domain.TreasuryKey{Principal: "alice", Medium: domain.Base()}
	require.NoError(t, r.UpsertTreasury(ctx, key, 5))
	require.NoError(t, r.SaveCounters(ctx, domain.Counters{Auction: 1, Bid: 1, Sell: 1}))

	state, err := r.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, state.Asks, 1)
	require.Len(t, state.Auctions, 1)
	require.Len(t, state.Bids, 1)
	require.Len(t, state.Sells, 1)
	assert.Equal(t, uint64(5), state.Treasury[key])
	assert.Equal(t, domain.Counters{Auction: 1, Bid: 1, Sell: 1}, state.Counters)

	require.NoError(t, r.DeleteAsk(ctx, asset))
	require.NoError(t, r.DeleteAuction(ctx, 1))
	require.NoError(t, r.DeleteBid(ctx, 1))
	require.NoError(t, r.DeleteSellListing(ctx, 1))
	state, err = r.LoadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Asks)
	assert.Empty(t, state.Auctions)
	assert.Empty(t, state.Bids)
	assert.Empty(t, state.Sells)
}

func TestMemoryRepo_Settlements(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()

	s := &domain.Settlement{ID: "s1", Kind: domain.SettleAsk, Asset: asset, Seller: "alice", Buyer: "bob", Price: 2, Medium: domain.Base()}
	require.NoError(t, r.SaveSettlement(ctx, s))

	forSeller, err := r.LoadSettlements(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, forSeller, 1)
	forBuyer, err := r.LoadSettlements(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, forBuyer, 1)
	forOther, err := r.LoadSettlements(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, forOther)
}

func TestMemoryRepo_Snapshots(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()

	_, err := r.LoadSnapshot(ctx, "missing")
	require.Error(t, err)

	snap := &domain.MarketSnapshot{Counters: domain.Counters{Auction: 3}}
	require.NoError(t, r.SaveSnapshot(ctx, "snap-1", snap))
	loaded, err := r.LoadSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), loaded.Counters.Auction)
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	c := NewCache()

	snap, err := c.GetBoard(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, c.SetBoard(ctx, &domain.MarketSnapshot{Counters: domain.Counters{Sell: 2}}))
	snap, err = c.GetBoard(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, uint64(2), snap.Counters.Sell)

	key := domain.TreasuryKey{Principal: "alice", Medium: domain.Token("TOK")}
	_, ok, err := c.GetTreasuryBalance(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.SetTreasuryBalance(ctx, key, 9))
	bal, ok, err := c.GetTreasuryBalance(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), bal)
}
