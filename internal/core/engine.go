package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
	"github.com/dkrasnova/marketplace-engine/internal/port"
)

// EscrowAccount is the principal under which the engine holds pulled token
// payments until they are recognized as owed in the treasury ledger.
const EscrowAccount = "marketplace"

// Engine implements the listing/settlement state machine: asks, auctions
// with bids, open sell listings, and the treasury ledger backing all three.
// A single mutex serializes every mutation, so each operation is one
// atomic state transition (validation precedes mutation; external effects
// that cannot be validated up front are compensated on failure).
type Engine struct {
	repo    port.Repository
	cache   port.Cache
	custody port.AssetCustody
	tokens  port.TokenPayment

	admin string

	mu             sync.Mutex
	asks           map[domain.AssetRef]*domain.Ask
	auctions       map[uint64]*domain.Auction
	auctionByAsset map[domain.AssetRef]uint64
	bids           map[uint64]*domain.Bid
	activeBid      map[domain.AssetRef]uint64
	sells          map[uint64]*domain.SellListing
	sellByAsset    map[domain.AssetRef]uint64
	counters       domain.Counters
	treasury       *treasury
	settlements    map[string][]*domain.Settlement
	snapshots      map[string]*domain.MarketSnapshot
}

// NewEngine records admin as the deploying principal. repo and cache may
// be nil; persistence and caching are then skipped.
func NewEngine(admin string, custody port.AssetCustody, tokens port.TokenPayment, repo port.Repository, cache port.Cache) *Engine {
	return &Engine{
		repo:           repo,
		cache:          cache,
		custody:        custody,
		tokens:         tokens,
		admin:          admin,
		asks:           make(map[domain.AssetRef]*domain.Ask),
		auctions:       make(map[uint64]*domain.Auction),
		auctionByAsset: make(map[domain.AssetRef]uint64),
		bids:           make(map[uint64]*domain.Bid),
		activeBid:      make(map[domain.AssetRef]uint64),
		sells:          make(map[uint64]*domain.SellListing),
		sellByAsset:    make(map[domain.AssetRef]uint64),
		treasury:       newTreasury(),
		settlements:    make(map[string][]*domain.Settlement),
		snapshots:      make(map[string]*domain.MarketSnapshot),
	}
}

// LoadStateFromRepo rehydrates listings, counters and treasury balances
// (used on startup).
func (e *Engine) LoadStateFromRepo(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}
	state, err := e.repo.LoadState(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range state.Asks {
		e.asks[a.Asset] = a
	}
	for _, a := range state.Auctions {
		e.auctions[a.ID] = a
		e.auctionByAsset[a.Asset] = a.ID
	}
	for _, b := range state.Bids {
		e.bids[b.ID] = b
		if b.ID > e.activeBid[b.Asset] {
			e.activeBid[b.Asset] = b.ID
		}
	}
	for _, s := range state.Sells {
		e.sells[s.ID] = s
		e.sellByAsset[s.Asset] = s.ID
	}
	for key, bal := range state.Treasury {
		e.treasury.balances[key] = bal
	}
	e.counters = state.Counters
	return nil
}

// collect takes payment from a counterparty: base currency is the attached
// value of the call compared exactly against price, tokens are pulled into
// the engine's escrow account.
func (e *Engine) collect(ctx context.Context, from string, medium domain.PaymentMedium, price, attached uint64) error {
	if medium.IsBase() {
		if attached != price {
			return ErrPaymentMismatch
		}
		return nil
	}
	if err := e.tokens.PullTransfer(ctx, medium.Token, from, EscrowAccount, price); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferRejected, err)
	}
	return nil
}

// refund compensates a token pull when a later effect in the same call
// fails. Base currency needs no compensation: the attached value is never
// captured before the call commits.
func (e *Engine) refund(ctx context.Context, to string, medium domain.PaymentMedium, price uint64) {
	if !medium.IsBase() {
		_ = e.tokens.PullTransfer(ctx, medium.Token, EscrowAccount, to, price)
	}
}

// CreateAsk publishes a directed fixed-price offer for asset to buyer.
// A prior ask on the same asset is overwritten.
func (e *Engine) CreateAsk(ctx context.Context, caller string, asset domain.AssetRef, buyer string, price uint64, medium domain.PaymentMedium) error {
	ok, err := e.custody.IsAuthorized(ctx, caller, asset)
	if err != nil {
		return fmt.Errorf("custody authorization check: %w", err)
	}
	if !ok {
		return ErrNotAuthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	a := &domain.Ask{
		Exists: true,
		Seller: caller,
		To:     buyer,
		Price:  price,
		Medium: medium,
		Asset:  asset,
	}
	e.asks[asset] = a
	if e.repo != nil {
		_ = e.repo.SaveAsk(ctx, a)
	}
	e.publishBoard(ctx)
	return nil
}

// AcceptAsk settles a directed offer: only the designated buyer may call
// it. Payment, asset transfer, treasury credit and ask deletion happen as
// one transition or not at all.
func (e *Engine) AcceptAsk(ctx context.Context, caller string, asset domain.AssetRef, attached uint64) (*domain.Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.asks[asset]
	if !ok || !a.Exists {
		return nil, ErrNoSuchAsk
	}
	if caller != a.To {
		return nil, ErrNotDesignatedBuyer
	}
	if err := e.collect(ctx, caller, a.Medium, a.Price, attached); err != nil {
		return nil, err
	}
	if err := e.custody.Transfer(ctx, asset, a.Seller, caller); err != nil {
		e.refund(ctx, caller, a.Medium, a.Price)
		return nil, fmt.Errorf("custody transfer: %w", err)
	}

	key := e.treasury.Credit(a.Seller, a.Medium, a.Price)
	delete(e.asks, asset)
	s := e.recordSettlement(ctx, domain.SettleAsk, asset, a.Seller, caller, a.Price, a.Medium)
	if e.repo != nil {
		_ = e.repo.DeleteAsk(ctx, asset)
		_ = e.repo.UpsertTreasury(ctx, key, e.treasury.balances[key])
	}
	e.publishTreasury(ctx, key)
	e.publishBoard(ctx)
	return s, nil
}

// CreateAuction opens a bidding session on asset. Fails if the asset
// already has a live auction.
func (e *Engine) CreateAuction(ctx context.Context, caller string, asset domain.AssetRef, floorPrice uint64, medium domain.PaymentMedium) (uint64, error) {
	ok, err := e.custody.IsAuthorized(ctx, caller, asset)
	if err != nil {
		return 0, fmt.Errorf("custody authorization check: %w", err)
	}
	if !ok {
		return 0, ErrNotAuthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.auctionByAsset[asset] != 0 {
		return 0, ErrAuctionAlreadyOpen
	}
	e.counters.Auction++
	a := &domain.Auction{
		ID:         e.counters.Auction,
		Exists:     true,
		Seller:     caller,
		FloorPrice: floorPrice,
		Medium:     medium,
		Asset:      asset,
	}
	e.auctions[a.ID] = a
	e.auctionByAsset[asset] = a.ID
	if e.repo != nil {
		_ = e.repo.SaveAuction(ctx, a)
		_ = e.repo.SaveCounters(ctx, e.counters)
	}
	e.publishBoard(ctx)
	return a.ID, nil
}

// DeleteAuction cancels a live auction. Outstanding bid records and their
// escrow credits are left untouched; the auction counter never rolls back.
func (e *Engine) DeleteAuction(ctx context.Context, caller string, auctionID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || !a.Exists {
		return ErrNoSuchAuction
	}
	if caller != a.Seller {
		return ErrNotSeller
	}
	delete(e.auctions, auctionID)
	delete(e.auctionByAsset, a.Asset)
	if e.repo != nil {
		_ = e.repo.DeleteAuction(ctx, auctionID)
	}
	e.publishBoard(ctx)
	return nil
}

// CreateBid escrows the bid price at creation time: payment is pulled from
// the bidder immediately and recorded as a treasury credit against the
// bidder's own entry, debitable only by a later settlement.
func (e *Engine) CreateBid(ctx context.Context, caller string, asset domain.AssetRef, price uint64, medium domain.PaymentMedium, attached uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	auctionID := e.auctionByAsset[asset]
	if auctionID == 0 {
		return 0, ErrNoSuchAuction
	}
	a := e.auctions[auctionID]
	if price < a.FloorPrice {
		return 0, ErrBelowFloorPrice
	}
	if err := e.collect(ctx, caller, medium, price, attached); err != nil {
		return 0, err
	}

	e.counters.Bid++
	b := &domain.Bid{
		ID:        e.counters.Bid,
		Price:     price,
		Buyer:     caller,
		Medium:    medium,
		Asset:     asset,
		AuctionID: auctionID,
	}
	e.bids[b.ID] = b
	e.activeBid[asset] = b.ID
	key := e.treasury.Credit(caller, medium, price)
	if e.repo != nil {
		_ = e.repo.SaveBid(ctx, b)
		_ = e.repo.SaveCounters(ctx, e.counters)
		_ = e.repo.UpsertTreasury(ctx, key, e.treasury.balances[key])
	}
	e.publishTreasury(ctx, key)
	e.publishBoard(ctx)
	return b.ID, nil
}

// AcceptBid settles an auction on its chosen bid: the escrowed price moves
// from the bidder's treasury entry to the seller's, the asset moves to the
// bidder, and both the bid and the auction records are cleared.
func (e *Engine) AcceptBid(ctx context.Context, caller string, asset domain.AssetRef, bidID uint64) (*domain.Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.bids[bidID]
	if !ok {
		return nil, ErrNoSuchBid
	}
	auctionID := e.auctionByAsset[asset]
	if auctionID == 0 {
		return nil, ErrNoSuchAuction
	}
	a := e.auctions[auctionID]
	if caller != a.Seller {
		return nil, ErrNotSeller
	}
	if b.AuctionID != auctionID || b.Asset != asset {
		return nil, ErrNoSuchBid
	}
	// The escrow credit from CreateBid must still cover the bid; a shortfall
	// here signals a ledger bug, not caller error.
	if e.treasury.BalanceOf(b.Buyer, b.Medium) < b.Price {
		return nil, ErrInsufficientBalance
	}
	if err := e.custody.Transfer(ctx, asset, a.Seller, b.Buyer); err != nil {
		return nil, fmt.Errorf("custody transfer: %w", err)
	}

	debitKey, err := e.treasury.Debit(b.Buyer, b.Medium, b.Price)
	if err != nil {
		return nil, err
	}
	creditKey := e.treasury.Credit(a.Seller, b.Medium, b.Price)
	delete(e.bids, bidID)
	if e.activeBid[asset] == bidID {
		delete(e.activeBid, asset)
	}
	delete(e.auctions, auctionID)
	delete(e.auctionByAsset, asset)
	s := e.recordSettlement(ctx, domain.SettleBid, asset, a.Seller, b.Buyer, b.Price, b.Medium)
	if e.repo != nil {
		_ = e.repo.DeleteBid(ctx, bidID)
		_ = e.repo.DeleteAuction(ctx, auctionID)
		_ = e.repo.UpsertTreasury(ctx, debitKey, e.treasury.balances[debitKey])
		_ = e.repo.UpsertTreasury(ctx, creditKey, e.treasury.balances[creditKey])
	}
	e.publishTreasury(ctx, debitKey)
	e.publishTreasury(ctx, creditKey)
	e.publishBoard(ctx)
	return s, nil
}

// ListSell publishes a fixed-price listing open to any buyer. Re-listing
// the same asset supersedes the prior listing record.
func (e *Engine) ListSell(ctx context.Context, caller string, asset domain.AssetRef, price uint64, medium domain.PaymentMedium) (uint64, error) {
	ok, err := e.custody.IsAuthorized(ctx, caller, asset)
	if err != nil {
		return 0, fmt.Errorf("custody authorization check: %w", err)
	}
	if !ok {
		return 0, ErrNotAuthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prior := e.sellByAsset[asset]; prior != 0 {
		delete(e.sells, prior)
		if e.repo != nil {
			_ = e.repo.DeleteSellListing(ctx, prior)
		}
	}
	e.counters.Sell++
	s := &domain.SellListing{
		ID:     e.counters.Sell,
		Exists: true,
		Seller: caller,
		Price:  price,
		Medium: medium,
		Asset:  asset,
	}
	e.sells[s.ID] = s
	e.sellByAsset[asset] = s.ID
	if e.repo != nil {
		_ = e.repo.SaveSellListing(ctx, s)
		_ = e.repo.SaveCounters(ctx, e.counters)
	}
	e.publishBoard(ctx)
	return s.ID, nil
}

// PromptBuy settles an open listing at its fixed price for any caller.
func (e *Engine) PromptBuy(ctx context.Context, caller string, sellID uint64, attached uint64) (*domain.Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.sells[sellID]
	if !ok || !l.Exists {
		return nil, ErrNoSuchListing
	}
	if err := e.collect(ctx, caller, l.Medium, l.Price, attached); err != nil {
		return nil, err
	}
	if err := e.custody.Transfer(ctx, l.Asset, l.Seller, caller); err != nil {
		e.refund(ctx, caller, l.Medium, l.Price)
		return nil, fmt.Errorf("custody transfer: %w", err)
	}

	key := e.treasury.Credit(l.Seller, l.Medium, l.Price)
	delete(e.sells, sellID)
	delete(e.sellByAsset, l.Asset)
	s := e.recordSettlement(ctx, domain.SettleSell, l.Asset, l.Seller, caller, l.Price, l.Medium)
	if e.repo != nil {
		_ = e.repo.DeleteSellListing(ctx, sellID)
		_ = e.repo.UpsertTreasury(ctx, key, e.treasury.balances[key])
	}
	e.publishTreasury(ctx, key)
	e.publishBoard(ctx)
	return s, nil
}

func (e *Engine) recordSettlement(ctx context.Context, kind domain.SettlementKind, asset domain.AssetRef, seller, buyer string, price uint64, medium domain.PaymentMedium) *domain.Settlement {
	s := &domain.Settlement{
		ID:         uuid.NewString(),
		Kind:       kind,
		Asset:      asset,
		Seller:     seller,
		Buyer:      buyer,
		Price:      price,
		Medium:     medium,
		ExecutedAt: time.Now(),
	}
	e.settlements[seller] = append(e.settlements[seller], s)
	e.settlements[buyer] = append(e.settlements[buyer], s)
	if e.repo != nil {
		_ = e.repo.SaveSettlement(ctx, s)
	}
	return s
}

// GetAsk returns the live ask on asset, if any.
func (e *Engine) GetAsk(ctx context.Context, asset domain.AssetRef) (*domain.Ask, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.asks[asset]
	if !ok {
		return nil, ErrNoSuchAsk
	}
	cpy := *a
	return &cpy, nil
}

func (e *Engine) GetAuction(ctx context.Context, auctionID uint64) (*domain.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.auctions[auctionID]
	if !ok {
		return nil, ErrNoSuchAuction
	}
	cpy := *a
	return &cpy, nil
}

// AuctionIDForAsset returns zero when the asset has no live auction.
func (e *Engine) AuctionIDForAsset(ctx context.Context, asset domain.AssetRef) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.auctionByAsset[asset]
}

func (e *Engine) GetBid(ctx context.Context, bidID uint64) (*domain.Bid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.bids[bidID]
	if !ok {
		return nil, ErrNoSuchBid
	}
	cpy := *b
	return &cpy, nil
}

func (e *Engine) GetSellListing(ctx context.Context, sellID uint64) (*domain.SellListing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sells[sellID]
	if !ok {
		return nil, ErrNoSuchListing
	}
	cpy := *s
	return &cpy, nil
}

// SellIDForAsset returns zero when the asset has no live listing.
func (e *Engine) SellIDForAsset(ctx context.Context, asset domain.AssetRef) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sellByAsset[asset]
}

// Counters returns the current values of the global id sequences.
func (e *Engine) Counters(ctx context.Context) domain.Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

// TreasuryBalance returns zero for unseen (principal, medium) keys.
func (e *Engine) TreasuryBalance(ctx context.Context, principal string, medium domain.PaymentMedium) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.treasury.BalanceOf(principal, medium)
}

// Admin returns the deploying principal recorded at construction.
func (e *Engine) Admin() string {
	return e.admin
}

// SettlementsFor lists settlements the principal took part in, as seller
// or buyer.
func (e *Engine) SettlementsFor(ctx context.Context, principal string) []*domain.Settlement {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := make([]*domain.Settlement, len(e.settlements[principal]))
	copy(res, e.settlements[principal])
	return res
}

// Board returns a snapshot of all live listings, preferring the cache.
func (e *Engine) Board(ctx context.Context) (*domain.MarketSnapshot, error) {
	if e.cache != nil {
		if snap, err := e.cache.GetBoard(ctx); err == nil && snap != nil {
			return snap, nil
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.board(), nil
}

// SnapshotMarket stores a point-in-time copy of the listing tables.
func (e *Engine) SnapshotMarket(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := uuid.NewString()
	snap := e.board()
	e.snapshots[id] = snap
	if e.repo != nil {
		_ = e.repo.SaveSnapshot(ctx, id, snap)
	}
	return id, nil
}

// RestoreMarket replaces the listing tables with a stored snapshot.
// Counters only ever move forward: restore keeps the higher of the current
// and the snapshot value so ids are never reissued.
func (e *Engine) RestoreMarket(ctx context.Context, snapshotID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap, ok := e.snapshots[snapshotID]
	if !ok && e.repo != nil {
		loaded, err := e.repo.LoadSnapshot(ctx, snapshotID)
		if err != nil {
			return err
		}
		snap = loaded
		e.snapshots[snapshotID] = snap
	} else if !ok {
		return fmt.Errorf("snapshot %s not found", snapshotID)
	}

	e.asks = make(map[domain.AssetRef]*domain.Ask)
	e.auctions = make(map[uint64]*domain.Auction)
	e.auctionByAsset = make(map[domain.AssetRef]uint64)
	e.bids = make(map[uint64]*domain.Bid)
	e.activeBid = make(map[domain.AssetRef]uint64)
	e.sells = make(map[uint64]*domain.SellListing)
	e.sellByAsset = make(map[domain.AssetRef]uint64)
	for i := range snap.Asks {
		a := snap.Asks[i]
		e.asks[a.Asset] = &a
	}
	for i := range snap.Auctions {
		a := snap.Auctions[i]
		e.auctions[a.ID] = &a
		e.auctionByAsset[a.Asset] = a.ID
	}
	for i := range snap.Bids {
		b := snap.Bids[i]
		e.bids[b.ID] = &b
		if b.ID > e.activeBid[b.Asset] {
			e.activeBid[b.Asset] = b.ID
		}
	}
	for i := range snap.Sells {
		s := snap.Sells[i]
		e.sells[s.ID] = &s
		e.sellByAsset[s.Asset] = s.ID
	}
	e.counters = maxCounters(e.counters, snap.Counters)
	if e.repo != nil {
		_ = e.repo.SaveCounters(ctx, e.counters)
	}
	e.publishBoard(ctx)
	return nil
}

// board builds a snapshot under the lock.
func (e *Engine) board() *domain.MarketSnapshot {
	snap := &domain.MarketSnapshot{
		Counters:  e.counters,
		Timestamp: time.Now(),
	}
	for _, a := range e.asks {
		snap.Asks = append(snap.Asks, *a)
	}
	for _, a := range e.auctions {
		snap.Auctions = append(snap.Auctions, *a)
	}
	for _, b := range e.bids {
		snap.Bids = append(snap.Bids, *b)
	}
	for _, s := range e.sells {
		snap.Sells = append(snap.Sells, *s)
	}
	sortBoard(snap)
	return snap
}

func (e *Engine) publishBoard(ctx context.Context) {
	if e.cache != nil {
		_ = e.cache.SetBoard(ctx, e.board())
	}
}

func (e *Engine) publishTreasury(ctx context.Context, key domain.TreasuryKey) {
	if e.cache != nil {
		_ = e.cache.SetTreasuryBalance(ctx, key, e.treasury.balances[key])
	}
}

func sortBoard(snap *domain.MarketSnapshot) {
	sort.Slice(snap.Asks, func(i, j int) bool {
		if snap.Asks[i].Asset.Collection != snap.Asks[j].Asset.Collection {
			return snap.Asks[i].Asset.Collection < snap.Asks[j].Asset.Collection
		}
		return snap.Asks[i].Asset.TokenID < snap.Asks[j].Asset.TokenID
	})
	sort.Slice(snap.Auctions, func(i, j int) bool { return snap.Auctions[i].ID < snap.Auctions[j].ID })
	sort.Slice(snap.Bids, func(i, j int) bool { return snap.Bids[i].ID < snap.Bids[j].ID })
	sort.Slice(snap.Sells, func(i, j int) bool { return snap.Sells[i].ID < snap.Sells[j].ID })
}

func maxCounters(a, b domain.Counters) domain.Counters {
	if b.Auction > a.Auction {
		a.Auction = b.Auction
	}
	if b.Bid > a.Bid {
		a.Bid = b.Bid
	}
	if b.Sell > a.Sell {
		a.Sell = b.Sell
	}
	return a
}
