package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
	"github.com/dkrasnova/marketplace-engine/internal/port"
)

var _ port.Repository = (*PgRepo)(nil)

type PgRepo struct {
	pool *pgxpool.Pool
}

// call Close when finished working with the database.
func NewPgRepo(ctx context.Context, dsn string) (*PgRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return &PgRepo{pool: pool}, nil
}

func (p *PgRepo) Close(ctx context.Context) {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PgRepo) SaveAsk(ctx context.Context, a *domain.Ask) error {
	if a == nil {
		return errors.New("nil ask")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO asks(collection, token_id, seller, buyer, price, medium)
VALUES($1,$2,$3,$4,$5,$6)
ON CONFLICT (collection, token_id) DO UPDATE SET
  seller = EXCLUDED.seller,
  buyer = EXCLUDED.buyer,
  price = EXCLUDED.price,
  medium = EXCLUDED.medium
`, a.Asset.Collection, a.Asset.TokenID, a.Seller, a.To, a.Price, a.Medium.String())
	return err
}

func (p *PgRepo) DeleteAsk(ctx context.Context, asset domain.AssetRef) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM asks WHERE collection = $1 AND token_id = $2`,
		asset.Collection, asset.TokenID)
	return err
}

func (p *PgRepo) SaveAuction(ctx context.Context, a *domain.Auction) error {
	if a == nil {
		return errors.New("nil auction")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO auctions(id, seller, floor_price, medium, collection, token_id)
VALUES($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  seller = EXCLUDED.seller,
  floor_price = EXCLUDED.floor_price,
  medium = EXCLUDED.medium,
  collection = EXCLUDED.collection,
  token_id = EXCLUDED.token_id
`, a.ID, a.Seller, a.FloorPrice, a.Medium.String(), a.Asset.Collection, a.Asset.TokenID)
	return err
}

func (p *PgRepo) DeleteAuction(ctx context.Context, id uint64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	return err
}

func (p *PgRepo) SaveBid(ctx context.Context, b *domain.Bid) error {
	if b == nil {
		return errors.New("nil bid")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO bids(id, price, buyer, medium, collection, token_id, auction_id)
VALUES($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
`, b.ID, b.Price, b.Buyer, b.Medium.String(), b.Asset.Collection, b.Asset.TokenID, b.AuctionID)
	return err
}

func (p *PgRepo) DeleteBid(ctx context.Context, id uint64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM bids WHERE id = $1`, id)
	return err
}

func (p *PgRepo) SaveSellListing(ctx context.Context, s *domain.SellListing) error {
	if s == nil {
		return errors.New("nil sell listing")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO sell_listings(id, seller, price, medium, collection, token_id)
VALUES($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  seller = EXCLUDED.seller,
  price = EXCLUDED.price,
  medium = EXCLUDED.medium,
  collection = EXCLUDED.collection,
  token_id = EXCLUDED.token_id
`, s.ID, s.Seller, s.Price, s.Medium.String(), s.Asset.Collection, s.Asset.TokenID)
	return err
}

func (p *PgRepo) DeleteSellListing(ctx context.Context, id uint64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sell_listings WHERE id = $1`, id)
	return err
}

func (p *PgRepo) UpsertTreasury(ctx context.Context, key domain.TreasuryKey, balance uint64) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO treasury_entries(principal, medium, balance)
VALUES($1,$2,$3)
ON CONFLICT (principal, medium) DO UPDATE SET balance = EXCLUDED.balance
`, key.Principal, key.Medium.String(), balance)
	return err
}

func (p *PgRepo) SaveSettlement(ctx context.Context, s *domain.Settlement) error {
	if s == nil {
		return errors.New("nil settlement")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO settlements(id, kind, collection, token_id, seller, buyer, price, medium, executed_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO NOTHING
`, s.ID, string(s.Kind), s.Asset.Collection, s.Asset.TokenID, s.Seller, s.Buyer, s.Price, s.Medium.String(), s.ExecutedAt)
	return err
}

func (p *PgRepo) LoadSettlements(ctx context.Context, principal string) ([]*domain.Settlement, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, kind, collection, token_id, seller, buyer, price, medium, executed_at
FROM settlements
WHERE seller = $1 OR buyer = $1
ORDER BY executed_at ASC
`, principal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Settlement
	for rows.Next() {
		var s domain.Settlement
		var kind, medium string
		if err := rows.Scan(&s.ID, &kind, &s.Asset.Collection, &s.Asset.TokenID,
			&s.Seller, &s.Buyer, &s.Price, &medium, &s.ExecutedAt); err != nil {
			return nil, err
		}
		s.Kind = domain.SettlementKind(kind)
		m, err := domain.ParseMedium(medium)
		if err != nil {
			return nil, err
		}
		s.Medium = m
		res = append(res, &s)
	}
	return res, rows.Err()
}

// SaveCounters keeps the global id sequences in a single row so restarts
// never reissue ids.
func (p *PgRepo) SaveCounters(ctx context.Context, c domain.Counters) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO counters(singleton, auction_seq, bid_seq, sell_seq)
VALUES(TRUE,$1,$2,$3)
ON CONFLICT (singleton) DO UPDATE SET
  auction_seq = GREATEST(counters.auction_seq, EXCLUDED.auction_seq),
  bid_seq = GREATEST(counters.bid_seq, EXCLUDED.bid_seq),
  sell_seq = GREATEST(counters.sell_seq, EXCLUDED.sell_seq)
`, c.Auction, c.Bid, c.Sell)
	return err
}

// SaveSnapshot persists the market snapshot as JSONB.
func (p *PgRepo) SaveSnapshot(ctx context.Context, snapshotID string, snap *domain.MarketSnapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO market_snapshots(id, snapshot_json, created_at)
VALUES($1,$2,NOW())
ON CONFLICT (id) DO UPDATE SET snapshot_json = EXCLUDED.snapshot_json, created_at = NOW()
`, snapshotID, string(b))
	return err
}

func (p *PgRepo) LoadSnapshot(ctx context.Context, snapshotID string) (*domain.MarketSnapshot, error) {
	var data string
	if err := p.pool.QueryRow(ctx, `SELECT snapshot_json FROM market_snapshots WHERE id = $1`, snapshotID).Scan(&data); err != nil {
		return nil, err
	}
	var snap domain.MarketSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (p *PgRepo) LoadState(ctx context.Context) (*domain.MarketState, error) {
	state := &domain.MarketState{Treasury: make(map[domain.TreasuryKey]uint64)}

	rows, err := p.pool.Query(ctx, `SELECT collection, token_id, seller, buyer, price, medium FROM asks`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		a := &domain.Ask{Exists: true}
		var medium string
		if err := rows.Scan(&a.Asset.Collection, &a.Asset.TokenID, &a.Seller, &a.To, &a.Price, &medium); err != nil {
			rows.Close()
			return nil, err
		}
		if a.Medium, err = domain.ParseMedium(medium); err != nil {
			rows.Close()
			return nil, err
		}
		state.Asks = append(state.Asks, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = p.pool.Query(ctx, `SELECT id, seller, floor_price, medium, collection, token_id FROM auctions`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		a := &domain.Auction{Exists: true}
		var medium string
		if err := rows.Scan(&a.ID, &a.Seller, &a.FloorPrice, &medium, &a.Asset.Collection, &a.Asset.TokenID); err != nil {
			rows.Close()
			return nil, err
		}
		if a.Medium, err = domain.ParseMedium(medium); err != nil {
			rows.Close()
			return nil, err
		}
		state.Auctions = append(state.Auctions, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = p.pool.Query(ctx, `SELECT id, price, buyer, medium, collection, token_id, auction_id FROM bids`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		b := &domain.Bid{}
		var medium string
		if err := rows.Scan(&b.ID, &b.Price, &b.Buyer, &medium, &b.Asset.Collection, &b.Asset.TokenID, &b.AuctionID); err != nil {
			rows.Close()
			return nil, err
		}
		if b.Medium, err = domain.ParseMedium(medium); err != nil {
			rows.Close()
			return nil, err
		}
		state.Bids = append(state.Bids, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = p.pool.Query(ctx, `SELECT id, seller, price, medium, collection, token_id FROM sell_listings`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		s := &domain.SellListing{Exists: true}
		var medium string
		if err := rows.Scan(&s.ID, &s.Seller, &s.Price, &medium, &s.Asset.Collection, &s.Asset.TokenID); err != nil {
			rows.Close()
			return nil, err
		}
		if s.Medium, err = domain.ParseMedium(medium); err != nil {
			rows.Close()
			return nil, err
		}
		state.Sells = append(state.Sells, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = p.pool.Query(ctx, `SELECT principal, medium, balance FROM treasury_entries`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var principal, medium string
		var balance uint64
		if err := rows.Scan(&principal, &medium, &balance); err != nil {
			rows.Close()
			return nil, err
		}
		m, err := domain.ParseMedium(medium)
		if err != nil {
			rows.Close()
			return nil, err
		}
		state.Treasury[domain.TreasuryKey{Principal: principal, Medium: m}] = balance
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = p.pool.QueryRow(ctx, `SELECT auction_seq, bid_seq, sell_seq FROM counters WHERE singleton`).
		Scan(&state.Counters.Auction, &state.Counters.Bid, &state.Counters.Sell)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		// no counters row yet: fresh database
		state.Counters = domain.Counters{}
	}
	return state, nil
}
