package domain

import "time"

type SettlementKind string

const (
	SettleAsk  SettlementKind = "ASK"
	SettleBid  SettlementKind = "BID"
	SettleSell SettlementKind = "SELL"
)

// Settlement records one completed sale: the asset moved and exactly the
// listed or bid price was credited to the seller's treasury entry.
type Settlement struct {
	ID         string         `json:"id"`
	Kind       SettlementKind `json:"kind"`
	Asset      AssetRef       `json:"asset"`
	Seller     string         `json:"seller"`
	Buyer      string         `json:"buyer"`
	Price      uint64         `json:"price"`
	Medium     PaymentMedium  `json:"medium"`
	ExecutedAt time.Time      `json:"executed_at"`
}
