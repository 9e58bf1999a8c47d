package domain

import "time"

// MarketSnapshot is a point-in-time copy of every live listing table and
// the id counters. Treasury balances are deliberately excluded: restoring
// money would break ledger conservation.
type MarketSnapshot struct {
	Asks      []Ask         `json:"asks"`
	Auctions  []Auction     `json:"auctions"`
	Bids      []Bid         `json:"bids"`
	Sells     []SellListing `json:"sells"`
	Counters  Counters      `json:"counters"`
	Timestamp time.Time     `json:"timestamp"`
}

// MarketState is the full persisted state rehydrated on startup.
type MarketState struct {
	Asks     []*Ask
	Auctions []*Auction
	Bids     []*Bid
	Sells    []*SellListing
	Treasury map[TreasuryKey]uint64
	Counters Counters
}
