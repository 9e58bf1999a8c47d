package domain

// Ask is a directed fixed-price offer: only the designated buyer may
// accept it. At most one live ask exists per asset; re-listing overwrites.
type Ask struct {
	Exists bool          `json:"exists"`
	Seller string        `json:"seller"`
	To     string        `json:"to"`
	Price  uint64        `json:"price"`
	Medium PaymentMedium `json:"medium"`
	Asset  AssetRef      `json:"asset"`
}

// Auction is a seller-opened bidding session with a floor price. Ids come
// from a global counter that is never reused or decremented, even after
// the auction record is deleted.
type Auction struct {
	ID         uint64        `json:"id"`
	Exists     bool          `json:"exists"`
	Seller     string        `json:"seller"`
	FloorPrice uint64        `json:"floor_price"`
	Medium     PaymentMedium `json:"medium"`
	Asset      AssetRef      `json:"asset"`
}

// Bid is one buyer's priced entry against a live auction. The bid price is
// escrowed at creation time, not at acceptance.
type Bid struct {
	ID        uint64        `json:"id"`
	Price     uint64        `json:"price"`
	Buyer     string        `json:"buyer"`
	Medium    PaymentMedium `json:"medium"`
	Asset     AssetRef      `json:"asset"`
	AuctionID uint64        `json:"auction_id"`
}

// SellListing is a fixed-price offer open to any buyer.
type SellListing struct {
	ID     uint64        `json:"id"`
	Exists bool          `json:"exists"`
	Seller string        `json:"seller"`
	Price  uint64        `json:"price"`
	Medium PaymentMedium `json:"medium"`
	Asset  AssetRef      `json:"asset"`
}

// Counters holds the global monotonic id sequences. They only ever grow;
// deleting a record never rolls its counter back.
type Counters struct {
	Auction uint64 `json:"auction"`
	Bid     uint64 `json:"bid"`
	Sell    uint64 `json:"sell"`
}
