package core

import "errors"

// Every error below aborts the whole call: either no mutation has happened
// yet, or the operation compensates before returning.
var (
	ErrNotAuthorized       = errors.New("caller not authorized over asset")
	ErrNoSuchAsk           = errors.New("ask not found")
	ErrNoSuchAuction       = errors.New("auction not found")
	ErrNoSuchBid           = errors.New("bid not found")
	ErrNoSuchListing       = errors.New("sell listing not found")
	ErrNotDesignatedBuyer  = errors.New("caller is not the designated buyer")
	ErrNotSeller           = errors.New("caller is not the seller")
	ErrAuctionAlreadyOpen  = errors.New("asset already has a live auction")
	ErrBelowFloorPrice     = errors.New("bid price below auction floor")
	ErrPaymentMismatch     = errors.New("attached value does not match required price")
	ErrTransferRejected    = errors.New("token transfer rejected")
	ErrInsufficientBalance = errors.New("insufficient treasury balance")
)
