package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
)

// Monetary amounts cross the wire as decimals but the engine only deals in
// whole base units: conversion rejects fractions and negatives.
func BaseUnits(d decimal.Decimal) (uint64, error) {
	if d.Sign() < 0 {
		return 0, fmt.Errorf("amount %s is negative", d)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("amount %s has fractional base units", d)
	}
	bi := d.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows uint64", d)
	}
	return bi.Uint64(), nil
}

func FromUnits(u uint64) decimal.Decimal {
	return decimal.NewFromUint64(u)
}

// Medium is the wire form of domain.PaymentMedium: "base" or "token:<ref>".
type Medium string

func (m Medium) Domain() (domain.PaymentMedium, error) {
	return domain.ParseMedium(string(m))
}

func MediumOf(m domain.PaymentMedium) Medium {
	return Medium(m.String())
}

type Asset struct {
	Collection string `json:"collection" binding:"required"`
	TokenID    uint64 `json:"token_id"`
}

func (a Asset) Domain() domain.AssetRef {
	return domain.AssetRef{Collection: a.Collection, TokenID: a.TokenID}
}

func AssetOf(a domain.AssetRef) Asset {
	return Asset{Collection: a.Collection, TokenID: a.TokenID}
}

type CreateAskRequest struct {
	Asset  Asset           `json:"asset" binding:"required"`
	Buyer  string          `json:"buyer" binding:"required"`
	Price  decimal.Decimal `json:"price"`
	Medium Medium          `json:"medium" binding:"required"`
}

type AcceptAskRequest struct {
	Asset Asset `json:"asset" binding:"required"`
	// AttachedValue models the base-currency value attached to the call;
	// ignored for token media.
	AttachedValue decimal.Decimal `json:"attached_value"`
}

type CreateAuctionRequest struct {
	Asset      Asset           `json:"asset" binding:"required"`
	FloorPrice decimal.Decimal `json:"floor_price"`
	Medium     Medium          `json:"medium" binding:"required"`
}

type CreateAuctionResponse struct {
	AuctionID uint64 `json:"auction_id"`
}

type CreateBidRequest struct {
	Asset         Asset           `json:"asset" binding:"required"`
	Price         decimal.Decimal `json:"price"`
	Medium        Medium          `json:"medium" binding:"required"`
	AttachedValue decimal.Decimal `json:"attached_value"`
}

type CreateBidResponse struct {
	BidID uint64 `json:"bid_id"`
}

type AcceptBidRequest struct {
	Asset Asset  `json:"asset" binding:"required"`
	BidID uint64 `json:"bid_id" binding:"required"`
}

type ListSellRequest struct {
	Asset  Asset           `json:"asset" binding:"required"`
	Price  decimal.Decimal `json:"price"`
	Medium Medium          `json:"medium" binding:"required"`
}

type ListSellResponse struct {
	SellID uint64 `json:"sell_id"`
}

type PromptBuyRequest struct {
	AttachedValue decimal.Decimal `json:"attached_value"`
}

type Ask struct {
	Seller string          `json:"seller"`
	To     string          `json:"to"`
	Price  decimal.Decimal `json:"price"`
	Medium Medium          `json:"medium"`
	Asset  Asset           `json:"asset"`
}

type Auction struct {
	ID         uint64          `json:"id"`
	Seller     string          `json:"seller"`
	FloorPrice decimal.Decimal `json:"floor_price"`
	Medium     Medium          `json:"medium"`
	Asset      Asset           `json:"asset"`
}

type Bid struct {
	ID        uint64          `json:"id"`
	Price     decimal.Decimal `json:"price"`
	Buyer     string          `json:"buyer"`
	Medium    Medium          `json:"medium"`
	Asset     Asset           `json:"asset"`
	AuctionID uint64          `json:"auction_id"`
}

type SellListing struct {
	ID     uint64          `json:"id"`
	Seller string          `json:"seller"`
	Price  decimal.Decimal `json:"price"`
	Medium Medium          `json:"medium"`
	Asset  Asset           `json:"asset"`
}

type Settlement struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Asset      Asset           `json:"asset"`
	Seller     string          `json:"seller"`
	Buyer      string          `json:"buyer"`
	Price      decimal.Decimal `json:"price"`
	Medium     Medium          `json:"medium"`
	ExecutedAt time.Time       `json:"executed_at"`
}

type TreasuryBalanceResponse struct {
	Principal string          `json:"principal"`
	Medium    Medium          `json:"medium"`
	Balance   decimal.Decimal `json:"balance"`
}

type SnapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

type RestoreRequest struct {
	SnapshotID string `json:"snapshot_id" binding:"required"`
}

type RestoreResponse struct {
	Ok bool `json:"ok"`
}

func AskOf(a *domain.Ask) Ask {
	return Ask{
		Seller: a.Seller,
		To:     a.To,
		Price:  FromUnits(a.Price),
		Medium: MediumOf(a.Medium),
		Asset:  AssetOf(a.Asset),
	}
}

func AuctionOf(a *domain.Auction) Auction {
	return Auction{
		ID:         a.ID,
		Seller:     a.Seller,
		FloorPrice: FromUnits(a.FloorPrice),
		Medium:     MediumOf(a.Medium),
		Asset:      AssetOf(a.Asset),
	}
}

func BidOf(b *domain.Bid) Bid {
	return Bid{
		ID:        b.ID,
		Price:     FromUnits(b.Price),
		Buyer:     b.Buyer,
		Medium:    MediumOf(b.Medium),
		Asset:     AssetOf(b.Asset),
		AuctionID: b.AuctionID,
	}
}

func SellListingOf(s *domain.SellListing) SellListing {
	return SellListing{
		ID:     s.ID,
		Seller: s.Seller,
		Price:  FromUnits(s.Price),
		Medium: MediumOf(s.Medium),
		Asset:  AssetOf(s.Asset),
	}
}

func SettlementOf(s *domain.Settlement) Settlement {
	return Settlement{
		ID:         s.ID,
		Kind:       string(s.Kind),
		Asset:      AssetOf(s.Asset),
		Seller:     s.Seller,
		Buyer:      s.Buyer,
		Price:      FromUnits(s.Price),
		Medium:     MediumOf(s.Medium),
		ExecutedAt: s.ExecutedAt,
	}
}

func SettlementsOf(in []*domain.Settlement) []Settlement {
	res := make([]Settlement, len(in))
	for i, s := range in {
		res[i] = SettlementOf(s)
	}
	return res
}
