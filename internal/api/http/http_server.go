package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkrasnova/marketplace-engine/internal/api/dto"
	"github.com/dkrasnova/marketplace-engine/internal/core"
	"github.com/dkrasnova/marketplace-engine/internal/domain"
	"github.com/dkrasnova/marketplace-engine/internal/middleware"
)

type HTTPServer struct {
	Eng *core.Engine
	// RateLimit is the minimum spacing between calls per caller; zero
	// disables limiting.
	RateLimit time.Duration
}

func NewHTTPServer(eng *core.Engine) *HTTPServer {
	return &HTTPServer{Eng: eng, RateLimit: 100 * time.Millisecond}
}

func (s *HTTPServer) Run(addr string) error {
	return s.Router().Run(addr)
}

// Router builds the gin engine (separated from Run for tests).
func (s *HTTPServer) Router() *gin.Engine {
	r := gin.Default()

	if s.RateLimit > 0 {
		rl := middleware.NewRateLimiter(s.RateLimit)
		r.Use(rl.Middleware())
	}
	r.Use(middleware.CallerResolver())

	r.POST("/asks", s.createAsk)
	r.POST("/asks/accept", s.acceptAsk)
	r.GET("/asks", s.getAsk)

	r.POST("/auctions", s.createAuction)
	r.DELETE("/auctions/:id", s.deleteAuction)
	r.GET("/auctions/:id", s.getAuction)

	r.POST("/bids", s.createBid)
	r.POST("/bids/accept", s.acceptBid)
	r.GET("/bids/:id", s.getBid)

	r.POST("/sells", s.listSell)
	r.POST("/sells/:id/buy", s.promptBuy)
	r.GET("/sells/:id", s.getSellListing)

	r.GET("/treasury", s.treasuryBalance)
	r.GET("/settlements", s.settlements)
	r.GET("/board", s.board)
	r.GET("/admin", s.admin)

	r.POST("/market/snapshot", s.snapshotMarket)
	r.POST("/market/restore", s.restoreMarket)

	return r
}

func caller(c *gin.Context) string {
	return c.GetString(middleware.CallerKey)
}

// statusOf maps engine errors onto HTTP codes. ErrInsufficientBalance maps
// to 500: if it surfaces, the ledger itself is inconsistent.
func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrNoSuchAsk),
		errors.Is(err, core.ErrNoSuchAuction),
		errors.Is(err, core.ErrNoSuchBid),
		errors.Is(err, core.ErrNoSuchListing):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotAuthorized),
		errors.Is(err, core.ErrNotDesignatedBuyer),
		errors.Is(err, core.ErrNotSeller):
		return http.StatusForbidden
	case errors.Is(err, core.ErrAuctionAlreadyOpen):
		return http.StatusConflict
	case errors.Is(err, core.ErrPaymentMismatch),
		errors.Is(err, core.ErrBelowFloorPrice):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTransferRejected):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

func (s *HTTPServer) createAsk(c *gin.Context) {
	var req dto.CreateAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	price, err := dto.BaseUnits(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	medium, err := req.Medium.Domain()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Eng.CreateAsk(c.Request.Context(), caller(c), req.Asset.Domain(), req.Buyer, price, medium); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "ask created"})
}

func (s *HTTPServer) acceptAsk(c *gin.Context) {
	var req dto.AcceptAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	attached, err := dto.BaseUnits(req.AttachedValue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settlement, err := s.Eng.AcceptAsk(c.Request.Context(), caller(c), req.Asset.Domain(), attached)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SettlementOf(settlement))
}

func (s *HTTPServer) getAsk(c *gin.Context) {
	asset, ok := assetFromQuery(c)
	if !ok {
		return
	}
	a, err := s.Eng.GetAsk(c.Request.Context(), asset)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AskOf(a))
}

func (s *HTTPServer) createAuction(c *gin.Context) {
	var req dto.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	floor, err := dto.BaseUnits(req.FloorPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	medium, err := req.Medium.Domain()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.Eng.CreateAuction(c.Request.Context(), caller(c), req.Asset.Domain(), floor, medium)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CreateAuctionResponse{AuctionID: id})
}

func (s *HTTPServer) deleteAuction(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.Eng.DeleteAuction(c.Request.Context(), caller(c), id); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "auction deleted"})
}

func (s *HTTPServer) getAuction(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	a, err := s.Eng.GetAuction(c.Request.Context(), id)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AuctionOf(a))
}

func (s *HTTPServer) createBid(c *gin.Context) {
	var req dto.CreateBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	price, err := dto.BaseUnits(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	attached, err := dto.BaseUnits(req.AttachedValue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	medium, err := req.Medium.Domain()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.Eng.CreateBid(c.Request.Context(), caller(c), req.Asset.Domain(), price, medium, attached)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CreateBidResponse{BidID: id})
}

func (s *HTTPServer) acceptBid(c *gin.Context) {
	var req dto.AcceptBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settlement, err := s.Eng.AcceptBid(c.Request.Context(), caller(c), req.Asset.Domain(), req.BidID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SettlementOf(settlement))
}

func (s *HTTPServer) getBid(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	b, err := s.Eng.GetBid(c.Request.Context(), id)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BidOf(b))
}

func (s *HTTPServer) listSell(c *gin.Context) {
	var req dto.ListSellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	price, err := dto.BaseUnits(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	medium, err := req.Medium.Domain()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.Eng.ListSell(c.Request.Context(), caller(c), req.Asset.Domain(), price, medium)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ListSellResponse{SellID: id})
}

func (s *HTTPServer) promptBuy(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.PromptBuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	attached, err := dto.BaseUnits(req.AttachedValue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settlement, err := s.Eng.PromptBuy(c.Request.Context(), caller(c), id, attached)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SettlementOf(settlement))
}

func (s *HTTPServer) getSellListing(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	l, err := s.Eng.GetSellListing(c.Request.Context(), id)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SellListingOf(l))
}

func (s *HTTPServer) treasuryBalance(c *gin.Context) {
	principal := c.Query("principal")
	if principal == "" {
		principal = caller(c)
	}
	medium, err := domain.ParseMedium(c.DefaultQuery("medium", "base"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bal := s.Eng.TreasuryBalance(c.Request.Context(), principal, medium)
	c.JSON(http.StatusOK, dto.TreasuryBalanceResponse{
		Principal: principal,
		Medium:    dto.MediumOf(medium),
		Balance:   dto.FromUnits(bal),
	})
}

func (s *HTTPServer) settlements(c *gin.Context) {
	principal := c.Query("principal")
	if principal == "" {
		principal = caller(c)
	}
	res := s.Eng.SettlementsFor(c.Request.Context(), principal)
	c.JSON(http.StatusOK, gin.H{"settlements": dto.SettlementsOf(res)})
}

func (s *HTTPServer) board(c *gin.Context) {
	snap, err := s.Eng.Board(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *HTTPServer) admin(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"admin": s.Eng.Admin()})
}

func (s *HTTPServer) snapshotMarket(c *gin.Context) {
	id, err := s.Eng.SnapshotMarket(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.SnapshotResponse{SnapshotID: id})
}

func (s *HTTPServer) restoreMarket(c *gin.Context) {
	var req dto.RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Eng.RestoreMarket(c.Request.Context(), req.SnapshotID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.RestoreResponse{Ok: true})
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func assetFromQuery(c *gin.Context) (domain.AssetRef, bool) {
	collection := c.Query("collection")
	tokenID, err := strconv.ParseUint(c.Query("token_id"), 10, 64)
	if collection == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection and token_id query params required"})
		return domain.AssetRef{}, false
	}
	return domain.AssetRef{Collection: collection, TokenID: tokenID}, true
}
