package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnova/marketplace-engine/internal/adapter/in_memory"
	"github.com/dkrasnova/marketplace-engine/internal/core"
	"github.com/dkrasnova/marketplace-engine/internal/domain"
)

const (
	seller = "alice"
	buyer  = "bob"
	other  = "carol"
	tokenT = "TOK"
)

var assetX = domain.AssetRef{Collection: "art", TokenID: 1}

type env struct {
	router   *gin.Engine
	registry *in_memory.AssetRegistry
	tokens   *in_memory.TokenLedger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := in_memory.NewAssetRegistry()
	tokens := in_memory.NewTokenLedger(core.EscrowAccount)
	eng := core.NewEngine(seller, registry, tokens, in_memory.NewMemoryRepo(), in_memory.NewCache())

	registry.Mint(assetX, seller)
	tokens.Mint(tokenT, buyer, 10)

	server := NewHTTPServer(eng)
	server.RateLimit = 0
	return &env{router: server.Router(), registry: registry, tokens: tokens}
}

func (e *env) do(t *testing.T, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func asset() map[string]any {
	return map[string]any{"collection": assetX.Collection, "token_id": assetX.TokenID}
}

func TestHTTP_CallerRequired(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/admin", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTP_Admin(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/admin", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"admin":"alice"}`, w.Body.String())
}

func TestHTTP_AskFlow(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/asks", seller, map[string]any{
		"asset": asset(), "buyer": buyer, "price": 2, "medium": "base",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodGet, "/asks?collection=art&token_id=1", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ask struct {
		Seller string `json:"seller"`
		To     string `json:"to"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ask))
	assert.Equal(t, seller, ask.Seller)
	assert.Equal(t, buyer, ask.To)

	// wrong caller
	w = e.do(t, http.MethodPost, "/asks/accept", other, map[string]any{
		"asset": asset(), "attached_value": 2,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// wrong attached value
	w = e.do(t, http.MethodPost, "/asks/accept", buyer, map[string]any{
		"asset": asset(), "attached_value": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/asks/accept", buyer, map[string]any{
		"asset": asset(), "attached_value": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/treasury?principal=alice&medium=base", seller, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bal struct {
		Balance json.Number `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bal))
	assert.Equal(t, "2", bal.Balance.String())

	w = e.do(t, http.MethodGet, "/asks?collection=art&token_id=1", buyer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTP_AuctionFlow(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/auctions", seller, map[string]any{
		"asset": asset(), "floor_price": 2, "medium": "token:" + tokenT,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		AuctionID uint64 `json:"auction_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, uint64(1), created.AuctionID)

	// duplicate auction on the same asset
	w = e.do(t, http.MethodPost, "/auctions", seller, map[string]any{
		"asset": asset(), "floor_price": 3, "medium": "base",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	e.tokens.Approve(tokenT, buyer, 2)
	w = e.do(t, http.MethodPost, "/bids", buyer, map[string]any{
		"asset": asset(), "price": 2, "medium": "token:" + tokenT,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var bid struct {
		BidID uint64 `json:"bid_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bid))
	assert.Equal(t, uint64(1), bid.BidID)

	w = e.do(t, http.MethodPost, "/bids/accept", seller, map[string]any{
		"asset": asset(), "bid_id": bid.BidID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/auctions/1", seller, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(t, http.MethodGet, "/bids/1", seller, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTP_DeleteAuction(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/auctions", seller, map[string]any{
		"asset": asset(), "floor_price": 2, "medium": "base",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodDelete, "/auctions/1", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodDelete, "/auctions/1", seller, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodDelete, "/auctions/1", seller, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTP_SellFlow(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/sells", seller, map[string]any{
		"asset": asset(), "price": 2, "medium": "token:" + tokenT,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var listed struct {
		SellID uint64 `json:"sell_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Equal(t, uint64(1), listed.SellID)

	e.tokens.Approve(tokenT, buyer, 2)
	w = e.do(t, http.MethodPost, "/sells/1/buy", buyer, map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/sells/1/buy", buyer, map[string]any{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTP_FractionalPriceRejected(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/sells", seller, map[string]any{
		"asset": asset(), "price": 2.5, "medium": "base",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTP_InvalidMedium(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/sells", seller, map[string]any{
		"asset": asset(), "price": 2, "medium": "doubloons",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTP_TransferRejected(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/sells", seller, map[string]any{
		"asset": asset(), "price": 2, "medium": "token:" + tokenT,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// no allowance approved: the token pull is declined
	w = e.do(t, http.MethodPost, "/sells/1/buy", buyer, map[string]any{})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestHTTP_SnapshotRestore(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/auctions", seller, map[string]any{
		"asset": asset(), "floor_price": 2, "medium": "base",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodPost, "/market/snapshot", seller, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap struct {
		SnapshotID string `json:"snapshot_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.SnapshotID)

	w = e.do(t, http.MethodDelete, "/auctions/1", seller, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/market/restore", seller, map[string]any{
		"snapshot_id": snap.SnapshotID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/auctions/1", seller, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
