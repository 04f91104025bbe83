package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carbon-nft-system/internal/service"
	"carbon-nft-system/pkg/errors"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeDomainError 按业务码映射HTTP状态
func writeDomainError(w http.ResponseWriter, err error) {
	switch errors.CodeOf(err) {
	case errors.ErrTokenNotFound, errors.ErrNotRegistered, errors.ErrNoActiveListing:
		writeError(w, http.StatusNotFound, err.Error())
	case "":
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func pagination(r *http.Request) (page, pageSize, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize, (page - 1) * pageSize
}

type TokenHandler struct {
	registrySvc *service.RegistryService
}

func NewTokenHandler(registrySvc *service.RegistryService) *TokenHandler {
	return &TokenHandler{registrySvc: registrySvc}
}

// GetToken GET /api/tokens/{chain_id}/{token_id}
func (h *TokenHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/tokens/{chain_id}/{token_id}")
		return
	}

	chainID := pathParts[2]
	tokenID, err := strconv.ParseUint(pathParts[3], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	token, err := h.registrySvc.GetToken(chainID, tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chain":        chainID,
		"tokenId":      token.ID,
		"owner":        token.Owner,
		"grade":        token.Grade.String(),
		"score":        token.Score,
		"endorsements": token.Endorsements,
		"theme":        token.Theme,
		"metadataUri":  token.MetadataURI,
		"isActive":     token.Active,
		"mintedAt":     token.MintedAt.Format(time.RFC3339),
	})
}

type UserHandler struct {
	registrySvc *service.RegistryService
}

func NewUserHandler(registrySvc *service.RegistryService) *UserHandler {
	return &UserHandler{registrySvc: registrySvc}
}

// GetUserTokens GET /api/users/{chain_id}/{address}/tokens
func (h *UserHandler) GetUserTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chainID, address, ok := userPath(w, r)
	if !ok {
		return
	}

	tokenIDs, err := h.registrySvc.GetUserTokens(chainID, address)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chain":    chainID,
		"address":  address,
		"tokenIds": tokenIDs,
		"total":    len(tokenIDs),
	})
}

// GetUploadQuota GET /api/users/{chain_id}/{address}/uploads
func (h *UserHandler) GetUploadQuota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chainID, address, ok := userPath(w, r)
	if !ok {
		return
	}

	remaining, canUpload, err := h.registrySvc.UploadQuota(chainID, address, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chain":     chainID,
		"address":   address,
		"remaining": remaining,
		"canUpload": canUpload,
	})
}

func userPath(w http.ResponseWriter, r *http.Request) (chainID, address string, ok bool) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 5 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/users/{chain_id}/{address}/...")
		return "", "", false
	}
	if pathParts[2] == "" || pathParts[3] == "" {
		writeError(w, http.StatusBadRequest, "chain_id and address are required")
		return "", "", false
	}
	return pathParts[2], pathParts[3], true
}

type ListingHandler struct {
	exchangeSvc *service.ExchangeService
}

func NewListingHandler(exchangeSvc *service.ExchangeService) *ListingHandler {
	return &ListingHandler{exchangeSvc: exchangeSvc}
}

// ListActive GET /api/listings?chain_id=
func (h *ListingHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chainID := r.URL.Query().Get("chain_id")
	if chainID == "" {
		writeError(w, http.StatusBadRequest, "chain_id is required")
		return
	}

	page, pageSize, offset := pagination(r)

	listings, total, err := h.exchangeSvc.ListActive(r.Context(), chainID, offset, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list listings: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    listings,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetQuote GET /api/listings/{chain_id}/{token_id}/quote
func (h *ListingHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 5 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/listings/{chain_id}/{token_id}/quote")
		return
	}

	chainID := pathParts[2]
	tokenID, err := strconv.ParseUint(pathParts[3], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	listing, err := h.exchangeSvc.GetListing(chainID, tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	quote, err := h.exchangeSvc.Quote(chainID, tokenID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chain":     chainID,
		"tokenId":   tokenID,
		"seller":    listing.Seller,
		"basePrice": listing.BasePrice.String(),
		"salePrice": quote.String(),
		"listedAt":  listing.ListedAt.Format(time.RFC3339),
	})
}

type SaleHandler struct {
	exchangeSvc *service.ExchangeService
}

func NewSaleHandler(exchangeSvc *service.ExchangeService) *SaleHandler {
	return &SaleHandler{exchangeSvc: exchangeSvc}
}

// ListSales GET /api/sales?chain_id=
func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chainID := r.URL.Query().Get("chain_id")
	if chainID == "" {
		writeError(w, http.StatusBadRequest, "chain_id is required")
		return
	}

	page, pageSize, offset := pagination(r)

	sales, total, err := h.exchangeSvc.ListSales(r.Context(), chainID, offset, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sales: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    sales,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

type StatsHandler struct {
	statsSvc *service.StatsService
}

func NewStatsHandler(statsSvc *service.StatsService) *StatsHandler {
	return &StatsHandler{statsSvc: statsSvc}
}

// GetStats GET /api/stats?chain_id=
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chainID := r.URL.Query().Get("chain_id")
	if chainID == "" {
		writeError(w, http.StatusBadRequest, "chain_id is required")
		return
	}

	stats, err := h.statsSvc.GetStats(r.Context(), chainID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListSnapshots GET /api/snapshots?chain_id=&limit=
func (h *StatsHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	chainID := r.URL.Query().Get("chain_id")
	if chainID == "" {
		writeError(w, http.StatusBadRequest, "chain_id is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 90 {
		limit = 30
	}

	snapshots, err := h.statsSvc.GetRecentSnapshots(r.Context(), chainID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list snapshots: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": snapshots,
		"total": len(snapshots),
	})
}

// HandleHealth GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}
