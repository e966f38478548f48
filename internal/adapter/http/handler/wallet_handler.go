package handler

import (
	"context"
	"time"

	"crypta-wallet/internal/adapter/http/dto"
	"crypta-wallet/internal/adapter/http/middleware"
	"crypta-wallet/internal/core/domain"
	"crypta-wallet/internal/core/ports"
	"crypta-wallet/pkg/apperror"
	"crypta-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// defaultPageSize mirrors the wallet service default for the response meta.
const defaultPageSize = 20

// WalletHandler handles wallet reads and settlements.
type WalletHandler struct {
	walletSvc     ports.WalletService
	settlementSvc ports.SettlementService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, settlementSvc ports.SettlementService) *WalletHandler {
	return &WalletHandler{
		walletSvc:     walletSvc,
		settlementSvc: settlementSvc,
	}
}

// GetWallet handles GET /api/v1/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	summary, err := h.walletSvc.GetWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(summary))
}

// SetBalance handles POST /api/v1/wallet/balance.
func (h *WalletHandler) SetBalance(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SetBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	holding, err := h.walletSvc.SetCashBalance(c.Request.Context(), userID, req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, holding.WalletID.String())
	response.OK(c, toHoldingResponse(*holding))
}

// Buy handles POST /api/v1/wallet/buy.
func (h *WalletHandler) Buy(c *gin.Context) {
	h.trade(c, h.settlementSvc.Purchase)
}

// Sell handles POST /api/v1/wallet/sell.
func (h *WalletHandler) Sell(c *gin.Context) {
	h.trade(c, h.settlementSvc.Sale)
}

func (h *WalletHandler) trade(c *gin.Context, settle func(ctx context.Context, req ports.TradeRequest) (*domain.Settlement, error)) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := settle(c.Request.Context(), ports.TradeRequest{
		UserID:   userID,
		Symbol:   req.Currency,
		Quantity: req.Quantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, result.TransactionID.String())
	response.Created(c, toSettlementResponse(result))
}

// Swap handles POST /api/v1/wallet/swap.
func (h *WalletHandler) Swap(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.settlementSvc.Swap(c.Request.Context(), ports.SwapRequest{
		UserID:   userID,
		From:     req.FromCurrency,
		To:       req.ToCurrency,
		Quantity: req.Quantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, result.TransactionID.String())
	response.Created(c, toSettlementResponse(result))
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var q dto.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.TransactionListParams{
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Kind != "" {
		kind := domain.TransactionKind(q.Kind)
		params.Kind = &kind
	}
	if q.Currency != "" {
		sym := q.Currency
		params.Symbol = &sym
	}

	txns, total, err := h.walletSvc.ListTransactions(c.Request.Context(), userID, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	page, pageSize := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	response.Page(c, items, response.PageMeta{Page: page, PageSize: pageSize, Total: total})
}

func toWalletResponse(s *domain.WalletSummary) dto.WalletResponse {
	holdings := make([]dto.HoldingResponse, 0, len(s.Holdings))
	for _, h := range s.Holdings {
		holdings = append(holdings, toHoldingResponse(h))
	}
	return dto.WalletResponse{
		ID:        s.Wallet.ID.String(),
		UserID:    s.Wallet.UserID.String(),
		Balance:   s.CashBalance().String(),
		Holdings:  holdings,
		CreatedAt: formatTime(s.Wallet.CreatedAt),
	}
}

func toHoldingResponse(h domain.Holding) dto.HoldingResponse {
	return dto.HoldingResponse{
		Currency:  h.Symbol,
		Quantity:  h.Quantity.String(),
		UpdatedAt: formatTime(h.UpdatedAt),
	}
}

func toSettlementResponse(s *domain.Settlement) dto.SettlementResponse {
	resp := dto.SettlementResponse{
		TransactionID: s.TransactionID.String(),
		Kind:          string(s.Kind),
		Currency:      s.Symbol,
		Quantity:      s.Quantity.String(),
		Balance:       s.CashBalance.String(),
		ExecutedAt:    formatTime(s.ExecutedAt),
	}
	if s.Price != nil {
		p := s.Price.String()
		resp.Price = &p
	}
	if s.Swap != nil {
		resp.Swap = &dto.SwapLegResponse{Currency: s.Swap.Symbol, Quantity: s.Swap.Quantity.String()}
	}
	return resp
}

func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:         tx.ID.String(),
		Kind:       string(tx.Kind),
		Currency:   tx.Symbol,
		Quantity:   tx.Quantity.String(),
		Price:      tx.Price.String(),
		ExecutedAt: formatTime(tx.ExecutedAt),
	}
	if tx.Swap != nil {
		resp.Swap = &dto.SwapLegResponse{Currency: tx.Swap.Symbol, Quantity: tx.Swap.Quantity.String()}
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
