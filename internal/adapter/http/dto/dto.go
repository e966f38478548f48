package dto

import (
	"github.com/shopspring/decimal"
)

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID   string `json:"user_id"`
	WalletID string `json:"wallet_id"`
	Email    string `json:"email"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// TradeRequest is the request body for buying or selling a currency.
// Quantity sign and currency support are checked by the settlement engine.
type TradeRequest struct {
	Currency string          `json:"currency" binding:"required,symbol"`
	Quantity decimal.Decimal `json:"quantity" binding:"ledger_scale"`
}

// SwapRequest is the request body for exchanging one currency for another.
type SwapRequest struct {
	FromCurrency string          `json:"from_currency" binding:"required,symbol"`
	ToCurrency   string          `json:"to_currency" binding:"required,symbol"`
	Quantity     decimal.Decimal `json:"quantity" binding:"ledger_scale"`
}

// SetBalanceRequest is the request body for overwriting the cash balance.
type SetBalanceRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"ledger_scale"`
}

// TransactionListQuery is the query string of the transaction history.
type TransactionListQuery struct {
	Kind     string `form:"kind" binding:"omitempty,oneof=PURCHASE SALE SWAP"`
	Currency string `form:"currency" binding:"omitempty,symbol"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// HoldingResponse is one currency of a wallet.
type HoldingResponse struct {
	Currency  string `json:"currency"`
	Quantity  string `json:"quantity"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// WalletResponse is the response for the wallet query.
type WalletResponse struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Balance   string            `json:"balance"` // cash holding
	Holdings  []HoldingResponse `json:"holdings"`
	CreatedAt string            `json:"created_at"`
}

// SwapLegResponse is the destination side of a swap.
type SwapLegResponse struct {
	Currency string `json:"currency"`
	Quantity string `json:"quantity"`
}

// SettlementResponse is the response body for a settled buy, sell or swap.
type SettlementResponse struct {
	TransactionID string           `json:"transaction_id"`
	Kind          string           `json:"kind"`
	Currency      string           `json:"currency"`
	Quantity      string           `json:"quantity"`
	Price         *string          `json:"price,omitempty"`
	Swap          *SwapLegResponse `json:"swap,omitempty"`
	Balance       string           `json:"balance"`
	ExecutedAt    string           `json:"executed_at"`
}

// TransactionResponse is one entry of the transaction history.
type TransactionResponse struct {
	ID         string           `json:"id"`
	Kind       string           `json:"kind"`
	Currency   string           `json:"currency"`
	Quantity   string           `json:"quantity"`
	Price      string           `json:"price"`
	Swap       *SwapLegResponse `json:"swap,omitempty"`
	ExecutedAt string           `json:"executed_at"`
}
