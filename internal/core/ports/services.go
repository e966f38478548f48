package ports

import (
	"context"
	"time"

	"crypta-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// PriceReader resolves the last known price of a symbol against cash.
type PriceReader interface {
	CurrentPrice(ctx context.Context, symbol string) (*domain.PriceQuote, error)
}

// PriceStore is the write side of the price cache, fed by the ingestion relay.
type PriceStore interface {
	StoreTickers(ctx context.Context, tickers []domain.Ticker) (int, error)
	Snapshot(ctx context.Context, symbols []string) ([]domain.PriceQuote, error)
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// AuditService records audited actions without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// SettlementService settles buy, sell and swap operations against a wallet.
type SettlementService interface {
	Purchase(ctx context.Context, req TradeRequest) (*domain.Settlement, error)
	Sale(ctx context.Context, req TradeRequest) (*domain.Settlement, error)
	Swap(ctx context.Context, req SwapRequest) (*domain.Settlement, error)
}

// TradeRequest holds input for a purchase or sale.
type TradeRequest struct {
	UserID   uuid.UUID
	Symbol   string
	Quantity decimal.Decimal
}

// SwapRequest holds input for exchanging one currency for another.
type SwapRequest struct {
	UserID   uuid.UUID
	From     string
	To       string
	Quantity decimal.Decimal
}

// WalletService covers wallet lifecycle and read models.
type WalletService interface {
	// CreateWallet opens the user's wallet and seeds its cash holding inside tx.
	CreateWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletSummary, error)
	SetCashBalance(ctx context.Context, userID uuid.UUID, quantity decimal.Decimal) (*domain.Holding, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResponse holds the registration result.
type RegisterResponse struct {
	UserID   uuid.UUID
	WalletID uuid.UUID
	Email    string
}
