package ports

import (
	"context"

	"crypta-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside an atomic unit; the ForUpdate read takes
// the row lock that serializes settlements on one wallet.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
}

// HoldingRepository defines persistence operations for currency holdings.
type HoldingRepository interface {
	Get(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, symbol string) (*domain.Holding, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Holding, error)
	Upsert(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, symbol string, quantity decimal.Decimal) error
}

// TransactionRepository defines the append-only transaction log.
type TransactionRepository interface {
	Append(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	ListByWallet(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	WalletID uuid.UUID
	Kind     *domain.TransactionKind
	Symbol   *string
	Page     int
	PageSize int
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// UnitOfWork is a group of ledger mutations sharing one database transaction.
type UnitOfWork func(ctx context.Context, tx pgx.Tx) error

// DBTransactor provides database transaction management.
type DBTransactor interface {
	// RunAtomic commits everything fn does, or nothing. It runs to completion
	// even if ctx is cancelled by the caller.
	RunAtomic(ctx context.Context, fn UnitOfWork) error
}
