package service

import (
	"context"
	"fmt"
	"time"

	"crypta-wallet/internal/core/domain"
	"crypta-wallet/internal/core/ports"
	"crypta-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Pagination bounds for transaction history.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo   ports.WalletRepository
	holdingRepo  ports.HoldingRepository
	txRepo       ports.TransactionRepository
	transactor   ports.DBTransactor
	startingCash decimal.Decimal
	log          zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl. New wallets are seeded
// with startingCash of the cash currency.
func NewWalletService(
	walletRepo ports.WalletRepository,
	holdingRepo ports.HoldingRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	startingCash decimal.Decimal,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:   walletRepo,
		holdingRepo:  holdingRepo,
		txRepo:       txRepo,
		transactor:   transactor,
		startingCash: startingCash,
		log:          log,
	}
}

// CreateWallet opens the wallet of userID and seeds its cash holding, inside tx.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	wallet := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.walletRepo.Create(ctx, tx, wallet); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	if err := s.holdingRepo.Upsert(ctx, tx, wallet.ID, domain.CashSymbol, s.startingCash); err != nil {
		return nil, fmt.Errorf("seed cash holding: %w", err)
	}
	return wallet, nil
}

// GetWallet returns the wallet of userID with every holding, cash first.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.WalletSummary, error) {
	wallet, err := s.findWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.holdingRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list holdings: %w", err))
	}

	return &domain.WalletSummary{Wallet: *wallet, Holdings: holdings}, nil
}

// SetCashBalance overwrites the cash holding of userID. It records no
// transaction; it is an administrative reset, not a settlement.
func (s *WalletServiceImpl) SetCashBalance(ctx context.Context, userID uuid.UUID, quantity decimal.Decimal) (*domain.Holding, error) {
	if quantity.IsNegative() {
		return nil, apperror.ErrInvalidQuantity()
	}

	var walletID uuid.UUID
	err := s.transactor.RunAtomic(ctx, func(ctx context.Context, tx pgx.Tx) error {
		wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if wallet == nil {
			return apperror.ErrWalletNotFound()
		}
		walletID = wallet.ID
		return s.holdingRepo.Upsert(ctx, tx, wallet.ID, domain.CashSymbol, quantity)
	})
	if err != nil {
		return nil, settlementError(err)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("quantity", quantity.String()).
		Msg("cash balance set")

	return &domain.Holding{
		WalletID:  walletID,
		Symbol:    domain.CashSymbol,
		Quantity:  quantity,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// ListTransactions returns the settled history of userID, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	wallet, err := s.findWallet(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	if params.Kind != nil && !params.Kind.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown transaction kind %q", *params.Kind))
	}
	if params.Symbol != nil {
		sym := domain.NormalizeSymbol(*params.Symbol)
		params.Symbol = &sym
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}
	params.WalletID = wallet.ID

	txs, total, err := s.txRepo.ListByWallet(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}
	return txs, total, nil
}

func (s *WalletServiceImpl) findWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}
