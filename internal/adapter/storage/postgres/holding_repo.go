package postgres

import (
	"context"
	"errors"
	"fmt"

	"crypta-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// HoldingRepo implements ports.HoldingRepository.
type HoldingRepo struct {
	pool Pool
}

// NewHoldingRepo creates a new HoldingRepo.
func NewHoldingRepo(pool Pool) *HoldingRepo {
	return &HoldingRepo{pool: pool}
}

// Get reads one holding inside tx, locking its row. Returns nil, nil when
// the wallet has never held symbol.
func (r *HoldingRepo) Get(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, symbol string) (*domain.Holding, error) {
	query := `SELECT id, wallet_id, symbol, quantity, updated_at
		FROM holdings WHERE wallet_id = $1 AND symbol = $2 FOR UPDATE`

	h := &domain.Holding{}
	err := tx.QueryRow(ctx, query, walletID, symbol).Scan(
		&h.ID, &h.WalletID, &h.Symbol, &h.Quantity, &h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get holding %s: %w", symbol, err)
	}
	return h, nil
}

// ListByWallet returns every holding of a wallet, cash first.
func (r *HoldingRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Holding, error) {
	query := `SELECT id, wallet_id, symbol, quantity, updated_at
		FROM holdings WHERE wallet_id = $1
		ORDER BY (symbol = 'USDT') DESC, symbol`

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]domain.Holding, 0)
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.ID, &h.WalletID, &h.Symbol, &h.Quantity, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan holding row: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holding rows: %w", err)
	}
	return holdings, nil
}

// Upsert sets the quantity of (walletID, symbol), creating the holding on
// first acquisition. Holdings are never deleted; zero is kept as a row.
func (r *HoldingRepo) Upsert(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, symbol string, quantity decimal.Decimal) error {
	if quantity.IsNegative() {
		return fmt.Errorf("upsert holding %s: negative quantity %s", symbol, quantity)
	}

	query := `INSERT INTO holdings (id, wallet_id, symbol, quantity, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (wallet_id, symbol)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`

	_, err := tx.Exec(ctx, query, uuid.New(), walletID, symbol, quantity)
	if err != nil {
		return fmt.Errorf("upsert holding %s: %w", symbol, err)
	}
	return nil
}
