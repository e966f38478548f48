package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypta-wallet/internal/core/domain"
	"crypta-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Append writes a settled transaction inside the settlement's database transaction.
// Records are never updated afterwards.
func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, wallet_id, kind, symbol, counter_symbol, quantity, price, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, string(t.Kind), t.Symbol,
		t.CounterSymbol(), t.Quantity, t.Price, t.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListByWallet fetches a wallet's transactions, newest first, with filtering and pagination.
func (r *TransactionRepo) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, string(*params.Kind))
		argIdx++
	}
	if params.Symbol != nil {
		conditions = append(conditions, fmt.Sprintf("(symbol = $%d OR counter_symbol = $%d)", argIdx, argIdx))
		args = append(args, *params.Symbol)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT id, wallet_id, kind, symbol, counter_symbol, quantity, price, executed_at
		FROM transactions %s ORDER BY executed_at DESC, id LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, params.PageSize)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		id, walletID  uuid.UUID
		kind, symbol  string
		counterSymbol *string
		qty, price    decimal.Decimal
		executedAt    time.Time
	)
	if err := row.Scan(&id, &walletID, &kind, &symbol, &counterSymbol, &qty, &price, &executedAt); err != nil {
		return nil, fmt.Errorf("scan transaction row: %w", err)
	}

	t, err := domain.RestoreTransaction(id, walletID, kind, symbol, counterSymbol, qty, price, executedAt)
	if err != nil {
		return nil, fmt.Errorf("restore transaction: %w", err)
	}
	return t, nil
}
