package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypta-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor on top of the connection pool.
type Transactor struct {
	pool    Pool
	timeout time.Duration
}

// NewTransactor creates a Transactor. A positive timeout bounds every atomic unit.
func NewTransactor(pool Pool, timeout time.Duration) *Transactor {
	return &Transactor{pool: pool, timeout: timeout}
}

// RunAtomic runs fn inside one database transaction and commits it.
// The unit is detached from the caller's cancellation so a disconnecting
// client cannot leave it half applied; only the configured timeout stops it.
// Any error or panic from fn rolls everything back.
func (t *Transactor) RunAtomic(ctx context.Context, fn ports.UnitOfWork) (err error) {
	ctx = context.WithoutCancel(ctx)
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
