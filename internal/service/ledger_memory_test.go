package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"crypta-wallet/internal/core/domain"
	"crypta-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memoryLedger is an in-memory stand-in for the Postgres ledger. RunAtomic
// serializes units of work and restores a snapshot when one fails, which is
// what the row lock plus rollback give in production.
type memoryLedger struct {
	unit sync.Mutex

	mu           sync.Mutex
	users        map[uuid.UUID]*domain.User
	wallets      map[uuid.UUID]*domain.Wallet // by user id
	holdings     map[holdingKey]decimal.Decimal
	transactions []domain.Transaction

	failAppend error
}

type holdingKey struct {
	walletID uuid.UUID
	symbol   string
}

var (
	_ ports.UserRepository        = (*memoryLedger)(nil)
	_ ports.WalletRepository      = walletRepo{}
	_ ports.HoldingRepository     = (*memoryLedger)(nil)
	_ ports.TransactionRepository = transactionLog{}
	_ ports.DBTransactor          = (*memoryLedger)(nil)
)

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		users:    make(map[uuid.UUID]*domain.User),
		wallets:  make(map[uuid.UUID]*domain.Wallet),
		holdings: make(map[holdingKey]decimal.Decimal),
	}
}

// seedWallet opens a wallet for a fresh user with the given holdings.
func (l *memoryLedger) seedWallet(holdings map[string]string) (userID uuid.UUID, walletID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	userID, walletID = uuid.New(), uuid.New()
	l.wallets[userID] = &domain.Wallet{ID: walletID, UserID: userID}
	for sym, qty := range holdings {
		l.holdings[holdingKey{walletID, sym}] = decimal.RequireFromString(qty)
	}
	return userID, walletID
}

func (l *memoryLedger) quantity(walletID uuid.UUID, symbol string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holdings[holdingKey{walletID, symbol}]
}

func (l *memoryLedger) transactionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.transactions)
}

// --- DBTransactor ---

func (l *memoryLedger) RunAtomic(ctx context.Context, fn ports.UnitOfWork) error {
	l.unit.Lock()
	defer l.unit.Unlock()

	l.mu.Lock()
	savedHoldings := make(map[holdingKey]decimal.Decimal, len(l.holdings))
	for k, v := range l.holdings {
		savedHoldings[k] = v
	}
	savedWallets := make(map[uuid.UUID]*domain.Wallet, len(l.wallets))
	for k, v := range l.wallets {
		savedWallets[k] = v
	}
	savedUsers := make(map[uuid.UUID]*domain.User, len(l.users))
	for k, v := range l.users {
		savedUsers[k] = v
	}
	savedTxCount := len(l.transactions)
	l.mu.Unlock()

	if err := fn(context.WithoutCancel(ctx), nil); err != nil {
		l.mu.Lock()
		l.holdings = savedHoldings
		l.wallets = savedWallets
		l.users = savedUsers
		l.transactions = l.transactions[:savedTxCount]
		l.mu.Unlock()
		return err
	}
	return nil
}

// --- UserRepository ---

func (l *memoryLedger) Create(ctx context.Context, tx pgx.Tx, user *domain.User) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.users {
		if u.Email == user.Email {
			return fmt.Errorf("duplicate email")
		}
	}
	l.users[user.ID] = user
	return nil
}

func (l *memoryLedger) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.users[id], nil
}

func (l *memoryLedger) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

// --- WalletRepository ---

// walletRepo adapts the ledger to WalletRepository, whose Create collides
// with UserRepository.Create on the same receiver.
type walletRepo struct{ *memoryLedger }

func (w walletRepo) Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.wallets[wallet.UserID]; ok {
		return errors.New("user already has a wallet")
	}
	w.wallets[wallet.UserID] = wallet
	return nil
}

func (l *memoryLedger) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wallets[userID], nil
}

func (l *memoryLedger) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	return l.GetByUserID(ctx, userID)
}

// --- HoldingRepository ---

func (l *memoryLedger) Get(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, symbol string) (*domain.Holding, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	qty, ok := l.holdings[holdingKey{walletID, symbol}]
	if !ok {
		return nil, nil
	}
	return &domain.Holding{WalletID: walletID, Symbol: symbol, Quantity: qty}, nil
}

func (l *memoryLedger) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Holding, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []domain.Holding{}
	for k, qty := range l.holdings {
		if k.walletID == walletID {
			out = append(out, domain.Holding{WalletID: walletID, Symbol: k.symbol, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsCash() != out[j].IsCash() {
			return out[i].IsCash()
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (l *memoryLedger) Upsert(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, symbol string, quantity decimal.Decimal) error {
	if quantity.IsNegative() {
		return fmt.Errorf("negative quantity for %s", symbol)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holdings[holdingKey{walletID, symbol}] = quantity
	return nil
}

// --- TransactionRepository ---

func (l *memoryLedger) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAppend != nil {
		return l.failAppend
	}
	l.transactions = append(l.transactions, *t)
	return nil
}

// transactionLog adapts the ledger to TransactionRepository, whose
// ListByWallet collides with HoldingRepository.ListByWallet.
type transactionLog struct{ *memoryLedger }

func (t transactionLog) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var matched []domain.Transaction
	for i := len(t.transactions) - 1; i >= 0; i-- {
		tx := t.transactions[i]
		if tx.WalletID != params.WalletID {
			continue
		}
		if params.Kind != nil && tx.Kind != *params.Kind {
			continue
		}
		if params.Symbol != nil && tx.Symbol != *params.Symbol && (tx.Swap == nil || tx.Swap.Symbol != *params.Symbol) {
			continue
		}
		matched = append(matched, tx)
	}

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// staticPrices is a PriceReader over a fixed table. Cash is always 1.
type staticPrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func newStaticPrices(prices map[string]string) *staticPrices {
	p := &staticPrices{prices: map[string]decimal.Decimal{domain.CashSymbol: decimal.NewFromInt(1)}}
	for sym, v := range prices {
		p.prices[sym] = decimal.RequireFromString(v)
	}
	return p
}

func (p *staticPrices) set(symbol, price string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = decimal.RequireFromString(price)
}

func (p *staticPrices) CurrentPrice(ctx context.Context, symbol string) (*domain.PriceQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	price, ok := p.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no price for %s", symbol)
	}
	return &domain.PriceQuote{Symbol: symbol, Price: price}, nil
}
