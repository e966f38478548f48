package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind is the closed set of settled operations.
type TransactionKind string

const (
	TransactionKindPurchase TransactionKind = "PURCHASE"
	TransactionKindSale     TransactionKind = "SALE"
	TransactionKindSwap     TransactionKind = "SWAP"
)

// Valid returns true for the three known kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindPurchase, TransactionKindSale, TransactionKindSwap:
		return true
	}
	return false
}

// SwapLeg is the destination side of a swap.
type SwapLeg struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Transaction is an immutable record of one settled operation.
// Only SWAP records carry a Swap leg. For swaps, Price holds the
// destination quantity, which is what the ledger stores in its price column.
type Transaction struct {
	ID         uuid.UUID       `json:"id"`
	WalletID   uuid.UUID       `json:"wallet_id"`
	Kind       TransactionKind `json:"kind"`
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Swap       *SwapLeg        `json:"swap,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// NewPurchase records buying qty of symbol at price.
func NewPurchase(walletID uuid.UUID, symbol string, qty, price decimal.Decimal, at time.Time) *Transaction {
	return &Transaction{
		ID:         uuid.New(),
		WalletID:   walletID,
		Kind:       TransactionKindPurchase,
		Symbol:     symbol,
		Quantity:   qty,
		Price:      price,
		ExecutedAt: at,
	}
}

// NewSale records selling qty of symbol at price.
func NewSale(walletID uuid.UUID, symbol string, qty, price decimal.Decimal, at time.Time) *Transaction {
	return &Transaction{
		ID:         uuid.New(),
		WalletID:   walletID,
		Kind:       TransactionKindSale,
		Symbol:     symbol,
		Quantity:   qty,
		Price:      price,
		ExecutedAt: at,
	}
}

// NewSwap records exchanging qtyA of symbolA for qtyB of symbolB.
func NewSwap(walletID uuid.UUID, symbolA string, qtyA decimal.Decimal, symbolB string, qtyB decimal.Decimal, at time.Time) *Transaction {
	return &Transaction{
		ID:         uuid.New(),
		WalletID:   walletID,
		Kind:       TransactionKindSwap,
		Symbol:     symbolA,
		Quantity:   qtyA,
		Price:      qtyB,
		Swap:       &SwapLeg{Symbol: symbolB, Quantity: qtyB},
		ExecutedAt: at,
	}
}

// CounterSymbol returns the secondary currency for persistence, nil unless SWAP.
func (t *Transaction) CounterSymbol() *string {
	if t.Swap == nil {
		return nil
	}
	s := t.Swap.Symbol
	return &s
}

// RestoreTransaction rebuilds a record read back from storage.
func RestoreTransaction(
	id, walletID uuid.UUID,
	kind string,
	symbol string,
	counterSymbol *string,
	qty, price decimal.Decimal,
	executedAt time.Time,
) (*Transaction, error) {
	k := TransactionKind(kind)
	if !k.Valid() {
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}

	t := &Transaction{
		ID:         id,
		WalletID:   walletID,
		Kind:       k,
		Symbol:     symbol,
		Quantity:   qty,
		Price:      price,
		ExecutedAt: executedAt,
	}

	if k == TransactionKindSwap {
		if counterSymbol == nil {
			return nil, fmt.Errorf("swap %s has no destination currency", id)
		}
		t.Swap = &SwapLeg{Symbol: *counterSymbol, Quantity: price}
	}
	return t, nil
}

// Settlement is the summary returned for a settled operation.
type Settlement struct {
	TransactionID uuid.UUID        `json:"transaction_id"`
	Kind          TransactionKind  `json:"kind"`
	Symbol        string           `json:"symbol"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Price         *decimal.Decimal `json:"price,omitempty"` // nil for swaps
	Swap          *SwapLeg         `json:"swap,omitempty"`
	CashBalance   decimal.Decimal  `json:"cash_balance"`
	ExecutedAt    time.Time        `json:"executed_at"`
}

// SettlementOf summarises tx once it has been committed.
func SettlementOf(tx *Transaction, cash decimal.Decimal) *Settlement {
	s := &Settlement{
		TransactionID: tx.ID,
		Kind:          tx.Kind,
		Symbol:        tx.Symbol,
		Quantity:      tx.Quantity,
		CashBalance:   cash,
		ExecutedAt:    tx.ExecutedAt,
	}
	if tx.Swap != nil {
		leg := *tx.Swap
		s.Swap = &leg
	} else {
		price := tx.Price
		s.Price = &price
	}
	return s
}
