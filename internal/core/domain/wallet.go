package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashSymbol is the cash-equivalent currency every wallet holds.
const CashSymbol = "USDT"

// Wallet is the single ledger account of a user.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Holding is the quantity of one currency held by a wallet.
// Quantity is never negative; zero is a valid resting state.
type Holding struct {
	ID        uuid.UUID       `json:"id"`
	WalletID  uuid.UUID       `json:"wallet_id"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsCash reports whether h is the wallet's cash balance.
func (h *Holding) IsCash() bool {
	return h.Symbol == CashSymbol
}

// Covers reports whether the holding can give up qty.
func (h *Holding) Covers(qty decimal.Decimal) bool {
	return h.Quantity.Sub(qty).GreaterThanOrEqual(decimal.Zero)
}

// NormalizeSymbol trims and upper-cases a currency symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// PairSymbol returns the exchange pair of symbol against cash, e.g. BTC -> BTCUSDT.
func PairSymbol(symbol string) string {
	return NormalizeSymbol(symbol) + CashSymbol
}

// WalletSummary is a wallet together with all of its holdings.
type WalletSummary struct {
	Wallet   Wallet    `json:"wallet"`
	Holdings []Holding `json:"holdings"`
}

// CashBalance returns the cash holding quantity, or zero when absent.
func (s *WalletSummary) CashBalance() decimal.Decimal {
	for _, h := range s.Holdings {
		if h.Symbol == CashSymbol {
			return h.Quantity
		}
	}
	return decimal.Zero
}
