package service

import (
	"crypta-wallet/internal/core/domain"
	"crypta-wallet/pkg/apperror"

	"github.com/shopspring/decimal"
)

// SupportedSet is the allow-list of tradable symbols. Cash is always a member.
type SupportedSet map[string]struct{}

// NewSupportedSet builds a SupportedSet from configured symbols.
func NewSupportedSet(symbols []string) SupportedSet {
	set := SupportedSet{domain.CashSymbol: {}}
	for _, s := range symbols {
		if s = domain.NormalizeSymbol(s); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// Contains reports whether symbol is supported.
func (s SupportedSet) Contains(symbol string) bool {
	_, ok := s[domain.NormalizeSymbol(symbol)]
	return ok
}

// Symbols returns the non-cash members.
func (s SupportedSet) Symbols() []string {
	out := make([]string, 0, len(s))
	for sym := range s {
		if sym != domain.CashSymbol {
			out = append(out, sym)
		}
	}
	return out
}

// ValidateQuantity fails with InvalidQuantity unless qty > 0.
func ValidateQuantity(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return apperror.ErrInvalidQuantity()
	}
	return nil
}

// ValidateSupported fails with UnsupportedCurrency when symbol is not in set.
func ValidateSupported(set SupportedSet, symbol string) error {
	if !set.Contains(symbol) {
		return apperror.ErrUnsupportedCurrency(domain.NormalizeSymbol(symbol))
	}
	return nil
}

// ValidateTradable rejects buying or selling cash against itself.
func ValidateTradable(symbol string) error {
	if domain.NormalizeSymbol(symbol) == domain.CashSymbol {
		return apperror.ErrUnsupportedCurrency(domain.CashSymbol)
	}
	return nil
}

// ValidateDistinct rejects a swap whose two legs are the same currency.
func ValidateDistinct(from, to string) error {
	if domain.NormalizeSymbol(from) == domain.NormalizeSymbol(to) {
		return apperror.ErrSameCurrencySwap()
	}
	return nil
}

// ValidateHolding checks that h exists with a positive quantity that covers qty.
func ValidateHolding(h *domain.Holding, symbol string, qty decimal.Decimal) error {
	if h == nil || !h.Quantity.IsPositive() {
		return apperror.ErrNoSuchHolding(symbol)
	}
	if !h.Covers(qty) {
		return apperror.ErrInsufficientHolding(symbol)
	}
	return nil
}

// ValidateCash checks that the cash holding covers cost.
func ValidateCash(cash *domain.Holding, cost decimal.Decimal) error {
	if cash == nil || !cash.Covers(cost) {
		return apperror.ErrInsufficientBalance()
	}
	return nil
}
