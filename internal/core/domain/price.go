package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is the last known price of a symbol against cash.
type PriceQuote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	EventTime time.Time       `json:"event_time"`
}

// Ticker is one entry of the exchange's 24h mini-ticker stream.
// Field names follow the exchange wire format.
type Ticker struct {
	EventType   string          `json:"e"`
	EventTime   int64           `json:"E"` // unix millis
	Pair        string          `json:"s"`
	Close       decimal.Decimal `json:"c"` // last traded price
	Open        decimal.Decimal `json:"o"`
	High        decimal.Decimal `json:"h"`
	Low         decimal.Decimal `json:"l"`
	Volume      decimal.Decimal `json:"v"`
	QuoteVolume decimal.Decimal `json:"q"`
}

// Base returns the base symbol of a cash-quoted pair (BTCUSDT -> BTC).
// ok is false for pairs quoted in anything else.
func (t *Ticker) Base() (string, bool) {
	pair := NormalizeSymbol(t.Pair)
	base, found := strings.CutSuffix(pair, CashSymbol)
	if !found || base == "" {
		return "", false
	}
	return base, true
}

// Quote converts the ticker into a price quote for its base symbol.
func (t *Ticker) Quote() PriceQuote {
	base, _ := t.Base()
	return PriceQuote{
		Symbol:    base,
		Price:     t.Close,
		EventTime: time.UnixMilli(t.EventTime).UTC(),
	}
}
