package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"crypta-wallet/internal/core/domain"
	"crypta-wallet/pkg/apperror"
	"crypta-wallet/pkg/metrics"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// PriceCache stores exchange tickers and serves last traded prices.
//
// Layout:
//
//	<PAIR>            latest ticker of a cash pair, e.g. BTCUSDT, no expiry
//	<eventMillis>_<PAIR>  ticker history entry, expires after historyTTL
type PriceCache struct {
	client      goredis.UniversalClient
	historyTTL  time.Duration
	readTimeout time.Duration
	metrics     *metrics.Metrics
}

// NewPriceCache creates a PriceCache. readTimeout bounds every price lookup.
func NewPriceCache(client goredis.UniversalClient, historyTTL, readTimeout time.Duration, m *metrics.Metrics) *PriceCache {
	return &PriceCache{
		client:      client,
		historyTTL:  historyTTL,
		readTimeout: readTimeout,
		metrics:     m,
	}
}

// CurrentPrice returns the last traded price of symbol against cash.
// Cash itself is always worth 1. Any miss, decode failure, non-positive
// price or timeout is reported as PriceUnavailable.
func (c *PriceCache) CurrentPrice(ctx context.Context, symbol string) (*domain.PriceQuote, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == domain.CashSymbol {
		return &domain.PriceQuote{Symbol: symbol, Price: decimal.NewFromInt(1), EventTime: time.Now().UTC()}, nil
	}

	if c.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.readTimeout)
		defer cancel()
	}

	raw, err := c.client.Get(ctx, domain.PairSymbol(symbol)).Bytes()
	if errors.Is(err, goredis.Nil) {
		c.metrics.IncPriceLookup("miss")
		return nil, apperror.ErrPriceUnavailable(symbol, fmt.Errorf("no cached price for %s", domain.PairSymbol(symbol)))
	}
	if err != nil {
		c.metrics.IncPriceLookup("error")
		return nil, apperror.ErrPriceUnavailable(symbol, fmt.Errorf("read cached price: %w", err))
	}

	quote, err := decodeQuote(symbol, raw)
	if err != nil {
		c.metrics.IncPriceLookup("invalid")
		return nil, apperror.ErrPriceUnavailable(symbol, err)
	}

	c.metrics.IncPriceLookup("hit")
	return quote, nil
}

// StoreTickers writes the latest ticker of every cash-quoted pair and its
// history entry in one pipeline. Pairs quoted in other currencies are
// skipped. Returns the number of tickers stored.
func (c *PriceCache) StoreTickers(ctx context.Context, tickers []domain.Ticker) (int, error) {
	pipe := c.client.Pipeline()
	stored := 0

	for i := range tickers {
		t := &tickers[i]
		if _, ok := t.Base(); !ok {
			continue
		}

		payload, err := json.Marshal(t)
		if err != nil {
			return 0, fmt.Errorf("encode ticker %s: %w", t.Pair, err)
		}

		pair := domain.NormalizeSymbol(t.Pair)
		pipe.Set(ctx, pair, payload, 0)
		pipe.Set(ctx, historyKey(t.EventTime, pair), payload, c.historyTTL)
		stored++
	}

	if stored == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("store tickers: %w", err)
	}
	return stored, nil
}

// Snapshot returns the cached quotes of symbols, in order, silently
// leaving out symbols that have no usable price.
func (c *PriceCache) Snapshot(ctx context.Context, symbols []string) ([]domain.PriceQuote, error) {
	if len(symbols) == 0 {
		return []domain.PriceQuote{}, nil
	}

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = domain.PairSymbol(s)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot prices: %w", err)
	}

	quotes := make([]domain.PriceQuote, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		q, err := decodeQuote(domain.NormalizeSymbol(symbols[i]), []byte(s))
		if err != nil {
			continue
		}
		quotes = append(quotes, *q)
	}
	return quotes, nil
}

func historyKey(eventMillis int64, pair string) string {
	return fmt.Sprintf("%d_%s", eventMillis, pair)
}

// decodeQuote extracts the last traded price ("c") from a cached ticker.
// Records written by older producers used single quotes; those are
// normalised before decoding.
func decodeQuote(symbol string, raw []byte) (*domain.PriceQuote, error) {
	if bytes.IndexByte(raw, '"') < 0 && bytes.IndexByte(raw, '\'') >= 0 {
		raw = bytes.ReplaceAll(raw, []byte("'"), []byte(`"`))
	}

	var t domain.Ticker
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode cached ticker for %s: %w", symbol, err)
	}
	if !t.Close.IsPositive() {
		return nil, fmt.Errorf("cached ticker for %s has no positive price", symbol)
	}

	// The cache key names the symbol; the stored pair may be absent.
	q := t.Quote()
	q.Symbol = symbol
	return &q, nil
}
