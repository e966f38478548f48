package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crypta-wallet/internal/adapter/storage/redis"
	"crypta-wallet/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/cenkalti/backoff/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore captures stored tickers and serves fixed snapshots.
type recordingStore struct {
	mu       sync.Mutex
	tickers  []domain.Ticker
	quotes   []domain.PriceQuote
	failSnap error
	snaps    int
}

func (s *recordingStore) StoreTickers(ctx context.Context, tickers []domain.Ticker) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers = append(s.tickers, tickers...)
	return len(tickers), nil
}

func (s *recordingStore) Snapshot(ctx context.Context, symbols []string) ([]domain.PriceQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps++
	if s.failSnap != nil {
		return nil, s.failSnap
	}
	var out []domain.PriceQuote
	for _, q := range s.quotes {
		for _, sym := range symbols {
			if q.Symbol == sym {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

func (s *recordingStore) pairs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tickers))
	for _, t := range s.tickers {
		out = append(out, t.Pair)
	}
	return out
}

func runIngestor(t *testing.T, ing *Ingestor) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- ing.Run(ctx) }()

	return func() error {
		stop()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("ingestor did not stop")
			return nil
		}
	}
}

func TestIngestor_StoresFramesAndReconnects(t *testing.T) {
	up := newUpstreamServer(t,
		sendThenClose(`[{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"64000.5"},{"e":"24hrMiniTicker","E":1700000000000,"s":"ETHUSDT","c":"3100"}]`),
		sendThenHold(`[{"e":"24hrMiniTicker","E":1700000001000,"s":"SOLUSDT","c":"150"}]`),
	)
	store := &recordingStore{}
	ing := NewIngestor(up.URL(), store, fastBackOff, nil, testLogger())

	stop := runIngestor(t, ing)

	require.Eventually(t, func() bool {
		return len(store.pairs()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	err := stop()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, store.pairs())
	assert.GreaterOrEqual(t, int(up.accepted.Load()), 2)
}

func TestIngestor_RetriesRefusedHandshakes(t *testing.T) {
	up := newUpstreamServer(t, sendThenHold(`[{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"1"}]`))
	up.reject.Store(3)
	store := &recordingStore{}
	ing := NewIngestor(up.URL(), store, fastBackOff, nil, testLogger())

	stop := runIngestor(t, ing)
	require.Eventually(t, func() bool {
		return len(store.pairs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.ErrorIs(t, stop(), context.Canceled)
}

func TestIngestor_SkipsUndecodableFrames(t *testing.T) {
	up := newUpstreamServer(t, sendThenHold(
		`not json`,
		`{"e":"24hrMiniTicker","E":1700000000000,"s":"BNBUSDT","c":"590.1"}`,
	))
	store := &recordingStore{}
	ing := NewIngestor(up.URL(), store, fastBackOff, nil, testLogger())

	stop := runIngestor(t, ing)
	require.Eventually(t, func() bool {
		return len(store.pairs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.ErrorIs(t, stop(), context.Canceled)
	assert.Equal(t, []string{"BNBUSDT"}, store.pairs())
}

func TestIngestor_StopsWhileUpstreamUnreachable(t *testing.T) {
	store := &recordingStore{}
	ing := NewIngestor("ws://127.0.0.1:1/ws", store, fastBackOff, nil, testLogger())

	stop := runIngestor(t, ing)
	time.Sleep(30 * time.Millisecond)
	assert.ErrorIs(t, stop(), context.Canceled)
	assert.Empty(t, store.pairs())
}

func TestIngestor_FeedsPriceCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := redis.NewPriceCache(client, time.Hour, time.Second, nil)

	up := newUpstreamServer(t, sendThenHold(`[{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"64000.5"},{"e":"24hrMiniTicker","E":1700000000000,"s":"ETHBTC","c":"0.05"}]`))
	ing := NewIngestor(up.URL(), cache, fastBackOff, nil, testLogger())
	stop := runIngestor(t, ing)
	defer stop()

	require.Eventually(t, func() bool {
		return mr.Exists("BTCUSDT")
	}, 2*time.Second, 10*time.Millisecond)

	quote, err := cache.CurrentPrice(context.Background(), "btc")
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("64000.5")))
	assert.True(t, mr.Exists("1700000000000_BTCUSDT"))
	assert.False(t, mr.Exists("ETHBTC"), "non-cash pairs are not cached")
}

func TestDecodeTickers(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		pairs   []string
		wantErr bool
	}{
		{name: "array", frame: ` [{"s":"BTCUSDT","c":"1"},{"s":"ETHUSDT","c":"2"}]`, pairs: []string{"BTCUSDT", "ETHUSDT"}},
		{name: "single object", frame: `{"s":"BTCUSDT","c":"1"}`, pairs: []string{"BTCUSDT"}},
		{name: "empty array", frame: `[]`, pairs: []string{}},
		{name: "blank", frame: "  \n", wantErr: true},
		{name: "garbage", frame: `[{"s":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tickers, err := decodeTickers([]byte(tt.frame))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			pairs := make([]string, 0, len(tickers))
			for _, tk := range tickers {
				pairs = append(pairs, tk.Pair)
			}
			assert.Equal(t, tt.pairs, pairs)
		})
	}
}

func TestDecodeTickers_EmptyFrame(t *testing.T) {
	_, err := decodeTickers(nil)
	assert.True(t, errors.Is(err, errEmptyFrame))
}

func TestIngestor_BacksOffWhenUpstreamDropsAtOnce(t *testing.T) {
	up := newUpstreamServer(t, sendThenClose())
	store := &recordingStore{}
	growing := func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 20 * time.Millisecond
		b.RandomizationFactor = 0
		b.Multiplier = 2
		b.MaxInterval = time.Second
		b.MaxElapsedTime = 0
		return b
	}
	ing := NewIngestor(up.URL(), store, growing, nil, testLogger())

	stop := runIngestor(t, ing)
	time.Sleep(300 * time.Millisecond)
	require.ErrorIs(t, stop(), context.Canceled)

	// Waits of 20, 40, 80 and 160ms fit at most five connections in 300ms.
	accepted := int(up.accepted.Load())
	assert.GreaterOrEqual(t, accepted, 2)
	assert.LessOrEqual(t, accepted, 6)
	assert.Empty(t, store.pairs())
}
