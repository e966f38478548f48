package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"crypta-wallet/internal/core/domain"
	"crypta-wallet/internal/core/ports"
	"crypta-wallet/pkg/apperror"
	"crypta-wallet/pkg/metrics"
	"crypta-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	historyRelay    = "history"
	maxSymbols      = 50
	defaultInterval = time.Second
)

var (
	symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,20}$`)
	coinPattern   = regexp.MustCompile(`^[a-z0-9]{2,24}$`)

	// Kline intervals accepted by the exchange.
	klineIntervals = map[string]struct{}{
		"1s": {}, "1m": {}, "3m": {}, "5m": {}, "15m": {}, "30m": {},
		"1h": {}, "2h": {}, "4h": {}, "6h": {}, "8h": {}, "12h": {},
		"1d": {}, "3d": {}, "1w": {}, "1M": {},
	}

	errClientGone = errors.New("stream client gone")
)

// PriceFrame is one push of the price stream.
type PriceFrame struct {
	Prices []domain.PriceQuote `json:"prices"`
	Time   time.Time           `json:"time"`
}

// StreamConfig configures the browser-facing relays.
type StreamConfig struct {
	KlineURL       string        // base URL, "<pair>@kline_<interval>" is appended
	Interval       time.Duration // price push period
	DefaultSymbols []string      // streamed when the client names none
	BackOff        BackOffFactory
}

// Streamer serves the websocket endpoints. Sessions end when the client
// leaves or Close is called.
type Streamer struct {
	prices   ports.PriceStore
	cfg      StreamConfig
	upgrader websocket.Upgrader
	upstream upstream
	metrics  *metrics.Metrics
	log      zerolog.Logger

	stopCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewStreamer creates a Streamer reading quotes from prices.
func NewStreamer(prices ports.PriceStore, cfg StreamConfig, m *metrics.Metrics, log zerolog.Logger) *Streamer {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	stopCtx, stop := context.WithCancel(context.Background())
	return &Streamer{
		prices: prices,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		upstream: newUpstream(historyRelay, cfg.BackOff, m, log),
		metrics:  m,
		log:      log,
		stopCtx:  stopCtx,
		stop:     stop,
	}
}

// Close ends every open session and waits for them to finish.
func (s *Streamer) Close() {
	s.stop()
	s.wg.Wait()
}

// Prices handles GET /ws/prices?symbols=BTC,ETH. It pushes the cached quotes
// of the requested symbols every interval. Client messages are ignored.
func (s *Streamer) Prices(c *gin.Context) {
	symbols, err := parseSymbols(c.Query("symbols"), s.cfg.DefaultSymbols)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, ctx, done, ok := s.open(c)
	if !ok {
		return
	}
	defer done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.pushPrices(ctx, conn, symbols); err != nil {
			s.log.Debug().Err(err).Msg("price stream ended")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// History handles GET /ws/history?coin_name=btcusdt&interval=1m by relaying
// the exchange kline stream of that pair, redialing it when it drops.
func (s *Streamer) History(c *gin.Context) {
	coin := strings.ToLower(strings.TrimSpace(c.Query("coin_name")))
	interval := strings.TrimSpace(c.Query("interval"))
	if !coinPattern.MatchString(coin) {
		response.Error(c, apperror.Validation("coin_name must be an exchange pair such as btcusdt"))
		return
	}
	if _, ok := klineIntervals[interval]; !ok {
		response.Error(c, apperror.Validation(fmt.Sprintf("unsupported interval %q", interval)))
		return
	}

	conn, ctx, done, ok := s.open(c)
	if !ok {
		return
	}
	defer done()

	url := s.cfg.KlineURL + coin + "@kline_" + interval
	log := s.log.With().Str("pair", coin).Str("interval", interval).Logger()

	link := s.upstream.link(url)
	for {
		up, err := link.connect(ctx)
		if err != nil {
			return
		}
		frames, err := s.pipe(ctx, up, conn)
		if ctx.Err() != nil || errors.Is(err, errClientGone) {
			return
		}
		link.drop(frames)
		log.Warn().Err(err).Msg("kline upstream interrupted")
		s.metrics.IncRelayReconnect(historyRelay)
	}
}

// open upgrades the request and starts the session bookkeeping. done must be
// called when the session ends.
func (s *Streamer) open(c *gin.Context) (*websocket.Conn, context.Context, func(), bool) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil, nil, nil, false
	}

	s.wg.Add(1)
	s.metrics.StreamClientConnected()

	ctx, cancel := context.WithCancel(c.Request.Context())
	unlink := context.AfterFunc(s.stopCtx, cancel)
	go discardReads(conn, cancel)

	done := func() {
		cancel()
		unlink()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
		s.metrics.StreamClientDisconnected()
		s.wg.Done()
	}
	return conn, ctx, done, true
}

func (s *Streamer) pushPrices(ctx context.Context, conn *websocket.Conn, symbols []string) error {
	quotes, err := s.prices.Snapshot(ctx, symbols)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Cache outage: keep the client and try again next tick.
		s.log.Warn().Err(err).Msg("price snapshot failed")
		return nil
	}

	payload, err := json.Marshal(PriceFrame{Prices: quotes, Time: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode price frame: %w", err)
	}
	return writeText(conn, payload)
}

// pipe forwards upstream text frames to the client until either side fails
// and reports how many were forwarded.
func (s *Streamer) pipe(ctx context.Context, up, client *websocket.Conn) (int, error) {
	defer up.Close()
	stop := closeOnDone(ctx, up)
	defer stop()

	frames := 0
	for {
		if err := up.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return frames, err
		}
		msgType, data, err := up.ReadMessage()
		if err != nil {
			return frames, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.metrics.IncRelayMessage(historyRelay)
		if err := writeText(client, data); err != nil {
			return frames, fmt.Errorf("%w: %v", errClientGone, err)
		}
		frames++
	}
}

func writeText(conn *websocket.Conn, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// discardReads drains client frames so control frames are processed, and
// cancels the session once the client disconnects.
func discardReads(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// parseSymbols turns "btc, ETH,btc" into [BTC ETH].
func parseSymbols(raw string, fallback []string) ([]string, error) {
	var symbols []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		sym := domain.NormalizeSymbol(part)
		if sym == "" {
			continue
		}
		if !symbolPattern.MatchString(sym) {
			return nil, apperror.Validation(fmt.Sprintf("invalid symbol %q", part))
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	if len(symbols) > maxSymbols {
		return nil, apperror.Validation(fmt.Sprintf("at most %d symbols per stream", maxSymbols))
	}
	if len(symbols) == 0 {
		symbols = fallback
	}
	return symbols, nil
}
