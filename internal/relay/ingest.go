package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypta-wallet/internal/core/domain"
	"crypta-wallet/internal/core/ports"
	"crypta-wallet/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const ingestRelay = "ingest"

// Ingestor copies the exchange all-market mini-ticker stream into the price cache.
type Ingestor struct {
	url      string
	store    ports.PriceStore
	upstream upstream
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewIngestor creates an Ingestor reading from url. A nil bo uses DefaultBackOff.
func NewIngestor(url string, store ports.PriceStore, bo BackOffFactory, m *metrics.Metrics, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		url:      url,
		store:    store,
		upstream: newUpstream(ingestRelay, bo, m, log),
		metrics:  m,
		log:      log,
	}
}

// Run consumes the feed until ctx is cancelled, reconnecting after every
// transport failure. It returns ctx.Err() on shutdown.
func (i *Ingestor) Run(ctx context.Context) error {
	i.log.Info().Str("url", i.url).Msg("ingest relay starting")
	defer i.log.Info().Msg("ingest relay stopped")

	link := i.upstream.link(i.url)
	for {
		conn, err := link.connect(ctx)
		if err != nil {
			return err
		}

		frames, err := i.consume(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		link.drop(frames)
		if isNormalClose(err) {
			i.log.Info().Err(err).Msg("upstream closed the feed")
		} else {
			i.log.Warn().Err(err).Msg("feed interrupted")
		}
		i.metrics.IncRelayReconnect(ingestRelay)
	}
}

// consume reads frames from conn until it fails and reports how many text
// frames arrived.
func (i *Ingestor) consume(ctx context.Context, conn *websocket.Conn) (int, error) {
	defer conn.Close()
	stop := closeOnDone(ctx, conn)
	defer stop()

	frames := 0
	for {
		if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return frames, err
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return frames, err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		frames++
		i.metrics.IncRelayMessage(ingestRelay)
		if err := i.handleFrame(ctx, data); err != nil {
			i.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping frame")
		}
	}
}

// handleFrame stores one frame. The all-market stream sends an array of
// tickers; single-symbol streams send one object, accepted as well.
func (i *Ingestor) handleFrame(ctx context.Context, data []byte) error {
	tickers, err := decodeTickers(data)
	if err != nil {
		return err
	}
	stored, err := i.store.StoreTickers(ctx, tickers)
	if err != nil {
		return fmt.Errorf("store tickers: %w", err)
	}
	i.log.Debug().Int("received", len(tickers)).Int("stored", stored).Msg("frame stored")
	return nil
}

var errEmptyFrame = errors.New("empty frame")

func decodeTickers(data []byte) ([]domain.Ticker, error) {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			var tickers []domain.Ticker
			if err := json.Unmarshal(data, &tickers); err != nil {
				return nil, fmt.Errorf("decode ticker array: %w", err)
			}
			return tickers, nil
		default:
			var t domain.Ticker
			if err := json.Unmarshal(data, &t); err != nil {
				return nil, fmt.Errorf("decode ticker: %w", err)
			}
			return []domain.Ticker{t}, nil
		}
	}
	return nil, errEmptyFrame
}
