// Package relay moves market data between the exchange and the wallet:
// the ingestion relay feeds the price cache, the streaming relays push
// prices and kline history to browser clients.
package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"crypta-wallet/pkg/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	handshakeTimeout = 10 * time.Second
	readLimit        = 1 << 20 // 1MB
	writeTimeout     = 5 * time.Second

	// Upstream silence longer than this is treated as a dead connection.
	idleTimeout = 60 * time.Second
)

// BackOffFactory returns a fresh policy for one reconnect sequence.
type BackOffFactory func() backoff.BackOff

// DefaultBackOff retries forever, from 500ms up to 30s between attempts.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// upstream dials one exchange endpoint.
type upstream struct {
	name    string
	dialer  *websocket.Dialer
	backoff BackOffFactory
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func newUpstream(name string, bo BackOffFactory, m *metrics.Metrics, log zerolog.Logger) upstream {
	if bo == nil {
		bo = DefaultBackOff
	}
	return upstream{
		name: name,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		backoff: bo,
		metrics: m,
		log:     log,
	}
}

// dial makes a single connection attempt.
func (u upstream) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, resp, err := u.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			u.log.Warn().Err(err).Str("url", url).Int("status_code", resp.StatusCode).Msg("upstream dial failed")
		} else {
			u.log.Warn().Err(err).Str("url", url).Msg("upstream dial failed")
		}
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	u.log.Info().Str("url", url).Msg("upstream connected")
	return conn, nil
}

var errRetriesExhausted = errors.New("upstream retries exhausted")

// link is the reconnect state of one relay loop. Its policy spans every
// connection the loop makes and is reset only by a connection that
// delivered at least one frame.
type link struct {
	up      upstream
	url     string
	policy  backoff.BackOff
	dropped bool
}

func (u upstream) link(url string) *link {
	return &link{up: u, url: url, policy: u.backoff()}
}

// connect dials until it succeeds or ctx is done. After a drop the first
// attempt waits out the policy too.
func (l *link) connect(ctx context.Context) (*websocket.Conn, error) {
	wait := l.dropped
	for {
		if wait {
			if err := l.pause(ctx); err != nil {
				return nil, err
			}
		}
		conn, err := l.up.dial(ctx, l.url)
		if err == nil {
			l.dropped = false
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.up.metrics.IncRelayReconnect(l.up.name)
		wait = true
	}
}

// drop records the end of a connection and the number of frames it carried.
func (l *link) drop(frames int) {
	if frames > 0 {
		l.policy.Reset()
	}
	l.dropped = true
}

func (l *link) pause(ctx context.Context) error {
	wait := l.policy.NextBackOff()
	if wait == backoff.Stop {
		return errRetriesExhausted
	}
	l.up.log.Debug().Str("url", l.url).Dur("retry_in", wait).Msg("upstream redial scheduled")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// closeOnDone closes conn when ctx is done, unblocking any pending read.
// The returned func stops the watcher.
func closeOnDone(ctx context.Context, conn *websocket.Conn) func() {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			_ = conn.Close()
		case <-stop:
		}
	}()
	return func() { close(stop) }
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
