package feed

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/evdnx/qsignals/logger"
)

const (
	minBackoff   = time.Second
	maxBackoff   = 30 * time.Second
	pingInterval = 20 * time.Second
)

// Client keeps one websocket subscription alive for a symbol and pushes
// decoded events to the caller. It reconnects with capped backoff.
type Client struct {
	url        string
	symbol     string
	timeframes []string
	dialer *websocket.Dialer
	log    logger.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewClient subscribes to ticks for symbol and closed bars on timeframes.
func NewClient(url, symbol string, timeframes []string, log logger.Logger) *Client {
	return &Client{
		url:        url,
		symbol:     symbol,
		timeframes: timeframes,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:        log,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

type subscribeRequest struct {
	Op         string   `json:"op"`
	Symbol     string   `json:"symbol"`
	Timeframes []string `json:"timeframes,omitempty"`
}

// Run blocks until ctx is cancelled. Events for other symbols and frames
// that fail to decode are dropped with a warning.
func (c *Client) Run(ctx context.Context, out chan<- Event) error {
	backoff := c.minBackoff
	for {
		connected, err := c.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = c.minBackoff
		}
		c.log.Warn("feed_disconnected",
			logger.String("url", c.url),
			logger.Duration("retry_in", backoff),
			logger.Err(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// session runs one connection until it fails. connected reports whether the
// subscription went through, which resets the backoff.
func (c *Client) session(ctx context.Context, out chan<- Event) (connected bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, errors.Wrap(err, "dial")
	}
	defer conn.Close()

	sub, err := sonic.Marshal(subscribeRequest{Op: "subscribe", Symbol: c.symbol, Timeframes: c.timeframes})
	if err != nil {
		return false, errors.Wrap(err, "encode subscribe")
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return false, errors.Wrap(err, "subscribe")
	}
	c.log.Info("feed_connected", logger.String("url", c.url), logger.String("symbol", c.symbol))

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				// unblocks ReadMessage below
				_ = conn.Close()
				return
			case <-done:
				return
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, errors.Wrap(err, "read")
		}
		ev, err := Decode(msg)
		if err != nil {
			c.log.Warn("feed_frame_dropped", logger.Err(err))
			continue
		}
		if ev.Symbol != "" && ev.Symbol != c.symbol {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}
