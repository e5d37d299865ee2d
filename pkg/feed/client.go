package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PriceHandler receives each normalized price sample.
type PriceHandler func(ctx context.Context, price uint64)

// sample is the wire shape of one pool observation. SqrtPriceX96 is decimal
// text; it does not fit in 64 bits.
type sample struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Timestamp    int64  `json:"timestamp"`
}

// Client subscribes to a pool price websocket and pushes normalized samples
// to the handler. It reconnects with a flat backoff on disconnect; samples
// lost while disconnected are simply missed, the authority only ever acts on
// the sample in hand.
type Client struct {
	url     string
	onPrice PriceHandler
	log     *zap.SugaredLogger
}

func NewClient(url string, onPrice PriceHandler, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{url: url, onPrice: onPrice, log: log}
}

// Run connects and consumes samples until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.runConnection(ctx); err != nil && ctx.Err() == nil {
			c.log.Warnw("feed_disconnected", "url", c.url, "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Client) runConnection(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.log.Infow("feed_connected", "url", c.url)

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var s sample
		if err := json.Unmarshal(data, &s); err != nil {
			c.log.Warnw("feed_decode_failed", "err", err)
			continue
		}
		price, err := NormalizeSqrtPriceX96(s.SqrtPriceX96)
		if err != nil {
			c.log.Warnw("feed_bad_sample", "sqrt_price_x96", s.SqrtPriceX96, "err", err)
			continue
		}
		if c.onPrice != nil {
			c.onPrice(ctx, price)
		}
	}
}
