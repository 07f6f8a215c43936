package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrAttemptsExhausted is returned by Run when reconnection attempts hit
// the policy's cap without regaining a connection.
var ErrAttemptsExhausted = errors.New("reconnection attempts exhausted")

// EnvelopeHandler is called for each decoded envelope. Returning an error
// drops the connection and triggers a reconnect.
type EnvelopeHandler func(e *Envelope) error

// StatusHandler observes subscription status transitions.
type StatusHandler func(status string)

// BackoffPolicy computes reconnection delays. Attempt numbering starts
// at one.
type BackoffPolicy interface {
	Delay(attempt int) time.Duration
	MaxAttempts() int
}

// ClientConfig configures a feed subscription client.
type ClientConfig struct {
	// URL is the feed endpoint, e.g. "ws://host/v1/feed".
	URL string

	// Table and Filter select which changes to receive.
	Table  string
	Filter Filter

	// Backoff governs reconnection delays and the attempt cap.
	Backoff BackoffPolicy

	// JitterFactor spreads reconnect delays to avoid thundering herds.
	// Zero disables jitter.
	JitterFactor float64
}

// Validate checks that the config is usable.
func (c ClientConfig) Validate() error {
	if c.URL == "" {
		return errors.New("feed client URL is required")
	}
	if c.Table == "" {
		return errors.New("feed client table is required")
	}
	if c.Backoff == nil {
		return errors.New("feed client backoff policy is required")
	}
	return nil
}

// Client is a resilient WebSocket subscriber for one table and filter. It
// reconnects according to its backoff policy and resets the attempt count
// after each successful connection.
type Client struct {
	config  ClientConfig
	handler EnvelopeHandler
	status  StatusHandler
	logger  *slog.Logger

	mu          sync.Mutex
	rng         *rand.Rand // protected by mu
	conn        *websocket.Conn
	isConnected bool

	// attempts tracks consecutive reconnection attempts (atomic)
	attempts int64
}

// NewClient creates a feed subscription client. The status handler may be
// nil.
func NewClient(config ClientConfig, handler EnvelopeHandler, status StatusHandler, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:  config,
		handler: handler,
		status:  status,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run connects and reads envelopes until the context is cancelled or the
// reconnection budget is spent.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.close()
			c.report(StatusClosed)
			return ctx.Err()
		default:
		}

		if err := c.connect(ctx); err != nil {
			attempt := int(atomic.AddInt64(&c.attempts, 1))
			if attempt > c.config.Backoff.MaxAttempts() {
				c.logger.Warn("feed reconnection attempts exhausted",
					slog.String("table", c.config.Table),
					slog.Int("attempts", attempt-1))
				c.report(StatusTimedOut)
				return ErrAttemptsExhausted
			}

			delay := c.withJitter(c.config.Backoff.Delay(attempt))
			c.logger.Info("scheduling feed reconnect",
				slog.String("table", c.config.Table),
				slog.Duration("delay", delay),
				slog.Int("attempt", attempt))
			c.report(StatusError)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		atomic.StoreInt64(&c.attempts, 0)
		c.report(StatusSubscribed)
		c.readLoop(ctx)
	}
}

// connect establishes the WebSocket connection for this subscription.
func (c *Client) connect(ctx context.Context) error {
	endpoint, err := url.Parse(c.config.URL)
	if err != nil {
		return fmt.Errorf("invalid feed URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("table", c.config.Table)
	if expr := c.config.Filter.String(); expr != "" {
		q.Set("filter", expr)
	}
	endpoint.RawQuery = q.Encode()

	c.logger.Info("connecting to feed",
		slog.String("table", c.config.Table),
		slog.String("url", endpoint.String()))

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.isConnected = true
	c.mu.Unlock()
	return nil
}

// readLoop reads envelopes until the connection closes.
func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("feed connection closed",
				slog.String("table", c.config.Table),
				slog.String("error", err.Error()))
			c.close()
			return
		}

		e, err := DecodeEnvelope(payload)
		if err != nil {
			c.logger.Warn("dropping undecodable envelope",
				slog.String("table", c.config.Table),
				slog.String("error", err.Error()))
			continue
		}
		if c.handler != nil {
			if err := c.handler(e); err != nil {
				c.logger.Error("envelope handler error",
					slog.String("table", c.config.Table),
					slog.String("error", err.Error()))
				c.close()
				return
			}
		}
	}
}

// close cleanly closes the WebSocket connection.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.isConnected = false
}

// withJitter spreads a delay by the configured jitter factor.
func (c *Client) withJitter(delay time.Duration) time.Duration {
	if c.config.JitterFactor <= 0 {
		return delay
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	jitter := (c.rng.Float64() - 0.5) * c.config.JitterFactor
	return time.Duration(float64(delay) * (1 + jitter))
}

// IsConnected returns whether the client currently holds a connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

func (c *Client) report(status string) {
	if c.status != nil {
		c.status(status)
	}
}
