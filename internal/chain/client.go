package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout           = 10 * time.Second
	DefaultMinInterval       = 250 * time.Millisecond
	DefaultMaxRetries        = 3
	DefaultBaseRetryDelay    = 1 * time.Second
	DefaultRateLimitCooldown = 5 * time.Second
)

// Client wraps the chain's read-only HTTP API with a global call-rate
// throttle and bounded retry. Every component that talks to the chain
// shares one Client so the rate limit is enforced process-wide.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *Limiter
	clock   Clock
	logger  *log.Logger

	maxRetries        int
	baseRetryDelay    time.Duration
	rateLimitCooldown time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.client.Timeout = d }
}

// WithMinInterval sets the minimum gap between any two outbound calls.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.limiter = NewLimiter(d, c.clock) }
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithBaseRetryDelay sets the first backoff delay; each subsequent retry
// doubles it.
func WithBaseRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.baseRetryDelay = d }
}

// WithRateLimitCooldown sets the fixed wait applied after a 429 response.
func WithRateLimitCooldown(d time.Duration) ClientOption {
	return func(c *Client) { c.rateLimitCooldown = d }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// WithClock injects a Clock for the limiter and retry sleeps. The limiter
// is rebuilt with its current interval, so ordering against WithMinInterval
// does not matter.
func WithClock(clock Clock) ClientOption {
	return func(c *Client) {
		c.clock = clock
		c.limiter = NewLimiter(c.limiter.interval, clock)
	}
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a rate-limited chain API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:           baseURL,
		client:            &http.Client{Timeout: DefaultTimeout},
		clock:             RealClock{},
		logger:            log.New(io.Discard, "", 0),
		maxRetries:        DefaultMaxRetries,
		baseRetryDelay:    DefaultBaseRetryDelay,
		rateLimitCooldown: DefaultRateLimitCooldown,
	}
	c.limiter = NewLimiter(DefaultMinInterval, c.clock)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fetch performs one throttled GET with retries, decoding the body into out.
// Server errors and network failures back off exponentially; 429 waits the
// fixed cooldown. Both count against the same retry budget. Exhaustion
// returns an error value so callers can soft-skip the item.
func (c *Client) fetch(ctx context.Context, endpoint, path string, out interface{}) error {
	var lastErr error

	start := time.Now()
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			observability.RecordAPIRetry()
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			if err := c.backoff(ctx, attempt); err != nil {
				return err
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			if err := c.backoff(ctx, attempt); err != nil {
				return err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			c.logger.Printf("429 from %s, cooling down %v", path, c.rateLimitCooldown)
			observability.RecordRateLimitWait()
			if err := c.clock.Sleep(ctx, c.rateLimitCooldown); err != nil {
				return err
			}
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error %d", resp.StatusCode)
			if err := c.backoff(ctx, attempt); err != nil {
				return err
			}
			continue
		case resp.StatusCode != http.StatusOK:
			// Client errors are not transient; do not retry.
			observability.RecordAPICall(endpoint, "error", time.Since(start).Seconds())
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		observability.RecordAPICall(endpoint, "success", time.Since(start).Seconds())
		return nil
	}

	observability.RecordAPICall(endpoint, "error", time.Since(start).Seconds())
	return fmt.Errorf("max retries exceeded for %s: %w", path, lastErr)
}

// backoff sleeps base × 2^attempt between retries.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := c.baseRetryDelay * time.Duration(1<<uint(attempt))
	return c.clock.Sleep(ctx, delay)
}

// GetAccountBalances retrieves the STX and token balances for a principal.
func (c *Client) GetAccountBalances(ctx context.Context, address string) (*AccountBalances, error) {
	path := fmt.Sprintf("/extended/v1/address/%s/balances", url.PathEscape(address))

	var raw rawBalancesResponse
	if err := c.fetch(ctx, "balances", path, &raw); err != nil {
		return nil, err
	}

	balances := &AccountBalances{
		BalanceMicro: parseMicro(raw.STX.Balance),
		LockedMicro:  parseMicro(raw.STX.Locked),
		Tokens:       make(map[string]uint64, len(raw.FungibleTokens)),
	}
	for asset, t := range raw.FungibleTokens {
		balances.Tokens[asset] = parseMicro(t.Balance)
	}
	return balances, nil
}

// GetAddressTransactions retrieves up to limit most recent transactions for
// a principal, most-recent-first, normalized into the domain union.
func (c *Client) GetAddressTransactions(ctx context.Context, address string, limit int) ([]domain.Transaction, error) {
	path := fmt.Sprintf("/extended/v1/address/%s/transactions?limit=%s",
		url.PathEscape(address), strconv.Itoa(limit))
	return c.fetchTransactions(ctx, "address_transactions", path)
}

// GetRecentTransactions retrieves the most recent chain-wide transactions,
// most-recent-first. The window is bounded by limit; there is no unbounded
// read path.
func (c *Client) GetRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	path := fmt.Sprintf("/extended/v1/tx?limit=%s", strconv.Itoa(limit))
	return c.fetchTransactions(ctx, "recent_transactions", path)
}

func (c *Client) fetchTransactions(ctx context.Context, endpoint, path string) ([]domain.Transaction, error) {
	var raw rawTransactionList
	if err := c.fetch(ctx, endpoint, path, &raw); err != nil {
		return nil, err
	}

	txs := make([]domain.Transaction, len(raw.Results))
	for i := range raw.Results {
		txs[i] = normalizeTransaction(&raw.Results[i])
	}
	return txs, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
