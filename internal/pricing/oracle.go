// Package pricing provides USD price lookups for chain assets.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// NativeSymbol is the chain's native asset symbol.
const NativeSymbol = "STX"

// Oracle returns the current USD price for an asset symbol. Implementations
// are expected to cache internally; callers treat every lookup as cheap.
type Oracle interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// HTTPOracle fetches prices from a price API and caches them with a TTL so
// hot paths (per-event valuation) never fan out to the network.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]cachedPrice
}

type cachedPrice struct {
	price     float64
	fetchedAt time.Time
}

// NewHTTPOracle creates an oracle against baseURL with the given cache TTL.
func NewHTTPOracle(baseURL string, ttl time.Duration) *HTTPOracle {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &HTTPOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		ttl:     ttl,
		cache:   make(map[string]cachedPrice),
	}
}

type priceResponse struct {
	Symbol   string  `json:"symbol"`
	PriceUSD float64 `json:"price_usd"`
}

// GetPrice returns the cached price when fresh, otherwise refetches. On
// fetch failure a stale cached price is served if one exists; the staleness
// is preferable to dropping a valuation.
func (o *HTTPOracle) GetPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)

	o.mu.Lock()
	entry, ok := o.cache[symbol]
	o.mu.Unlock()

	if ok && time.Since(entry.fetchedAt) < o.ttl {
		return entry.price, nil
	}

	price, err := o.fetch(ctx, symbol)
	if err != nil {
		if ok {
			return entry.price, nil
		}
		return 0, err
	}

	o.mu.Lock()
	o.cache[symbol] = cachedPrice{price: price, fetchedAt: time.Now()}
	o.mu.Unlock()

	return price, nil
}

func (o *HTTPOracle) fetch(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/v1/price/%s", o.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price api status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read price response: %w", err)
	}

	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return 0, fmt.Errorf("unmarshal price response: %w", err)
	}
	if pr.PriceUSD <= 0 {
		return 0, fmt.Errorf("price api returned non-positive price for %s", symbol)
	}

	return pr.PriceUSD, nil
}

// StaticOracle serves fixed prices. Used in tests and as an offline
// fallback; unknown symbols price at zero without error, matching the
// "untracked tokens contribute zero USD value" rule.
type StaticOracle struct {
	Prices map[string]float64
}

func (s *StaticOracle) GetPrice(_ context.Context, symbol string) (float64, error) {
	return s.Prices[strings.ToUpper(symbol)], nil
}
