package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gridsage/gridsage/pkg/common"
	"github.com/gridsage/gridsage/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const restCacheWindow = 5 * time.Minute

// REST is a Provider backed by an HTTP endpoint returning a JSON array
// of prices: [{"timestamp": ..., "centsPerKWH": ..., "level": ...}].
// Level is optional. Responses are cached for 5 minutes.
type REST struct {
	apiURL string
	client *http.Client

	mu            sync.Mutex
	lastFetchTime time.Time
	cachedPrices  []types.Price
}

// ConfiguredREST sets up flags for the REST provider and returns the
// instance.
func ConfiguredREST() *REST {
	r := &REST{
		client: common.HTTPClient(10 * time.Second),
	}
	apiURL := lflag.String("price-api-url", "", "URL returning a JSON array of hourly prices")
	lflag.Do(func() {
		r.apiURL = *apiURL
	})
	return r
}

// NewREST returns a REST provider for the given URL.
func NewREST(apiURL string) *REST {
	return &REST{
		apiURL: apiURL,
		client: common.HTTPClient(10 * time.Second),
	}
}

// Validate ensures the configuration is valid.
func (r *REST) Validate() error {
	if r.apiURL == "" {
		return fmt.Errorf("price-api-url is required")
	}
	if _, err := url.Parse(r.apiURL); err != nil {
		return fmt.Errorf("failed to parse price url (%s): %w", r.apiURL, err)
	}
	return nil
}

// fetchPrices retrieves the curve from the API, caching the result for a
// 5 minute block.
func (r *REST) fetchPrices(ctx context.Context) ([]types.Price, error) {
	now := time.Now()

	r.mu.Lock()
	if !r.lastFetchTime.IsZero() && !now.Truncate(restCacheWindow).After(r.lastFetchTime) {
		prices := r.cachedPrices
		r.mu.Unlock()
		return prices, nil
	}
	r.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building price request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price api returned status %d", resp.StatusCode)
	}

	var prices []types.Price
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, fmt.Errorf("decoding price response: %w", err)
	}
	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Timestamp.Before(prices[j].Timestamp)
	})

	r.mu.Lock()
	r.cachedPrices = prices
	r.lastFetchTime = now.Truncate(restCacheWindow)
	r.mu.Unlock()
	return prices, nil
}

// GetCurrentPrice returns the price whose hour covers now, falling back
// to the most recent entry when the curve has no current hour.
func (r *REST) GetCurrentPrice(ctx context.Context) (types.Price, error) {
	prices, err := r.fetchPrices(ctx)
	if err != nil {
		return types.Price{}, err
	}
	if len(prices) == 0 {
		return types.Price{}, fmt.Errorf("price api returned no prices")
	}

	hour := time.Now().Truncate(time.Hour)
	for _, p := range prices {
		if p.Timestamp.Truncate(time.Hour).Equal(hour) {
			return p, nil
		}
	}
	return prices[len(prices)-1], nil
}

// GetForecast returns every price from the current hour onward.
func (r *REST) GetForecast(ctx context.Context) ([]types.Price, error) {
	prices, err := r.fetchPrices(ctx)
	if err != nil {
		return nil, err
	}
	hour := time.Now().Truncate(time.Hour)
	out := make([]types.Price, 0, len(prices))
	for _, p := range prices {
		if !p.Timestamp.Before(hour) {
			out = append(out, p)
		}
	}
	return out, nil
}

var _ Provider = (*REST)(nil)
