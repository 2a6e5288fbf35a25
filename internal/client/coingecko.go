package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/platform"
)

const (
	CoinGeckoAPI = "https://api.coingecko.com/api/v3"
)

// CoinGeckoClient client for CoinGecko API
type CoinGeckoClient struct {
	baseURL string
	fetch   platform.FetchFunc
}

// NewCoinGeckoClient creates a new CoinGecko client. An empty baseURL uses
// the public API.
func NewCoinGeckoClient(baseURL string, fetch platform.FetchFunc) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = CoinGeckoAPI
	}
	return &CoinGeckoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetch:   fetch,
	}
}

// PriceResponse response from CoinGecko API, keyed by coin id and then by
// lowercase quote currency.
// Example: {"usd-coin": {"rub": 81.2}}
type PriceResponse map[string]map[string]float64

// SimplePrice gets the price of each coin id in each quote currency.
func (c *CoinGeckoClient) SimplePrice(ctx context.Context, ids, vsCurrencies []string) (PriceResponse, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", strings.Join(vsCurrencies, ","))
	endpoint := fmt.Sprintf("%s/simple/price?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.fetch(req)
	if err != nil {
		return nil, &abc.NetworkError{Op: "coingecko simple price", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReplyBytes))
		return nil, &abc.NetworkError{Op: "coingecko simple price", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var priceResp PriceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&priceResp); err != nil {
		return nil, fmt.Errorf("failed to decode rate: %w", err)
	}
	return priceResp, nil
}
