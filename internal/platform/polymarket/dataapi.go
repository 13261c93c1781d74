// Package polymarket contains the REST clients for the Polymarket Data API
// (trade window) and leaderboard API (ranked wallet snapshots). Both are thin
// read-only collaborators of the signal engine.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/whalewatch/engine/internal/domain"
)

// tradesPageSize is the maximum page size the Data API accepts.
const tradesPageSize = 500

// DataClient is the REST client for the Polymarket Data API.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a Data API client.
//
// baseURL is the API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetTradesSince pages through /trades and returns every trade at or after
// since, newest first as delivered by the API. Paging stops at maxTrades to
// bound a pass; 0 means no cap.
func (d *DataClient) GetTradesSince(ctx context.Context, since time.Time, maxTrades int) ([]domain.Trade, error) {
	var out []domain.Trade

	for offset := 0; ; offset += tradesPageSize {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(tradesPageSize))
		params.Set("offset", strconv.Itoa(offset))
		params.Set("takerOnly", "true")
		params.Set("sortBy", "timestamp")
		params.Set("sortDirection", "DESC")

		body, err := d.doGet(ctx, "/trades?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("polymarket/data: get trades: %w", err)
		}

		var page []APITrade
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("polymarket/data: decode trades: %w", err)
		}
		if len(page) == 0 {
			return out, nil
		}

		for _, at := range page {
			t := at.ToDomainTrade()
			if t.Timestamp.Before(since) {
				// Pages are timestamp-descending; everything after this
				// trade is older than the window.
				return out, nil
			}
			out = append(out, t)
			if maxTrades > 0 && len(out) >= maxTrades {
				return out, nil
			}
		}

		if len(page) < tradesPageSize {
			return out, nil
		}
	}
}

func (d *DataClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
