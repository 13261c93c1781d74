package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whalewatch/engine/internal/domain"
)

// LeaderboardClient is the REST client for the Polymarket leaderboard API.
type LeaderboardClient struct {
	baseURL    string
	limit      int
	httpClient *http.Client
}

// NewLeaderboardClient creates a leaderboard client.
//
// baseURL is the API root, e.g. "https://lb-api.polymarket.com". limit caps
// how many entries each snapshot carries.
func NewLeaderboardClient(baseURL string, limit int) *LeaderboardClient {
	if limit <= 0 {
		limit = 100
	}
	return &LeaderboardClient{
		baseURL: baseURL,
		limit:   limit,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// windowParam maps a domain period to the API's window query value.
func windowParam(p domain.LeaderboardPeriod) string {
	switch p {
	case domain.PeriodDay:
		return "1d"
	case domain.PeriodWeek:
		return "1w"
	case domain.PeriodMonth:
		return "1m"
	default:
		return "all"
	}
}

// GetSnapshot fetches the profit leaderboard for one period.
func (c *LeaderboardClient) GetSnapshot(ctx context.Context, period domain.LeaderboardPeriod) (domain.LeaderboardSnapshot, error) {
	params := url.Values{}
	params.Set("window", windowParam(period))
	params.Set("rankType", "pnl")
	params.Set("limit", fmt.Sprintf("%d", c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/leaderboard?"+params.Encode(), nil)
	if err != nil {
		return domain.LeaderboardSnapshot{}, fmt.Errorf("polymarket/leaderboard: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.LeaderboardSnapshot{}, fmt.Errorf("polymarket/leaderboard: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.LeaderboardSnapshot{}, fmt.Errorf("polymarket/leaderboard: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.LeaderboardSnapshot{}, fmt.Errorf("polymarket/leaderboard: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var entries []APILeaderboardEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return domain.LeaderboardSnapshot{}, fmt.Errorf("polymarket/leaderboard: decode: %w", err)
	}

	snap := domain.LeaderboardSnapshot{
		Period:    period,
		FetchedAt: time.Now().UTC(),
		Entries:   make([]domain.LeaderboardEntry, 0, len(entries)),
	}
	for i, e := range entries {
		snap.Entries = append(snap.Entries, e.ToDomainEntry(i+1))
	}
	return snap, nil
}

// GetAllSnapshots fetches every leaderboard period concurrently. The result
// slice is ordered by domain.AllPeriods regardless of completion order so the
// downstream best-rank merge sees a deterministic input. A failed period
// fails the whole fetch; a pass never runs on partial rank data.
func (c *LeaderboardClient) GetAllSnapshots(ctx context.Context) ([]domain.LeaderboardSnapshot, error) {
	snaps := make([]domain.LeaderboardSnapshot, len(domain.AllPeriods))

	g, ctx := errgroup.WithContext(ctx)
	for i, period := range domain.AllPeriods {
		i, period := i, period
		g.Go(func() error {
			snap, err := c.GetSnapshot(ctx, period)
			if err != nil {
				return fmt.Errorf("period %s: %w", period, err)
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}
