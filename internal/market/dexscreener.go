// Package market implements the DexScreener client the monitoring engine
// polls for token pair snapshots.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/megaeth-tools/vigil/internal/models"
	"github.com/megaeth-tools/vigil/pkg/logger"
)

const (
	// RequestTimeout bounds every gateway call so a slow upstream never
	// blocks a poll cycle past its interval.
	RequestTimeout = 10 * time.Second
)

type DexScreenerClient struct {
	logger     *logger.Logger
	baseURL    string
	httpClient *http.Client
}

// pairResponse mirrors the DexScreener search/pairs payload.
type pairResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type dexPair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	URL         string `json:"url"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD string `json:"priceUsd"`
	Volume   struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	PairCreatedAt int64 `json:"pairCreatedAt"` // milliseconds
}

func NewDexScreenerClient(baseURL string, logger *logger.Logger) *DexScreenerClient {
	return &DexScreenerClient{
		logger:     logger,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: RequestTimeout},
	}
}

// TokenPairs fetches the current pair snapshots for the chain.
func (d *DexScreenerClient) TokenPairs(ctx context.Context, chainID string) ([]*models.TokenSnapshot, error) {
	return d.Search(ctx, chainID, chainID)
}

// Search looks up pairs matching the query, keeping only pairs on the
// given chain. Pairs the gateway reports with no usable base token are
// skipped rather than failing the whole fetch.
func (d *DexScreenerClient) Search(ctx context.Context, chainID, query string) ([]*models.TokenSnapshot, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/search?q=%s", d.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &models.GatewayError{Err: err}
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &models.GatewayError{Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.GatewayError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var result pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &models.GatewayError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	observedAt := time.Now()
	snapshots := make([]*models.TokenSnapshot, 0, len(result.Pairs))
	for _, pair := range result.Pairs {
		if pair.ChainID != chainID {
			continue
		}
		if pair.BaseToken.Address == "" {
			d.logger.Debug("Skipping pair without base token ", "pair ", pair.PairAddress)
			continue
		}

		price, err := strconv.ParseFloat(pair.PriceUSD, 64)
		if err != nil && pair.PriceUSD != "" {
			d.logger.Debug("Skipping pair with unparseable price ", "pair ", pair.PairAddress, " price ", pair.PriceUSD)
			continue
		}

		snapshot := &models.TokenSnapshot{
			PairAddress:   pair.PairAddress,
			TokenAddress:  pair.BaseToken.Address,
			Symbol:        pair.BaseToken.Symbol,
			Name:          pair.BaseToken.Name,
			PriceUSD:      price,
			Volume24hUSD:  pair.Volume.H24,
			LiquidityUSD:  pair.Liquidity.USD,
			PriceChange24: pair.PriceChange.H24,
			URL:           pair.URL,
			ObservedAt:    observedAt,
		}
		if pair.PairCreatedAt > 0 {
			snapshot.PairCreatedAt = time.UnixMilli(pair.PairCreatedAt)
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// Trending returns the chain's pairs ordered by 24h volume, highest first.
func (d *DexScreenerClient) Trending(ctx context.Context, chainID string, limit int) ([]*models.TokenSnapshot, error) {
	pairs, err := d.TokenPairs(ctx, chainID)
	if err != nil {
		return nil, err
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Volume24hUSD > pairs[j].Volume24hUSD
	})
	return clip(pairs, limit), nil
}

// NewPairs returns the chain's pairs created within maxAge, newest first.
func (d *DexScreenerClient) NewPairs(ctx context.Context, chainID string, maxAge time.Duration, limit int) ([]*models.TokenSnapshot, error) {
	pairs, err := d.TokenPairs(ctx, chainID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	fresh := pairs[:0]
	for _, pair := range pairs {
		if !pair.PairCreatedAt.IsZero() && now.Sub(pair.PairCreatedAt) <= maxAge {
			fresh = append(fresh, pair)
		}
	}
	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].PairCreatedAt.After(fresh[j].PairCreatedAt)
	})
	return clip(fresh, limit), nil
}

// Movers returns pairs sorted by 24h price change; gainers when rising is
// true, losers otherwise.
func (d *DexScreenerClient) Movers(ctx context.Context, chainID string, rising bool, limit int) ([]*models.TokenSnapshot, error) {
	pairs, err := d.TokenPairs(ctx, chainID)
	if err != nil {
		return nil, err
	}
	sort.Slice(pairs, func(i, j int) bool {
		if rising {
			return pairs[i].PriceChange24 > pairs[j].PriceChange24
		}
		return pairs[i].PriceChange24 < pairs[j].PriceChange24
	})
	return clip(pairs, limit), nil
}

func clip(pairs []*models.TokenSnapshot, limit int) []*models.TokenSnapshot {
	if limit > 0 && len(pairs) > limit {
		return pairs[:limit]
	}
	return pairs
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
