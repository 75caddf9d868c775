package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/yourorg/token-research-api/internal/cache"
	"github.com/yourorg/token-research-api/internal/config"
	"github.com/yourorg/token-research-api/internal/model"
)

// Messari provides research-grade asset metrics: an independent USD
// quote plus developer and community activity signals.
type Messari struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
}

// NewMessari creates a Messari adapter.
func NewMessari(cfg config.Config, c *cache.Cache) *Messari {
	return &Messari{
		baseURL:    cfg.MessariURL,
		httpClient: StandardClient(newRetryClient()),
		cache:      c,
	}
}

func (m *Messari) Name() string          { return "messari" }
func (m *Messari) RequiresAddress() bool { return false }

func (m *Messari) Fetch(ctx context.Context, q Query) model.SourceResult {
	if q.Symbol == "" {
		return model.NotFound(m.Name())
	}

	symbol := strings.ToLower(q.Symbol)
	cacheKey := "messari_" + symbol
	if cached, ok := m.cache.Get(cacheKey); ok {
		return cached
	}

	var resp struct {
		Data *struct {
			MarketData struct {
				PriceUSD         float64 `json:"price_usd"`
				Volume24h        float64 `json:"volume_last_24_hours"`
				RealVolume24h    float64 `json:"real_volume_last_24_hours"`
				PercentChange24h float64 `json:"percent_change_usd_last_24_hours"`
			} `json:"market_data"`
			Marketcap struct {
				CurrentUSD float64 `json:"current_marketcap_usd"`
				Rank       int     `json:"rank"`
			} `json:"marketcap"`
			DeveloperActivity struct {
				Stars             int `json:"stars"`
				CommitsLast3Month int `json:"commits_last_3_months"`
			} `json:"developer_activity"`
			Reddit struct {
				Subscribers int `json:"subscribers"`
			} `json:"reddit"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/assets/%s/metrics", m.baseURL, url.PathEscape(symbol))
	if err := getJSON(ctx, m.httpClient, u, nil, &resp); err != nil {
		result := model.Failed(m.Name(), err)
		m.cache.Set(cacheKey, result)
		return result
	}
	if resp.Data == nil {
		result := model.NotFound(m.Name())
		m.cache.Set(cacheKey, result)
		return result
	}

	d := resp.Data
	result := model.SourceResult{
		Source: m.Name(),
		Found:  true,
		Data: &model.SourceData{
			Quote: &model.MarketQuote{
				PriceUSD:         d.MarketData.PriceUSD,
				MarketCap:        d.Marketcap.CurrentUSD,
				Volume24h:        d.MarketData.Volume24h,
				PercentChange24h: d.MarketData.PercentChange24h,
				Rank:             d.Marketcap.Rank,
			},
			Metrics: &model.AssetMetrics{
				DeveloperCommits90d: d.DeveloperActivity.CommitsLast3Month,
				DeveloperStars:      d.DeveloperActivity.Stars,
				RealVolume24h:       d.MarketData.RealVolume24h,
				RedditSubscribers:   d.Reddit.Subscribers,
			},
		},
	}
	m.cache.Set(cacheKey, result)
	return result
}
