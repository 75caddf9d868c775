package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yourorg/token-research-api/internal/cache"
	"github.com/yourorg/token-research-api/internal/config"
	"github.com/yourorg/token-research-api/internal/model"
	"github.com/yourorg/token-research-api/internal/ratelimit"
)

// CoinMarketCap free-tier courtesy limit: 10 calls per minute.
const (
	cmcMaxRequests = 10
	cmcWindow      = time.Minute
)

// CoinMarketCap provides an alternative USD quote used in the
// cross-source price comparison.
type CoinMarketCap struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *ratelimit.Limiter
}

// NewCoinMarketCap creates a CoinMarketCap adapter.
func NewCoinMarketCap(cfg config.Config, c *cache.Cache, l *ratelimit.Limiter) *CoinMarketCap {
	return &CoinMarketCap{
		baseURL:    cfg.CoinMarketCapURL,
		apiKey:     cfg.APIKey("coinmarketcap"),
		httpClient: StandardClient(newRetryClient()),
		cache:      c,
		limiter:    l,
	}
}

func (c *CoinMarketCap) Name() string          { return "coinmarketcap" }
func (c *CoinMarketCap) RequiresAddress() bool { return false }

func (c *CoinMarketCap) Fetch(ctx context.Context, q Query) model.SourceResult {
	if q.Symbol == "" {
		return model.NotFound(c.Name())
	}
	if c.apiKey == "" {
		return model.Failed(c.Name(), errMissingAPIKey)
	}

	symbol := strings.ToUpper(q.Symbol)
	cacheKey := "cmc_" + strings.ToLower(symbol)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached
	}

	if !c.limiter.Allow(c.Name(), cmcMaxRequests, cmcWindow) {
		return model.Failed(c.Name(), errors.New("rate limit exceeded"))
	}

	var resp struct {
		Data map[string]struct {
			CmcRank           int     `json:"cmc_rank"`
			CirculatingSupply float64 `json:"circulating_supply"`
			TotalSupply       float64 `json:"total_supply"`
			MaxSupply         float64 `json:"max_supply"`
			Quote             map[string]struct {
				Price            float64 `json:"price"`
				MarketCap        float64 `json:"market_cap"`
				Volume24h        float64 `json:"volume_24h"`
				PercentChange24h float64 `json:"percent_change_24h"`
			} `json:"quote"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/cryptocurrency/quotes/latest?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	headers := map[string]string{"X-CMC_PRO_API_KEY": c.apiKey}
	if err := getJSON(ctx, c.httpClient, u, headers, &resp); err != nil {
		result := model.Failed(c.Name(), err)
		c.cache.Set(cacheKey, result)
		return result
	}

	row, ok := resp.Data[symbol]
	if !ok {
		result := model.NotFound(c.Name())
		c.cache.Set(cacheKey, result)
		return result
	}
	usd, ok := row.Quote["USD"]
	if !ok {
		result := model.NotFound(c.Name())
		c.cache.Set(cacheKey, result)
		return result
	}

	result := model.SourceResult{
		Source: c.Name(),
		Found:  true,
		Data: &model.SourceData{
			Quote: &model.MarketQuote{
				PriceUSD:          usd.Price,
				MarketCap:         usd.MarketCap,
				Volume24h:         usd.Volume24h,
				PercentChange24h:  usd.PercentChange24h,
				Rank:              row.CmcRank,
				CirculatingSupply: row.CirculatingSupply,
				TotalSupply:       row.TotalSupply,
				MaxSupply:         row.MaxSupply,
			},
		},
	}
	c.cache.Set(cacheKey, result)
	return result
}
