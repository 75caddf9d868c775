package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/cache"
	"github.com/yourorg/token-research-api/internal/config"
	"github.com/yourorg/token-research-api/internal/model"
	"github.com/yourorg/token-research-api/internal/types"
)

// CoinGecko is the primary market-data source. It is not a secondary
// adapter in the fan-out: research starts from its token snapshot, and
// search drives token identification.
type CoinGecko struct {
	baseURL    string
	httpClient *http.Client
	prices     *cache.Cache
}

// NewCoinGecko creates a CoinGecko client. The short price cache backs
// SimplePrice, which the spike monitor polls frequently.
func NewCoinGecko(cfg config.Config) *CoinGecko {
	return &CoinGecko{
		baseURL:    cfg.CoinGeckoURL,
		httpClient: StandardClient(newRetryClient()),
		prices:     cache.New(cfg.PriceCacheTTL).WithFailureCaching(cfg.CacheFailures),
	}
}

// SearchHit is one row of a CoinGecko search response.
type SearchHit struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Large  string `json:"large"`
}

// Search looks up coins matching a free-form query.
func (c *CoinGecko) Search(ctx context.Context, query string) ([]SearchHit, error) {
	var response struct {
		Coins []SearchHit `json:"coins"`
	}
	u := fmt.Sprintf("%s/search?query=%s", c.baseURL, url.QueryEscape(query))
	if err := getJSON(ctx, c.httpClient, u, nil, &response); err != nil {
		return nil, fmt.Errorf("coingecko search: %w", err)
	}
	return response.Coins, nil
}

// coinResponse mirrors the subset of the coin-detail payload the snapshot
// needs. Decoded once here so nothing downstream touches raw maps.
type coinResponse struct {
	ID          string            `json:"id"`
	Symbol      string            `json:"symbol"`
	Name        string            `json:"name"`
	GenesisDate string            `json:"genesis_date"`
	Platforms   map[string]string `json:"platforms"`
	Description struct {
		EN string `json:"en"`
	} `json:"description"`
	Links struct {
		Homepage []string `json:"homepage"`
	} `json:"links"`
	Image struct {
		Large string `json:"large"`
	} `json:"image"`
	MarketData struct {
		CurrentPrice      map[string]float64 `json:"current_price"`
		ATH               map[string]float64 `json:"ath"`
		ATL               map[string]float64 `json:"atl"`
		ATHDate           map[string]string  `json:"ath_date"`
		MarketCap         map[string]float64 `json:"market_cap"`
		FDV               map[string]float64 `json:"fully_diluted_valuation"`
		TotalVolume       map[string]float64 `json:"total_volume"`
		VolumeChange24h   float64            `json:"volume_change_24h"`
		PriceChange24h    float64            `json:"price_change_percentage_24h"`
		PriceChange7d     float64            `json:"price_change_percentage_7d"`
		PriceChange30d    float64            `json:"price_change_percentage_30d"`
		MarketCapRank     int                `json:"market_cap_rank"`
		CirculatingSupply float64            `json:"circulating_supply"`
		TotalSupply       float64            `json:"total_supply"`
		MaxSupply         float64            `json:"max_supply"`
	} `json:"market_data"`
	CommunityScore      float64 `json:"community_score"`
	DeveloperScore      float64 `json:"developer_score"`
	PublicInterestScore float64 `json:"public_interest_score"`
}

// GetCoin retrieves the full token snapshot for a CoinGecko ID.
func (c *CoinGecko) GetCoin(ctx context.Context, id string) (model.TokenSnapshot, error) {
	var resp coinResponse
	u := fmt.Sprintf("%s/coins/%s?localization=false&tickers=false&market_data=true&community_data=true&developer_data=false&sparkline=false", c.baseURL, url.PathEscape(id))
	if err := getJSON(ctx, c.httpClient, u, nil, &resp); err != nil {
		return model.TokenSnapshot{}, fmt.Errorf("coingecko coin %s: %w", id, err)
	}

	snap := model.TokenSnapshot{
		ID:          resp.ID,
		Symbol:      resp.Symbol,
		Name:        resp.Name,
		Description: resp.Description.EN,
		LogoURL:     resp.Image.Large,
		Market: model.MarketData{
			PriceUSD:          resp.MarketData.CurrentPrice["usd"],
			PriceBTC:          resp.MarketData.CurrentPrice["btc"],
			PriceETH:          resp.MarketData.CurrentPrice["eth"],
			ATH:               resp.MarketData.ATH["usd"],
			ATL:               resp.MarketData.ATL["usd"],
			MarketCap:         resp.MarketData.MarketCap["usd"],
			FDV:               resp.MarketData.FDV["usd"],
			Volume24h:         resp.MarketData.TotalVolume["usd"],
			VolumeChange24h:   resp.MarketData.VolumeChange24h,
			Change24h:         resp.MarketData.PriceChange24h,
			Change7d:          resp.MarketData.PriceChange7d,
			Change30d:         resp.MarketData.PriceChange30d,
			Rank:              resp.MarketData.MarketCapRank,
			CirculatingSupply: resp.MarketData.CirculatingSupply,
			TotalSupply:       resp.MarketData.TotalSupply,
			MaxSupply:         resp.MarketData.MaxSupply,
		},
		CommunityScore:      resp.CommunityScore,
		DeveloperScore:      resp.DeveloperScore,
		PublicInterestScore: resp.PublicInterestScore,
	}

	if len(resp.Links.Homepage) > 0 {
		snap.Website = resp.Links.Homepage[0]
	}
	if resp.GenesisDate != "" {
		if t, err := time.Parse("2006-01-02", resp.GenesisDate); err == nil {
			snap.GenesisDate = &t
		}
	}
	if athDate := resp.MarketData.ATHDate["usd"]; athDate != "" {
		if t, err := time.Parse(time.RFC3339, athDate); err == nil {
			snap.Market.ATHDate = &t
		}
	}
	// Prefer the Ethereum deployment when the token lives on several chains
	if addr, ok := resp.Platforms["ethereum"]; ok && addr != "" {
		snap.ContractAddress = addr
		snap.Chain = string(types.ChainEthereum)
	} else {
		for chain, addr := range resp.Platforms {
			if addr != "" {
				snap.ContractAddress = addr
				snap.Chain = chain
				break
			}
		}
	}

	logrus.Debugf("CoinGecko snapshot for %s: price=%.6f cap=%.0f", snap.ID, snap.Market.PriceUSD, snap.Market.MarketCap)
	return snap, nil
}

// MarketChart retrieves the USD price series for the last days days.
func (c *CoinGecko) MarketChart(ctx context.Context, id string, days int) ([]model.PricePoint, error) {
	var resp struct {
		Prices [][2]float64 `json:"prices"`
	}
	u := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d", c.baseURL, url.PathEscape(id), days)
	if err := getJSON(ctx, c.httpClient, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("coingecko market chart %s: %w", id, err)
	}

	points := make([]model.PricePoint, 0, len(resp.Prices))
	for _, p := range resp.Prices {
		points = append(points, model.PricePoint{
			Timestamp: time.UnixMilli(int64(p[0])).UTC(),
			Price:     p[1],
		})
	}
	return points, nil
}

// SimplePrice returns the current USD price and 24h volume for a coin,
// memoized under the short price TTL.
func (c *CoinGecko) SimplePrice(ctx context.Context, id string) (price, volume float64, err error) {
	cacheKey := "simple_" + id
	if cached, ok := c.prices.Get(cacheKey); ok {
		if cached.OK() {
			return cached.Data.Quote.PriceUSD, cached.Data.Quote.Volume24h, nil
		}
		return 0, 0, fmt.Errorf("coingecko simple price %s: %s", id, cached.Err)
	}

	var resp map[string]struct {
		USD    float64 `json:"usd"`
		Volume float64 `json:"usd_24h_vol"`
	}
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_vol=true", c.baseURL, url.QueryEscape(id))
	if err := getJSON(ctx, c.httpClient, u, nil, &resp); err != nil {
		c.prices.Set(cacheKey, model.Failed("coingecko", err))
		return 0, 0, fmt.Errorf("coingecko simple price %s: %w", id, err)
	}

	row, ok := resp[id]
	if !ok {
		err := fmt.Errorf("no price returned for %s", id)
		c.prices.Set(cacheKey, model.Failed("coingecko", err))
		return 0, 0, err
	}

	c.prices.Set(cacheKey, model.SourceResult{
		Source: "coingecko",
		Found:  true,
		Data:   &model.SourceData{Quote: &model.MarketQuote{PriceUSD: row.USD, Volume24h: row.Volume}},
	})
	return row.USD, row.Volume, nil
}
