package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/yourorg/token-research-api/internal/cache"
	"github.com/yourorg/token-research-api/internal/config"
	"github.com/yourorg/token-research-api/internal/model"
)

// DexScreener reports DEX trading data for a contract address: pair
// prices, pooled liquidity, volumes and, when the listing exposes them,
// buy/sell taxes and top holders.
type DexScreener struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
}

// NewDexScreener creates a DexScreener adapter.
func NewDexScreener(cfg config.Config, c *cache.Cache) *DexScreener {
	return &DexScreener{
		baseURL:    cfg.DexScreenerURL,
		httpClient: StandardClient(newRetryClient()),
		cache:      c,
	}
}

func (d *DexScreener) Name() string          { return "dexscreener" }
func (d *DexScreener) RequiresAddress() bool { return true }

// dexPair mirrors the DexScreener pair schema. Prices arrive as strings,
// liquidity may be null.
type dexPair struct {
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV       float64 `json:"fdv"`
	MarketCap float64 `json:"marketCap"`
	BuyTax    float64 `json:"buyTax"`
	SellTax   float64 `json:"sellTax"`
	Holders   []struct {
		Address    string   `json:"address"`
		Balance    float64  `json:"balance"`
		Percentage *float64 `json:"percentage"`
	} `json:"holders"`
}

func (d *DexScreener) Fetch(ctx context.Context, q Query) model.SourceResult {
	if !q.HasAddress() {
		return model.NotFound(d.Name())
	}

	cacheKey := "dexscreener_" + q.ContractAddress
	if cached, ok := d.cache.Get(cacheKey); ok {
		return cached
	}

	var resp struct {
		Pairs []dexPair `json:"pairs"`
	}
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, url.PathEscape(q.ContractAddress))
	if err := getJSON(ctx, d.httpClient, u, nil, &resp); err != nil {
		result := model.Failed(d.Name(), err)
		d.cache.Set(cacheKey, result)
		return result
	}

	if len(resp.Pairs) == 0 {
		result := model.NotFound(d.Name())
		d.cache.Set(cacheKey, result)
		return result
	}

	// Most liquid pair first; its quote represents the token
	pairs := resp.Pairs
	sort.SliceStable(pairs, func(i, j int) bool {
		return liquidityUSD(pairs[i]) > liquidityUSD(pairs[j])
	})
	main := pairs[0]

	var totalLiquidity, totalVolume float64
	for _, p := range pairs {
		totalLiquidity += liquidityUSD(p)
		totalVolume += p.Volume.H24
	}

	price, _ := strconv.ParseFloat(main.PriceUSD, 64)
	summary := &model.PairSummary{
		PairCount:      len(pairs),
		Dex:            main.DexID,
		PairAddress:    main.PairAddress,
		PriceUSD:       price,
		PriceChange24h: main.PriceChange.H24,
		Volume24h:      main.Volume.H24,
		LiquidityUSD:   liquidityUSD(main),
		FDV:            main.FDV,
		MarketCap:      main.MarketCap,
		TotalLiquidity: totalLiquidity,
		TotalVolume24h: totalVolume,
		BuyTax:         main.BuyTax,
		SellTax:        main.SellTax,
	}

	var holders []model.Holder
	for i, h := range main.Holders {
		if i == 10 {
			break
		}
		holders = append(holders, model.Holder{
			Address:    h.Address,
			Balance:    h.Balance,
			Percentage: h.Percentage,
		})
	}

	result := model.SourceResult{
		Source: d.Name(),
		Found:  true,
		Data: &model.SourceData{
			Pairs:       summary,
			Holders:     holders,
			HolderCount: int64(len(main.Holders)),
		},
	}
	d.cache.Set(cacheKey, result)
	return result
}

func liquidityUSD(p dexPair) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}
