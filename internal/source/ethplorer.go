package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/yourorg/token-research-api/internal/cache"
	"github.com/yourorg/token-research-api/internal/config"
	"github.com/yourorg/token-research-api/internal/model"
	"github.com/yourorg/token-research-api/internal/types"
)

// Ethplorer reports Ethereum token info and top holders. The free tier
// works without a key ("freekey"), so this adapter is always active for
// Ethereum contracts.
type Ethplorer struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
}

// NewEthplorer creates an Ethplorer adapter.
func NewEthplorer(cfg config.Config, c *cache.Cache) *Ethplorer {
	key := cfg.APIKey("ethplorer")
	if key == "" {
		key = "freekey"
	}
	return &Ethplorer{
		baseURL:    cfg.EthplorerURL,
		apiKey:     key,
		httpClient: StandardClient(newRetryClient()),
		cache:      c,
	}
}

func (e *Ethplorer) Name() string          { return "ethplorer" }
func (e *Ethplorer) RequiresAddress() bool { return true }

// ethplorerToken mirrors the getTokenInfo payload. Numeric fields arrive
// inconsistently typed (string or number), hence json.Number.
type ethplorerToken struct {
	Address        string      `json:"address"`
	Name           string      `json:"name"`
	Symbol         string      `json:"symbol"`
	Decimals       json.Number `json:"decimals"`
	TotalSupply    json.Number `json:"totalSupply"`
	HoldersCount   int64       `json:"holdersCount"`
	TransfersCount int64       `json:"transfersCount"`
	Price struct {
		Rate         float64 `json:"rate"`
		MarketCapUSD float64 `json:"marketCapUsd"`
	} `json:"price"`
	Holders []struct {
		Address string  `json:"address"`
		Balance float64 `json:"balance"`
		Share   float64 `json:"share"`
	} `json:"holders"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *Ethplorer) Fetch(ctx context.Context, q Query) model.SourceResult {
	if !q.HasAddress() {
		return model.NotFound(e.Name())
	}
	if q.Chain != "" && q.Chain != types.ChainEthereum {
		return model.NotFound(e.Name())
	}

	cacheKey := "ethplorer_" + q.ContractAddress
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached
	}

	var resp ethplorerToken
	u := fmt.Sprintf("%s/getTokenInfo/%s?apiKey=%s", e.baseURL, url.PathEscape(q.ContractAddress), url.QueryEscape(e.apiKey))
	if err := getJSON(ctx, e.httpClient, u, nil, &resp); err != nil {
		result := model.Failed(e.Name(), err)
		e.cache.Set(cacheKey, result)
		return result
	}
	if resp.Error != nil {
		result := model.Failed(e.Name(), fmt.Errorf("ethplorer: %s", resp.Error.Message))
		e.cache.Set(cacheKey, result)
		return result
	}

	decimals, _ := resp.Decimals.Int64()
	totalSupply, _ := resp.TotalSupply.Float64()

	info := &model.TokenInfo{
		Name:           resp.Name,
		Symbol:         resp.Symbol,
		Decimals:       int(decimals),
		TotalSupply:    totalSupply,
		PriceUSD:       resp.Price.Rate,
		MarketCap:      resp.Price.MarketCapUSD,
		TransferCount:  resp.TransfersCount,
	}

	var holders []model.Holder
	for i, h := range resp.Holders {
		if i == 10 {
			break
		}
		holder := model.Holder{Address: h.Address, Balance: h.Balance}
		if totalSupply > 0 {
			pct := h.Balance / totalSupply * 100
			holder.Percentage = &pct
		}
		holders = append(holders, holder)
	}

	result := model.SourceResult{
		Source: e.Name(),
		Found:  true,
		Data: &model.SourceData{
			Token:       info,
			Holders:     holders,
			HolderCount: resp.HoldersCount,
		},
	}
	e.cache.Set(cacheKey, result)
	return result
}
