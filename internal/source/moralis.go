package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/yourorg/token-research-api/internal/cache"
	"github.com/yourorg/token-research-api/internal/config"
	"github.com/yourorg/token-research-api/internal/model"
	"github.com/yourorg/token-research-api/internal/types"
)

// moralisChains maps supported chains to the Moralis chain query value.
var moralisChains = map[types.SupportedChain]string{
	types.ChainEthereum: "eth",
	types.ChainPolygon:  "polygon",
	types.ChainArbitrum: "arbitrum",
	types.ChainOptimism: "optimism",
	types.ChainBSC:      "bsc",
	types.ChainBase:     "base",
}

// Moralis reports top token holders across EVM chains. It is the only
// holder source that covers non-Ethereum networks, but sits last in the
// holder precedence order because its shares are indexer-derived.
type Moralis struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
}

// NewMoralis creates a Moralis adapter.
func NewMoralis(cfg config.Config, c *cache.Cache) *Moralis {
	return &Moralis{
		baseURL:    cfg.MoralisURL,
		apiKey:     cfg.APIKey("moralis"),
		httpClient: StandardClient(newRetryClient()),
		cache:      c,
	}
}

func (m *Moralis) Name() string          { return "moralis" }
func (m *Moralis) RequiresAddress() bool { return true }

func (m *Moralis) Fetch(ctx context.Context, q Query) model.SourceResult {
	if !q.HasAddress() {
		return model.NotFound(m.Name())
	}
	chain := q.Chain
	if chain == "" {
		chain = types.ChainEthereum
	}
	chainParam, ok := moralisChains[chain]
	if !ok {
		return model.NotFound(m.Name())
	}
	if m.apiKey == "" {
		return model.Failed(m.Name(), errMissingAPIKey)
	}

	cacheKey := "moralis_" + string(chain) + "_" + q.ContractAddress
	if cached, ok := m.cache.Get(cacheKey); ok {
		return cached
	}

	var resp struct {
		Result []struct {
			OwnerAddress     string  `json:"owner_address"`
			BalanceFormatted string  `json:"balance_formatted"`
			Percentage       float64 `json:"percentage_relative_to_total_supply"`
		} `json:"result"`
	}
	u := fmt.Sprintf("%s/erc20/%s/owners?chain=%s&order=DESC&limit=10",
		m.baseURL, url.PathEscape(q.ContractAddress), url.QueryEscape(chainParam))
	headers := map[string]string{"X-API-Key": m.apiKey}
	if err := getJSON(ctx, m.httpClient, u, headers, &resp); err != nil {
		result := model.Failed(m.Name(), err)
		m.cache.Set(cacheKey, result)
		return result
	}

	if len(resp.Result) == 0 {
		result := model.NotFound(m.Name())
		m.cache.Set(cacheKey, result)
		return result
	}

	var holders []model.Holder
	for i, h := range resp.Result {
		if i == 10 {
			break
		}
		balance, _ := strconv.ParseFloat(h.BalanceFormatted, 64)
		pct := h.Percentage
		holders = append(holders, model.Holder{
			Address:    h.OwnerAddress,
			Balance:    balance,
			Percentage: &pct,
		})
	}

	result := model.SourceResult{
		Source: m.Name(),
		Found:  true,
		Data: &model.SourceData{
			Holders:     holders,
			HolderCount: int64(len(holders)),
		},
	}
	m.cache.Set(cacheKey, result)
	return result
}
