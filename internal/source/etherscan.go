package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/token-research-api/internal/cache"
	"github.com/yourorg/token-research-api/internal/config"
	"github.com/yourorg/token-research-api/internal/model"
	"github.com/yourorg/token-research-api/internal/ratelimit"
	"github.com/yourorg/token-research-api/internal/types"
)

// Etherscan free-tier limit: 5 calls per second.
const (
	etherscanMaxRequests = 5
	etherscanWindow      = time.Second
)

var errMissingAPIKey = errors.New("missing API key")

// Etherscan verifies contract source publication and reads the on-chain
// token supply. Requires an API key; without one the adapter fails
// locally instead of issuing unauthorized calls.
type Etherscan struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *ratelimit.Limiter
}

// NewEtherscan creates an Etherscan adapter.
func NewEtherscan(cfg config.Config, c *cache.Cache, l *ratelimit.Limiter) *Etherscan {
	return &Etherscan{
		baseURL:    cfg.EtherscanURL,
		apiKey:     cfg.APIKey("etherscan"),
		httpClient: StandardClient(newRetryClient()),
		cache:      c,
		limiter:    l,
	}
}

func (e *Etherscan) Name() string          { return "etherscan" }
func (e *Etherscan) RequiresAddress() bool { return true }

func (e *Etherscan) Fetch(ctx context.Context, q Query) model.SourceResult {
	if !q.HasAddress() {
		return model.NotFound(e.Name())
	}
	if q.Chain != "" && q.Chain != types.ChainEthereum {
		return model.NotFound(e.Name())
	}
	if e.apiKey == "" {
		return model.Failed(e.Name(), errMissingAPIKey)
	}

	cacheKey := "etherscan_" + q.ContractAddress
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached
	}

	if !e.limiter.Allow(e.Name(), etherscanMaxRequests, etherscanWindow) {
		return model.Failed(e.Name(), errors.New("rate limit exceeded"))
	}

	var srcResp struct {
		Status string `json:"status"`
		Result []struct {
			SourceCode      string `json:"SourceCode"`
			ContractName    string `json:"ContractName"`
			CompilerVersion string `json:"CompilerVersion"`
			Proxy           string `json:"Proxy"`
		} `json:"result"`
	}
	u := fmt.Sprintf("%s?module=contract&action=getsourcecode&address=%s&apikey=%s",
		e.baseURL, url.QueryEscape(q.ContractAddress), url.QueryEscape(e.apiKey))
	if err := getJSON(ctx, e.httpClient, u, nil, &srcResp); err != nil {
		result := model.Failed(e.Name(), err)
		e.cache.Set(cacheKey, result)
		return result
	}
	if srcResp.Status != "1" || len(srcResp.Result) == 0 {
		result := model.NotFound(e.Name())
		e.cache.Set(cacheKey, result)
		return result
	}

	src := srcResp.Result[0]
	contract := &model.ContractInfo{
		Address:      q.ContractAddress,
		Verified:     strings.TrimSpace(src.SourceCode) != "",
		ContractName: src.ContractName,
		Compiler:     src.CompilerVersion,
		IsProxy:      src.Proxy == "1",
	}

	data := &model.SourceData{Contract: contract}

	// Token supply is a second call; its failure does not fail the lookup
	if e.limiter.Allow(e.Name(), etherscanMaxRequests, etherscanWindow) {
		var supplyResp struct {
			Status string `json:"status"`
			Result string `json:"result"`
		}
		su := fmt.Sprintf("%s?module=stats&action=tokensupply&contractaddress=%s&apikey=%s",
			e.baseURL, url.QueryEscape(q.ContractAddress), url.QueryEscape(e.apiKey))
		if err := getJSON(ctx, e.httpClient, su, nil, &supplyResp); err == nil && supplyResp.Status == "1" {
			if supply, err := strconv.ParseFloat(supplyResp.Result, 64); err == nil {
				data.Token = &model.TokenInfo{TotalSupply: supply}
			}
		}
	}

	result := model.SourceResult{Source: e.Name(), Found: true, Data: data}
	e.cache.Set(cacheKey, result)
	return result
}
