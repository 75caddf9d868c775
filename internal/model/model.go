// Package model defines the core data structures for the token research service.
package model

import "time"

// SourceResult is the outcome of a single provider adapter call.
// Exactly one of two shapes is valid: Found=true with Data set, or
// Found=false with an optional Err describing why. Adapters never
// return both Found=true and a non-empty Err.
type SourceResult struct {
	// Source is the adapter name that produced this result
	Source string `json:"source"`

	// Found reports whether the provider had data for the token
	Found bool `json:"found"`

	// Data carries the normalized provider payload when Found is true
	Data *SourceData `json:"data,omitempty"`

	// Err holds the failure reason when Found is false
	Err string `json:"error,omitempty"`
}

// OK reports whether the result satisfies the found/data invariant and
// carries usable data.
func (r SourceResult) OK() bool {
	return r.Found && r.Data != nil && r.Err == ""
}

// NotFound builds the canonical empty result for a source.
func NotFound(source string) SourceResult {
	return SourceResult{Source: source, Found: false}
}

// Failed builds a failure result carrying the error message.
func Failed(source string, err error) SourceResult {
	if err == nil {
		return NotFound(source)
	}
	return SourceResult{Source: source, Found: false, Err: err.Error()}
}

// SourceData is the normalized union of provider payload shapes. Each
// adapter populates only the fields relevant to its domain; merge logic
// downstream operates on these typed optionals instead of raw maps.
type SourceData struct {
	// Quote is a market quote from an alternative price feed
	Quote *MarketQuote `json:"quote,omitempty"`

	// Pairs summarizes DEX trading pairs for the token
	Pairs *PairSummary `json:"pairs,omitempty"`

	// Protocol is DeFi protocol metadata (TVL, audits, chains)
	Protocol *ProtocolInfo `json:"protocol,omitempty"`

	// Token is explorer-level token information
	Token *TokenInfo `json:"token,omitempty"`

	// Contract is contract verification metadata
	Contract *ContractInfo `json:"contract,omitempty"`

	// Holders is the normalized top-holder list, largest first
	Holders []Holder `json:"holders,omitempty"`

	// HolderCount is the total holder count reported by the provider
	HolderCount int64 `json:"holder_count,omitempty"`

	// Metrics is research-grade asset metrics (developer activity etc.)
	Metrics *AssetMetrics `json:"metrics,omitempty"`
}

// Holder is one entry in a top-holder list.
type Holder struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`

	// Percentage of total supply; nil when the supply is unknown to the
	// provider and the share cannot be computed
	Percentage *float64 `json:"percentage,omitempty"`
}

// MarketQuote is a single USD market quote from one provider.
type MarketQuote struct {
	PriceUSD          float64 `json:"price_usd"`
	MarketCap         float64 `json:"market_cap"`
	Volume24h         float64 `json:"volume_24h"`
	PercentChange24h  float64 `json:"percent_change_24h"`
	Rank              int     `json:"rank,omitempty"`
	CirculatingSupply float64 `json:"circulating_supply,omitempty"`
	TotalSupply       float64 `json:"total_supply,omitempty"`
	MaxSupply         float64 `json:"max_supply,omitempty"`
}

// PairSummary aggregates DEX pair data for a token. The single-pair
// fields come from the most liquid pair; Total values are summed across
// all pairs.
type PairSummary struct {
	PairCount      int     `json:"pair_count"`
	Dex            string  `json:"dex"`
	PairAddress    string  `json:"pair_address"`
	PriceUSD       float64 `json:"price_usd"`
	PriceChange24h float64 `json:"price_change_24h"`
	Volume24h      float64 `json:"volume_24h"`
	LiquidityUSD   float64 `json:"liquidity_usd"`
	FDV            float64 `json:"fdv"`
	MarketCap      float64 `json:"market_cap"`
	TotalLiquidity float64 `json:"total_liquidity"`
	TotalVolume24h float64 `json:"total_volume_24h"`
	BuyTax         float64 `json:"buy_tax"`
	SellTax        float64 `json:"sell_tax"`
}

// ProtocolInfo is DeFi protocol metadata from a TVL aggregator.
type ProtocolInfo struct {
	Name         string   `json:"name"`
	Slug         string   `json:"slug"`
	TVL          float64  `json:"tvl"`
	TVLChange24h float64  `json:"tvl_change_24h"`
	TVLChange7d  float64  `json:"tvl_change_7d"`
	Chains       []string `json:"chains"`
	Category     string   `json:"category"`
	Audits       string   `json:"audits"`
	AuditLinks   []string `json:"audit_links,omitempty"`
	Website      string   `json:"website,omitempty"`
	Twitter      string   `json:"twitter,omitempty"`
	Governance   []string `json:"governance,omitempty"`
}

// TokenInfo is explorer-level token data (supply, transfers, price).
type TokenInfo struct {
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Decimals      int     `json:"decimals"`
	TotalSupply   float64 `json:"total_supply"`
	PriceUSD      float64 `json:"price_usd,omitempty"`
	MarketCap     float64 `json:"market_cap,omitempty"`
	TransferCount int64   `json:"transfer_count,omitempty"`
}

// ContractInfo is contract verification metadata from a block explorer.
type ContractInfo struct {
	Address      string `json:"address"`
	Verified     bool   `json:"verified"`
	ContractName string `json:"contract_name,omitempty"`
	Compiler     string `json:"compiler,omitempty"`
	IsProxy      bool   `json:"is_proxy,omitempty"`
}

// AssetMetrics carries research-provider metrics used for display and
// the community/developer risk adjustments.
type AssetMetrics struct {
	DeveloperCommits90d int     `json:"developer_commits_90d,omitempty"`
	DeveloperStars      int     `json:"developer_stars,omitempty"`
	RealVolume24h       float64 `json:"real_volume_24h,omitempty"`
	RedditSubscribers   int     `json:"reddit_subscribers,omitempty"`
}

// CombinedView is the aggregator's merged, best-effort summary across all
// adapters for one token. It is derived and non-authoritative: every field
// traces back to exactly one winning source, never a blend.
type CombinedView struct {
	Liquidity       LiquiditySummary `json:"liquidity"`
	Holders         HolderSummary    `json:"holders"`
	Taxes           TaxSummary       `json:"taxes"`
	DeFi            *DeFiSummary     `json:"defi,omitempty"`
	Research        *AssetMetrics    `json:"research,omitempty"`
	PriceComparison *PriceComparison `json:"price_comparison,omitempty"`
}

// LiquiditySummary reports DEX liquidity and protocol TVL side by side.
// TotalValueLocked mirrors DefiTVL; DEX liquidity is informational and is
// deliberately not added in.
type LiquiditySummary struct {
	DexLiquidity     float64  `json:"dex_liquidity"`
	DefiTVL          float64  `json:"defi_tvl"`
	TotalValueLocked float64  `json:"total_value_locked"`
	Sources          []string `json:"sources"`
}

// HolderSummary is the winning holder list. Source names the provider the
// list was taken from wholesale; empty means no provider had holder data.
type HolderSummary struct {
	TopHolders []Holder `json:"top_holders"`
	Count      int64    `json:"count"`
	Source     string   `json:"source,omitempty"`
}

// TaxSummary carries buy/sell taxes; DEX data is the only source.
type TaxSummary struct {
	BuyTax  float64 `json:"buy_tax"`
	SellTax float64 `json:"sell_tax"`
	Source  string  `json:"source,omitempty"`
}

// DeFiSummary is present only when a DeFi protocol matched the token.
type DeFiSummary struct {
	Category   string   `json:"category"`
	Chains     []string `json:"chains"`
	Audits     string   `json:"audits"`
	AuditLinks []string `json:"audit_links,omitempty"`
	Governance []string `json:"governance,omitempty"`
}

// PriceQuote is one source's USD price used in cross-source comparison.
type PriceQuote struct {
	Source string  `json:"source"`
	Price  float64 `json:"price"`
}

// PriceComparison is computed only when at least two independent USD
// quotes exist. Variance is (max-min)/average as a percentage.
type PriceComparison struct {
	Sources         []PriceQuote `json:"sources"`
	Average         float64      `json:"average"`
	Variance        float64      `json:"variance"`
	VarianceWarning bool         `json:"variance_warning"`
}

// AggregateResult pairs the merged view with the per-source raw results.
type AggregateResult struct {
	Sources  map[string]SourceResult `json:"sources"`
	Combined CombinedView            `json:"combined"`
}

// SuccessfulSources lists the names of sources that returned data.
func (a AggregateResult) SuccessfulSources() []string {
	var names []string
	for name, r := range a.Sources {
		if r.OK() {
			names = append(names, name)
		}
	}
	return names
}

// PricePoint is one sample in a historical price series.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
