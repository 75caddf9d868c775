package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/token-research-api/internal/model"
	"github.com/yourorg/token-research-api/internal/source"
)

// stubAdapter returns a canned result, optionally after a delay.
type stubAdapter struct {
	name   string
	result model.SourceResult
	delay  time.Duration
}

func (s stubAdapter) Name() string          { return s.name }
func (s stubAdapter) RequiresAddress() bool { return false }

func (s stubAdapter) Fetch(ctx context.Context, q source.Query) model.SourceResult {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return model.Failed(s.name, ctx.Err())
		}
	}
	return s.result
}

func found(name string, data *model.SourceData) stubAdapter {
	return stubAdapter{name: name, result: model.SourceResult{Source: name, Found: true, Data: data}}
}

func quoteOf(price float64) *model.SourceData {
	return &model.SourceData{Quote: &model.MarketQuote{PriceUSD: price}}
}

func TestRunSettlesAllBranches(t *testing.T) {
	adapters := []source.Adapter{
		found("coinmarketcap", quoteOf(100)),
		stubAdapter{name: "etherscan", result: model.Failed("etherscan", errors.New("boom"))},
		stubAdapter{name: "defillama", result: model.NotFound("defillama")},
	}

	result := New(adapters).Run(context.Background(), source.Query{Symbol: "UNI"}, 0)

	require.Len(t, result.Sources, 3)
	assert.True(t, result.Sources["coinmarketcap"].OK())
	assert.Equal(t, "boom", result.Sources["etherscan"].Err)
	assert.False(t, result.Sources["defillama"].Found)
	assert.Equal(t, []string{"coinmarketcap"}, result.SuccessfulSources())
}

func TestRunWithNoAdapters(t *testing.T) {
	result := New(nil).Run(context.Background(), source.Query{Symbol: "UNI"}, 0)

	assert.Empty(t, result.Sources)
	assert.Empty(t, result.Combined.Holders.TopHolders)
	assert.Nil(t, result.Combined.PriceComparison)
	assert.Nil(t, result.Combined.DeFi)
}

func TestRunTimeoutDegradesSlowSource(t *testing.T) {
	adapters := []source.Adapter{
		found("coinmarketcap", quoteOf(100)),
		stubAdapter{name: "defillama", delay: time.Second, result: model.SourceResult{Source: "defillama", Found: true}},
	}

	start := time.Now()
	result := New(adapters, WithTimeout(50*time.Millisecond)).Run(context.Background(), source.Query{Symbol: "UNI"}, 0)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, result.Sources["coinmarketcap"].OK())
	assert.False(t, result.Sources["defillama"].Found)
}

func TestHolderPrecedenceWinsWholesale(t *testing.T) {
	pct := 40.0
	ethplorerHolders := []model.Holder{{Address: "0x01", Balance: 400, Percentage: &pct}}
	moralisHolders := []model.Holder{{Address: "0xaa", Balance: 1}, {Address: "0xbb", Balance: 2}}

	adapters := []source.Adapter{
		found("ethplorer", &model.SourceData{Holders: ethplorerHolders, HolderCount: 350000}),
		found("moralis", &model.SourceData{Holders: moralisHolders, HolderCount: 2}),
	}

	combined := New(adapters).Run(context.Background(), source.Query{}, 0).Combined

	assert.Equal(t, "ethplorer", combined.Holders.Source)
	assert.Equal(t, ethplorerHolders, combined.Holders.TopHolders)
	assert.Equal(t, int64(350000), combined.Holders.Count)
}

func TestHolderPrecedenceFallsThrough(t *testing.T) {
	moralisHolders := []model.Holder{{Address: "0xaa", Balance: 1}}
	adapters := []source.Adapter{
		found("ethplorer", &model.SourceData{Token: &model.TokenInfo{Symbol: "UNI"}}),
		found("moralis", &model.SourceData{Holders: moralisHolders}),
	}

	combined := New(adapters).Run(context.Background(), source.Query{}, 0).Combined

	assert.Equal(t, "moralis", combined.Holders.Source)
	assert.Equal(t, int64(1), combined.Holders.Count)
}

func TestLiquidityAndTaxes(t *testing.T) {
	adapters := []source.Adapter{
		found("dexscreener", &model.SourceData{Pairs: &model.PairSummary{
			TotalLiquidity: 450000, BuyTax: 1, SellTax: 2, PriceUSD: 6,
		}}),
		found("defillama", &model.SourceData{Protocol: &model.ProtocolInfo{
			TVL: 3.2e9, Category: "Dexes", Chains: []string{"Ethereum"}, Audits: "2",
		}}),
	}

	combined := New(adapters).Run(context.Background(), source.Query{}, 0).Combined

	assert.InDelta(t, 450000, combined.Liquidity.DexLiquidity, 1e-9)
	assert.InDelta(t, 3.2e9, combined.Liquidity.DefiTVL, 1e-9)
	assert.InDelta(t, 3.2e9, combined.Liquidity.TotalValueLocked, 1e-9)
	assert.ElementsMatch(t, []string{"dexscreener", "defillama"}, combined.Liquidity.Sources)
	assert.Equal(t, "dexscreener", combined.Taxes.Source)
	assert.InDelta(t, 1, combined.Taxes.BuyTax, 1e-9)
	require.NotNil(t, combined.DeFi)
	assert.Equal(t, "Dexes", combined.DeFi.Category)
}

func TestPriceComparisonRequiresTwoQuotes(t *testing.T) {
	adapters := []source.Adapter{found("coinmarketcap", quoteOf(100))}
	combined := New(adapters).Run(context.Background(), source.Query{}, 0).Combined
	assert.Nil(t, combined.PriceComparison)
}

func TestPriceComparisonNoWarningWithinThreshold(t *testing.T) {
	adapters := []source.Adapter{found("coinmarketcap", quoteOf(105))}
	combined := New(adapters).Run(context.Background(), source.Query{}, 100).Combined

	require.NotNil(t, combined.PriceComparison)
	assert.InDelta(t, 102.5, combined.PriceComparison.Average, 1e-9)
	assert.InDelta(t, 4.878, combined.PriceComparison.Variance, 0.001)
	assert.False(t, combined.PriceComparison.VarianceWarning)
}

func TestPriceComparisonWarnsOnSpread(t *testing.T) {
	adapters := []source.Adapter{found("coinmarketcap", quoteOf(110))}
	combined := New(adapters).Run(context.Background(), source.Query{}, 100).Combined

	require.NotNil(t, combined.PriceComparison)
	assert.InDelta(t, 105, combined.PriceComparison.Average, 1e-9)
	assert.InDelta(t, 9.524, combined.PriceComparison.Variance, 0.001)
	assert.True(t, combined.PriceComparison.VarianceWarning)
}

func TestPriceComparisonGathersAllQuoteSources(t *testing.T) {
	adapters := []source.Adapter{
		found("coinmarketcap", quoteOf(6.12)),
		found("messari", quoteOf(6.05)),
		found("dexscreener", &model.SourceData{Pairs: &model.PairSummary{PriceUSD: 6.0, TotalLiquidity: 1}}),
	}

	combined := New(adapters).Run(context.Background(), source.Query{}, 6.1).Combined

	require.NotNil(t, combined.PriceComparison)
	require.Len(t, combined.PriceComparison.Sources, 4)
	names := make([]string, 0, 4)
	for _, q := range combined.PriceComparison.Sources {
		names = append(names, q.Source)
	}
	assert.ElementsMatch(t, []string{"coingecko", "coinmarketcap", "messari", "dexscreener"}, names)
}

func TestResearchBlockFromMessari(t *testing.T) {
	metrics := &model.AssetMetrics{DeveloperCommits90d: 180, RedditSubscribers: 120000}
	adapters := []source.Adapter{found("messari", &model.SourceData{Metrics: metrics})}

	combined := New(adapters).Run(context.Background(), source.Query{}, 0).Combined
	assert.Equal(t, metrics, combined.Research)
}
