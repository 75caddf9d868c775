package analyze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/token-research-api/internal/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestHighRiskMicroCap(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	genesis := now.AddDate(0, 0, -10)

	snap := model.TokenSnapshot{
		Symbol:      "SCAM",
		Name:        "Scammy",
		GenesisDate: &genesis,
		Market: model.MarketData{
			MarketCap: 5_000_000,
			Volume24h: 50_000,
			Change24h: 60,
		},
	}

	result := New(DefaultConfig()).WithClock(fixedClock(now)).Assess(snap, nil)

	// 5 baseline +3 micro cap +1 thin volume +2 extreme move +2 young = 13, clamped
	assert.Equal(t, 10, result.Score)
	assert.Equal(t, model.RiskExtreme, result.Class)

	checks := map[string]bool{}
	for _, f := range result.RedFlags {
		checks[f.Check] = true
	}
	assert.True(t, checks["Market Cap"])
	assert.True(t, checks["Trading Volume"])
	assert.True(t, checks["Price Stability"])
	assert.True(t, checks["Project Age"])
}

func TestLowRiskEstablishedAsset(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	genesis := now.AddDate(-10, 0, 0)

	snap := model.TokenSnapshot{
		Symbol:      "BTC",
		Name:        "Bitcoin",
		Website:     "https://bitcoin.org",
		GenesisDate: &genesis,
		Market: model.MarketData{
			PriceUSD:          60000,
			ATH:               69000,
			MarketCap:         1.2e12,
			Volume24h:         3e10,
			Change24h:         1.2,
			TotalSupply:       21_000_000,
			CirculatingSupply: 19_500_000,
		},
		CommunityScore: 80,
		DeveloperScore: 90,
	}

	result := New(DefaultConfig()).WithClock(fixedClock(now)).Assess(snap, nil)

	// 5 baseline -1 mega cap -1 community -1 developer = 2
	assert.Equal(t, 2, result.Score)
	assert.Equal(t, model.RiskLow, result.Class)
	assert.Empty(t, filterScoring(result.RedFlags))
}

// filterScoring drops display-only flags so score-bearing red flags can
// be asserted on their own.
func filterScoring(flags []model.Flag) []model.Flag {
	var out []model.Flag
	for _, f := range flags {
		if f.Check != "Website" {
			out = append(out, f)
		}
	}
	return out
}

func TestScoreAlwaysInRange(t *testing.T) {
	now := time.Now()
	genesis := now.AddDate(0, 0, -5)
	verified := false
	whale := 80.0

	worst := model.TokenSnapshot{
		Symbol:      "X",
		GenesisDate: &genesis,
		Market: model.MarketData{
			PriceUSD:          0.001,
			ATH:               1,
			MarketCap:         500_000,
			Volume24h:         2_000,
			Change24h:         -80,
			TotalSupply:       1e9,
			CirculatingSupply: 1e8,
		},
		CommunityScore: 5,
		DeveloperScore: 5,
	}
	onchain := &model.OnChain{
		ContractVerified:  &verified,
		BuyTaxPercentage:  25,
		SellTaxPercentage: 25,
		LiquidityPoolUSD:  3_000,
		TopHolders:        []model.Holder{{Address: "0x01", Percentage: &whale}},
	}

	result := New(DefaultConfig()).Assess(worst, onchain)
	assert.Equal(t, 10, result.Score)
	assert.Equal(t, model.RiskExtreme, result.Class)

	best := model.TokenSnapshot{
		Symbol:  "Y",
		Website: "https://y.example",
		Market: model.MarketData{
			MarketCap: 2e12,
			Volume24h: 1e11,
		},
		CommunityScore: 99,
		DeveloperScore: 99,
	}
	result = New(DefaultConfig()).Assess(best, nil)
	assert.GreaterOrEqual(t, result.Score, 1)
	assert.LessOrEqual(t, result.Score, 10)
}

func TestUnknownInputsAreSkipped(t *testing.T) {
	// Everything unknown: only the baseline remains
	result := New(DefaultConfig()).Assess(model.TokenSnapshot{Symbol: "Z"}, nil)

	assert.Equal(t, 5, result.Score)
	assert.Equal(t, model.RiskMedium, result.Class)
	for _, f := range result.RedFlags {
		assert.Equal(t, "Website", f.Check, "no data-driven check should fire without data")
	}
}

func TestClassMonotonicInScore(t *testing.T) {
	order := map[model.RiskClass]int{
		model.RiskLow:     0,
		model.RiskMedium:  1,
		model.RiskHigh:    2,
		model.RiskExtreme: 3,
	}
	prev := model.RiskLow
	for score := 1; score <= 10; score++ {
		class := model.ClassForScore(score)
		assert.GreaterOrEqual(t, order[class], order[prev], "score %d", score)
		prev = class
	}
	assert.Equal(t, model.RiskLow, model.ClassForScore(3))
	assert.Equal(t, model.RiskMedium, model.ClassForScore(5))
	assert.Equal(t, model.RiskHigh, model.ClassForScore(7))
	assert.Equal(t, model.RiskExtreme, model.ClassForScore(8))
}

func TestSentimentDecisionTable(t *testing.T) {
	a := New(DefaultConfig())

	cases := []struct {
		name      string
		change24h float64
		change7d  float64
		want      model.Sentiment
		wantScore int
	}{
		{"bullish", 6, 12, model.SentimentBullish, 75},
		{"bearish", -6, -12, model.SentimentBearish, 25},
		{"mixed daily up weekly down", 6, -12, model.SentimentNeutral, 50},
		{"flat", 0, 0, model.SentimentNeutral, 50},
		{"at bullish boundary", 5, 10, model.SentimentNeutral, 50},
		{"at bearish boundary", -5, -10, model.SentimentNeutral, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sentiment, score := a.Sentiment(tc.change24h, tc.change7d)
			assert.Equal(t, tc.want, sentiment)
			assert.Equal(t, tc.wantScore, score)
		})
	}
}

func TestOnChainChecksFireOnlyWhenKnown(t *testing.T) {
	a := New(DefaultConfig())
	snap := model.TokenSnapshot{Symbol: "Z", Market: model.MarketData{MarketCap: 5e11, Volume24h: 1e10}}

	// Unknown verification status adds nothing
	result := a.Assess(snap, &model.OnChain{})
	base := result.Score

	verified := false
	result = a.Assess(snap, &model.OnChain{ContractVerified: &verified})
	assert.Equal(t, base+1, result.Score)

	verified = true
	result = a.Assess(snap, &model.OnChain{ContractVerified: &verified})
	assert.Equal(t, base, result.Score)
	found := false
	for _, f := range result.GreenFlags {
		if f.Check == "Contract Verified" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCommunitySignalsToggle(t *testing.T) {
	snap := model.TokenSnapshot{
		Symbol:         "Z",
		Market:         model.MarketData{MarketCap: 5e11, Volume24h: 1e10},
		CommunityScore: 90,
		DeveloperScore: 90,
	}

	withSignals := New(DefaultConfig()).Assess(snap, nil)

	cfg := DefaultConfig()
	cfg.CommunitySignals = false
	withoutSignals := New(cfg).Assess(snap, nil)

	assert.Equal(t, withSignals.Score+2, withoutSignals.Score)
}

func TestDrawdownAndCirculation(t *testing.T) {
	snap := model.TokenSnapshot{
		Symbol: "DD",
		Market: model.MarketData{
			PriceUSD:          0.05,
			ATH:               10,
			MarketCap:         5e9,
			Volume24h:         1e9,
			TotalSupply:       1e9,
			CirculatingSupply: 2e8,
		},
	}

	result := New(DefaultConfig()).Assess(snap, nil)

	var drawdown, circulation bool
	for _, f := range result.RedFlags {
		switch f.Check {
		case "ATH Drawdown":
			drawdown = true
		case "Circulating Supply":
			circulation = true
		}
	}
	require.True(t, drawdown, "99.5%% drawdown should flag")
	require.True(t, circulation, "20%% circulation should flag")
	// baseline 5 + drawdown 1 + circulation 1 = 7
	assert.Equal(t, 7, result.Score)
}
