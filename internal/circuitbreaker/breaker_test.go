package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/token-research-api/internal/model"
)

func resultWith(sources int, variance float64, tvl float64) model.AggregateResult {
	names := []string{"coingecko", "coinmarketcap", "messari", "dexscreener", "defillama"}
	results := make(map[string]model.SourceResult)
	for i := 0; i < sources && i < len(names); i++ {
		results[names[i]] = model.SourceResult{
			Source: names[i],
			Found:  true,
			Data:   &model.SourceData{Quote: &model.MarketQuote{PriceUSD: 6}},
		}
	}

	combined := model.CombinedView{
		Liquidity: model.LiquiditySummary{DefiTVL: tvl, TotalValueLocked: tvl},
	}
	if variance > 0 {
		combined.PriceComparison = &model.PriceComparison{Variance: variance}
	}
	return model.AggregateResult{Sources: results, Combined: combined}
}

func defaultThresholds() Thresholds {
	return Thresholds{
		MinSources:       2,
		MaxPriceVariance: 25,
		MaxTVLChange:     0.5,
	}
}

func TestCircuitBreaker_BasicFunctionality(t *testing.T) {
	cb := New(defaultThresholds()).WithResetDelay(50 * time.Millisecond)
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit breaker should start closed")

	err := cb.Check("UNI", resultWith(3, 2.0, 1000))
	assert.NoError(t, err, "Consistent data should pass checks")
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should remain closed for consistent data")
}

func TestCircuitBreaker_SparseCoverageDegradesWithoutTripping(t *testing.T) {
	cb := New(defaultThresholds())

	err := cb.Check("JUNK", resultWith(0, 0, 0))
	assert.NoError(t, err, "Sparse coverage should degrade the run, not block it")
	assert.Equal(t, StateClosed, cb.GetState(), "One data-sparse token must not open the circuit")

	_, ok := cb.LastGoodView("JUNK")
	assert.False(t, ok, "A degraded run should not become a last-good baseline")

	// Other tokens are unaffected by the sparse run
	assert.NoError(t, cb.Check("UNI", resultWith(3, 2.0, 1000)))
	_, ok = cb.LastGoodView("UNI")
	assert.True(t, ok)
}

func TestCircuitBreaker_PriceVariance(t *testing.T) {
	cb := New(defaultThresholds())

	err := cb.Check("UNI", resultWith(3, 40.0, 1000))
	assert.Error(t, err, "Excessive price spread should trip the circuit")
	assert.Contains(t, err.Error(), "price variance too high")
}

func TestCircuitBreaker_TVLChange(t *testing.T) {
	cb := New(defaultThresholds())

	err := cb.Check("UNI", resultWith(3, 2.0, 1000))
	require.NoError(t, err, "Baseline run should pass")

	err = cb.Check("UNI", resultWith(3, 2.0, 400))
	assert.Error(t, err, "60%% TVL drop should trip the circuit")
	assert.Contains(t, err.Error(), "TVL change too drastic")
}

func TestCircuitBreaker_TVLChangeIsPerToken(t *testing.T) {
	cb := New(defaultThresholds())

	require.NoError(t, cb.Check("UNI", resultWith(3, 2.0, 1000)))
	// A different token with a different TVL has no baseline to violate
	assert.NoError(t, cb.Check("AAVE", resultWith(3, 2.0, 50)))
}

func TestCircuitBreaker_OpenCircuitBlocksRuns(t *testing.T) {
	cb := New(defaultThresholds()).WithResetDelay(time.Hour)

	require.Error(t, cb.Check("UNI", resultWith(3, 40.0, 1000)))

	err := cb.Check("UNI", resultWith(3, 2.0, 1000))
	assert.Error(t, err, "Open circuit should block runs before the reset delay")
	assert.Contains(t, err.Error(), "circuit breaker open")
}

func TestCircuitBreaker_Recovery(t *testing.T) {
	cb := New(defaultThresholds()).
		WithResetDelay(50 * time.Millisecond).
		WithSuccessThreshold(1)

	require.Error(t, cb.Check("UNI", resultWith(3, 40.0, 1000)))
	assert.Equal(t, StateOpen, cb.GetState())

	time.Sleep(60 * time.Millisecond)

	err := cb.Check("UNI", resultWith(3, 2.0, 1000))
	assert.NoError(t, err, "Consistent data should pass in half-open state")
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should close after successful check in half-open state")
}

func TestCircuitBreaker_LastGoodView(t *testing.T) {
	cb := New(defaultThresholds())

	_, ok := cb.LastGoodView("UNI")
	assert.False(t, ok, "No view should exist before a successful check")

	require.NoError(t, cb.Check("UNI", resultWith(3, 2.0, 1000)))

	view, ok := cb.LastGoodView("UNI")
	require.True(t, ok)
	assert.InDelta(t, 1000, view.Liquidity.DefiTVL, 1e-9)
}

func TestCircuitBreaker_CallbackExecution(t *testing.T) {
	tripped := make(chan string, 1)
	cb := New(defaultThresholds()).WithTripCallback(func(reason, symbol string) {
		tripped <- reason
	})

	require.Error(t, cb.Check("UNI", resultWith(3, 40.0, 1000)))

	select {
	case reason := <-tripped:
		assert.Contains(t, reason, "price variance too high")
	case <-time.After(time.Second):
		t.Fatal("trip callback was not invoked")
	}
}

func TestCircuitBreaker_ManualReset(t *testing.T) {
	cb := New(defaultThresholds()).WithResetDelay(time.Hour)

	require.Error(t, cb.Check("UNI", resultWith(3, 40.0, 1000)))
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should be closed after manual reset")
	assert.NoError(t, cb.Check("UNI", resultWith(3, 2.0, 1000)))
}
