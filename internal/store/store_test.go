package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/token-research-api/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id, ticker string, score int, createdAt time.Time) model.ResearchRecord {
	verified := true
	return model.ResearchRecord{
		ID: id,
		Token: model.TokenIdentity{
			Ticker:  ticker,
			Name:    ticker + " Token",
			Address: "0x1f98",
			Chain:   "ethereum",
			Website: "https://example.org",
		},
		PriceData:  model.PriceData{CurrentPrice: 6, ATH: 44.92, ATHPercentage: -86.6, AgeDays: 730},
		Tokenomics: model.Tokenomics{MarketCap: 3.6e9, CirculationPercentage: 60},
		OnChain: model.OnChain{
			LiquidityPoolUSD: 450000,
			ContractVerified: &verified,
			HoldersCount:     350000,
		},
		Combined: &model.CombinedView{
			Liquidity: model.LiquiditySummary{DexLiquidity: 450000},
		},
		RedFlags: []model.Flag{{Check: "Market Cap", Passed: false, Severity: model.SeverityMedium}},
		Analysis: model.RiskAssessment{
			Score:          score,
			Class:          model.ClassForScore(score),
			RedFlags:       []model.Flag{{Check: "Market Cap", Passed: false, Severity: model.SeverityMedium}},
			Sentiment:      model.SentimentNeutral,
			SentimentScore: 50,
		},
		SocialScore:  48,
		PriceHistory: []model.PricePoint{{Timestamp: createdAt.Add(-time.Hour), Price: 5.9}},
		CreatedAt:    createdAt,
	}
}

func TestSaveAndGetResearch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	record := testRecord("research_1_UNI", "UNI", 4, now)
	require.NoError(t, s.SaveResearch(ctx, record))

	got, err := s.GetResearch(ctx, "research_1_UNI")
	require.NoError(t, err)

	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.Token, got.Token)
	assert.Equal(t, record.PriceData, got.PriceData)
	assert.Equal(t, record.Tokenomics, got.Tokenomics)
	assert.Equal(t, record.Analysis.Score, got.Analysis.Score)
	assert.Equal(t, record.Analysis.Class, got.Analysis.Class)
	assert.Equal(t, record.RedFlags, got.RedFlags)
	require.NotNil(t, got.OnChain.ContractVerified)
	assert.True(t, *got.OnChain.ContractVerified)
	require.NotNil(t, got.Combined)
	assert.InDelta(t, 450000, got.Combined.Liquidity.DexLiquidity, 1e-9)
	require.Len(t, got.PriceHistory, 1)
	assert.True(t, record.CreatedAt.Equal(got.CreatedAt))
}

func TestGetResearchNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetResearch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateIDRejected(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SaveResearch(ctx, testRecord("research_1_UNI", "UNI", 4, now)))
	assert.Error(t, s.SaveResearch(ctx, testRecord("research_1_UNI", "UNI", 4, now)))
}

func TestHistoryCappedAtFifty(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 55; i++ {
		record := testRecord(fmt.Sprintf("research_%d_UNI", i), "UNI", 4, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.SaveResearch(ctx, record))
	}

	entries, total, err := s.History(ctx, HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, 50, total)
	assert.Len(t, entries, 50)
	// Newest first; the five oldest were pruned
	assert.Equal(t, "research_54_UNI", entries[0].ID)
	assert.Equal(t, "research_5_UNI", entries[49].ID)
}

func TestHistoryFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveResearch(ctx, testRecord("r1", "UNI", 2, base)))
	require.NoError(t, s.SaveResearch(ctx, testRecord("r2", "AAVE", 8, base.Add(time.Minute))))
	require.NoError(t, s.SaveResearch(ctx, testRecord("r3", "UNIBOT", 9, base.Add(2*time.Minute))))

	entries, total, err := s.History(ctx, HistoryQuery{Ticker: "uni"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "r3", entries[0].ID)

	entries, total, err = s.History(ctx, HistoryQuery{Risk: "extreme"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, e := range entries {
		assert.Equal(t, model.RiskExtreme, e.RiskClass)
	}

	entries, _, err = s.History(ctx, HistoryQuery{Sort: "risk", Order: "asc"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[0].RiskScore)
	assert.Equal(t, 9, entries[2].RiskScore)
}

func TestHistoryPagination(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveResearch(ctx, testRecord(fmt.Sprintf("r%d", i), "UNI", 4, base.Add(time.Duration(i)*time.Minute))))
	}

	entries, total, err := s.History(ctx, HistoryQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "r2", entries[0].ID)
	assert.Equal(t, "r1", entries[1].ID)
}

func TestMonitorLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SaveResearch(ctx, testRecord("r1", "UNI", 4, now)))
	require.NoError(t, s.AddMonitor(ctx, "r1", "UNI", "uniswap", 6.0, 9e7))

	monitors, err := s.ActiveMonitors(ctx)
	require.NoError(t, err)
	require.Len(t, monitors, 1)
	m := monitors[0]
	assert.Equal(t, "UNI", m.Ticker)
	assert.Equal(t, "uniswap", m.CoinID)
	assert.InDelta(t, 6.0, m.BaselinePrice, 1e-9)
	assert.InDelta(t, 50, m.PriceThresholdPct, 1e-9)
	assert.InDelta(t, 500, m.VolumeThresholdPct, 1e-9)
	assert.Nil(t, m.LastCheckAt)

	newPrice := 9.5
	require.NoError(t, s.TouchMonitor(ctx, m.ID, &newPrice, nil))
	monitors, err = s.ActiveMonitors(ctx)
	require.NoError(t, err)
	require.Len(t, monitors, 1)
	assert.InDelta(t, 9.5, monitors[0].BaselinePrice, 1e-9)
	assert.InDelta(t, 9e7, monitors[0].BaselineVolume, 1e-9)
	assert.NotNil(t, monitors[0].LastCheckAt)

	require.NoError(t, s.DeactivateMonitor(ctx, m.ID))
	monitors, err = s.ActiveMonitors(ctx)
	require.NoError(t, err)
	assert.Empty(t, monitors)
}

func TestLogRequestNeverFails(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.LogRequest(ctx, "research_run", map[string]string{"query": "UNI"}, "127.0.0.1", "test-agent")

	var count int
	require.NoError(t, s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM request_log"))
	assert.Equal(t, 1, count)
}
