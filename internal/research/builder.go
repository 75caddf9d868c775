// Package research assembles the persisted research record from the
// snapshot, the aggregation result and the risk assessment. The builder
// is pure: same inputs, same record, no I/O.
package research

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/token-research-api/internal/model"
)

// Builder derives research records. The clock and ID source are
// swappable so records are reproducible in tests.
type Builder struct {
	now   func() time.Time
	newID func() string
}

// NewBuilder creates a Builder using the wall clock and random IDs.
func NewBuilder() *Builder {
	return &Builder{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// WithClock replaces the time source, for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithIDSource replaces the random ID source, for tests.
func (b *Builder) WithIDSource(newID func() string) *Builder {
	b.newID = newID
	return b
}

// Build assembles a record from one research run. The record is
// immutable once built; a repeat run produces a fresh record under a
// fresh ID.
func (b *Builder) Build(snap model.TokenSnapshot, agg model.AggregateResult, assessment model.RiskAssessment, history []model.PricePoint) model.ResearchRecord {
	now := b.now()
	combined := agg.Combined

	record := model.ResearchRecord{
		ID: b.recordID(now, snap.Symbol),
		Token: model.TokenIdentity{
			Ticker:      strings.ToUpper(snap.Symbol),
			Name:        snap.Name,
			Address:     snap.ContractAddress,
			Chain:       snap.Chain,
			Logo:        snap.LogoURL,
			Description: snap.Description,
			Website:     snap.Website,
		},
		PriceData:    buildPriceData(snap, now),
		Tokenomics:   buildTokenomics(snap.Market),
		OnChain:      OnChainView(agg),
		Combined:     &combined,
		RedFlags:     assessment.RedFlags,
		Analysis:     assessment,
		SocialScore:  socialScore(snap, combined.Research),
		PriceHistory: history,
		CreatedAt:    now,
	}
	return record
}

// recordID formats the persisted key: a millisecond timestamp plus the
// ticker, or a UUID fragment when the ticker is unknown.
func (b *Builder) recordID(now time.Time, symbol string) string {
	suffix := strings.ToUpper(symbol)
	if suffix == "" {
		suffix = strings.SplitN(b.newID(), "-", 2)[0]
	}
	return fmt.Sprintf("research_%d_%s", now.UnixMilli(), suffix)
}

func buildPriceData(snap model.TokenSnapshot, now time.Time) model.PriceData {
	m := snap.Market
	pd := model.PriceData{
		CurrentPrice:    m.PriceUSD,
		ATH:             m.ATH,
		ATL:             m.ATL,
		Volume24h:       m.Volume24h,
		VolumeChange24h: m.VolumeChange24h,
		MarketCapRank:   m.Rank,
		PriceBTC:        m.PriceBTC,
		PriceETH:        m.PriceETH,
		AgeDays:         snap.AgeDays(now),
	}
	if m.ATH > 0 {
		pd.ATHPercentage = (m.PriceUSD - m.ATH) / m.ATH * 100
	}
	if m.ATHDate != nil {
		days := int(now.Sub(*m.ATHDate).Hours() / 24)
		if days > 0 {
			pd.DaysSinceATH = days
		}
	}
	return pd
}

func buildTokenomics(m model.MarketData) model.Tokenomics {
	t := model.Tokenomics{
		MarketCap:             m.MarketCap,
		FullyDilutedValuation: m.FDV,
		TotalSupply:           m.TotalSupply,
		CirculatingSupply:     m.CirculatingSupply,
	}
	if m.TotalSupply > 0 {
		t.CirculationPercentage = m.CirculatingSupply / m.TotalSupply * 100
	}
	return t
}

// OnChainView lifts the on-chain snapshot out of the aggregation.
// ContractVerified stays nil unless the explorer actually answered.
// The analyzer consumes this view before the record is built.
func OnChainView(agg model.AggregateResult) model.OnChain {
	combined := agg.Combined
	oc := model.OnChain{
		LiquidityPoolUSD:  combined.Liquidity.DexLiquidity,
		BuyTaxPercentage:  combined.Taxes.BuyTax,
		SellTaxPercentage: combined.Taxes.SellTax,
		HoldersCount:      combined.Holders.Count,
		TopHolders:        combined.Holders.TopHolders,
	}
	if r, ok := agg.Sources["etherscan"]; ok && r.OK() && r.Data.Contract != nil {
		verified := r.Data.Contract.Verified
		oc.ContractVerified = &verified
	}
	return oc
}

// socialScore condenses community signals to a 0-100 display value.
// Subscriber counts dominate when a research source reported them.
func socialScore(snap model.TokenSnapshot, metrics *model.AssetMetrics) int {
	if metrics != nil && metrics.RedditSubscribers > 0 {
		score := metrics.RedditSubscribers / 1000
		if score > 100 {
			return 100
		}
		return score
	}
	return int(snap.CommunityScore)
}
