// Package analyze computes risk and sentiment assessments from a token
// snapshot. Scoring is an additive point system over fixed thresholds:
// every threshold lives in the Config so behavioral variants are
// configuration, not code divergence.
package analyze

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/model"
)

// baselineScore is the neutral starting point before adjustments.
const baselineScore = 5.0

// Config holds every threshold the point system uses.
type Config struct {
	// Market cap buckets, in USD. Buckets are checked smallest first.
	MicroCapUSD float64 // below: +3
	SmallCapUSD float64 // below: +2
	MidCapUSD   float64 // below: +1
	MegaCapUSD  float64 // above: -1

	// Volume checks
	LowVolumeRatio      float64 // volume/cap at or below: +1
	AbsoluteVolumeFloor float64 // volume below: +1

	// 24h price-change magnitude, in percent
	ExtremeMovePct float64 // above: +2
	LargeMovePct   float64 // above: +1

	// Project age, in days
	YoungAgeDays  int // below: +2
	MatureAgeDays int // below: +1

	// Drawdown from all-time high, in percent (negative)
	DeepDrawdownPct float64 // below: +1

	// Circulating share of total supply, in percent
	LowCirculationPct float64 // below: +1

	// Community and developer signals (0-100 scale). Disabled entirely
	// via CommunitySignals; individual scores of zero are treated as
	// unreported and skipped either way.
	CommunitySignals bool
	StrongSignal     float64 // at or above: -1
	WeakSignal       float64 // at or below: +1

	// On-chain checks
	HighTaxPct       float64 // buy or sell tax above: +2
	ThinLiquidityUSD float64 // pool below: +1
	WhaleHoldingPct  float64 // single holder above: +2

	// Sentiment decision table, in percent change
	BullishDaily  float64
	BullishWeekly float64
	BearishDaily  float64
	BearishWeekly float64
}

// DefaultConfig returns the canonical threshold table.
func DefaultConfig() Config {
	return Config{
		MicroCapUSD:         10_000_000,
		SmallCapUSD:         50_000_000,
		MidCapUSD:           250_000_000,
		MegaCapUSD:          10_000_000_000,
		LowVolumeRatio:      0.01,
		AbsoluteVolumeFloor: 10_000,
		ExtremeMovePct:      50,
		LargeMovePct:        20,
		YoungAgeDays:        30,
		MatureAgeDays:       90,
		DeepDrawdownPct:     -90,
		LowCirculationPct:   50,
		CommunitySignals:    true,
		StrongSignal:        70,
		WeakSignal:          20,
		HighTaxPct:          10,
		ThinLiquidityUSD:    10_000,
		WhaleHoldingPct:     50,
		BullishDaily:        5,
		BullishWeekly:       10,
		BearishDaily:        -5,
		BearishWeekly:       -10,
	}
}

// Analyzer scores token snapshots. Stateless apart from its thresholds;
// Assess is safe for concurrent use.
type Analyzer struct {
	cfg Config

	// now is swappable for tests
	now func() time.Time
}

// New creates an Analyzer with the given thresholds.
func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Assess scores a token snapshot, optionally enriched with on-chain
// data. Unknown inputs are skipped rather than penalized: a check only
// fires when its datum is actually known. The returned score is always
// in [1,10] and the class follows ClassForScore.
func (a *Analyzer) Assess(snap model.TokenSnapshot, onchain *model.OnChain) model.RiskAssessment {
	s := scorer{score: baselineScore}

	a.scoreMarketCap(&s, snap.Market)
	a.scoreVolume(&s, snap.Market)
	a.scorePriceMove(&s, snap.Market)
	a.scoreAge(&s, snap)
	a.scoreDrawdown(&s, snap.Market)
	a.scoreCirculation(&s, snap.Market)
	if a.cfg.CommunitySignals {
		a.scoreSignals(&s, snap)
	}
	if onchain != nil {
		a.scoreOnChain(&s, onchain)
	}
	a.flagWebsite(&s, snap)

	score := clampScore(s.score)
	sentiment, sentimentScore := a.Sentiment(snap.Market.Change24h, snap.Market.Change7d)

	logrus.WithFields(logrus.Fields{
		"token": snap.Symbol,
		"score": score,
		"raw":   s.score,
	}).Debug("risk assessment complete")

	return model.RiskAssessment{
		Score:          score,
		Class:          model.ClassForScore(score),
		RedFlags:       s.red,
		GreenFlags:     s.green,
		Sentiment:      sentiment,
		SentimentScore: sentimentScore,
	}
}

// Sentiment applies the decision table over 24h and 7d change.
func (a *Analyzer) Sentiment(change24h, change7d float64) (model.Sentiment, int) {
	switch {
	case change24h > a.cfg.BullishDaily && change7d > a.cfg.BullishWeekly:
		return model.SentimentBullish, 75
	case change24h < a.cfg.BearishDaily && change7d < a.cfg.BearishWeekly:
		return model.SentimentBearish, 25
	default:
		return model.SentimentNeutral, 50
	}
}

// scorer accumulates the running score and the flag lists.
type scorer struct {
	score float64
	red   []model.Flag
	green []model.Flag
}

func (s *scorer) fail(delta float64, check string, severity model.Severity, description string) {
	s.score += delta
	s.red = append(s.red, model.Flag{Check: check, Passed: false, Severity: severity, Description: description})
}

func (s *scorer) pass(delta float64, check string, severity model.Severity, description string) {
	s.score += delta
	s.green = append(s.green, model.Flag{Check: check, Passed: true, Severity: severity, Description: description})
}

func (a *Analyzer) scoreMarketCap(s *scorer, m model.MarketData) {
	cap := m.MarketCap
	if cap <= 0 {
		return
	}
	switch {
	case cap < a.cfg.MicroCapUSD:
		s.fail(3, "Market Cap", model.SeverityCritical, fmt.Sprintf("Micro cap of $%.0f, highly speculative", cap))
	case cap < a.cfg.SmallCapUSD:
		s.fail(2, "Market Cap", model.SeverityHigh, fmt.Sprintf("Small cap of $%.0f", cap))
	case cap < a.cfg.MidCapUSD:
		s.fail(1, "Market Cap", model.SeverityMedium, fmt.Sprintf("Mid cap of $%.0f", cap))
	case cap > a.cfg.MegaCapUSD:
		s.pass(-1, "Market Cap", model.SeverityLow, "Mega-cap asset")
	default:
		s.pass(0, "Market Cap", model.SeverityLow, "Established market capitalization")
	}
}

func (a *Analyzer) scoreVolume(s *scorer, m model.MarketData) {
	if m.MarketCap > 0 {
		ratio := m.Volume24h / m.MarketCap
		if ratio <= a.cfg.LowVolumeRatio {
			s.fail(1, "Trading Volume", model.SeverityHigh, "24h volume below 1% of market cap")
		} else {
			s.pass(0, "Trading Volume", model.SeverityLow, "Healthy volume relative to market cap")
		}
	}
	if m.Volume24h > 0 && m.Volume24h < a.cfg.AbsoluteVolumeFloor {
		s.fail(1, "Volume Floor", model.SeverityMedium, fmt.Sprintf("Only $%.0f traded in 24h", m.Volume24h))
	}
}

func (a *Analyzer) scorePriceMove(s *scorer, m model.MarketData) {
	move := math.Abs(m.Change24h)
	switch {
	case move > a.cfg.ExtremeMovePct:
		s.fail(2, "Price Stability", model.SeverityHigh, fmt.Sprintf("Price moved %.1f%% in 24h", m.Change24h))
	case move > a.cfg.LargeMovePct:
		s.fail(1, "Price Stability", model.SeverityMedium, fmt.Sprintf("Price moved %.1f%% in 24h", m.Change24h))
	default:
		s.pass(0, "Price Stability", model.SeverityLow, "No extreme recent price swings")
	}
}

func (a *Analyzer) scoreAge(s *scorer, snap model.TokenSnapshot) {
	age := snap.AgeDays(a.now())
	if age < 0 {
		return
	}
	switch {
	case age < a.cfg.YoungAgeDays:
		s.fail(2, "Project Age", model.SeverityHigh, fmt.Sprintf("Project is only %d days old", age))
	case age < a.cfg.MatureAgeDays:
		s.fail(1, "Project Age", model.SeverityMedium, fmt.Sprintf("Project is %d days old", age))
	default:
		s.pass(0, "Project Age", model.SeverityLow, fmt.Sprintf("Project is %d days old", age))
	}
}

func (a *Analyzer) scoreDrawdown(s *scorer, m model.MarketData) {
	if m.ATH <= 0 || m.PriceUSD <= 0 {
		return
	}
	drawdown := (m.PriceUSD - m.ATH) / m.ATH * 100
	if drawdown < a.cfg.DeepDrawdownPct {
		s.fail(1, "ATH Drawdown", model.SeverityMedium, fmt.Sprintf("Down %.1f%% from all-time high", -drawdown))
	}
}

func (a *Analyzer) scoreCirculation(s *scorer, m model.MarketData) {
	if m.TotalSupply <= 0 {
		return
	}
	pct := m.CirculatingSupply / m.TotalSupply * 100
	if pct < a.cfg.LowCirculationPct {
		s.fail(1, "Circulating Supply", model.SeverityMedium, fmt.Sprintf("Only %.1f%% of supply circulating", pct))
	} else {
		s.pass(0, "Circulating Supply", model.SeverityLow, fmt.Sprintf("%.1f%% of supply circulating", pct))
	}
}

// scoreSignals applies the community/developer adjustments. A zero score
// means the provider did not report it; those are skipped, not punished.
func (a *Analyzer) scoreSignals(s *scorer, snap model.TokenSnapshot) {
	if snap.CommunityScore > 0 {
		switch {
		case snap.CommunityScore >= a.cfg.StrongSignal:
			s.pass(-1, "Community Activity", model.SeverityLow, "Strong community engagement")
		case snap.CommunityScore <= a.cfg.WeakSignal:
			s.fail(1, "Community Activity", model.SeverityLow, "Weak community engagement")
		}
	}
	if snap.DeveloperScore > 0 {
		switch {
		case snap.DeveloperScore >= a.cfg.StrongSignal:
			s.pass(-1, "Developer Activity", model.SeverityLow, "Active development")
		case snap.DeveloperScore <= a.cfg.WeakSignal:
			s.fail(1, "Developer Activity", model.SeverityLow, "Little recent development activity")
		}
	}
}

func (a *Analyzer) scoreOnChain(s *scorer, oc *model.OnChain) {
	if oc.ContractVerified != nil {
		if *oc.ContractVerified {
			s.pass(0, "Contract Verified", model.SeverityHigh, "Contract source is published and verified")
		} else {
			s.fail(1, "Contract Verified", model.SeverityHigh, "Contract source is not verified")
		}
	}
	if oc.BuyTaxPercentage > a.cfg.HighTaxPct || oc.SellTaxPercentage > a.cfg.HighTaxPct {
		s.fail(2, "Transfer Taxes", model.SeverityCritical,
			fmt.Sprintf("High taxes: %.1f%% buy / %.1f%% sell", oc.BuyTaxPercentage, oc.SellTaxPercentage))
	}
	if oc.LiquidityPoolUSD > 0 && oc.LiquidityPoolUSD < a.cfg.ThinLiquidityUSD {
		s.fail(1, "DEX Liquidity", model.SeverityHigh, fmt.Sprintf("Only $%.0f pooled liquidity", oc.LiquidityPoolUSD))
	}
	for _, h := range oc.TopHolders {
		if h.Percentage != nil && *h.Percentage > a.cfg.WhaleHoldingPct {
			s.fail(2, "Holder Concentration", model.SeverityCritical,
				fmt.Sprintf("One holder owns %.1f%% of supply", *h.Percentage))
			break
		}
	}
}

// flagWebsite is display-only: no official website is worth noting but
// carries no score weight.
func (a *Analyzer) flagWebsite(s *scorer, snap model.TokenSnapshot) {
	if snap.Website == "" {
		s.fail(0, "Website", model.SeverityLow, "No official website listed")
	} else {
		s.pass(0, "Website", model.SeverityLow, "Official website listed")
	}
}

func clampScore(raw float64) int {
	score := int(math.Round(raw))
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
