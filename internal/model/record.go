package model

import "time"

// RiskClass is the coarse display bucket derived from the numeric score.
type RiskClass string

// Risk classes, ordered by severity.
const (
	RiskLow     RiskClass = "low"
	RiskMedium  RiskClass = "medium"
	RiskHigh    RiskClass = "high"
	RiskExtreme RiskClass = "extreme"
)

// ClassForScore maps a risk score to its class. Scores are expected in
// [1,10]; the mapping is monotonic in score.
func ClassForScore(score int) RiskClass {
	switch {
	case score <= 3:
		return RiskLow
	case score <= 5:
		return RiskMedium
	case score <= 7:
		return RiskHigh
	default:
		return RiskExtreme
	}
}

// Sentiment is the coarse market-direction label.
type Sentiment string

// Sentiment labels.
const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Severity tags a flag for display emphasis. It carries no scoring weight
// beyond the point delta already applied by the check that produced it.
type Severity string

// Flag severities.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Flag is a named check result contributing to the risk narrative.
type Flag struct {
	Check       string   `json:"check"`
	Passed      bool     `json:"passed"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// RiskAssessment is the analyzer's full output for one token snapshot.
// Score is always clamped to [1,10] and Class follows ClassForScore.
type RiskAssessment struct {
	Score          int       `json:"risk_score"`
	Class          RiskClass `json:"risk_class"`
	RedFlags       []Flag    `json:"red_flags"`
	GreenFlags     []Flag    `json:"green_flags"`
	Sentiment      Sentiment `json:"sentiment"`
	SentimentScore int       `json:"sentiment_score"`
}

// TokenIdentity is the identity block of a persisted research record.
type TokenIdentity struct {
	Ticker      string `json:"ticker"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	Chain       string `json:"chain,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
}

// PriceData is the price snapshot persisted with a record.
type PriceData struct {
	CurrentPrice    float64 `json:"current_price"`
	ATH             float64 `json:"ath"`
	ATL             float64 `json:"atl"`
	ATHPercentage   float64 `json:"ath_percentage"`
	DaysSinceATH    int     `json:"days_since_ath"`
	Volume24h       float64 `json:"volume_24h"`
	VolumeChange24h float64 `json:"volume_change_24h"`
	MarketCapRank   int     `json:"market_cap_rank"`
	PriceBTC        float64 `json:"price_btc"`
	PriceETH        float64 `json:"price_eth"`
	AgeDays         int     `json:"age_days"`
}

// Tokenomics is the supply/valuation snapshot persisted with a record.
type Tokenomics struct {
	MarketCap             float64 `json:"market_cap"`
	FullyDilutedValuation float64 `json:"fully_diluted_valuation"`
	TotalSupply           float64 `json:"total_supply"`
	CirculatingSupply     float64 `json:"circulating_supply"`
	CirculationPercentage float64 `json:"circulation_percentage"`
}

// OnChain is the on-chain snapshot persisted with a record, filled from
// the combined view where sources had data.
type OnChain struct {
	LiquidityPoolUSD  float64  `json:"liquidity_pool_usd"`
	BuyTaxPercentage  float64  `json:"buy_tax_percentage"`
	SellTaxPercentage float64  `json:"sell_tax_percentage"`
	ContractVerified  *bool    `json:"contract_verified,omitempty"`
	HoldersCount      int64    `json:"holders_count"`
	TopHolders        []Holder `json:"top_holders,omitempty"`
}

// ResearchRecord is the persisted unit of one research run. Immutable
// after creation; a fresh run produces a fresh record with a new ID.
type ResearchRecord struct {
	ID           string         `json:"id"`
	Token        TokenIdentity  `json:"token"`
	PriceData    PriceData      `json:"price_data"`
	Tokenomics   Tokenomics     `json:"tokenomics"`
	OnChain      OnChain        `json:"onchain"`
	Combined     *CombinedView  `json:"combined,omitempty"`
	RedFlags     []Flag         `json:"red_flags"`
	Analysis     RiskAssessment `json:"analysis"`
	SocialScore  int            `json:"social_score"`
	PriceHistory []PricePoint   `json:"price_history,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// HistoryEntry is the lightweight listing row kept for the history view.
type HistoryEntry struct {
	ID        string    `json:"id" db:"id"`
	Ticker    string    `json:"ticker" db:"ticker"`
	Name      string    `json:"name" db:"name"`
	RiskScore int       `json:"risk_score" db:"risk_score"`
	RiskClass RiskClass `json:"risk_class" db:"risk_class"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
