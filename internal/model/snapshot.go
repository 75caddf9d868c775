package model

import "time"

// TokenSnapshot is the primary market-data view of a token, produced by
// the CoinGecko adapter before aggregation fans out to the secondary
// sources. Missing numeric fields stay zero and are treated as unknown
// by the analyzer.
type TokenSnapshot struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`

	// ContractAddress and Chain are set when the token is a contract
	// deployment rather than a native coin
	ContractAddress string `json:"contract_address,omitempty"`
	Chain           string `json:"chain,omitempty"`

	// GenesisDate is the project launch date; nil when unknown
	GenesisDate *time.Time `json:"genesis_date,omitempty"`

	Market MarketData `json:"market"`

	// Community and developer signals on a 0-100 scale; zero means the
	// provider did not report the score
	CommunityScore      float64 `json:"community_score,omitempty"`
	DeveloperScore      float64 `json:"developer_score,omitempty"`
	PublicInterestScore float64 `json:"public_interest_score,omitempty"`
}

// MarketData is the price/supply block of a token snapshot.
type MarketData struct {
	PriceUSD          float64    `json:"price_usd"`
	PriceBTC          float64    `json:"price_btc,omitempty"`
	PriceETH          float64    `json:"price_eth,omitempty"`
	ATH               float64    `json:"ath"`
	ATL               float64    `json:"atl"`
	ATHDate           *time.Time `json:"ath_date,omitempty"`
	MarketCap         float64    `json:"market_cap"`
	FDV               float64    `json:"fully_diluted_valuation,omitempty"`
	Volume24h         float64    `json:"volume_24h"`
	VolumeChange24h   float64    `json:"volume_change_24h,omitempty"`
	Change24h         float64    `json:"price_change_24h"`
	Change7d          float64    `json:"price_change_7d"`
	Change30d         float64    `json:"price_change_30d,omitempty"`
	Rank              int        `json:"market_cap_rank,omitempty"`
	CirculatingSupply float64    `json:"circulating_supply"`
	TotalSupply       float64    `json:"total_supply"`
	MaxSupply         float64    `json:"max_supply,omitempty"`
}

// AgeDays returns the project age in whole days relative to now, or -1
// when the genesis date is unknown.
func (s TokenSnapshot) AgeDays(now time.Time) int {
	if s.GenesisDate == nil {
		return -1
	}
	d := int(now.Sub(*s.GenesisDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// HasIdentity reports whether the snapshot carries the identity fields a
// research record requires.
func (s TokenSnapshot) HasIdentity() bool {
	return s.Symbol != "" && s.Name != ""
}
