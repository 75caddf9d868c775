package aggregate

import (
	"github.com/yourorg/token-research-api/internal/model"
	"github.com/yourorg/token-research-api/internal/validation"
)

// merge builds the combined view from the per-source results. Every
// field is taken wholesale from exactly one winning source, never
// averaged across sources; the price comparison is the only place
// multiple quotes meet, and it reports them side by side.
func merge(results map[string]model.SourceResult, basePrice float64, precedence []string, varianceWarning float64) model.CombinedView {
	view := model.CombinedView{}

	pairs := pairData(results)
	protocol := protocolData(results)

	// Liquidity: DEX pooled liquidity and protocol TVL side by side
	if pairs != nil {
		view.Liquidity.DexLiquidity = pairs.TotalLiquidity
		view.Liquidity.Sources = append(view.Liquidity.Sources, "dexscreener")
	}
	if protocol != nil {
		view.Liquidity.DefiTVL = protocol.TVL
		view.Liquidity.TotalValueLocked = protocol.TVL
		view.Liquidity.Sources = append(view.Liquidity.Sources, "defillama")
	}

	// Holders: first precedence source with data wins wholesale
	for _, name := range precedence {
		r, ok := results[name]
		if !ok || !r.OK() {
			continue
		}
		holders := validation.SanitizeHolders(r.Data.Holders)
		if len(holders) == 0 {
			continue
		}
		view.Holders.TopHolders = holders
		view.Holders.Source = name
		view.Holders.Count = r.Data.HolderCount
		if view.Holders.Count == 0 {
			view.Holders.Count = int64(len(holders))
		}
		break
	}

	// Taxes only ever come from DEX listings
	if pairs != nil && (pairs.BuyTax != 0 || pairs.SellTax != 0) {
		view.Taxes = model.TaxSummary{
			BuyTax:  pairs.BuyTax,
			SellTax: pairs.SellTax,
			Source:  "dexscreener",
		}
	}

	if protocol != nil {
		view.DeFi = &model.DeFiSummary{
			Category:   protocol.Category,
			Chains:     protocol.Chains,
			Audits:     protocol.Audits,
			AuditLinks: protocol.AuditLinks,
			Governance: protocol.Governance,
		}
	}

	if r, ok := results["messari"]; ok && r.OK() && r.Data.Metrics != nil {
		view.Research = r.Data.Metrics
	}

	view.PriceComparison = comparePrices(results, basePrice, varianceWarning)
	return view
}

// comparePrices gathers independent USD quotes and computes their
// spread. Nil when fewer than two quotes exist; a single price has no
// variance to speak of.
func comparePrices(results map[string]model.SourceResult, basePrice float64, varianceWarning float64) *model.PriceComparison {
	var quotes []model.PriceQuote
	if basePrice > 0 {
		quotes = append(quotes, model.PriceQuote{Source: "coingecko", Price: basePrice})
	}
	for _, name := range []string{"coinmarketcap", "messari"} {
		if r, ok := results[name]; ok && r.OK() && r.Data.Quote != nil && r.Data.Quote.PriceUSD > 0 {
			quotes = append(quotes, model.PriceQuote{Source: name, Price: r.Data.Quote.PriceUSD})
		}
	}
	if pairs := pairData(results); pairs != nil && pairs.PriceUSD > 0 {
		quotes = append(quotes, model.PriceQuote{Source: "dexscreener", Price: pairs.PriceUSD})
	}

	quotes = validation.FilterQuotes(quotes)
	if len(quotes) < 2 {
		return nil
	}

	min, max, sum := quotes[0].Price, quotes[0].Price, 0.0
	for _, q := range quotes {
		if q.Price < min {
			min = q.Price
		}
		if q.Price > max {
			max = q.Price
		}
		sum += q.Price
	}
	average := sum / float64(len(quotes))
	variance := (max - min) / average * 100

	return &model.PriceComparison{
		Sources:         quotes,
		Average:         average,
		Variance:        variance,
		VarianceWarning: variance > varianceWarning,
	}
}

func pairData(results map[string]model.SourceResult) *model.PairSummary {
	if r, ok := results["dexscreener"]; ok && r.OK() {
		return r.Data.Pairs
	}
	return nil
}

func protocolData(results map[string]model.SourceResult) *model.ProtocolInfo {
	if r, ok := results["defillama"]; ok && r.OK() {
		return r.Data.Protocol
	}
	return nil
}
