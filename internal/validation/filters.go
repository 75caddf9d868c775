// Package validation sanitizes provider data before it enters the
// combined view: malformed quotes and holder rows are dropped, and
// statistical outliers are removed from cross-source price sets.
package validation

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/model"
)

// Options holds configuration for the sanitation pass
type Options struct {
	// MaxPriceUSD rejects quotes above an implausible ceiling
	MaxPriceUSD float64

	// EnableOutlierDetection enables statistical outlier removal on
	// cross-source quote sets
	EnableOutlierDetection bool

	// OutlierIQRMultiplier defines sensitivity for outlier detection (1.5 is standard)
	OutlierIQRMultiplier float64

	// MaxHolderPct rejects holder rows claiming more than this share
	MaxHolderPct float64
}

// DefaultOptions returns sensible defaults for sanitation
func DefaultOptions() Options {
	return Options{
		MaxPriceUSD:            10_000_000,
		EnableOutlierDetection: true,
		OutlierIQRMultiplier:   1.5,
		MaxHolderPct:           100,
	}
}

// FilterQuotes removes malformed price quotes using default options.
// This is the main entrypoint for quote sanitation.
func FilterQuotes(quotes []model.PriceQuote) []model.PriceQuote {
	return FilterQuotesWithOptions(quotes, DefaultOptions())
}

// FilterQuotesWithOptions removes malformed quotes, then applies
// statistical outlier removal when enough quotes survive.
func FilterQuotesWithOptions(quotes []model.PriceQuote, opts Options) []model.PriceQuote {
	valid := make([]model.PriceQuote, 0, len(quotes))
	for _, q := range quotes {
		if isValidQuote(q, opts) {
			valid = append(valid, q)
		} else {
			logrus.WithFields(logrus.Fields{
				"source": q.Source,
				"price":  q.Price,
			}).Debug("Filtered invalid quote")
		}
	}

	if opts.EnableOutlierDetection && len(valid) > 3 {
		return filterOutliers(valid, opts.OutlierIQRMultiplier)
	}
	return valid
}

// isValidQuote checks if a single quote meets all sanitation criteria
func isValidQuote(q model.PriceQuote, opts Options) bool {
	if q.Source == "" {
		return false
	}
	if q.Price <= 0 {
		return false
	}
	if math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
		return false
	}
	if q.Price > opts.MaxPriceUSD {
		return false
	}
	return true
}

// SanitizeHolders drops malformed holder rows: empty addresses, negative
// balances, and supply shares outside [0,100].
func SanitizeHolders(holders []model.Holder) []model.Holder {
	return SanitizeHoldersWithOptions(holders, DefaultOptions())
}

// SanitizeHoldersWithOptions drops malformed holder rows with custom options.
func SanitizeHoldersWithOptions(holders []model.Holder, opts Options) []model.Holder {
	valid := make([]model.Holder, 0, len(holders))
	for _, h := range holders {
		if h.Address == "" || h.Balance < 0 {
			continue
		}
		if h.Percentage != nil && (*h.Percentage < 0 || *h.Percentage > opts.MaxHolderPct) {
			logrus.WithFields(logrus.Fields{
				"address":    h.Address,
				"percentage": *h.Percentage,
			}).Debug("Filtered holder with impossible supply share")
			continue
		}
		valid = append(valid, h)
	}
	return valid
}

// filterOutliers removes statistical outliers using the IQR method
func filterOutliers(quotes []model.PriceQuote, iqrMultiplier float64) []model.PriceQuote {
	prices := make([]float64, len(quotes))
	for i, q := range quotes {
		prices[i] = q.Price
	}

	sort.Float64s(prices)
	q1 := prices[len(prices)/4]
	q3 := prices[len(prices)*3/4]
	iqr := q3 - q1

	lowerBound := q1 - iqrMultiplier*iqr
	upperBound := q3 + iqrMultiplier*iqr

	// A degenerate spread collapses the bounds; fall back to a band
	// around the mean so agreeing sources are not filtered away
	if upperBound-lowerBound < 1e-9 {
		mean := calculateMean(prices)
		lowerBound = mean * 0.5
		upperBound = mean * 2.0
	}

	valid := make([]model.PriceQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.Price >= lowerBound && q.Price <= upperBound {
			valid = append(valid, q)
		} else {
			logrus.WithFields(logrus.Fields{
				"source": q.Source,
				"price":  q.Price,
				"bounds": []float64{lowerBound, upperBound},
			}).Info("Filtered outlier quote")
		}
	}
	return valid
}

// calculateMean computes the arithmetic mean of a slice of float64
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
