// Package aggregate fans a token query out to every source adapter and
// merges the results into one combined view. The fan-out settles all
// branches: a provider outage degrades the view, it never fails the run.
package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/model"
	"github.com/yourorg/token-research-api/internal/source"
)

var (
	sourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_research_source_fetches_total",
		Help: "Source adapter fetches by outcome",
	}, []string{"source", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "token_research_source_fetch_seconds",
		Help:    "Source adapter fetch latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
)

// defaultVarianceWarning is the cross-source price spread, in percent,
// above which the comparison carries a warning.
const defaultVarianceWarning = 5.0

// defaultHolderPrecedence orders holder sources by trust: explorer data
// first, DEX listings next, indexers last. The first source with at
// least one holder wins wholesale.
var defaultHolderPrecedence = []string{"ethplorer", "dexscreener", "etherscan", "moralis"}

// Aggregator runs the source fan-out.
type Aggregator struct {
	adapters        []source.Adapter
	timeout         time.Duration
	varianceWarning float64
	precedence      []string
	log             *logrus.Entry
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout bounds one whole fan-out run.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

// WithVarianceWarning overrides the price-spread warning threshold.
func WithVarianceWarning(pct float64) Option {
	return func(a *Aggregator) { a.varianceWarning = pct }
}

// WithHolderPrecedence overrides the holder source order.
func WithHolderPrecedence(sources []string) Option {
	return func(a *Aggregator) { a.precedence = sources }
}

// New creates an Aggregator over the given adapters.
func New(adapters []source.Adapter, opts ...Option) *Aggregator {
	a := &Aggregator{
		adapters:        adapters,
		varianceWarning: defaultVarianceWarning,
		precedence:      defaultHolderPrecedence,
		log:             logrus.WithField("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run queries every adapter concurrently and merges the results.
// basePrice is the primary market quote, included in the cross-source
// price comparison when positive; pass 0 when unknown. Run never
// returns an error: with zero adapters or all sources down the combined
// view is simply empty.
func (a *Aggregator) Run(ctx context.Context, q source.Query, basePrice float64) model.AggregateResult {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	results := make(map[string]model.SourceResult, len(a.adapters))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ad := range a.adapters {
		wg.Add(1)
		go func(ad source.Adapter) {
			defer wg.Done()
			start := time.Now()
			r := ad.Fetch(ctx, q)
			fetchDuration.WithLabelValues(ad.Name()).Observe(time.Since(start).Seconds())
			sourceFetches.WithLabelValues(ad.Name(), outcome(r)).Inc()

			mu.Lock()
			results[ad.Name()] = r
			mu.Unlock()
		}(ad)
	}
	wg.Wait()

	combined := merge(results, basePrice, a.precedence, a.varianceWarning)
	result := model.AggregateResult{Sources: results, Combined: combined}
	a.log.WithFields(logrus.Fields{
		"query":   q.Symbol,
		"sources": len(results),
		"found":   len(result.SuccessfulSources()),
	}).Info("aggregation complete")
	return result
}

func outcome(r model.SourceResult) string {
	switch {
	case r.OK():
		return "found"
	case r.Err != "":
		return "failed"
	default:
		return "not_found"
	}
}
