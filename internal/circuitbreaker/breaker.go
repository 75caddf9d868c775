// Package circuitbreaker guards research runs against inconsistent
// cross-source data: runaway price spread or implausible TVL jumps
// between consecutive runs trip the circuit. Runs with too few
// answering sources pass degraded instead of tripping.
package circuitbreaker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/model"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, no new operations allowed
	StateHalfOpen              // Testing if data quality has recovered
)

// String returns the state name for status reporting.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Thresholds defines the limits that will trigger the circuit breaker
type Thresholds struct {
	// Minimum number of answering sources below which a run is treated
	// as degraded: it passes but is not stored as a last-good baseline
	MinSources int `json:"min_sources"`

	// Maximum cross-source price spread, in percent
	MaxPriceVariance float64 `json:"max_price_variance"`

	// Maximum allowed change in protocol TVL between consecutive runs
	// for the same token (e.g. 0.5 for 50%)
	MaxTVLChange float64 `json:"max_tvl_change"`
}

// snapshot is the per-token memory of the last accepted run.
type snapshot struct {
	combined  model.CombinedView
	tvl       float64
	checkedAt time.Time
}

// CircuitBreaker evaluates aggregation results before they are turned
// into research records. Safe for concurrent use.
type CircuitBreaker struct {
	thresholds Thresholds

	state    State
	lastTrip time.Time

	// Duration before auto-reset attempt
	resetDelay time.Duration

	// Count of consecutive successful checks in HalfOpen state
	successCount int

	// Number of successful checks required to close the circuit
	successThreshold int

	// Last accepted run per token, used for TVL comparison and fallback
	lastGood map[string]snapshot

	// Event callback for monitoring/alerting
	onTrip func(reason, symbol string)

	mu sync.RWMutex
}

// New creates a CircuitBreaker with the provided thresholds.
func New(t Thresholds) *CircuitBreaker {
	return &CircuitBreaker{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       5 * time.Minute,
		successThreshold: 3,
		lastGood:         make(map[string]snapshot),
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of clean checks needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback invoked whenever the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason, symbol string)) *CircuitBreaker {
	cb.onTrip = callback
	return cb
}

// Check evaluates one aggregation result. If the circuit is open it
// blocks the run; if the result shows cross-source inconsistency (price
// spread, TVL swing) it trips the circuit and returns an error
// describing the violation. Sparse source coverage never trips: the run
// passes degraded, carried by the primary snapshot.
func (cb *CircuitBreaker) Check(symbol string, result model.AggregateResult) error {
	cb.mu.RLock()
	state := cb.state
	lastTrip := cb.lastTrip
	cb.mu.RUnlock()

	if state == StateOpen {
		if time.Since(lastTrip) > cb.resetDelay {
			cb.transitionToHalfOpen()
		} else {
			return errors.New("circuit breaker open: data quality protection engaged")
		}
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Sparse coverage is a property of the token, not of data quality.
	// Tripping the shared circuit here would let one obscure token block
	// every other token, so the run degrades instead: it proceeds on the
	// primary snapshot alone and does not become a last-good baseline.
	successful := len(result.SuccessfulSources())
	if successful < cb.thresholds.MinSources {
		logrus.WithFields(logrus.Fields{
			"token":   symbol,
			"sources": successful,
			"minimum": cb.thresholds.MinSources,
		}).Warn("insufficient source coverage, run degraded")
		return nil
	}

	if pc := result.Combined.PriceComparison; pc != nil && cb.thresholds.MaxPriceVariance > 0 {
		if pc.Variance > cb.thresholds.MaxPriceVariance {
			reason := fmt.Sprintf("price variance too high: %.2f%% (threshold: %.2f%%)",
				pc.Variance, cb.thresholds.MaxPriceVariance)
			cb.trip(reason, symbol)
			return errors.New(reason)
		}
	}

	tvl := result.Combined.Liquidity.DefiTVL
	if prev, ok := cb.lastGood[symbol]; ok && prev.tvl > 1.0 && tvl > 0 && cb.thresholds.MaxTVLChange > 0 {
		changeRatio := math.Abs(tvl-prev.tvl) / prev.tvl
		if changeRatio > cb.thresholds.MaxTVLChange {
			reason := fmt.Sprintf("TVL change too drastic: %.2f%% (threshold: %.2f%%)",
				changeRatio*100, cb.thresholds.MaxTVLChange*100)
			cb.trip(reason, symbol)
			return errors.New(reason)
		}
	}

	logrus.WithField("token", symbol).Debug("Circuit breaker checks passed")
	cb.lastGood[symbol] = snapshot{
		combined:  result.Combined,
		tvl:       tvl,
		checkedAt: time.Now(),
	}

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: data quality has recovered")
		}
	}
	return nil
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// LastGoodView returns the combined view of the last accepted run for a
// token, for serving stale-but-sane data while the circuit is open.
func (cb *CircuitBreaker) LastGoodView(symbol string) (model.CombinedView, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	s, ok := cb.lastGood[symbol]
	return s.combined, ok
}

// transitionToHalfOpen changes the circuit state to half-open for testing recovery
func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: testing data quality recovery")
	}
}

// trip sets the circuit breaker to open state with the current time
func (cb *CircuitBreaker) trip(reason, symbol string) {
	cb.state = StateOpen
	cb.lastTrip = time.Now()
	logrus.Warnf("Circuit breaker tripped for %s: %s", symbol, reason)

	if cb.onTrip != nil {
		go cb.onTrip(reason, symbol)
	}
}
