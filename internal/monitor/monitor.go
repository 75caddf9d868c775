// Package monitor polls researched tokens in the background and raises
// spike alerts when price or volume moves past the stored baselines.
package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/notify"
	"github.com/yourorg/token-research-api/internal/store"
)

// PriceSource supplies the current price and 24h volume for a coin.
type PriceSource interface {
	SimplePrice(ctx context.Context, id string) (price, volume float64, err error)
}

// Registry lists and updates the persisted watches.
type Registry interface {
	ActiveMonitors(ctx context.Context) ([]store.Monitor, error)
	TouchMonitor(ctx context.Context, id int64, newPrice, newVolume *float64) error
}

// Alerter receives raised alerts.
type Alerter interface {
	Add(alert notify.Alert)
}

// Monitor runs the background spike checks.
type Monitor struct {
	registry Registry
	prices   PriceSource
	alerts   Alerter
	interval time.Duration
	log      *logrus.Entry
}

// New creates a Monitor.
func New(registry Registry, prices PriceSource, alerts Alerter, interval time.Duration) *Monitor {
	return &Monitor{
		registry: registry,
		prices:   prices,
		alerts:   alerts,
		interval: interval,
		log:      logrus.WithField("component", "monitor"),
	}
}

// Run polls until the context is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.WithField("interval", m.interval).Info("spike monitor started")
	for {
		select {
		case <-ticker.C:
			m.CheckAll(ctx)
		case <-ctx.Done():
			m.log.Info("spike monitor stopped")
			return
		}
	}
}

// CheckAll runs one pass over every active watch. A failing watch is
// skipped; the rest of the pass continues.
func (m *Monitor) CheckAll(ctx context.Context) {
	monitors, err := m.registry.ActiveMonitors(ctx)
	if err != nil {
		m.log.WithError(err).Error("failed to list active monitors")
		return
	}

	for _, watch := range monitors {
		if err := m.check(ctx, watch); err != nil {
			m.log.WithError(err).WithField("ticker", watch.Ticker).Warn("spike check failed")
		}
	}
}

func (m *Monitor) check(ctx context.Context, watch store.Monitor) error {
	price, volume, err := m.prices.SimplePrice(ctx, watch.CoinID)
	if err != nil {
		return fmt.Errorf("fetching price for %s: %w", watch.CoinID, err)
	}

	var newPrice, newVolume *float64

	if watch.BaselinePrice > 0 {
		change := (price - watch.BaselinePrice) / watch.BaselinePrice * 100
		if math.Abs(change) >= watch.PriceThresholdPct {
			m.alerts.Add(notify.Alert{
				Token:         watch.Ticker,
				Type:          notify.AlertPriceSpike,
				ResearchID:    watch.ResearchID,
				ChangePercent: formatChange(change),
				CurrentPrice:  fmt.Sprintf("$%.6f", price),
			})
			// Move the baseline so the same spike does not re-alert
			newPrice = &price
			m.log.WithFields(logrus.Fields{
				"ticker": watch.Ticker,
				"change": change,
			}).Info("price spike detected")
		}
	}

	if watch.BaselineVolume > 0 {
		change := (volume - watch.BaselineVolume) / watch.BaselineVolume * 100
		if change >= watch.VolumeThresholdPct {
			m.alerts.Add(notify.Alert{
				Token:         watch.Ticker,
				Type:          notify.AlertVolumeSpike,
				ResearchID:    watch.ResearchID,
				ChangePercent: formatChange(change),
			})
			newVolume = &volume
			m.log.WithFields(logrus.Fields{
				"ticker": watch.Ticker,
				"change": change,
			}).Info("volume spike detected")
		}
	}

	return m.registry.TouchMonitor(ctx, watch.ID, newPrice, newVolume)
}

func formatChange(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.1f%%", pct)
	}
	return fmt.Sprintf("%.1f%%", pct)
}
