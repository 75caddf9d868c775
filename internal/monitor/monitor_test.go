package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/token-research-api/internal/notify"
	"github.com/yourorg/token-research-api/internal/store"
)

type fakeRegistry struct {
	monitors []store.Monitor
	touches  []touch
}

type touch struct {
	id        int64
	newPrice  *float64
	newVolume *float64
}

func (f *fakeRegistry) ActiveMonitors(ctx context.Context) ([]store.Monitor, error) {
	return f.monitors, nil
}

func (f *fakeRegistry) TouchMonitor(ctx context.Context, id int64, newPrice, newVolume *float64) error {
	f.touches = append(f.touches, touch{id: id, newPrice: newPrice, newVolume: newVolume})
	return nil
}

type fakePrices struct {
	price  float64
	volume float64
	err    error
}

func (f fakePrices) SimplePrice(ctx context.Context, id string) (float64, float64, error) {
	return f.price, f.volume, f.err
}

type fakeAlerter struct {
	alerts []notify.Alert
}

func (f *fakeAlerter) Add(alert notify.Alert) {
	f.alerts = append(f.alerts, alert)
}

func watch() store.Monitor {
	return store.Monitor{
		ID:                 1,
		ResearchID:         "research_1_UNI",
		Ticker:             "UNI",
		CoinID:             "uniswap",
		BaselinePrice:      6.0,
		BaselineVolume:     1e8,
		PriceThresholdPct:  50,
		VolumeThresholdPct: 500,
	}
}

func TestPriceSpikeRaisesAlertAndMovesBaseline(t *testing.T) {
	registry := &fakeRegistry{monitors: []store.Monitor{watch()}}
	alerts := &fakeAlerter{}
	m := New(registry, fakePrices{price: 9.72, volume: 1e8}, alerts, time.Minute)

	m.CheckAll(context.Background())

	require.Len(t, alerts.alerts, 1)
	a := alerts.alerts[0]
	assert.Equal(t, notify.AlertPriceSpike, a.Type)
	assert.Equal(t, "UNI", a.Token)
	assert.Equal(t, "+62.0%", a.ChangePercent)

	require.Len(t, registry.touches, 1)
	require.NotNil(t, registry.touches[0].newPrice)
	assert.InDelta(t, 9.72, *registry.touches[0].newPrice, 1e-9)
	assert.Nil(t, registry.touches[0].newVolume)
}

func TestPriceDropAlsoAlerts(t *testing.T) {
	registry := &fakeRegistry{monitors: []store.Monitor{watch()}}
	alerts := &fakeAlerter{}
	m := New(registry, fakePrices{price: 2.4, volume: 1e8}, alerts, time.Minute)

	m.CheckAll(context.Background())

	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, "-60.0%", alerts.alerts[0].ChangePercent)
}

func TestVolumeSpikeRaisesAlert(t *testing.T) {
	registry := &fakeRegistry{monitors: []store.Monitor{watch()}}
	alerts := &fakeAlerter{}
	m := New(registry, fakePrices{price: 6.0, volume: 7e8}, alerts, time.Minute)

	m.CheckAll(context.Background())

	require.Len(t, alerts.alerts, 1)
	a := alerts.alerts[0]
	assert.Equal(t, notify.AlertVolumeSpike, a.Type)
	assert.Equal(t, "+600.0%", a.ChangePercent)

	require.Len(t, registry.touches, 1)
	assert.Nil(t, registry.touches[0].newPrice)
	require.NotNil(t, registry.touches[0].newVolume)
}

func TestQuietMarketTouchesWithoutAlerting(t *testing.T) {
	registry := &fakeRegistry{monitors: []store.Monitor{watch()}}
	alerts := &fakeAlerter{}
	m := New(registry, fakePrices{price: 6.3, volume: 1.2e8}, alerts, time.Minute)

	m.CheckAll(context.Background())

	assert.Empty(t, alerts.alerts)
	require.Len(t, registry.touches, 1)
	assert.Nil(t, registry.touches[0].newPrice)
	assert.Nil(t, registry.touches[0].newVolume)
}

func TestPriceFetchFailureSkipsWatch(t *testing.T) {
	registry := &fakeRegistry{monitors: []store.Monitor{watch()}}
	alerts := &fakeAlerter{}
	m := New(registry, fakePrices{err: errors.New("upstream down")}, alerts, time.Minute)

	m.CheckAll(context.Background())

	assert.Empty(t, alerts.alerts)
	assert.Empty(t, registry.touches, "a failed fetch does not count as a check")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	registry := &fakeRegistry{}
	m := New(registry, fakePrices{}, &fakeAlerter{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on context cancel")
	}
}
