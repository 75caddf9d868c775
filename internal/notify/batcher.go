package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Batcher queues alerts and relays them in batches, so a burst of spike
// alerts does not hammer the webhook's rate limit. Alerts flush when the
// batch fills or on the periodic interval, whichever comes first.
type Batcher struct {
	relay     *Discord
	batchSize int
	interval  time.Duration

	mu        sync.Mutex
	pending   []Alert
	lastFlush time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBatcher creates and starts a Batcher over the given relay.
func NewBatcher(relay *Discord, batchSize int, interval time.Duration) *Batcher {
	if batchSize <= 0 {
		batchSize = 10
	}
	if interval <= 0 {
		interval = time.Minute
	}

	b := &Batcher{
		relay:     relay,
		batchSize: batchSize,
		interval:  interval,
		pending:   make([]Alert, 0, batchSize),
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	go b.loop()
	return b
}

// Add queues one alert. A full batch flushes immediately.
func (b *Batcher) Add(alert Alert) {
	if !b.relay.Enabled() {
		return
	}

	b.mu.Lock()
	b.pending = append(b.pending, alert)
	full := len(b.pending) >= b.batchSize
	b.mu.Unlock()

	if full {
		go b.Flush()
	}
}

func (b *Batcher) loop() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Flush()
		case <-b.ctx.Done():
			return
		}
	}
}

// Flush relays every pending alert. Failures are logged and dropped;
// the relay is best effort by design.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]Alert, 0, b.batchSize)
	b.lastFlush = time.Now()
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sent := 0
	for _, alert := range batch {
		if err := b.relay.Send(ctx, alert); err != nil {
			logrus.WithError(err).WithField("token", alert.Token).Error("failed to relay alert")
			continue
		}
		sent++
	}
	logrus.WithFields(logrus.Fields{"sent": sent, "batch": len(batch)}).Debug("alert batch flushed")
}

// Stop halts the periodic loop and flushes any remaining alerts.
func (b *Batcher) Stop() {
	b.cancel()
	b.Flush()
}

// Status reports the batcher state for the status endpoint.
func (b *Batcher) Status() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	status := map[string]interface{}{
		"enabled":    b.relay.Enabled(),
		"batch_size": b.batchSize,
		"interval":   b.interval.String(),
		"pending":    len(b.pending),
	}
	if !b.lastFlush.IsZero() {
		status["last_flush"] = b.lastFlush.Format(time.RFC3339)
	}
	return status
}
