package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultRepeatAfter = time.Hour

type sentMark struct {
	count int
	at    time.Time
}

// Checker collects a snapshot on a timer and forwards new alerts. An alert
// already sent with the same count is held back until repeatAfter passes.
type Checker struct {
	collector   *Collector
	alerter     *Alerter
	interval    time.Duration
	repeatAfter time.Duration

	sent map[AlertType]sentMark
	now  func() time.Time
}

// NewChecker creates a background checker. A non-positive interval defaults
// to five minutes.
func NewChecker(collector *Collector, alerter *Alerter, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{
		collector:   collector,
		alerter:     alerter,
		interval:    interval,
		repeatAfter: defaultRepeatAfter,
		sent:        make(map[AlertType]sentMark),
		now:         time.Now,
	}
}

// Run checks every interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: checker started", zap.Duration("interval", c.interval))

	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("monitoring: checker stopped")
			return
		case <-t.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: collect snapshot", zap.Error(err))
		return
	}

	fresh := c.filter(c.alerter.Evaluate(snap))
	if len(fresh) == 0 {
		return
	}
	// Log-only alerters count as delivered; a failed webhook retries next tick.
	if delivered := c.alerter.SendAlerts(ctx, fresh); delivered > 0 || c.alerter.webhookURL == "" {
		c.mark(fresh)
	}
	log.Info("monitoring: alerts raised", zap.Int("alerts", len(fresh)))
}

// filter drops repeats and forgets conditions that have cleared.
func (c *Checker) filter(alerts []Alert) []Alert {
	now := c.now()
	active := make(map[AlertType]bool, len(alerts))
	var fresh []Alert
	for _, a := range alerts {
		active[a.Type] = true
		prev, ok := c.sent[a.Type]
		if ok && prev.count == a.Count && now.Sub(prev.at) < c.repeatAfter {
			continue
		}
		fresh = append(fresh, a)
	}
	for typ := range c.sent {
		if !active[typ] {
			delete(c.sent, typ)
		}
	}
	return fresh
}

func (c *Checker) mark(alerts []Alert) {
	now := c.now()
	for _, a := range alerts {
		c.sent[a.Type] = sentMark{count: a.Count, at: now}
	}
}
