package scraper

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"stock-watch/internal/detect"
	"stock-watch/internal/model"
	"stock-watch/internal/notify"

	"github.com/google/uuid"
)

const minCycleDelay = time.Second

// StateStore is the storage the monitor needs.
// Both the JSON store and the SQLite store satisfy it.
type StateStore interface {
	Load(ctx context.Context, key string) model.MonitorState
	Save(ctx context.Context, key string, state model.MonitorState) error
	RecordNotification(ctx context.Context, rec *model.NotificationRecord) error
}

// EventNotifier delivers a fired event over every configured channel
type EventNotifier interface {
	Deliver(ctx context.Context, ev model.NotificationEvent) []model.Delivery
}

// MonitorOptions configures a single product loop
type MonitorOptions struct {
	Product     model.Product
	Interval    time.Duration
	Jitter      time.Duration
	Policy      detect.Policy
	FirstNotify bool // send InitialObservation on the first known reading when no state exists
}

// Monitor polls one product and notifies on stock changes
type Monitor struct {
	opts     MonitorOptions
	observer Observer
	store    StateStore
	notifier EventNotifier
	logger   *slog.Logger
	now      func() time.Time

	// cycleMu serializes cycles from the loop and from manual triggers
	cycleMu       sync.Mutex
	firstBootDone bool

	statusMu sync.RWMutex
	status   *model.CycleStatus
}

// NewMonitor creates a monitor for opts.Product
func NewMonitor(opts MonitorOptions, observer Observer, store StateStore, notifier EventNotifier, logger *slog.Logger) *Monitor {
	if opts.Product.Key == "" {
		opts.Product.Key = opts.Product.URL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		opts:     opts,
		observer: observer,
		store:    store,
		notifier: notifier,
		logger:   logger.With("product", opts.Product.Key),
		now:      time.Now,
	}
}

// Product returns the monitored product
func (m *Monitor) Product() model.Product {
	return m.opts.Product
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "monitor started", "url", m.opts.Product.URL, "interval", m.opts.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(ctx, "monitor stopped")
			return ctx.Err()
		case <-timer.C:
		}

		m.RunCycle(ctx)
		timer.Reset(m.nextDelay())
	}
}

// nextDelay is the interval shifted by a uniform jitter
func (m *Monitor) nextDelay() time.Duration {
	d := m.opts.Interval
	if j := m.opts.Jitter; j > 0 {
		d += time.Duration(rand.Int63n(int64(2*j)+1)) - j
	}
	if d < minCycleDelay {
		d = minCycleDelay
	}
	return d
}

// RunCycle performs one load, observe, decide, notify, save pass
func (m *Monitor) RunCycle(ctx context.Context) model.CycleStatus {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	product := m.opts.Product
	start := m.now()
	status := model.CycleStatus{
		ProductKey:  product.Key,
		ProductURL:  product.URL,
		LastCycleAt: start,
	}
	defer func() {
		status.Duration = m.now().Sub(start).Milliseconds()
		m.setStatus(status)
	}()

	st := m.store.Load(ctx, product.Key)
	obs := m.observer.Observe(ctx, product.URL)
	status.Observation = obs

	if !obs.Known() {
		status.Error = ErrNoSignal.Error()
		m.logger.WarnContext(ctx, "no stock signal this cycle")
		return status
	}

	now := m.now()
	var d detect.Decision
	if m.opts.FirstNotify && !m.firstBootDone && st.IsEmpty() {
		d = detect.Initial(obs)
	} else {
		d = detect.Decide(obs, st, m.opts.Policy, now)
	}
	m.firstBootDone = true

	status.Kind = d.Kind
	status.Suppressed = d.Suppressed

	m.logger.InfoContext(ctx, "observed",
		"quantity", model.FormatQuantity(obs.Quantity),
		"in_stock", model.FormatBool(obs.InStock),
		"source", obs.Source,
		"kind", d.Kind,
		"notify", d.Notify,
		"suppressed", d.Suppressed,
	)

	if d.Notify {
		status.Fired = true
		status.Deliveries = m.deliver(ctx, detect.Event(product, st, obs, d, now))
	}

	if ctx.Err() != nil {
		m.logger.InfoContext(ctx, "cycle cancelled, state not saved")
		status.Error = ctx.Err().Error()
		return status
	}

	// a failed save is logged; the next cycle reloads the previous state
	next := detect.Apply(st, obs, d, now)
	if err := m.store.Save(ctx, product.Key, next); err != nil {
		m.logger.ErrorContext(ctx, "failed to save state", "err", err)
		status.Error = err.Error()
	}
	return status
}

// deliver sends ev and records it in the notification history
func (m *Monitor) deliver(ctx context.Context, ev model.NotificationEvent) []model.Delivery {
	var deliveries []model.Delivery
	if m.notifier != nil {
		deliveries = m.notifier.Deliver(ctx, ev)
	}
	for _, dl := range deliveries {
		if dl.Status == model.DeliveryFailed {
			m.logger.WarnContext(ctx, "notification delivery failed", "channel", dl.Channel, "err", dl.Error)
		}
	}

	subject, _ := notify.Render(ev)
	rec := &model.NotificationRecord{
		ID:               uuid.NewString(),
		ProductKey:       ev.Product.Key,
		ProductURL:       ev.Product.URL,
		Kind:             ev.Kind,
		PreviousQuantity: ev.PreviousQuantity,
		NewQuantity:      ev.NewQuantity,
		InStock:          ev.InStock,
		Subject:          subject,
		Deliveries:       deliveries,
		CreatedAt:        ev.ObservedAt,
	}
	if err := m.store.RecordNotification(ctx, rec); err != nil {
		m.logger.ErrorContext(ctx, "failed to record notification", "err", err)
	}
	return deliveries
}

func (m *Monitor) setStatus(s model.CycleStatus) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.status = &s
}

// Status returns the last completed cycle, or nil before the first one
func (m *Monitor) Status() *model.CycleStatus {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	if m.status == nil {
		return nil
	}
	s := *m.status
	return &s
}
