package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stock-watch/internal/detect"
	"stock-watch/internal/model"
	"stock-watch/internal/store"

	"github.com/stretchr/testify/require"
)

type seqObserver struct {
	mu   sync.Mutex
	seq  []model.Observation
	hook func()
}

func (o *seqObserver) Observe(ctx context.Context, _ string) model.Observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.hook != nil {
		o.hook()
	}
	if len(o.seq) == 0 {
		return model.Observation{}
	}
	next := o.seq[0]
	if len(o.seq) > 1 {
		o.seq = o.seq[1:]
	}
	return next
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.NotificationEvent
	status string
}

func (n *recordingNotifier) Deliver(_ context.Context, ev model.NotificationEvent) []model.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	status := n.status
	if status == "" {
		status = model.DeliverySent
	}
	return []model.Delivery{{Channel: "fake", Status: status}}
}

func (n *recordingNotifier) kinds() []model.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.NotificationKind
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

type failingSaveStore struct {
	*store.FileStore
}

func (failingSaveStore) Save(context.Context, string, model.MonitorState) error {
	return errors.New("disk full")
}

var testProduct = model.Product{Key: "bar", Name: "Gold Bar", URL: "https://shop.test/products/bar"}

func known(q int, s bool) model.Observation {
	return model.Observation{Quantity: model.IntPtr(q), InStock: model.BoolPtr(s)}
}

func newTestMonitor(t *testing.T, st StateStore, obs *seqObserver, n *recordingNotifier, firstNotify bool) *Monitor {
	t.Helper()
	m := NewMonitor(MonitorOptions{
		Product:     testProduct,
		Interval:    time.Minute,
		Policy:      detect.Policy{DedupWindow: 30 * time.Minute, Quantity: detect.QuantityAny},
		FirstNotify: firstNotify,
	}, obs, st, n, nil)
	return m
}

func newFileStore(t *testing.T) *store.FileStore {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestMonitorFirstRunObservesQuantity(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t)
	n := &recordingNotifier{}
	m := newTestMonitor(t, fs, &seqObserver{seq: []model.Observation{known(12, true)}}, n, false)

	status := m.RunCycle(ctx)
	require.True(t, status.Fired)
	require.Equal(t, model.KindQuantityObserved, status.Kind)
	require.Equal(t, []model.NotificationKind{model.KindQuantityObserved}, n.kinds())

	st := fs.Load(ctx, "bar")
	require.Equal(t, 12, *st.LastNotifiedQuantity)
	require.True(t, *st.LastNotifiedInStock)

	// same reading again is not a change
	status = m.RunCycle(ctx)
	require.False(t, status.Fired)
	require.Len(t, n.kinds(), 1)

	history, err := fs.ListNotifications(ctx, "bar", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "[stock-watch] Quantity Observed: Gold Bar", history[0].Subject)
}

func TestMonitorFirstBootNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t)
	n := &recordingNotifier{}
	obs := &seqObserver{seq: []model.Observation{{}, known(12, true), known(12, true), known(10, true)}}
	m := newTestMonitor(t, fs, obs, n, true)

	// unknown readings do not consume the first boot notification
	m.RunCycle(ctx)
	m.RunCycle(ctx)
	m.RunCycle(ctx)
	m.RunCycle(ctx)

	require.Equal(t, []model.NotificationKind{model.KindInitialObservation, model.KindQuantityUpdated}, n.kinds())
}

func TestMonitorUnknownObservationKeepsState(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t)
	seed := model.MonitorState{LastSeenQuantity: model.IntPtr(3), LastNotifiedQuantity: model.IntPtr(3)}
	require.NoError(t, fs.Save(ctx, "bar", seed))

	n := &recordingNotifier{}
	m := newTestMonitor(t, fs, &seqObserver{}, n, true)
	status := m.RunCycle(ctx)

	require.False(t, status.Fired)
	require.Equal(t, ErrNoSignal.Error(), status.Error)
	require.Empty(t, n.kinds())
	require.Equal(t, 3, *fs.Load(ctx, "bar").LastSeenQuantity)
}

func TestMonitorFailedDeliveryCountsAsNotified(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t)
	n := &recordingNotifier{status: model.DeliveryFailed}
	m := newTestMonitor(t, fs, &seqObserver{seq: []model.Observation{known(0, false)}}, n, false)

	m.RunCycle(ctx)
	m.RunCycle(ctx)
	require.Equal(t, []model.NotificationKind{model.KindOutOfStock}, n.kinds())
	require.NotNil(t, fs.Load(ctx, "bar").LastNotificationKey)
}

func TestMonitorSteadyOutOfStockAlertsOnce(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t)
	n := &recordingNotifier{}
	obs := &seqObserver{seq: []model.Observation{known(5, true), known(0, false)}}
	m := newTestMonitor(t, fs, obs, n, false)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	for i := 0; i < 48; i++ {
		m.RunCycle(ctx)
		clock = clock.Add(5 * time.Minute)
	}

	require.Equal(t, []model.NotificationKind{model.KindQuantityObserved, model.KindOutOfStock}, n.kinds())
	require.Equal(t, 0, *fs.Load(ctx, "bar").LastSeenQuantity)
}

func TestMonitorDedupSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t)
	n := &recordingNotifier{}

	newTestMonitor(t, fs, &seqObserver{seq: []model.Observation{known(5, true)}}, n, false).RunCycle(ctx)
	newTestMonitor(t, fs, &seqObserver{seq: []model.Observation{known(5, true)}}, n, false).RunCycle(ctx)

	require.Len(t, n.kinds(), 1)
}

func TestMonitorSaveFailureIsReported(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	st := failingSaveStore{newFileStore(t)}
	m := newTestMonitor(t, st, &seqObserver{seq: []model.Observation{known(4, true)}}, n, false)

	status := m.RunCycle(ctx)
	require.True(t, status.Fired)
	require.Equal(t, "disk full", status.Error)

	// the stale stored copy causes a repeat on the next cycle
	m.RunCycle(ctx)
	require.Len(t, n.kinds(), 2)
}

func TestMonitorCancelledCycleDoesNotSave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fs := newFileStore(t)
	obs := &seqObserver{seq: []model.Observation{known(4, true)}, hook: cancel}
	m := newTestMonitor(t, fs, obs, &recordingNotifier{}, false)

	m.RunCycle(ctx)
	require.True(t, fs.Load(context.Background(), "bar").IsEmpty())
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fs := newFileStore(t)
	obs := &seqObserver{seq: []model.Observation{known(4, true)}}
	obs.hook = func() {
		// let the first cycle finish, then stop the loop while it waits
		go func() {
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()
	}
	m := newTestMonitor(t, fs, obs, &recordingNotifier{}, false)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
	require.NotNil(t, m.Status())
	require.Equal(t, 4, *fs.Load(context.Background(), "bar").LastSeenQuantity)
}

func TestNextDelayJitter(t *testing.T) {
	m := NewMonitor(MonitorOptions{Product: testProduct, Interval: 10 * time.Second, Jitter: 2 * time.Second}, nil, nil, nil, nil)
	for i := 0; i < 100; i++ {
		d := m.nextDelay()
		require.GreaterOrEqual(t, d, 8*time.Second)
		require.LessOrEqual(t, d, 12*time.Second)
	}

	m = NewMonitor(MonitorOptions{Product: testProduct, Interval: 0, Jitter: 0}, nil, nil, nil, nil)
	require.Equal(t, minCycleDelay, m.nextDelay())
}

func TestSchedulerScrapeNowAndStatus(t *testing.T) {
	fs := newFileStore(t)
	n := &recordingNotifier{}

	a := newTestMonitor(t, fs, &seqObserver{seq: []model.Observation{known(1, true)}}, n, false)
	other := testProduct
	other.Key, other.URL = "coin", "https://shop.test/products/coin"
	b := NewMonitor(MonitorOptions{Product: other, Interval: time.Minute}, &seqObserver{seq: []model.Observation{known(0, false)}}, fs, n, nil)

	s := NewScheduler(nil, a, b)
	statuses := s.ScrapeNow(context.Background())
	require.Len(t, statuses, 2)
	require.Equal(t, "bar", statuses[0].ProductKey)
	require.Equal(t, "coin", statuses[1].ProductKey)
	require.ElementsMatch(t, []model.NotificationKind{model.KindQuantityObserved, model.KindOutOfStock}, n.kinds())

	_, ok := s.Monitor("coin")
	require.True(t, ok)

	s.Start(context.Background())
	require.True(t, s.IsRunning())
	status := s.GetScrapeStatus()
	require.True(t, status.IsRunning)
	require.Len(t, status.Products, 2)

	s.Stop()
	require.False(t, s.IsRunning())
	require.False(t, s.GetScrapeStatus().IsRunning)
}
