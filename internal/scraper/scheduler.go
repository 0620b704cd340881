package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stock-watch/internal/model"
)

// Scheduler runs one polling loop per monitored product
type Scheduler struct {
	monitors []*Monitor
	logger   *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	startedAt time.Time
}

// NewScheduler creates a scheduler for the given monitors
func NewScheduler(logger *slog.Logger, monitors ...*Monitor) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{monitors: monitors, logger: logger}
}

// Start launches every monitor loop. The loops stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.logger.Warn("scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.isRunning = true
	s.startedAt = time.Now()
	s.logger.Info("scheduler started", "products", len(s.monitors))

	for _, m := range s.monitors {
		s.wg.Add(1)
		go func(m *Monitor) {
			defer s.wg.Done()
			if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("monitor exited", "product", m.Product().Key, "err", err)
			}
		}(m)
	}
}

// Stop cancels every loop and waits for in-flight cycles to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.isRunning = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// IsRunning returns whether the loops are running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Monitors returns the scheduled monitors
func (s *Scheduler) Monitors() []*Monitor {
	return s.monitors
}

// Monitor finds a monitor by product key
func (s *Scheduler) Monitor(key string) (*Monitor, bool) {
	for _, m := range s.monitors {
		if m.Product().Key == key {
			return m, true
		}
	}
	return nil, false
}

// ScrapeNow runs one cycle of every monitor concurrently and waits for all of them.
// A cycle already in progress for a product finishes first.
func (s *Scheduler) ScrapeNow(ctx context.Context) []model.CycleStatus {
	out := make([]model.CycleStatus, len(s.monitors))
	var wg sync.WaitGroup
	for i, m := range s.monitors {
		wg.Add(1)
		go func(i int, m *Monitor) {
			defer wg.Done()
			out[i] = m.RunCycle(ctx)
		}(i, m)
	}
	wg.Wait()
	return out
}

// ScrapeStatus represents the scheduler status
type ScrapeStatus struct {
	IsRunning bool                 `json:"is_running"`
	StartedAt *time.Time           `json:"started_at,omitempty"`
	Products  []ProductCycleStatus `json:"products"`
}

// ProductCycleStatus pairs a product with its last cycle
type ProductCycleStatus struct {
	Product  model.Product      `json:"product"`
	Interval string             `json:"interval"`
	Last     *model.CycleStatus `json:"last_cycle,omitempty"`
}

// GetScrapeStatus returns the current status of every loop
func (s *Scheduler) GetScrapeStatus() *ScrapeStatus {
	s.mu.Lock()
	status := &ScrapeStatus{IsRunning: s.isRunning}
	if s.isRunning {
		t := s.startedAt
		status.StartedAt = &t
	}
	s.mu.Unlock()

	status.Products = make([]ProductCycleStatus, 0, len(s.monitors))
	for _, m := range s.monitors {
		status.Products = append(status.Products, ProductCycleStatus{
			Product:  m.Product(),
			Interval: m.opts.Interval.String(),
			Last:     m.Status(),
		})
	}
	return status
}
