package scanstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/duration"
	"github.com/vulnscan/vulnscan/pkg/metrics"
	"github.com/vulnscan/vulnscan/pkg/runner"
)

// RunFunc executes the scan described by req. It must honour ctx and may
// return a partial report alongside ctx.Err().
type RunFunc func(ctx context.Context, req Request) (*runner.Report, error)

// ManagerConfig configures a Manager. Zero values take package defaults.
type ManagerConfig struct {
	Run RunFunc

	// MaxActive bounds concurrently running scans. Further scans wait in
	// the pending state for a free slot.
	MaxActive int

	// Timeout is the hard ceiling on one running scan.
	Timeout time.Duration

	// TTL is how long finished scans are kept.
	TTL             time.Duration
	CleanupInterval time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Manager runs submitted scans in the background and records their
// progress in a Store. Scan goroutines hand their outcome to a single
// collector goroutine over a channel; only it writes final results.
type Manager struct {
	store   *Store
	cfg     ManagerConfig
	logger  *slog.Logger
	slots   chan struct{}
	results chan outcome
	drained chan struct{}
	wg      sync.WaitGroup
	stop    chan struct{}
	stopped sync.Once

	mu      sync.Mutex
	closed  bool
	cancels map[string]context.CancelFunc
}

// NewManager returns a manager and starts its cleanup goroutine. Call
// Stop to release it.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = defaults.MaxActiveScans
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = duration.ScanTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = duration.ScanTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = duration.CleanupInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:   NewStore(),
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "scanstore")),
		slots:   make(chan struct{}, cfg.MaxActive),
		results: make(chan outcome),
		drained: make(chan struct{}),
		stop:    make(chan struct{}),
		cancels: make(map[string]context.CancelFunc),
	}
	go m.collect()
	go m.cleanupLoop()
	return m
}

// outcome is what a scan goroutine reports when it ends. ctxErr is the
// scan context's error, which decides between timeout and cancellation
// whatever err wraps.
type outcome struct {
	id     string
	report *runner.Report
	err    error
	ctxErr error
}

// Store exposes the manager's scan records for reading.
func (m *Manager) Store() *Store {
	return m.store
}

// Submit records a pending scan and starts it in the background.
func (m *Manager) Submit(req Request) (Scan, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return Scan{}, fmt.Errorf("%w: url required", ErrInvalidRequest)
	}
	if m.cfg.Run == nil {
		return Scan{}, fmt.Errorf("%w: no run function", ErrInvalidRequest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Scan{}, ErrStopped
	}
	sc := m.store.Create(req)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancels[sc.ID] = cancel
	m.wg.Add(1)
	go m.run(ctx, sc.ID, req)

	m.logger.Info("scan submitted", slog.String("id", sc.ID), slog.String("url", req.URL))
	m.publish()
	return sc, nil
}

// Cancel stops a pending or running scan. The scan turns cancelled once
// its goroutine returns.
func (m *Manager) Cancel(id string) error {
	sc, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if sc.Status.Terminal() {
		return ErrFinished
	}
	m.mu.Lock()
	cancel := m.cancels[id]
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.logger.Info("scan cancel requested", slog.String("id", id))
	return nil
}

// Delete cancels the scan if it is still active and removes it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	cancel := m.cancels[id]
	delete(m.cancels, id)
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err := m.store.Delete(id); err != nil {
		return err
	}
	m.publish()
	return nil
}

// Stop cancels every active scan and waits until their outcomes are
// recorded, at most until ctx ends. Later Submit calls fail with
// ErrStopped. Safe to call more than once.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()
	m.stopped.Do(func() {
		close(m.stop)
		go func() {
			m.wg.Wait()
			close(m.results)
		}()
	})

	select {
	case <-m.drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scanstore: waiting for scans: %w", ctx.Err())
	}
}

func (m *Manager) run(ctx context.Context, id string, req Request) {
	defer m.wg.Done()
	defer m.release(id)

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		m.results <- outcome{id: id, err: ctx.Err(), ctxErr: ctx.Err()}
		return
	}
	defer func() { <-m.slots }()

	ok, err := m.store.Update(id, func(s *Scan) {
		now := m.store.now()
		s.Status = StatusRunning
		s.StartedAt = &now
	})
	if err != nil || !ok {
		return
	}
	m.publish()
	m.logger.Info("scan running", slog.String("id", id))

	runCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	rep, runErr := m.cfg.Run(runCtx, req)
	m.results <- outcome{id: id, report: rep, err: runErr, ctxErr: runCtx.Err()}
}

func (m *Manager) collect() {
	defer close(m.drained)
	for o := range m.results {
		m.finish(o)
	}
}

// finish records a scan's final state.
func (m *Manager) finish(o outcome) {
	id, rep, runErr, ctxErr := o.id, o.report, o.err, o.ctxErr
	var status Status
	var msg string
	switch {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		status = StatusTimeout
		msg = fmt.Sprintf("scan timeout (%s)", m.cfg.Timeout)
	case errors.Is(ctxErr, context.Canceled):
		status = StatusCancelled
		msg = "scan cancelled"
	case runErr != nil:
		status = StatusFailed
		msg = runErr.Error()
	default:
		status = StatusCompleted
		if rep != nil {
			if err := rep.Err(); err != nil {
				msg = err.Error()
			}
		}
	}

	_, err := m.store.Update(id, func(s *Scan) {
		now := m.store.now()
		s.Status = status
		s.EndedAt = &now
		s.Error = msg
		if rep != nil {
			s.SetFindings(rep.Findings)
			s.Requests = rep.Requests
		}
	})
	if err != nil {
		// deleted while running
		return
	}
	attrs := []any{slog.String("id", id), slog.String("status", string(status))}
	if rep != nil {
		attrs = append(attrs, slog.Int("findings", len(rep.Findings)))
	}
	if status == StatusCompleted {
		m.logger.Info("scan finished", attrs...)
	} else {
		m.logger.Warn("scan finished", append(attrs, slog.String("error", msg))...)
	}
	m.publish()
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	cancel := m.cancels[id]
	delete(m.cancels, id)
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// publish pushes per-status counts to the metrics collector.
func (m *Manager) publish() {
	if m.cfg.Metrics == nil {
		return
	}
	counts := m.store.Counts()
	out := make(map[string]int, len(counts))
	for st, n := range counts {
		out[string(st)] = n
	}
	m.cfg.Metrics.SetScans(out)
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanup(m.store.now())
		}
	}
}

// cleanup removes finished scans older than the TTL.
func (m *Manager) cleanup(now time.Time) int {
	expired := m.store.expired(now.Add(-m.cfg.TTL))
	for _, id := range expired {
		_ = m.store.Delete(id)
	}
	if len(expired) > 0 {
		m.logger.Debug("expired scans removed", slog.Int("removed", len(expired)))
		m.publish()
	}
	return len(expired)
}
