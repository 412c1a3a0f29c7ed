package api

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltmarket/catalog-scraper/internal/models"
	"github.com/voltmarket/catalog-scraper/internal/pipeline"
)

// Runner is the pipeline surface the run manager drives.
type Runner interface {
	Run(ctx context.Context) (models.RunCounters, error)
	Counters() models.RunCounters
}

// RunnerFactory builds a fresh pipeline for one run's options.
type RunnerFactory func(opts pipeline.Options) Runner

// Run tracks one extraction run from creation to completion.
type Run struct {
	ID          string             `json:"id"`
	Mode        string             `json:"mode"`
	Tokens      []string           `json:"tokens,omitempty"`
	Status      string             `json:"status"`
	Counters    models.RunCounters `json:"counters"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Error       string             `json:"error,omitempty"`

	cancel context.CancelFunc
	runner Runner
}

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Manager owns the in-memory run registry and launches pipelines.
type Manager struct {
	factory RunnerFactory
	logger  *slog.Logger

	mu   sync.Mutex
	runs map[string]*Run
}

func NewManager(factory RunnerFactory, logger *slog.Logger) *Manager {
	return &Manager{
		factory: factory,
		logger:  logger.With("component", "run_manager"),
		runs:    make(map[string]*Run),
	}
}

// StartRun registers a run and launches its pipeline in the background. Only
// one run may be active at a time; overlapping runs would double-fetch the
// same upstream pages.
func (m *Manager) StartRun(opts pipeline.Options) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.runs {
		if r.Status == StatusPending || r.Status == StatusRunning {
			return nil, fmt.Errorf("run %s is still active", r.ID)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:        uuid.New().String(),
		Mode:      string(opts.Mode),
		Tokens:    opts.Tokens,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		cancel:    cancel,
		runner:    m.factory(opts),
	}
	m.runs[run.ID] = run

	go m.execute(ctx, run)

	m.logger.Info("run created", "id", run.ID, "mode", run.Mode, "tokens", len(run.Tokens))
	// The background goroutine mutates the registry entry, so callers get a
	// snapshot taken before any of that starts.
	return m.snapshot(run), nil
}

func (m *Manager) execute(ctx context.Context, run *Run) {
	now := time.Now()
	m.update(run.ID, func(r *Run) {
		r.Status = StatusRunning
		r.StartedAt = &now
	})

	counters, err := run.runner.Run(ctx)

	done := time.Now()
	m.update(run.ID, func(r *Run) {
		r.Counters = counters
		r.CompletedAt = &done
		switch {
		case err != nil:
			r.Status = StatusFailed
			r.Error = err.Error()
		case ctx.Err() != nil:
			r.Status = StatusCancelled
		default:
			r.Status = StatusCompleted
		}
	})

	if err != nil {
		m.logger.Error("run failed", "id", run.ID, "error", err)
		return
	}
	m.logger.Info("run finished", "id", run.ID, "records_written", counters.RecordsWritten)
}

func (m *Manager) update(id string, fn func(*Run)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		fn(r)
	}
}

// GetRun returns a snapshot of one run; active runs report live counters.
func (m *Manager) GetRun(id string) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return nil, false
	}
	return m.snapshot(r), true
}

// ListRuns returns snapshots of all known runs, newest first.
func (m *Manager) ListRuns() []*Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	runs := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, m.snapshot(r))
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs
}

// CancelRun stops an active run. Finished runs cannot be cancelled.
func (m *Manager) CancelRun(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run not found")
	}
	if r.Status != StatusPending && r.Status != StatusRunning {
		return fmt.Errorf("run %s already %s", id, r.Status)
	}
	r.cancel()
	return nil
}

// snapshot copies a run for handing to callers; caller must hold m.mu.
func (m *Manager) snapshot(r *Run) *Run {
	cp := *r
	cp.cancel = nil
	cp.runner = nil
	if r.Status == StatusPending || r.Status == StatusRunning {
		cp.Counters = r.runner.Counters()
	}
	return &cp
}
