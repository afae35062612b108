// Package apiserver exposes a long-running backtest service over HTTP
// (SPEC_FULL.md §4 "gin-based /healthz, /metrics, /runs/{id}"): submit a
// backtest, poll its status, fetch its report once finished.
package apiserver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kosix/stagebacktest/internal/analytics"
	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/datamanager"
	"github.com/kosix/stagebacktest/internal/engine"
	"github.com/kosix/stagebacktest/internal/korlog"
)

// RunStatus is the lifecycle state of a submitted backtest run.
type RunStatus string

const (
	StatusQueued  RunStatus = "queued"
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"
	StatusFailed  RunStatus = "failed"
)

// Run is one submitted backtest's tracked state.
type Run struct {
	ID        string
	Status    RunStatus
	SubmittedAt time.Time
	StartDate time.Time
	EndDate   time.Time
	Error     string
	Report    *analytics.Report
}

// RunStore tracks runs in memory for the lifetime of the process. A
// restart loses in-flight run status, matching spec.md's "no cooperative
// suspension points" concurrency model: a long backtest is only ever
// interrupted by process termination.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRunStore builds an empty run store.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*Run)}
}

// Get returns the run with the given ID, or nil if unknown.
func (s *RunStore) Get(id string) *Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// Submit launches a backtest in a background goroutine and immediately
// returns its run ID; the caller polls Get for status.
func (s *RunStore) Submit(dataset datamanager.Dataset, cfg config.BacktestConfig, startDate, endDate time.Time) string {
	id := uuid.New().String()
	run := &Run{ID: id, Status: StatusQueued, SubmittedAt: time.Now(), StartDate: startDate, EndDate: endDate}

	s.mu.Lock()
	s.runs[id] = run
	s.mu.Unlock()

	go s.execute(id, dataset, cfg, startDate, endDate)
	return id
}

func (s *RunStore) execute(id string, dataset datamanager.Dataset, cfg config.BacktestConfig, startDate, endDate time.Time) {
	s.setStatus(id, StatusRunning, nil, nil)

	log := korlog.Default()
	result, err := engine.Run(context.Background(), dataset, cfg, startDate, endDate, &log)
	if err != nil {
		s.setStatus(id, StatusFailed, nil, err)
		return
	}

	report := analytics.Analyze(result.RunID, result.StartDate, result.EndDate,
		result.InitialEquity, result.FinalEquity, result.History, result.Ledger, cfg.Analytics)
	s.setStatus(id, StatusDone, &report, nil)
}

func (s *RunStore) setStatus(id string, status RunStatus, report *analytics.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return
	}
	r.Status = status
	if report != nil {
		r.Report = report
	}
	if err != nil {
		r.Error = err.Error()
	}
}
