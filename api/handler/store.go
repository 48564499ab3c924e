package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/gamedeck/config"
	"github.com/use-agent/gamedeck/models"
)

// ErrRunInProgress is returned by Start while another run is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// RunExecutor performs a complete run. pipeline.Runner satisfies it.
type RunExecutor interface {
	Run(ctx context.Context, id string, views []config.View) *models.RunReport
}

// RunStore starts runs in the background, one at a time, and keeps their
// reports for an hour.
type RunStore struct {
	exec      RunExecutor
	ctx       context.Context
	retention time.Duration

	mu     sync.Mutex
	active string
	runs   sync.Map // id → *models.RunReport
	wg     sync.WaitGroup
}

// NewRunStore creates a store whose runs are bound to ctx. Finished runs
// older than an hour are evicted every 5 minutes until ctx ends.
func NewRunStore(ctx context.Context, exec RunExecutor) *RunStore {
	s := &RunStore{exec: exec, ctx: ctx, retention: time.Hour}
	go s.evictLoop()
	return s
}

// Start launches a run over views and returns its id.
func (s *RunStore) Start(views []config.View) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != "" {
		return "", ErrRunInProgress
	}

	id := "run-" + uuid.NewString()[:8]
	s.active = id
	s.runs.Store(id, &models.RunReport{
		ID:        id,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().Unix(),
		Views:     []models.ViewReport{},
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		report := s.exec.Run(s.ctx, id, views)
		s.runs.Store(id, report)

		s.mu.Lock()
		s.active = ""
		s.mu.Unlock()
		slog.Info("api run finished", "run_id", id, "status", report.Status)
	}()
	return id, nil
}

// Get returns the latest report for id.
func (s *RunStore) Get(id string) (*models.RunReport, bool) {
	v, ok := s.runs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.RunReport), true
}

// Active returns the id of the running run, or "".
func (s *RunStore) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Wait blocks until the active run, if any, has finished.
func (s *RunStore) Wait() {
	s.wg.Wait()
}

func (s *RunStore) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		cutoff := time.Now().Add(-s.retention).Unix()
		s.runs.Range(func(key, value any) bool {
			report := value.(*models.RunReport)
			if report.FinishedAt != 0 && report.FinishedAt < cutoff {
				s.runs.Delete(key)
			}
			return true
		})
	}
}
