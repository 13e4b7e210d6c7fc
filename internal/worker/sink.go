package worker

import (
	"context"
	"sync"

	"github.com/hylfro/instasweep/internal/domain"
)

// outcomeSink accumulates per-item outcomes for one job. Counters only ever
// grow; they are persisted at batch boundaries, not per item. Logging is
// throttled at high speeds so the bounded log ring stays readable.
type outcomeSink struct {
	engine    *Engine
	jobID     int64
	speed     int
	threshold int

	mu        sync.Mutex
	processed int
	errors    int
}

func newOutcomeSink(e *Engine, jobID int64, speed, threshold int) *outcomeSink {
	return &outcomeSink{engine: e, jobID: jobID, speed: speed, threshold: threshold}
}

func (s *outcomeSink) success(ctx context.Context, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	if s.speed < s.threshold || s.processed%10 == 0 {
		s.engine.appendLog(ctx, s.jobID, msg)
	}
}

func (s *outcomeSink) failure(ctx context.Context, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
	if s.speed < s.threshold || s.errors%10 == 0 {
		s.engine.appendLog(ctx, s.jobID, msg)
	}
}

// feedError accounts a page-fetch failure without per-item logging.
func (s *outcomeSink) feedError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// persist writes the current counters to the job record.
func (s *outcomeSink) persist(ctx context.Context) {
	s.mu.Lock()
	processed, errors := s.processed, s.errors
	s.mu.Unlock()

	_, err := s.engine.repo.Update(ctx, s.jobID, domain.JobUpdate{
		TotalUnliked: &processed,
		TotalErrors:  &errors,
	})
	if err != nil {
		s.engine.logger.Warn().Int64("job", s.jobID).Err(err).Msg("failed to persist counters")
	}
}
