package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/hylfro/instasweep/internal/domain"
)

// feedLookahead is added to the first page's item count when the source
// reports more pages: "at least this many more, unknown total". The
// estimate is a progress-bar hint and is never revised.
const feedLookahead = 200

// Options tunes the engine's self-throttling delays. The slow tier applies
// up to speed 50, the fast tier above it.
type Options struct {
	BatchDelay     time.Duration
	FastBatchDelay time.Duration
	PageDelay      time.Duration
	FastPageDelay  time.Duration
}

// DefaultOptions returns the stock delay tiers.
func DefaultOptions() Options {
	return Options{
		BatchDelay:     time.Second,
		FastBatchDelay: 200 * time.Millisecond,
		PageDelay:      2 * time.Second,
		FastPageDelay:  500 * time.Millisecond,
	}
}

// Engine executes automation jobs in the background: session bring-up, feed
// traversal, batched concurrent mutation, progress persistence and
// cooperative cancellation. It implements domain.JobController.
type Engine struct {
	repo     domain.JobRepository
	client   domain.AccountClient
	opts     Options
	logger   log.Logger
	registry *registry
}

// New creates an Engine.
func New(repo domain.JobRepository, client domain.AccountClient, opts Options, logger log.Logger) *Engine {
	return &Engine{
		repo:     repo,
		client:   client,
		opts:     opts,
		logger:   logger,
		registry: newRegistry(),
	}
}

// Start launches the job's execution in a background goroutine. The caller
// must guarantee at most one Start per job id.
func (e *Engine) Start(job *domain.Job, cookieJSON string) {
	e.registry.add(job.ID)
	go e.run(job.ID, job.TargetType, job.Speed, cookieJSON)
}

// Stop requests cooperative termination. The engine notices at the next
// batch or page boundary; in-flight actions in the current batch finish.
func (e *Engine) Stop(id int64) bool {
	return e.registry.stop(id)
}

func (e *Engine) run(id int64, target domain.TargetType, speed int, cookieJSON string) {
	ctx := context.Background()
	defer e.registry.remove(id)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Int64("job", id).Msgf("job panicked: %v", r)
			e.fail(ctx, id, fmt.Sprintf("Critical error: %v", r))
		}
	}()

	e.logger.Info().Int64("job", id).Str("target", string(target)).Int("speed", speed).Msg("job started")

	e.setStatus(ctx, id, domain.StatusRunning)
	e.appendLog(ctx, id, fmt.Sprintf("Starting automation with speed %d...", speed))

	cookies, err := domain.ParseCookies(cookieJSON)
	if err != nil {
		e.fail(ctx, id, fmt.Sprintf("Critical error: %v", err))
		return
	}
	e.appendLog(ctx, id, "Cookies loaded. Verifying session...")

	session, err := e.client.Login(ctx, cookies)
	if err != nil {
		e.logger.Warn().Int64("job", id).Err(err).Msg("session verification failed")
		e.appendLog(ctx, id, "Session verification failed. Cookies might be invalid or expired.")
		e.fail(ctx, id, fmt.Sprintf("Critical error: %v", err))
		return
	}
	e.appendLog(ctx, id, fmt.Sprintf("Logged in as %s", session.Username()))

	strat := strategyFor(target, session)
	sink := newOutcomeSink(e, id, speed, strat.logThreshold())

	e.traverse(ctx, id, speed, strat, sink)

	// Stop wins over natural completion when both hold at the end.
	if e.registry.active(id) {
		e.setStatus(ctx, id, domain.StatusCompleted)
		e.appendLog(ctx, id, "Job completed.")
		e.logger.Info().Int64("job", id).Msg("job completed")
	} else {
		e.setStatus(ctx, id, domain.StatusStopped)
		e.logger.Info().Int64("job", id).Msg("job stopped")
	}
}

// traverse drains the strategy's feed chain, mutating each page in
// speed-sized concurrent batches. Returns early on a stop signal or on the
// first page-fetch error; both resolve through the caller.
func (e *Engine) traverse(ctx context.Context, id int64, speed int, strat strategy, sink *outcomeSink) {
	estimated := false

	for _, feed := range strat.sources() {
		for {
			if !e.registry.active(id) {
				return
			}

			items, err := feed.Next(ctx)
			if err != nil {
				// Likely rate limiting or session expiry; abort the whole
				// traversal rather than hammering the next source.
				e.appendLog(ctx, id, fmt.Sprintf("Feed error: %v", err))
				sink.feedError()
				sink.persist(ctx)
				return
			}
			if len(items) == 0 {
				e.appendLog(ctx, id, fmt.Sprintf("No more posts in %s.", feed.Name()))
				break
			}

			if !estimated {
				estimated = true
				total := len(items)
				if feed.MoreAvailable() {
					total += feedLookahead
				}
				if _, err := e.repo.Update(ctx, id, domain.JobUpdate{TotalToProcess: &total}); err != nil {
					e.logger.Warn().Int64("job", id).Err(err).Msg("failed to persist estimate")
				}
			}

			e.appendLog(ctx, id, fmt.Sprintf("Processing batch of %d posts concurrently (Speed: %d)...", len(items), speed))

			for i := 0; i < len(items); i += speed {
				if !e.registry.active(id) {
					return
				}

				batch := items[i:min(i+speed, len(items))]
				var wg sync.WaitGroup
				for _, post := range batch {
					wg.Add(1)
					go func(p domain.Post) {
						defer wg.Done()
						strat.process(ctx, p, sink)
					}(post)
				}
				wg.Wait()

				sink.persist(ctx)
				time.Sleep(e.batchDelay(speed))
			}

			if !feed.MoreAvailable() {
				e.appendLog(ctx, id, fmt.Sprintf("Reached end of %s.", feed.Name()))
				break
			}
			time.Sleep(e.pageDelay(speed))
		}
	}
}

func (e *Engine) batchDelay(speed int) time.Duration {
	if speed > 50 {
		return e.opts.FastBatchDelay
	}
	return e.opts.BatchDelay
}

func (e *Engine) pageDelay(speed int) time.Duration {
	if speed > 50 {
		return e.opts.FastPageDelay
	}
	return e.opts.PageDelay
}

func (e *Engine) setStatus(ctx context.Context, id int64, status domain.JobStatus) {
	if _, err := e.repo.Update(ctx, id, domain.JobUpdate{Status: &status}); err != nil {
		e.logger.Warn().Int64("job", id).Err(err).Msgf("failed to set status %s", status)
	}
}

func (e *Engine) fail(ctx context.Context, id int64, msg string) {
	e.setStatus(ctx, id, domain.StatusFailed)
	e.appendLog(ctx, id, msg)
}

// appendLog runs the read-modify-write log append. Safe because exactly one
// engine owns a job id and the outcome sink serializes concurrent callers.
func (e *Engine) appendLog(ctx context.Context, id int64, msg string) {
	job, err := e.repo.Get(ctx, id)
	if err != nil {
		e.logger.Warn().Int64("job", id).Err(err).Msg("failed to load job for log append")
		return
	}
	logs := domain.AppendLog(job.Logs, msg)
	if _, err := e.repo.Update(ctx, id, domain.JobUpdate{Logs: logs}); err != nil {
		e.logger.Warn().Int64("job", id).Err(err).Msg("failed to append log")
	}
}
