// Package scheduler runs the polling loop that promotes due jobs and
// fans them out for concurrent execution.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/models"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/telemetry"
)

// JobStore is the slice of the job store the loop reads and claims from.
type JobStore interface {
	ListDue(ctx context.Context, now time.Time) ([]models.Post, error)
	MarkPosting(ctx context.Context, id int64, claimedBy string) (bool, error)
	ReclaimStuck(ctx context.Context, timeout time.Duration) (int64, error)
	AppendAudit(ctx context.Context, postID int64, event, detail string) error
}

// Executor runs one claimed job to completion. Implementations must not
// return before the job's terminal result is written (or writing it has
// failed).
type Executor interface {
	Execute(ctx context.Context, job models.Post)
}

// Scheduler is the process-lifetime polling loop. Each cycle lists due
// jobs, claims them one at a time through the store's atomic transition,
// and hands claimed jobs to the executor through a bounded pool. The
// loop itself never waits for executions.
type Scheduler struct {
	store        JobStore
	executor     Executor
	log          zerolog.Logger
	instanceID   string
	pollInterval time.Duration
	claimTimeout time.Duration

	sem chan struct{}
	wg  sync.WaitGroup
}

// Options tune the loop. Zero values fall back to defaults.
type Options struct {
	PollInterval time.Duration // default 30s
	Concurrency  int           // executions in flight, default 8
	ClaimTimeout time.Duration // 0 disables the reclaim pass
}

func New(store JobStore, executor Executor, log zerolog.Logger, opts Options) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Scheduler{
		store:        store,
		executor:     executor,
		log:          log,
		instanceID:   uuid.New().String(),
		pollInterval: opts.PollInterval,
		claimTimeout: opts.ClaimTimeout,
		sem:          make(chan struct{}, opts.Concurrency),
	}
}

// InstanceID identifies this scheduler instance in claim records.
func (s *Scheduler) InstanceID() string { return s.instanceID }

// Run polls until the context is cancelled, then waits for in-flight
// executions to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().
		Str("instance_id", s.instanceID).
		Dur("poll_interval", s.pollInterval).
		Int("concurrency", cap(s.sem)).
		Msg("scheduler started")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		s.cycle(ctx)

		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle performs one poll: optional reclaim, list due, claim, fan out.
// Store errors abort the cycle silently; the next tick retries.
func (s *Scheduler) cycle(ctx context.Context) {
	now := time.Now()

	if s.claimTimeout > 0 {
		n, err := s.store.ReclaimStuck(ctx, s.claimTimeout)
		if err != nil {
			s.log.Warn().Err(err).Msg("reclaim pass failed")
		} else if n > 0 {
			telemetry.Reclaimed.Add(float64(n))
			s.log.Warn().Int64("count", n).Msg("reclaimed stuck jobs")
		}
	}

	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		s.log.Warn().Err(err).Msg("list due jobs failed, skipping cycle")
		return
	}
	telemetry.DueGauge.Set(float64(len(due)))
	if len(due) == 0 {
		return
	}

	for _, job := range due {
		claimed, err := s.store.MarkPosting(ctx, job.ID, s.instanceID)
		if err != nil {
			s.log.Warn().Err(err).Int64("post_id", job.ID).Msg("claim failed, skipping job this cycle")
			continue
		}
		if !claimed {
			// Lost the race to a concurrent cycle. Safe to skip: exactly
			// one claimer proceeds.
			telemetry.ClaimsLost.Inc()
			continue
		}
		_ = s.store.AppendAudit(ctx, job.ID, "claimed", "instance="+s.instanceID)
		s.spawn(ctx, job)
	}
}

// spawn runs one execution through the bounded pool. Acquiring a slot
// may block the loop under sustained overload, which is the intended
// backpressure; cancellation releases it.
func (s *Scheduler) spawn(ctx context.Context, job models.Post) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	s.wg.Add(1)
	telemetry.InFlightGauge.Inc()
	go func() {
		defer func() {
			telemetry.InFlightGauge.Dec()
			<-s.sem
			s.wg.Done()
		}()
		s.executor.Execute(ctx, job)
	}()
}
