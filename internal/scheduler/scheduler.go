// Package scheduler runs the sync engine periodically and on demand, one run
// at a time, and records each run's outcome.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/iptvsync/internal/logging"
	"github.com/snapetech/iptvsync/internal/metrics"
	"github.com/snapetech/iptvsync/internal/store"
	"github.com/snapetech/iptvsync/internal/syncer"
)

// Runner is the sync engine.
type Runner interface {
	Run(ctx context.Context, emit func(syncer.Event)) syncer.Event
}

// Recorder persists the outcome of a run.
type Recorder interface {
	RecordSync(ctx context.Context, rec store.SyncRecord) error
}

// Options configures New. Runner and Recorder are required.
type Options struct {
	Runner   Runner
	Recorder Recorder
	// Locker defaults to an in-process LocalLocker.
	Locker  Locker
	LockKey string
	LockTTL time.Duration

	Interval time.Duration
	OnStart  bool
	// After a failed run the next attempt comes after RetryMin, doubling up
	// to RetryMax, but never later than Interval.
	RetryMin time.Duration
	RetryMax time.Duration

	// OnEvent sees every event of every run.
	OnEvent func(syncer.Event)
	Metrics *metrics.Metrics
	Logger  *zerolog.Logger
}

// Scheduler is safe for concurrent use. Trigger may be called from any
// goroutine, for example a SIGHUP handler.
type Scheduler struct {
	opts    Options
	trigger chan struct{}
	log     zerolog.Logger
	now     func() time.Time
}

// New applies defaults and returns a Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Runner == nil || opts.Recorder == nil {
		return nil, errors.New("scheduler: runner and recorder are required")
	}
	if opts.Locker == nil {
		opts.Locker = &LocalLocker{}
	}
	if opts.LockKey == "" {
		opts.LockKey = "iptvsync:sync"
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Hour
	}
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.RetryMin <= 0 {
		opts.RetryMin = time.Minute
	}
	if opts.RetryMax < opts.RetryMin {
		opts.RetryMax = opts.RetryMin
	}
	s := &Scheduler{
		opts:    opts,
		trigger: make(chan struct{}, 1),
		log:     logging.Component("scheduler"),
		now:     time.Now,
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	return s, nil
}

// Trigger requests a run as soon as the current one (if any) ends. Requests
// made while one is already pending collapse into it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunOnce takes the lock, runs one sync and records the terminal event. It
// returns ErrLocked without running when another run holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context) (syncer.Event, error) {
	unlock, err := s.opts.Locker.TryLock(ctx, s.opts.LockKey, s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			s.opts.Metrics.ObserveRun("skipped")
			s.log.Info().Msg("sync already running elsewhere; skipped")
		}
		return nil, err
	}
	defer unlock()

	ev := s.opts.Runner.Run(ctx, s.opts.OnEvent)
	rec := store.SyncRecord{At: s.now()}
	switch ev := ev.(type) {
	case syncer.Success:
		rec.Success = true
	case syncer.Error:
		rec.Message = ev.Message
	}
	if err := s.opts.Recorder.RecordSync(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Error().Err(err).Msg("record sync outcome")
	}
	return ev, nil
}

// Start runs until ctx is done: once immediately when OnStart is set, then
// every Interval, on Trigger, and on the retry schedule after a failure.
func (s *Scheduler) Start(ctx context.Context) error {
	next := s.opts.Interval
	if s.opts.OnStart {
		next = 0
	}
	timer := time.NewTimer(next)
	defer timer.Stop()
	failures := 0
	for {
		s.log.Debug().Dur("in", next).Msg("next sync scheduled")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-s.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		ev, err := s.RunOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		next = s.opts.Interval
		switch {
		case err != nil && !errors.Is(err, ErrLocked):
			failures++
			next = s.backoff(failures)
			s.log.Error().Err(err).Dur("retry_in", next).Msg("could not start sync")
		case err != nil:
		default:
			if _, failed := ev.(syncer.Error); failed {
				failures++
				next = s.backoff(failures)
				s.log.Warn().Int("failures", failures).Dur("retry_in", next).Msg("sync failed; retrying")
			} else {
				failures = 0
			}
		}
		timer.Reset(next)
	}
}

// backoff is the wait after the nth consecutive failure.
func (s *Scheduler) backoff(n int) time.Duration {
	d := s.opts.RetryMin
	for i := 1; i < n && d < s.opts.RetryMax; i++ {
		d *= 2
	}
	if d > s.opts.RetryMax {
		d = s.opts.RetryMax
	}
	if d > s.opts.Interval {
		d = s.opts.Interval
	}
	return d
}
