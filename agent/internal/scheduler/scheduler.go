package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sysinv/sysinv/agent/internal/clock"
	"github.com/sysinv/sysinv/agent/internal/config"
	"github.com/sysinv/sysinv/agent/internal/cron"
)

// Cycle triggers passed to RunFunc.
const (
	TriggerStartup  = "startup"
	TriggerWarmUp   = "warmup"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// RunFunc runs one inventory cycle.
type RunFunc func(ctx context.Context, trigger string) error

// Options configures a Scheduler.
type Options struct {
	// Clock defaults to clock.Real().
	Clock clock.Clock

	// RunOnStart runs a cycle as soon as Start is called.
	RunOnStart bool

	// Recurring registers the warm-up and cron cycles.
	Recurring bool

	// Schedule and Location drive the recurring cycle. Location defaults to
	// time.Local.
	Schedule cron.Schedule
	Location *time.Location

	// WarmUp delays the one-off cycle. Zero runs it with the startup cycle.
	WarmUp time.Duration

	// Heartbeat is the liveness interval. Zero disables the heartbeat.
	Heartbeat time.Duration

	// CheckInterval is how often the recurring cycle's due time is checked.
	CheckInterval time.Duration

	// Beat is invoked on every heartbeat tick. It must not block.
	Beat func(now time.Time)
}

// OptionsFrom builds Options from the schedule configuration.
func OptionsFrom(sc config.ScheduleConfig) (Options, error) {
	sched, err := cron.Parse(sc.Cron)
	if err != nil {
		return Options{}, fmt.Errorf("scheduler: %w", err)
	}
	loc, err := sc.Location()
	if err != nil {
		return Options{}, fmt.Errorf("scheduler: time zone %q: %w", sc.TimeZone, err)
	}
	return Options{
		RunOnStart:    sc.StartupRun(),
		Recurring:     sc.On(),
		Schedule:      sched,
		Location:      loc,
		WarmUp:        sc.WarmUp,
		Heartbeat:     sc.Heartbeat,
		CheckInterval: sc.CheckInterval,
	}, nil
}

// Scheduler fires cycle triggers and heartbeats. Create with New.
type Scheduler struct {
	run  RunFunc
	opts Options
	clk  clock.Clock

	mu      sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	nextDue time.Time
	timers  map[string]*clock.Timer
	cycles  sync.WaitGroup
}

// New returns a Scheduler that calls run for every trigger.
func New(run RunFunc, opts Options) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("scheduler: run func is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Recurring {
		if opts.Schedule.String() == "" {
			return nil, errors.New("scheduler: recurring cycle needs a cron schedule")
		}
		if opts.CheckInterval <= 0 {
			opts.CheckInterval = config.DefaultCheckInterval
		}
	}
	if opts.WarmUp < 0 {
		return nil, fmt.Errorf("scheduler: warm-up must not be negative, got %s", opts.WarmUp)
	}
	return &Scheduler{
		run:    run,
		opts:   opts,
		clk:    opts.Clock,
		timers: make(map[string]*clock.Timer),
	}, nil
}

// Start registers the triggers. Only the first call has any effect; it
// returns true, every later call returns false.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		slog.Debug("scheduler: already started, ignoring")
		return false
	}
	s.started = true
	s.ctx = context.WithoutCancel(ctx)

	if s.opts.RunOnStart {
		s.spawnLocked(TriggerStartup)
	}

	if s.opts.Recurring {
		if s.opts.WarmUp == 0 {
			s.spawnLocked(TriggerWarmUp)
		} else {
			s.timers[TriggerWarmUp] = s.clk.AfterFunc(s.opts.WarmUp, s.warmUp)
		}

		s.nextDue = s.computeNext(s.clk.Now())
		s.timers[TriggerSchedule] = s.clk.AfterFunc(s.opts.CheckInterval, s.check)
		slog.Info("scheduler: recurring cycle registered",
			"cron", s.opts.Schedule.String(),
			"location", s.opts.Location.String(),
			"next_due", s.nextDue)
	}

	if s.opts.Heartbeat > 0 && s.opts.Beat != nil {
		s.timers["heartbeat"] = s.clk.AfterFunc(s.opts.Heartbeat, s.beat)
	}
	return true
}

// Stop cancels every timer and waits for running cycles to finish. The
// Scheduler cannot be started again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
	s.mu.Unlock()

	s.cycles.Wait()
}

// Wait blocks until every cycle spawned so far has returned.
func (s *Scheduler) Wait() { s.cycles.Wait() }

// NextDue returns when the recurring cycle is next due, or the zero time
// when it is not registered.
func (s *Scheduler) NextDue() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDue
}

func (s *Scheduler) warmUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	delete(s.timers, TriggerWarmUp)
	s.spawnLocked(TriggerWarmUp)
}

// check runs the recurring cycle when its due time has passed, then re-arms.
func (s *Scheduler) check() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	now := s.clk.Now()
	if !s.nextDue.IsZero() && !now.Before(s.nextDue) {
		if late := now.Sub(s.nextDue); late > s.opts.CheckInterval {
			slog.Info("scheduler: running overdue cycle", "due", s.nextDue, "late_by", late.Round(time.Second))
		}
		s.spawnLocked(TriggerSchedule)
		s.nextDue = s.computeNext(now)
	}
	s.timers[TriggerSchedule] = s.clk.AfterFunc(s.opts.CheckInterval, s.check)
}

func (s *Scheduler) beat() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.timers["heartbeat"] = s.clk.AfterFunc(s.opts.Heartbeat, s.beat)
	s.mu.Unlock()

	s.opts.Beat(s.clk.Now())
}

// computeNext returns the first due time after now, or the zero time when
// the schedule never matches again.
func (s *Scheduler) computeNext(now time.Time) time.Time {
	next, err := s.opts.Schedule.Next(now.In(s.opts.Location))
	if err != nil {
		slog.Error("scheduler: no next run time, recurring cycle disabled",
			"cron", s.opts.Schedule.String(), "err", err)
		return time.Time{}
	}
	return next
}

// spawnLocked runs one cycle in its own goroutine. s.mu must be held.
func (s *Scheduler) spawnLocked(trigger string) {
	ctx := s.ctx
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("scheduler: cycle panicked", "trigger", trigger, "panic", r)
			}
		}()

		start := time.Now()
		if err := s.run(ctx, trigger); err != nil {
			slog.Error("scheduler: cycle failed",
				"trigger", trigger, "err", err, "elapsed", time.Since(start).Round(time.Millisecond))
			return
		}
		slog.Debug("scheduler: cycle finished",
			"trigger", trigger, "elapsed", time.Since(start).Round(time.Millisecond))
	}()
}
