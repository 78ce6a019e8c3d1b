package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sysinv/sysinv/agent/internal/config"
	"github.com/sysinv/sysinv/agent/internal/cycle"
	"github.com/sysinv/sysinv/agent/internal/health"
	"github.com/sysinv/sysinv/agent/internal/keystore"
	"github.com/sysinv/sysinv/agent/internal/scheduler"
)

// daemon runs the scheduler until ctx is cancelled. Without an agent key it
// idles and starts as soon as a reload supplies one.
func daemon(ctx context.Context, opts options, store *keystore.Store, runner *cycle.Runner, recorder *health.Recorder) error {
	schedOpts, err := scheduler.OptionsFrom(runner.Config().Schedule)
	if err != nil {
		return err
	}
	schedOpts.Beat = recorder.Heartbeat

	sched, err := scheduler.New(runner.Run, schedOpts)
	if err != nil {
		return err
	}

	if store.UserPath != "" {
		// The directory must exist for the watcher to see the first save.
		if err := os.MkdirAll(filepath.Dir(store.UserPath), 0o700); err != nil {
			return err
		}
	}

	a := &agent{runner: runner, sched: sched}
	a.startIfReady(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		paths := []string{opts.configPath, store.BasePath, store.UserPath}
		if err := config.Watch(ctx, paths, func(path string) {
			cfg, err := loadConfig(opts, store)
			if err != nil {
				slog.Error("config reload failed, keeping previous settings", "path", path, "err", err)
				return
			}
			a.reload(ctx, cfg.Agent)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	recorder.Ready()
	slog.Info("sysinv-agent running", "agent_id", runner.Config().AgentID)

	<-ctx.Done()
	slog.Info("sysinv-agent shutting down")
	recorder.Stopping()
	sched.Stop()
	wg.Wait()
	return nil
}

// agent ties a Runner to its Scheduler across config reloads.
type agent struct {
	runner *cycle.Runner
	sched  *scheduler.Scheduler
}

func (a *agent) reload(ctx context.Context, cfg config.AgentConfig) {
	a.runner.Update(cfg)
	slog.Info("config reloaded", "server_base_url", cfg.ServerBaseURL, "key_in_body", cfg.Upload.SendKeyInBody)
	a.startIfReady(ctx)
}

// startIfReady starts the scheduler once the configuration allows a cycle.
// Scheduler.Start is idempotent, so repeated reloads never add timers.
func (a *agent) startIfReady(ctx context.Context) {
	if err := a.runner.Ready(); err != nil {
		slog.Warn("scheduler not started", "reason", err)
		return
	}
	if a.sched.Start(ctx) {
		slog.Info("scheduler started")
	}
}
