package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/sysinv/sysinv/agent/internal/clock"
	"github.com/sysinv/sysinv/agent/internal/config"
	"github.com/sysinv/sysinv/agent/internal/health"
	"github.com/sysinv/sysinv/agent/internal/identity"
	"github.com/sysinv/sysinv/agent/internal/inventory"
	"github.com/sysinv/sysinv/agent/internal/probe"
	"github.com/sysinv/sysinv/agent/internal/shipper"
	"github.com/sysinv/sysinv/agent/internal/uploader"
)

// Metrics receives cycle and attempt outcomes. *health.Recorder implements it.
type Metrics interface {
	CycleFinished(trigger, outcome string, now time.Time)
	AttemptFinished(outcome string)
}

// Options configures a Runner.
type Options struct {
	// Collector produces the payload. Required for Run.
	Collector inventory.Collector

	// Metrics is optional.
	Metrics Metrics

	// Clock drives retry delays. Defaults to clock.Real().
	Clock clock.Clock

	// HTTPClient replaces the client built from the TLS settings.
	HTTPClient *http.Client
}

// Runner executes inventory cycles against the current configuration.
type Runner struct {
	opts  Options
	group singleflight.Group

	mu      sync.RWMutex
	cfg     config.AgentConfig
	http    *http.Client
	httpErr error
}

// New returns a Runner using cfg until the next Update.
func New(cfg config.AgentConfig, opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	r := &Runner{opts: opts}
	r.Update(cfg)
	return r
}

// Update replaces the configuration for subsequent cycles.
func (r *Runner) Update(cfg config.AgentConfig) {
	client := r.opts.HTTPClient
	var err error
	if client == nil {
		client, err = uploader.NewHTTPClient(cfg.Upload.Timeout, uploader.TLSOptions{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
			CAFile:             cfg.TLS.CAFile,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.http = client
	r.httpErr = err
}

// Config returns the configuration the next cycle will use.
func (r *Runner) Config() config.AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Ready reports whether a cycle could start with the current configuration.
func (r *Runner) Ready() error {
	return preflight(r.Config())
}

// Run executes one full cycle for trigger.
func (r *Runner) Run(ctx context.Context, trigger string) error {
	cfg := r.Config()
	if err := preflight(cfg); err != nil {
		r.finished(trigger, err)
		return err
	}
	if r.opts.Collector == nil {
		return errors.New("cycle: no collector configured")
	}

	id := identity.Identity{AgentID: identity.ResolveAgentID(cfg.AgentID), AgentKey: cfg.AgentKey}
	_, err, shared := r.group.Do(id.AgentID, func() (any, error) {
		err := r.run(ctx, trigger, cfg, id)
		r.finished(trigger, err)
		return nil, err
	})
	if shared {
		slog.Info("cycle: joined a cycle already in flight", "trigger", trigger, "agent_id", id.AgentID)
	}
	return err
}

// Upload sends payload once through the retry controller without
// collecting. It is used for uploading an existing snapshot file.
func (r *Runner) Upload(ctx context.Context, payload any) error {
	cfg := r.Config()
	if err := preflight(cfg); err != nil {
		return err
	}
	id := identity.Identity{AgentID: identity.ResolveAgentID(cfg.AgentID), AgentKey: cfg.AgentKey}
	log := slog.With("agent_id", id.AgentID)
	return r.deliver(ctx, cfg, id, payload, log)
}

func (r *Runner) run(ctx context.Context, trigger string, cfg config.AgentConfig, id identity.Identity) error {
	log := slog.With("cycle", uuid.NewString(), "trigger", trigger, "agent_id", id.AgentID)
	start := r.opts.Clock.Now()
	log.Info("cycle: started")

	info, err := r.opts.Collector.Collect(ctx)
	if err != nil {
		return fmt.Errorf("cycle: collect: %w", err)
	}
	log.Info("cycle: inventory collected", "apps", info.Software.Count)

	if path := cfg.Inventory.SnapshotPath; path != "" {
		if err := inventory.SaveSnapshot(path, info); err != nil {
			log.Warn("cycle: save snapshot failed", "path", path, "err", err)
		}
	}

	if err := r.deliver(ctx, cfg, id, info, log); err != nil {
		return err
	}
	log.Info("cycle: finished", "elapsed", r.opts.Clock.Now().Sub(start).Round(time.Millisecond))
	return nil
}

// deliver builds the upload stack for cfg and ships payload.
func (r *Runner) deliver(ctx context.Context, cfg config.AgentConfig, id identity.Identity, payload any, log *slog.Logger) error {
	r.mu.RLock()
	httpClient, httpErr := r.http, r.httpErr
	r.mu.RUnlock()
	if httpErr != nil {
		return fmt.Errorf("cycle: http client: %w", httpErr)
	}

	client, err := uploader.New(uploader.TargetFrom(cfg), id, httpClient)
	if err != nil {
		return err
	}
	policy, err := shipper.PolicyFor(cfg.Retry)
	if err != nil {
		return fmt.Errorf("cycle: %w", err)
	}

	opts := shipper.Options{Clock: r.opts.Clock, OnAttempt: r.attempted}
	if cfg.Probe.On() {
		p, err := newProber(cfg)
		if err != nil {
			return fmt.Errorf("cycle: %w", err)
		}
		opts.Prober = p
	}

	log.Info("cycle: uploading",
		"endpoint", client.Endpoint(),
		"key", identity.MaskKey(id.AgentKey),
		"key_in_body", cfg.Upload.SendKeyInBody,
		"max_attempts", policy.MaxAttempts,
		"delay", policy.Delay)

	attempts, err := shipper.New(client, opts).Ship(ctx, payload, policy)
	if err != nil {
		return err
	}
	log.Info("cycle: delivered", "attempts", attempts)
	return nil
}

func newProber(cfg config.AgentConfig) (*probe.DNSProber, error) {
	if cfg.Probe.Host != "" {
		return probe.New(cfg.Probe.Host, cfg.Probe.Timeout), nil
	}
	return probe.ForURL(cfg.ServerBaseURL, cfg.Probe.Timeout)
}

func (r *Runner) attempted(a shipper.Attempt) {
	if r.opts.Metrics == nil {
		return
	}
	switch {
	case a.Skipped:
		r.opts.Metrics.AttemptFinished(health.AttemptSkipped)
	case a.Err != nil:
		r.opts.Metrics.AttemptFinished(health.AttemptFailed)
	default:
		r.opts.Metrics.AttemptFinished(health.AttemptOK)
	}
}

func (r *Runner) finished(trigger string, err error) {
	if r.opts.Metrics == nil {
		return
	}
	r.opts.Metrics.CycleFinished(trigger, Outcome(err), r.opts.Clock.Now())
}

// Outcome classifies a cycle error for metrics.
func Outcome(err error) string {
	var ce *config.ConfigurationError
	var ee *shipper.ExhaustedError
	switch {
	case err == nil:
		return health.OutcomeOK
	case errors.As(err, &ce):
		return health.OutcomeConfigError
	case errors.As(err, &ee):
		return health.OutcomeExhausted
	default:
		return health.OutcomeFailed
	}
}

// preflight checks the settings without which no upload can succeed.
func preflight(cfg config.AgentConfig) error {
	if strings.TrimSpace(cfg.ServerBaseURL) == "" {
		return &config.ConfigurationError{Field: config.EnvServerBaseURL, Reason: "is required"}
	}
	if strings.TrimSpace(cfg.AgentKey) == "" {
		return &config.ConfigurationError{Field: config.EnvAgentKey, Reason: "is required"}
	}
	return nil
}
