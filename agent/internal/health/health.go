package health

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Metric names written to the textfile.
const (
	MetricHeartbeats    = "sysinv_agent_heartbeats_total"
	MetricCycles        = "sysinv_agent_cycles_total"
	MetricAttempts      = "sysinv_agent_delivery_attempts_total"
	MetricLastHeartbeat = "sysinv_agent_last_heartbeat_timestamp_seconds"
	MetricLastSuccess   = "sysinv_agent_last_success_timestamp_seconds"
)

// Cycle outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeExhausted   = "exhausted"
	OutcomeConfigError = "config_error"
	OutcomeFailed      = "failed"
)

// Attempt outcomes.
const (
	AttemptOK      = "ok"
	AttemptFailed  = "failed"
	AttemptSkipped = "skipped"
)

// Options configures a Recorder.
type Options struct {
	// TextfilePath receives the metrics on every heartbeat. Empty disables it.
	TextfilePath string

	// Systemd sends READY and WATCHDOG notifications.
	Systemd bool
}

type cycleKey struct {
	trigger string
	outcome string
}

// Recorder accumulates liveness and delivery counters. It is safe for
// concurrent use.
type Recorder struct {
	opts   Options
	notify func(state string) (bool, error) // injectable for tests

	mu            sync.Mutex
	heartbeats    uint64
	cycles        map[cycleKey]uint64
	attempts      map[string]uint64
	lastHeartbeat time.Time
	lastSuccess   time.Time
}

// New returns a Recorder.
func New(opts Options) *Recorder {
	return &Recorder{
		opts: opts,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
		cycles:   make(map[cycleKey]uint64),
		attempts: make(map[string]uint64),
	}
}

// Ready tells systemd the agent finished starting.
func (r *Recorder) Ready() {
	r.sdNotify(daemon.SdNotifyReady)
}

// Stopping tells systemd the agent is shutting down.
func (r *Recorder) Stopping() {
	r.sdNotify(daemon.SdNotifyStopping)
}

// Heartbeat records a liveness tick at now.
func (r *Recorder) Heartbeat(now time.Time) {
	r.mu.Lock()
	r.heartbeats++
	r.lastHeartbeat = now
	n := r.heartbeats
	r.mu.Unlock()

	slog.Debug("health: heartbeat", "count", n)
	if err := r.Flush(); err != nil {
		slog.Warn("health: write textfile failed", "path", r.opts.TextfilePath, "err", err)
	}
	r.sdNotify(daemon.SdNotifyWatchdog)
}

// CycleFinished records the outcome of one cycle.
func (r *Recorder) CycleFinished(trigger, outcome string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles[cycleKey{trigger: trigger, outcome: outcome}]++
	if outcome == OutcomeOK {
		r.lastSuccess = now
	}
}

// AttemptFinished records one delivery attempt.
func (r *Recorder) AttemptFinished(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[outcome]++
}

// LastSuccess returns when a cycle last delivered, or the zero time.
func (r *Recorder) LastSuccess() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSuccess
}

// Families returns the current metrics sorted by name.
func (r *Recorder) Families() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	cycles := &dto.MetricFamily{
		Name: proto.String(MetricCycles),
		Help: proto.String("Inventory cycles by trigger and outcome."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	keys := make([]cycleKey, 0, len(r.cycles))
	for k := range r.cycles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].trigger != keys[j].trigger {
			return keys[i].trigger < keys[j].trigger
		}
		return keys[i].outcome < keys[j].outcome
	})
	for _, k := range keys {
		cycles.Metric = append(cycles.Metric, counter(float64(r.cycles[k]),
			label("outcome", k.outcome), label("trigger", k.trigger)))
	}

	attempts := &dto.MetricFamily{
		Name: proto.String(MetricAttempts),
		Help: proto.String("Upload attempts by outcome."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	outcomes := make([]string, 0, len(r.attempts))
	for o := range r.attempts {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		attempts.Metric = append(attempts.Metric, counter(float64(r.attempts[o]), label("outcome", o)))
	}

	fams := []*dto.MetricFamily{
		{
			Name:   proto.String(MetricHeartbeats),
			Help:   proto.String("Liveness ticks since start."),
			Type:   dto.MetricType_COUNTER.Enum(),
			Metric: []*dto.Metric{counter(float64(r.heartbeats))},
		},
		{
			Name:   proto.String(MetricLastHeartbeat),
			Help:   proto.String("Unix time of the last heartbeat."),
			Type:   dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{gauge(unixSeconds(r.lastHeartbeat))},
		},
		{
			Name:   proto.String(MetricLastSuccess),
			Help:   proto.String("Unix time of the last successful delivery."),
			Type:   dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{gauge(unixSeconds(r.lastSuccess))},
		},
	}
	// Families with no samples are omitted; the text format rejects them.
	if len(cycles.Metric) > 0 {
		fams = append(fams, cycles)
	}
	if len(attempts.Metric) > 0 {
		fams = append(fams, attempts)
	}
	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// WriteText renders the metrics in the Prometheus text format.
func (r *Recorder) WriteText(w io.Writer) error {
	for _, mf := range r.Families() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("health: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Flush rewrites the textfile. It is a no-op without a TextfilePath.
func (r *Recorder) Flush() error {
	path := r.opts.TextfilePath
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("health: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("health: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if err := r.WriteText(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("health: close temp: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("health: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("health: rename: %w", err)
	}
	return nil
}

func (r *Recorder) sdNotify(state string) {
	if !r.opts.Systemd {
		return
	}
	sent, err := r.notify(state)
	if err != nil {
		slog.Warn("health: systemd notify failed", "state", state, "err", err)
		return
	}
	if !sent {
		slog.Debug("health: not running under systemd, notification dropped", "state", state)
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func counter(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Counter: &dto.Counter{Value: proto.Float64(v)}}
}

func gauge(v float64) *dto.Metric {
	return &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMilli()) / 1000
}
