package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sysinv/sysinv/agent/internal/cron"
	"github.com/sysinv/sysinv/pkg/types"
)

// Default values applied when fields are absent from every layer.
const (
	DefaultAgentKeyHeader  = types.DefaultAgentKeyHeader
	DefaultEndpointPath    = types.SystemInfoPath
	DefaultValidatePath    = types.ValidateKeyPath
	DefaultRequestTimeout  = 15 * time.Second
	DefaultProbeTimeout    = 5 * time.Second
	DefaultRetryProfile    = ProfileTransient
	DefaultScheduleCron    = "0 9 * * *"
	DefaultWarmUp          = 2 * time.Minute
	DefaultHeartbeat       = 60 * time.Second
	DefaultCommandTimeout  = 2 * time.Minute
	DefaultSnapshotFile    = "system-info.json"
	DefaultCheckInterval   = time.Minute
	DefaultAgentIDSentinel = "auto"
)

// Retry profiles. Transient targets short blips, offline targets a machine
// with no internet for a while.
const (
	ProfileTransient = "transient"
	ProfileOffline   = "offline"
)

// Environment-style keys read from the keystore and the process environment.
const (
	EnvServerBaseURL   = "SERVER_BASE_URL"
	EnvAgentID         = "AGENT_ID"
	EnvAgentKey        = "AGENT_KEY"
	EnvAgentKeyHeader  = "AGENT_KEY_HEADER_NAME"
	EnvSendKeyInBody   = "SEND_AGENT_KEY_IN_BODY"
	EnvMaxRetries      = "MAX_RETRIES"
	EnvRetryDelayMS    = "RETRY_DELAY_MS"
	EnvScheduleEnabled = "SCHEDULE_ENABLED"
	EnvScheduleCron    = "SCHEDULE_CRON"
	EnvTimeZone        = "TIME_ZONE"
)

// Config is the top-level YAML document.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds every agent-side setting.
type AgentConfig struct {
	// ServerBaseURL is the scheme://host[:port] prefix of the inventory API.
	ServerBaseURL string `yaml:"server_base_url"`

	// AgentID identifies this host to the server. "auto" or empty means the
	// host name.
	AgentID string `yaml:"agent_id"`

	// AgentKey is never read from YAML; it comes from the keystore or env.
	AgentKey string `yaml:"-"`

	// Upload controls endpoint paths and credential placement.
	Upload UploadConfig `yaml:"upload"`

	// Retry controls the per-cycle retry budget.
	Retry RetryConfig `yaml:"retry"`

	// Probe controls the pre-attempt connectivity check.
	Probe ProbeConfig `yaml:"probe"`

	// Schedule controls when inventory cycles run.
	Schedule ScheduleConfig `yaml:"schedule"`

	// Inventory controls collection and the local snapshot.
	Inventory InventoryConfig `yaml:"inventory"`

	// Health controls the liveness outputs.
	Health HealthConfig `yaml:"health"`

	// TLS holds optional TLS options for the server connection.
	TLS TLSConfig `yaml:"tls"`
}

// UploadConfig describes the upload endpoint and credential placement.
type UploadConfig struct {
	// EndpointPath is the PUT path template; {agentId} is replaced with the
	// path-escaped agent ID.
	EndpointPath string `yaml:"endpoint_path"`

	// ValidatePath is the GET path used to check a key before saving it.
	ValidatePath string `yaml:"validate_path"`

	// KeyHeader is the request header carrying the agent key.
	KeyHeader string `yaml:"key_header"`

	// SendKeyInBody also merges agentKey into the JSON body.
	SendKeyInBody bool `yaml:"send_key_in_body"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`
}

// RetryConfig selects a retry profile and optionally overrides it.
type RetryConfig struct {
	// Profile is one of: transient | offline.
	Profile string `yaml:"profile"`

	// MaxAttempts overrides the profile's attempt count when > 0.
	MaxAttempts int `yaml:"max_attempts"`

	// Delay overrides the profile's fixed delay when set.
	Delay *time.Duration `yaml:"delay"`
}

// ProbeConfig controls the DNS reachability check.
type ProbeConfig struct {
	// Enabled turns the probe on. Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// Host is resolved instead of the upload host when set.
	Host string `yaml:"host"`

	// Timeout bounds a single lookup.
	Timeout time.Duration `yaml:"timeout"`
}

// On reports whether the probe is enabled.
func (p ProbeConfig) On() bool { return p.Enabled == nil || *p.Enabled }

// ScheduleConfig controls the three cycle triggers and the heartbeat.
type ScheduleConfig struct {
	// Enabled registers the warm-up and recurring cycles. The startup cycle
	// and the heartbeat run regardless. Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// RunOnStart runs a cycle as soon as the scheduler starts. Defaults to true.
	RunOnStart *bool `yaml:"run_on_start"`

	// Cron is a 5-field expression in TimeZone.
	Cron string `yaml:"cron"`

	// TimeZone is an IANA name; empty means the host's local zone.
	TimeZone string `yaml:"time_zone"`

	// WarmUp delays the one-off cycle after start.
	WarmUp time.Duration `yaml:"warm_up"`

	// Heartbeat is the liveness tick interval.
	Heartbeat time.Duration `yaml:"heartbeat"`

	// CheckInterval is how often the wall clock is compared to the next due
	// time of the recurring cycle.
	CheckInterval time.Duration `yaml:"check_interval"`
}

// On reports whether the warm-up and recurring cycles are registered.
func (s ScheduleConfig) On() bool { return s.Enabled == nil || *s.Enabled }

// StartupRun reports whether a cycle runs immediately on start.
func (s ScheduleConfig) StartupRun() bool { return s.RunOnStart == nil || *s.RunOnStart }

// Location loads TimeZone.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.TimeZone)
}

// InventoryConfig controls collection.
type InventoryConfig struct {
	// SnapshotPath is where the last collected inventory is written.
	SnapshotPath string `yaml:"snapshot_path"`

	// Software enables package-manager enumeration.
	Software *bool `yaml:"software"`

	// CommandTimeout bounds each package-manager command.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// SoftwareOn reports whether software enumeration is enabled.
func (i InventoryConfig) SoftwareOn() bool { return i.Software == nil || *i.Software }

// HealthConfig controls liveness outputs.
type HealthConfig struct {
	// TextfilePath receives Prometheus text-format metrics on every heartbeat
	// (node_exporter textfile collector). Empty disables it.
	TextfilePath string `yaml:"textfile_path"`

	// Systemd sends READY/WATCHDOG notifications when running under systemd.
	Systemd bool `yaml:"systemd"`
}

// TLSConfig holds TLS dial options for the server.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// CAFile adds a PEM bundle to the trusted roots.
	CAFile string `yaml:"ca_file"`
}

// ConfigurationError reports a missing or invalid mandatory setting. It is
// never retried; an operator has to fix the configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Lookup resolves an environment-style key.
type Lookup func(key string) (string, bool)

// Load reads the YAML file at path (if non-empty), applies defaults, overlays
// values from lookup (if non-nil) and validates the result.
func Load(path string, lookup Lookup) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, &ConfigurationError{Field: "config file", Reason: fmt.Sprintf("%s does not exist", path)}
		case err != nil:
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if lookup != nil {
		if err := applyOverrides(&cfg.Agent, lookup); err != nil {
			return nil, err
		}
	}

	fillDefaults(&cfg.Agent)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			AgentID: DefaultAgentIDSentinel,
			Upload: UploadConfig{
				EndpointPath: DefaultEndpointPath,
				ValidatePath: DefaultValidatePath,
				KeyHeader:    DefaultAgentKeyHeader,
				Timeout:      DefaultRequestTimeout,
			},
			Retry: RetryConfig{Profile: DefaultRetryProfile},
			Probe: ProbeConfig{Timeout: DefaultProbeTimeout},
			Schedule: ScheduleConfig{
				Cron:          DefaultScheduleCron,
				WarmUp:        DefaultWarmUp,
				Heartbeat:     DefaultHeartbeat,
				CheckInterval: DefaultCheckInterval,
			},
			Inventory: InventoryConfig{
				SnapshotPath:   DefaultSnapshotFile,
				CommandTimeout: DefaultCommandTimeout,
			},
		},
	}
}

// fillDefaults restores defaults for fields an explicit empty YAML value
// cleared.
func fillDefaults(a *AgentConfig) {
	if a.AgentID == "" {
		a.AgentID = DefaultAgentIDSentinel
	}
	if a.Upload.EndpointPath == "" {
		a.Upload.EndpointPath = DefaultEndpointPath
	}
	if a.Upload.ValidatePath == "" {
		a.Upload.ValidatePath = DefaultValidatePath
	}
	if a.Upload.KeyHeader == "" {
		a.Upload.KeyHeader = DefaultAgentKeyHeader
	}
	if a.Retry.Profile == "" {
		a.Retry.Profile = DefaultRetryProfile
	}
	if a.Schedule.Cron == "" {
		a.Schedule.Cron = DefaultScheduleCron
	}
}

func applyOverrides(a *AgentConfig, lookup Lookup) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvServerBaseURL, &a.ServerBaseURL)
	str(EnvAgentID, &a.AgentID)
	str(EnvAgentKey, &a.AgentKey)
	str(EnvAgentKeyHeader, &a.Upload.KeyHeader)
	str(EnvScheduleCron, &a.Schedule.Cron)
	str(EnvTimeZone, &a.Schedule.TimeZone)

	if v, ok := lookup(EnvSendKeyInBody); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &ConfigurationError{Field: EnvSendKeyInBody, Reason: fmt.Sprintf("not a boolean: %q", v)}
		}
		a.Upload.SendKeyInBody = b
	}
	if v, ok := lookup(EnvScheduleEnabled); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &ConfigurationError{Field: EnvScheduleEnabled, Reason: fmt.Sprintf("not a boolean: %q", v)}
		}
		a.Schedule.Enabled = &b
	}
	if v, ok := lookup(EnvMaxRetries); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ConfigurationError{Field: EnvMaxRetries, Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		if n < 1 {
			return &ConfigurationError{Field: EnvMaxRetries, Reason: "must be at least 1"}
		}
		a.Retry.MaxAttempts = n
	}
	if v, ok := lookup(EnvRetryDelayMS); ok && strings.TrimSpace(v) != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ConfigurationError{Field: EnvRetryDelayMS, Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		d := time.Duration(ms) * time.Millisecond
		a.Retry.Delay = &d
	}
	return nil
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := &cfg.Agent
	a.ServerBaseURL = strings.TrimRight(strings.TrimSpace(a.ServerBaseURL), "/")
	if a.ServerBaseURL == "" {
		return &ConfigurationError{Field: EnvServerBaseURL, Reason: "is required"}
	}
	if !strings.HasPrefix(a.ServerBaseURL, "http://") && !strings.HasPrefix(a.ServerBaseURL, "https://") {
		return &ConfigurationError{Field: EnvServerBaseURL, Reason: fmt.Sprintf("must start with http:// or https://, got %q", a.ServerBaseURL)}
	}
	if !strings.Contains(a.Upload.EndpointPath, types.AgentIDPlaceholder) {
		return fmt.Errorf("config: upload.endpoint_path must contain {agentId}")
	}
	switch a.Retry.Profile {
	case ProfileTransient, ProfileOffline:
	default:
		return fmt.Errorf("config: retry.profile: unknown profile %q", a.Retry.Profile)
	}
	if a.Retry.MaxAttempts < 0 {
		return &ConfigurationError{Field: EnvMaxRetries, Reason: "must be at least 1"}
	}
	if a.Retry.Delay != nil && *a.Retry.Delay < 0 {
		return &ConfigurationError{Field: EnvRetryDelayMS, Reason: "must not be negative"}
	}
	if a.Upload.Timeout <= 0 {
		return fmt.Errorf("config: upload.timeout must be positive")
	}
	if a.Probe.Timeout <= 0 {
		return fmt.Errorf("config: probe.timeout must be positive")
	}
	if a.Schedule.Heartbeat <= 0 {
		return fmt.Errorf("config: schedule.heartbeat must be positive")
	}
	if a.Schedule.CheckInterval <= 0 {
		return fmt.Errorf("config: schedule.check_interval must be positive")
	}
	if a.Schedule.WarmUp < 0 {
		return fmt.Errorf("config: schedule.warm_up must not be negative")
	}
	if _, err := cron.Parse(a.Schedule.Cron); err != nil {
		return fmt.Errorf("config: schedule.cron: %w", err)
	}
	if _, err := a.Schedule.Location(); err != nil {
		return fmt.Errorf("config: schedule.time_zone: %w", err)
	}
	return nil
}
