package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/sysinv/sysinv/agent/internal/config"
	"github.com/sysinv/sysinv/agent/internal/cycle"
	"github.com/sysinv/sysinv/agent/internal/health"
	"github.com/sysinv/sysinv/agent/internal/identity"
	"github.com/sysinv/sysinv/agent/internal/inventory"
	"github.com/sysinv/sysinv/agent/internal/keystore"
	"github.com/sysinv/sysinv/agent/internal/scheduler"
	"github.com/sysinv/sysinv/agent/internal/uploader"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitDelivery = 2
)

type options struct {
	configPath string
	baseStore  string
	userStore  string
	stateDir   string
	agentKey   string
	configure  bool
	once       bool
	file       string
	status     bool
	logLevel   string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid --log-level %q\n", opts.logLevel)
		return exitError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := keystore.New(opts.baseStore, opts.userStore)
	cfg, err := loadConfig(opts, store)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return exitError
	}

	if opts.agentKey != "" || opts.configure {
		if err := enroll(ctx, opts, cfg, store); err != nil {
			slog.Error("agent key not saved", "err", err)
			return exitError
		}
		if opts.configure {
			return exitOK
		}
		if cfg, err = loadConfig(opts, store); err != nil {
			slog.Error("failed to reload config", "err", err)
			return exitError
		}
	}

	if opts.status {
		return printStatus(cfg)
	}

	recorder := health.New(health.Options{
		TextfilePath: cfg.Agent.Health.TextfilePath,
		Systemd:      cfg.Agent.Health.Systemd,
	})
	collector, err := newCollector(cfg.Agent)
	if err != nil {
		slog.Error("failed to build collector", "err", err)
		return exitError
	}
	runner := cycle.New(cfg.Agent, cycle.Options{Collector: collector, Metrics: recorder})

	switch {
	case opts.file != "":
		return uploadFile(ctx, runner, opts.file)
	case opts.once:
		if err := runner.Run(ctx, scheduler.TriggerManual); err != nil {
			slog.Error("inventory cycle failed", "err", err)
			return exitDelivery
		}
		return exitOK
	}

	if err := daemon(ctx, opts, store, runner, recorder); err != nil {
		slog.Error("agent stopped", "err", err)
		return exitError
	}
	return exitOK
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("sysinv-agent", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "path to the YAML config file (optional)")
	fs.StringVar(&o.baseStore, "base-store", "", "packaged KEY=VALUE settings file")
	fs.StringVar(&o.userStore, "user-store", defaultPath("agent.env"), "per-host KEY=VALUE settings file, written by --agent-key and --configure")
	fs.StringVar(&o.stateDir, "state-dir", defaultPath(""), "directory for the local inventory snapshot")
	fs.StringVar(&o.agentKey, "agent-key", "", "validate this agent key with the server and save it")
	fs.BoolVar(&o.configure, "configure", false, "prompt for the agent key, validate and save it, then exit")
	fs.BoolVar(&o.once, "once", false, "run one inventory cycle and exit")
	fs.StringVarP(&o.file, "file", "f", "", "upload an existing JSON inventory file and exit")
	fs.BoolVar(&o.status, "status", false, "print liveness metrics from the health textfile and exit")
	fs.StringVar(&o.logLevel, "log-level", "info", "debug | info | warn | error")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// defaultPath returns name under the per-user config directory.
func defaultPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "sysinv", name)
}

// loadConfig merges the YAML file, both key stores and the environment.
func loadConfig(opts options, store *keystore.Store) (*config.Config, error) {
	values, err := store.Load()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configPath, keystore.Lookup(values, nil))
	if err != nil {
		return nil, err
	}
	if p := cfg.Agent.Inventory.SnapshotPath; p != "" && !filepath.IsAbs(p) && opts.stateDir != "" {
		cfg.Agent.Inventory.SnapshotPath = filepath.Join(opts.stateDir, p)
	}
	return cfg, nil
}

func enroll(ctx context.Context, opts options, cfg *config.Config, store *keystore.Store) error {
	key := opts.agentKey
	if key == "" {
		var err error
		if key, err = identity.Prompt(os.Stdin, os.Stderr); err != nil {
			return err
		}
	}
	client, err := uploader.NewHTTPClient(cfg.Agent.Upload.Timeout, uploader.TLSOptions{
		InsecureSkipVerify: cfg.Agent.TLS.InsecureSkipVerify,
		CAFile:             cfg.Agent.TLS.CAFile,
	})
	if err != nil {
		return err
	}
	v := uploader.NewValidator(cfg.Agent, client)
	if err := identity.Enroll(ctx, v, store, config.EnvAgentKey, key); err != nil {
		return err
	}
	slog.Info("agent key saved", "key", identity.MaskKey(key), "path", store.UserPath)
	return nil
}

func newCollector(a config.AgentConfig) (*inventory.HostCollector, error) {
	loc, err := a.Schedule.Location()
	if err != nil {
		return nil, err
	}
	return inventory.NewHostCollector(inventory.Options{
		Location:       loc,
		Software:       a.Inventory.SoftwareOn(),
		CommandTimeout: a.Inventory.CommandTimeout,
	}), nil
}

func uploadFile(ctx context.Context, runner *cycle.Runner, path string) int {
	payload, err := inventory.LoadSnapshot(path)
	if err != nil {
		slog.Error("cannot read inventory file", "path", path, "err", err)
		return exitError
	}
	if err := runner.Upload(ctx, payload); err != nil {
		slog.Error("upload failed", "path", path, "err", err)
		return exitDelivery
	}
	slog.Info("upload complete", "path", path)
	return exitOK
}

func printStatus(cfg *config.Config) int {
	path := cfg.Agent.Health.TextfilePath
	if path == "" {
		fmt.Fprintln(os.Stderr, "health.textfile_path is not configured")
		return exitError
	}
	st, err := health.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	fmt.Printf("heartbeats:      %d\n", st.Heartbeats)
	fmt.Printf("last heartbeat:  %s\n", formatTime(st.LastHeartbeat))
	fmt.Printf("last success:    %s\n", formatTime(st.LastSuccess))
	fmt.Printf("cycles:          %v\n", st.Cycles)
	fmt.Printf("upload attempts: %v\n", st.Attempts)
	return exitOK
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}
