package inventory

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// DefaultCommandTimeout bounds one software listing command.
const DefaultCommandTimeout = 2 * time.Minute

// Collector produces one inventory snapshot.
type Collector interface {
	Collect(ctx context.Context) (*SystemInfo, error)
}

// Options configures a HostCollector.
type Options struct {
	// Location formats collectedAtLocal. Defaults to time.Local.
	Location *time.Location

	// Software enables the installed-software section.
	Software bool

	// CommandTimeout bounds the software command.
	CommandTimeout time.Duration

	// Runner executes software commands. Defaults to ExecRunner.
	Runner Runner
}

// HostCollector collects the local host's inventory.
type HostCollector struct {
	opts Options

	// Injectable for tests.
	goos     string
	now      func() time.Time
	hostname func() (string, error)
	hardware func(ctx context.Context) Hardware
}

// NewHostCollector returns a HostCollector.
func NewHostCollector(opts Options) *HostCollector {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	return &HostCollector{
		opts:     opts,
		goos:     runtime.GOOS,
		now:      time.Now,
		hostname: os.Hostname,
		hardware: collectHardware,
	}
}

// Collect implements Collector. It fails only when ctx is done; sections
// that cannot be read are logged and left empty.
func (c *HostCollector) Collect(ctx context.Context) (*SystemInfo, error) {
	info := &SystemInfo{Software: Software{Apps: []App{}}}

	if c.opts.Software {
		cctx, cancel := context.WithTimeout(ctx, c.opts.CommandTimeout)
		apps, err := listSoftware(cctx, c.opts.Runner, c.goos)
		cancel()
		if err != nil {
			slog.Warn("inventory: software listing failed", "os", c.goos, "err", err)
		} else if apps != nil {
			info.Software.Apps = apps
		}
		info.Software.Count = len(info.Software.Apps)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info.Hardware = c.hardware(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := c.now()
	hostname, err := c.hostname()
	if err != nil {
		slog.Warn("inventory: hostname lookup failed", "err", err)
	}
	info.Agent = AgentInfo{
		CollectedAtUTC:   now.UTC().Format("2006-01-02T15:04:05.000Z"),
		CollectedAtLocal: now.In(c.opts.Location).Format("2006-01-02T15:04:05"),
		TimeZone:         c.opts.Location.String(),
		Host:             hostname,
		Platform:         c.goos,
		CollectionID:     uuid.NewString(),
	}
	if hi := info.Hardware.System; hi != nil {
		info.Agent.Release = hi.KernelVersion
	}
	return info, nil
}

// collectHardware reads every gopsutil section it can.
func collectHardware(ctx context.Context) Hardware {
	var hw Hardware

	if hi, err := host.InfoWithContext(ctx); err == nil {
		hw.System = hi
	} else {
		slog.Debug("inventory: host info", "err", err)
	}
	if ci, err := cpu.InfoWithContext(ctx); err == nil {
		hw.CPU = ci
	} else {
		slog.Debug("inventory: cpu info", "err", err)
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		hw.Cores.Physical = n
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		hw.Cores.Logical = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		hw.Memory = vm
	} else {
		slog.Debug("inventory: virtual memory", "err", err)
	}
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		hw.Swap = sw
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		hw.Load = avg
	}
	if parts, err := disk.PartitionsWithContext(ctx, false); err == nil {
		for _, p := range parts {
			fs := Filesystem{Partition: p}
			if du, err := disk.UsageWithContext(ctx, p.Mountpoint); err == nil {
				fs.Usage = du
			}
			hw.Filesystems = append(hw.Filesystems, fs)
		}
	} else {
		slog.Debug("inventory: disk partitions", "err", err)
	}
	if ifs, err := net.InterfacesWithContext(ctx); err == nil {
		hw.NetworkInterfaces = ifs
	} else {
		slog.Debug("inventory: network interfaces", "err", err)
	}
	if users, err := host.UsersWithContext(ctx); err == nil {
		hw.Users = users
	}
	// Sensors often return partial data with a warning error.
	if temps, _ := host.SensorsTemperaturesWithContext(ctx); len(temps) > 0 {
		hw.Temperatures = temps
	}
	return hw
}
