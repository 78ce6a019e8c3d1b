package inventory

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// SystemInfo is one inventory snapshot.
type SystemInfo struct {
	Agent    AgentInfo `json:"agent"`
	Hardware Hardware  `json:"hardware"`
	Software Software  `json:"software"`
}

// AgentInfo describes when and where the snapshot was taken.
type AgentInfo struct {
	CollectedAtUTC   string `json:"collectedAtUtc"`
	CollectedAtLocal string `json:"collectedAtLocal"`
	TimeZone         string `json:"timeZone"`
	Host             string `json:"host"`
	Platform         string `json:"platform"`
	Release          string `json:"release"`
	CollectionID     string `json:"collectionId"`
}

// Hardware holds the gopsutil views of the host. Sections that could not be
// read are left empty.
type Hardware struct {
	System            *host.InfoStat         `json:"system,omitempty"`
	CPU               []cpu.InfoStat         `json:"cpu,omitempty"`
	Cores             CoreCount              `json:"cores"`
	Memory            *mem.VirtualMemoryStat `json:"mem,omitempty"`
	Swap              *mem.SwapMemoryStat    `json:"swap,omitempty"`
	Load              *load.AvgStat          `json:"load,omitempty"`
	Filesystems       []Filesystem           `json:"fsSize,omitempty"`
	NetworkInterfaces net.InterfaceStatList  `json:"networkInterfaces,omitempty"`
	Users             []host.UserStat        `json:"users,omitempty"`
	Temperatures      []host.TemperatureStat `json:"temp,omitempty"`
}

// CoreCount is the physical and logical CPU count.
type CoreCount struct {
	Physical int `json:"physical"`
	Logical  int `json:"logical"`
}

// Filesystem is a mounted partition and its usage.
type Filesystem struct {
	Partition disk.PartitionStat `json:"partition"`
	Usage     *disk.UsageStat    `json:"usage,omitempty"`
}

// Software lists installed applications.
type Software struct {
	Count int   `json:"count"`
	Apps  []App `json:"apps"`
}

// App is one installed application. Only Name is always set; the other
// fields depend on the source.
type App struct {
	Name              string `json:"name"`
	Version           string `json:"version,omitempty"`
	Source            string `json:"source,omitempty"`
	Publisher         string `json:"publisher,omitempty"`
	InstallLocation   string `json:"installLocation,omitempty"`
	PackageFamilyName string `json:"packageFamilyName,omitempty"`
	Path              string `json:"path,omitempty"`
	LastModified      string `json:"lastModified,omitempty"`
}
