// Package inventory collects the hardware and software inventory of the
// local host and persists the last collected snapshot.
//
// HostCollector builds a SystemInfo in three sections:
//
//   - agent: collection metadata (UTC and local timestamps, host, platform,
//     release, a per-collection UUID)
//   - hardware: gopsutil host, CPU, memory, disk, network and sensor data
//   - software: installed applications from the platform package manager
//
// Software is listed by running one command per platform (dpkg-query or rpm
// on Linux, system_profiler on macOS, PowerShell registry and Appx queries on
// Windows) through an injectable Runner, and parsing its output. A failing
// source leaves its section empty and is logged; collection itself only
// fails when the context is done.
//
// The upload path treats a SystemInfo as opaque JSON. SaveSnapshot writes it
// atomically to disk and LoadSnapshot reads a file back as raw JSON for
// one-shot uploads.
package inventory
