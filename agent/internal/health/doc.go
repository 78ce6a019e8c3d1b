// Package health records agent liveness and cycle outcomes and exposes them
// as Prometheus text-format metrics.
//
// The scheduler heartbeat calls Recorder.Heartbeat. A heartbeat is a liveness
// signal only: it never opens a connection to the server. On every heartbeat
// the Recorder:
//
//   - increments sysinv_agent_heartbeats_total
//   - rewrites the textfile at Options.TextfilePath (node_exporter textfile
//     collector format) with a temp file and rename
//   - sends WATCHDOG=1 to systemd when Options.Systemd is set
//
// Cycle results and individual delivery attempts are counted by label so an
// operator can tell "offline all week" (skipped attempts) from "key rejected"
// (failed attempts with no successes).
//
// ReadFile parses a textfile written by a running agent back into a Status,
// which the CLI prints for --status.
package health
