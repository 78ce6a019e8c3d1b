// Package scheduler decides when inventory cycles run.
//
// A Scheduler registers up to three cycle triggers and one liveness
// heartbeat when Start is first called:
//
//   - startup: one cycle immediately
//   - warmup: one cycle after Options.WarmUp (default 2m)
//   - schedule: a recurring cycle driven by a 5-field cron expression
//   - heartbeat: Options.Beat every Options.Heartbeat (default 60s)
//
// Start is one-way and idempotent. Later calls register nothing, so a config
// reload that calls Start again cannot double the cycle rate.
//
// The recurring trigger is not a long sleep until the next due time. A check
// timer fires every Options.CheckInterval and compares the wall clock with
// the next due time. After the host wakes from suspend an overdue cycle runs
// once, and the next due time is recomputed from the current time.
//
// Each cycle runs in its own goroutine with a context that cannot be
// cancelled, so a cycle in progress finishes even during shutdown. Errors
// and panics from a cycle are logged and never stop later triggers. Stop
// cancels every timer and waits for running cycles.
package scheduler
