// Package probe checks whether the inventory server is reachable before an
// upload attempt is spent on it.
//
// Probe resolves a host name with a short timeout and returns a plain bool.
// It never returns an error: an unreachable network is a signal the retry
// loop acts on, not a failure of the probe itself.
package probe
