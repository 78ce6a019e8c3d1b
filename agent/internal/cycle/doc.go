// Package cycle runs one inventory cycle: check configuration, collect,
// save the local snapshot and upload with retry.
//
// Runner.Run is the scheduler's RunFunc. The agent key and base URL are
// checked before anything else, so a missing credential surfaces as a
// *config.ConfigurationError without collecting or touching the network.
//
// Cycles for the same agent ID that overlap (the startup and warm-up
// triggers on a slow host, say) are collapsed with singleflight: the later
// caller waits for and shares the earlier cycle's result.
//
// Runner.Update swaps the configuration used by the next cycle. A cycle
// already running keeps the settings it started with.
package cycle
