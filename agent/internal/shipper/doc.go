// Package shipper delivers one inventory payload to the server with bounded,
// fixed-interval retry.
//
// Shipper.Ship() runs at most Policy.MaxAttempts strictly sequential
// attempts. Before each attempt the configured Prober (DNS resolution of the
// server host) is consulted; when it reports the server unreachable the send
// is skipped and the attempt is counted as failed with a
// *probe.ConnectivityError. The first successful Send ends the loop.
//
// Between failed attempts Ship waits Policy.Delay. The delay is fixed, never
// exponential: the failure mode being ridden out is "network or server
// temporarily down", not an overloaded server. A zero delay still yields the
// processor between attempts.
//
// When the budget is spent Ship returns *ExhaustedError wrapping the last
// cause. Individual *uploader.DeliveryError values never escape on their own.
//
// Two presets cover the deployments seen in practice: TransientPolicy (5
// attempts, 3s apart) for short blips and OfflinePolicy (10 attempts, 30s
// apart) for hosts that are regularly offline.
//
// The wait primitive is injectable for testing (see Options.Clock).
package shipper
