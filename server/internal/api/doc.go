// Package api implements the HTTP REST API for sysinv-server.
//
// New(store, opts) returns an http.Handler that serves:
//
//	PUT /api/v1/agents/{agentId}/system-info  store an agent's latest inventory (204)
//	GET /api/v1/agents/{agentId}/system-info  the stored inventory; 404 if unknown or stale
//	GET /api/v1/agents                        summaries of all live agents
//	GET /api/v1/agents/validate-agent-key     {"valid":true} for an accepted key
//	GET /api/v1/health                        liveness and agent count, unauthenticated
//
// Every route except health runs behind Options.Auth. Errors are returned as
// JSON types.ErrorResponse bodies. No external HTTP framework is used.
package api
