// Package auth provides authentication middleware for sysinv-server.
//
// APIKeyMiddleware(mode, header, keys) returns HTTP middleware that checks
// the agent key in the named request header against the accepted keys.
//
// When mode != "apikey" or no keys are configured, all requests pass through
// (useful for local development with auth disabled). When the key is
// incorrect or absent, the middleware answers 401 immediately.
package auth
