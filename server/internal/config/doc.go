// Package config loads the reference server's configuration from the
// `server:` section of config.yaml (the `agent:` key is ignored by the server
// binary).
//
// Config fields:
//   - HTTPPort               port for the inventory API (default 3000)
//   - Auth.Mode              "apikey" or "none"
//   - Auth.KeyEnv            environment variable holding the accepted keys,
//     comma separated
//   - Auth.Header            HTTP header carrying the key (default "x-agent-key")
//   - Inventory.TTL          how long an inventory is kept (default 30 days)
//   - Inventory.MaxBodyBytes upload size limit (default 16 MiB)
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
