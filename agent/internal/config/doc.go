// Package config loads the agent configuration.
//
// Settings come from three layers, lowest first:
//   - the optional YAML file (agent: section), parsed with defaults applied
//   - the keystore files (base, then user overrides)
//   - the process environment
//
// The upper two layers are read through a lookup function using the
// deployment variable names: SERVER_BASE_URL, AGENT_ID, AGENT_KEY,
// AGENT_KEY_HEADER_NAME, SEND_AGENT_KEY_IN_BODY, MAX_RETRIES, RETRY_DELAY_MS,
// SCHEDULE_ENABLED, SCHEDULE_CRON and TIME_ZONE.
//
// Load validates the result. A missing server base URL is a
// *ConfigurationError; a missing agent key is not checked here because the
// agent may start before a key has been entered. The cycle runner checks it
// before every upload.
//
// Watch(ctx, paths, onChange) uses fsnotify on the parent directories of the
// given files, so files that do not exist yet (the user keystore before the
// first save) and atomic rename-over writes are both observed.
package config
