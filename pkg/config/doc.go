// Package config provides configuration management for threadgate.
//
// Configuration is read from a YAML file, completed with defaults,
// overridden from the environment and validated.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("threadgate.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("threadgate.yaml")
//	cfg, err := config.Load("threadgate.yaml") // falls back to defaults when missing
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention THREADGATE_SECTION_FIELD:
//
//   - THREADGATE_PROXY_LISTEN_ADDRESS overrides proxy.listen_address
//   - THREADGATE_UPSTREAM_COMMAND overrides upstream.command
//   - THREADGATE_ALIASES_BACKEND overrides aliases.backend
//   - THREADGATE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// The values forwarded to the upstream process (upstream.env) are not
// overridden this way; unset keys fall back to the proxy's own environment
// under their plain names (OPENAI_API_KEY and so on).
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// Watcher observes the file with fsnotify, debounces bursts of writes and
// calls ReloadConfig. Invalid edits are logged and ignored.
package config
