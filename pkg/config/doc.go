// Package config provides configuration management for policyd.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("config.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml", true)
//
// The second form tolerates a missing file and starts from Defaults.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention POLICYD_SECTION_FIELD:
//
//   - POLICYD_POLICY_FILE overrides policy.file
//   - POLICYD_STORE_BACKEND overrides store.backend
//   - POLICYD_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Defaults
//  2. YAML file
//  3. Environment variables
//  4. Command-line flags (applied by cmd/policyd)
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8181"
//	policy:
//	  file: "/etc/policyd/policies.json"
//	store:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "/var/lib/policyd/policies.db"
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
