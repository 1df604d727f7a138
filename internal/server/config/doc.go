// Package config defines the registry server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation before startup
//   - sanitize.go: a copy safe for logging
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// SVCREG_ environment variables and command-line flags.
package config
