package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked, for
// logging the effective configuration.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Manifest.Files = append([]string(nil), cfg.Manifest.Files...)
	sanitized.Starter.Command = append([]string(nil), cfg.Starter.Command...)
	sanitized.Server.Admin.AllowList = append([]string(nil), cfg.Server.Admin.AllowList...)

	if sanitized.Security.TokenSecret != "" {
		sanitized.Security.TokenSecret = maskSecret(sanitized.Security.TokenSecret)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
