package config

import "time"

const (
	DefaultSocket  = "unix:///run/svcreg/svcreg.sock"
	DefaultAdmin   = "http://127.0.0.1:5391"
	DefaultOutput  = "table"
	DefaultTimeout = 10 * time.Second
)

// CLIConfig is the configuration for svcreg-cli. Flags and SVCREG_*
// environment variables override it.
type CLIConfig struct {
	// Socket is the registry address, see connection.ParseTarget.
	Socket string `yaml:"socket"`

	// Admin is the base URL of the admin HTTP server.
	Admin string `yaml:"admin"`

	// AdminCA verifies an https admin server instead of the system roots.
	// AdminCert and AdminKey are presented when it asks for a client
	// certificate.
	AdminCA   string `yaml:"admin_ca,omitempty"`
	AdminCert string `yaml:"admin_cert,omitempty"`
	AdminKey  string `yaml:"admin_key,omitempty"`

	Output  string        `yaml:"output"` // table, json, yaml
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Socket:  DefaultSocket,
		Admin:   DefaultAdmin,
		Output:  DefaultOutput,
		Timeout: DefaultTimeout,
	}
}
