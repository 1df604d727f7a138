package config

import "time"

// ServerConfig is the root configuration for svcreg-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server" yaml:"server"`
	Security SecuritySection `koanf:"security" yaml:"security"`
	Manifest ManifestSection `koanf:"manifest" yaml:"manifest"`
	Starter  StarterSection  `koanf:"starter" yaml:"starter"`
	Log      LogSection      `koanf:"log" yaml:"log"`
}

// ServerSection configures listeners and per-connection limits.
type ServerSection struct {
	Socket SocketConfig `koanf:"socket" yaml:"socket"`
	TCP    TCPConfig    `koanf:"tcp" yaml:"tcp"`
	Admin  AdminConfig  `koanf:"admin" yaml:"admin"`

	// NotifyTimeout bounds the write of one notification to a subscriber.
	NotifyTimeout time.Duration `koanf:"notify_timeout" yaml:"notify_timeout"`

	// Rate and Burst limit commands per connection. Rate 0 disables.
	Rate  float64 `koanf:"rate" yaml:"rate"`
	Burst int     `koanf:"burst" yaml:"burst"`

	MaxConnections  int           `koanf:"max_connections" yaml:"max_connections"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SocketConfig configures the unix socket clients register through.
type SocketConfig struct {
	Path string `koanf:"path" yaml:"path"`

	// Mode is the octal file mode of the socket, e.g. "0666".
	Mode string `koanf:"mode" yaml:"mode"`
}

// TCPConfig configures the development TCP listener. TCP peers carry no
// credentials and all get Label.
type TCPConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
	Label   string `koanf:"label" yaml:"label"`
}

// AdminConfig configures the HTTP server for health, metrics and dumps.
type AdminConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`

	// AllowList restricts the debug endpoints to these IPs or CIDRs.
	// Empty means no restriction.
	AllowList []string `koanf:"allow_list" yaml:"allow_list"`

	// TLSCertFile and TLSKeyFile switch the server to HTTPS. Both files
	// are reloaded when they change.
	TLSCertFile string `koanf:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file" yaml:"tls_key_file"`

	// ClientCAFile requires clients to present a certificate it signed.
	ClientCAFile string `koanf:"client_ca_file" yaml:"client_ca_file"`
}

// TLSEnabled reports whether the admin server serves HTTPS.
func (c AdminConfig) TLSEnabled() bool {
	return c.TLSCertFile != ""
}

// SecuritySection configures labels, policy and the token secret.
type SecuritySection struct {
	// SelfLabel is the registry's own label, the target of list checks.
	SelfLabel string `koanf:"self_label" yaml:"self_label"`

	// ContextsFile maps interfaces to labels.
	ContextsFile string `koanf:"contexts_file" yaml:"contexts_file"`

	// PolicyFile holds the allow/deny rule table.
	PolicyFile string `koanf:"policy_file" yaml:"policy_file"`

	// DefaultLabel is used for processes without a security context.
	DefaultLabel string `koanf:"default_label" yaml:"default_label"`

	// TokenSecret is a hex master secret for token signing. Empty means a
	// random secret per run.
	TokenSecret string `koanf:"token_secret" yaml:"token_secret"`
}

// ManifestSection lists the manifest files to load.
type ManifestSection struct {
	Files []string `koanf:"files" yaml:"files"`
}

// StarterSection configures how missing services are started.
type StarterSection struct {
	// Command is run with SVCREG_INTERFACE and SVCREG_INSTANCE set. Empty
	// means lookups only log.
	Command []string `koanf:"command" yaml:"command"`

	// Rate and Burst limit starts per iface/instance. Rate 0 disables.
	Rate    float64       `koanf:"rate" yaml:"rate"`
	Burst   int           `koanf:"burst" yaml:"burst"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}
