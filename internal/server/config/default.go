package config

import "time"

// Default configuration values.
const (
	DefaultSocketPath = "/run/svcreg/svcreg.sock"
	DefaultSocketMode = "0666"
	DefaultTCPAddr    = "127.0.0.1:5390"
	DefaultAdminAddr  = "127.0.0.1:5391"

	DefaultNotifyTimeout   = 500 * time.Millisecond
	DefaultRate            = 200.0
	DefaultBurst           = 400
	DefaultMaxConnections  = 1024
	DefaultShutdownTimeout = 10 * time.Second

	DefaultSelfLabel    = "u:object_r:hwservice_manager:s0"
	DefaultContextsFile = "/etc/svcreg/hwservice_contexts"
	DefaultPolicyFile   = "/etc/svcreg/policy.yaml"

	DefaultStarterRate    = 1.0
	DefaultStarterBurst   = 3
	DefaultStarterTimeout = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Socket: SocketConfig{
				Path: DefaultSocketPath,
				Mode: DefaultSocketMode,
			},
			TCP: TCPConfig{
				Enabled: false,
				Addr:    DefaultTCPAddr,
			},
			Admin: AdminConfig{
				Enabled: true,
				Addr:    DefaultAdminAddr,
			},
			NotifyTimeout:   DefaultNotifyTimeout,
			Rate:            DefaultRate,
			Burst:           DefaultBurst,
			MaxConnections:  DefaultMaxConnections,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Security: SecuritySection{
			SelfLabel:    DefaultSelfLabel,
			ContextsFile: DefaultContextsFile,
			PolicyFile:   DefaultPolicyFile,
		},
		Starter: StarterSection{
			Rate:    DefaultStarterRate,
			Burst:   DefaultStarterBurst,
			Timeout: DefaultStarterTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
