package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"

	"github.com/yndnr/svcreg-go/internal/telemetry/logger"
)

const minTokenSecretBytes = 16

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	if err := verifyStarter(&cfg.Starter); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

// SocketMode parses the configured socket mode.
func (c SocketConfig) SocketMode() (fs.FileMode, error) {
	if c.Mode == "" {
		return 0o666, nil
	}
	m, err := strconv.ParseUint(c.Mode, 8, 32)
	if err != nil || m > 0o777 {
		return 0, fmt.Errorf("server.socket.mode %q is not an octal permission", c.Mode)
	}
	return fs.FileMode(m), nil
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Socket.Path == "" && !cfg.TCP.Enabled {
		return errors.New("server.socket.path is required unless server.tcp is enabled")
	}
	if _, err := cfg.Socket.SocketMode(); err != nil {
		return err
	}
	if cfg.TCP.Enabled {
		if err := verifyAddr("server.tcp.addr", cfg.TCP.Addr); err != nil {
			return err
		}
	}
	if cfg.Admin.Enabled {
		if err := verifyAddr("server.admin.addr", cfg.Admin.Addr); err != nil {
			return err
		}
		if cfg.TCP.Enabled && cfg.TCP.Addr == cfg.Admin.Addr {
			return fmt.Errorf("server.tcp.addr and server.admin.addr both use %s", cfg.Admin.Addr)
		}
		for _, entry := range cfg.Admin.AllowList {
			if !validAllowEntry(entry) {
				return fmt.Errorf("server.admin.allow_list: invalid IP or CIDR %q", entry)
			}
		}
		if (cfg.Admin.TLSCertFile == "") != (cfg.Admin.TLSKeyFile == "") {
			return errors.New("server.admin.tls_cert_file and server.admin.tls_key_file must be set together")
		}
		if cfg.Admin.ClientCAFile != "" && !cfg.Admin.TLSEnabled() {
			return errors.New("server.admin.client_ca_file requires server.admin.tls_cert_file")
		}
	}
	if cfg.NotifyTimeout <= 0 {
		return errors.New("server.notify_timeout must be positive")
	}
	if cfg.Rate < 0 {
		return errors.New("server.rate must not be negative")
	}
	if cfg.Rate > 0 && cfg.Burst < 1 {
		return errors.New("server.burst must be at least 1 when server.rate is set")
	}
	if cfg.MaxConnections < 0 {
		return errors.New("server.max_connections must not be negative")
	}
	return nil
}

func verifyAddr(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, port, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	} else if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("%s: invalid port %q", field, port)
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.SelfLabel == "" {
		return errors.New("security.self_label is required")
	}
	if cfg.ContextsFile == "" {
		return errors.New("security.contexts_file is required")
	}
	if cfg.PolicyFile == "" {
		return errors.New("security.policy_file is required")
	}
	if _, err := cfg.MasterSecret(); err != nil {
		return err
	}
	return nil
}

// MasterSecret decodes TokenSecret. It returns nil when none is set.
func (c SecuritySection) MasterSecret() ([]byte, error) {
	if c.TokenSecret == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(c.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("security.token_secret: %w", err)
	}
	if len(b) < minTokenSecretBytes {
		return nil, fmt.Errorf("security.token_secret must be at least %d bytes", minTokenSecretBytes)
	}
	return b, nil
}

func verifyStarter(cfg *StarterSection) error {
	if cfg.Rate < 0 {
		return errors.New("starter.rate must not be negative")
	}
	if cfg.Rate > 0 && cfg.Burst < 1 {
		return errors.New("starter.burst must be at least 1 when starter.rate is set")
	}
	if cfg.Timeout < 0 {
		return errors.New("starter.timeout must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "", "json", "text", "console":
		return nil
	default:
		return fmt.Errorf("log.format %q is not one of json, text, console", cfg.Format)
	}
}

func validAllowEntry(entry string) bool {
	if strings.Contains(entry, "/") {
		_, _, err := net.ParseCIDR(entry)
		return err == nil
	}
	return net.ParseIP(entry) != nil
}
