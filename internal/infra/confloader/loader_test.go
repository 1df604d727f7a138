package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testConfig struct {
	Server struct {
		NotifyTimeout time.Duration `koanf:"notify_timeout"`
		Socket        struct {
			Path string `koanf:"path"`
		} `koanf:"socket"`
		Admin struct {
			Enabled bool `koanf:"enabled"`
		} `koanf:"admin"`
	} `koanf:"server"`
	Manifest struct {
		Files []string `koanf:"files"`
	} `koanf:"manifest"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/path/to/config.yaml"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q", l.filePath)
	}
	if len(l.Origins()) != 0 {
		t.Errorf("Origins() = %v before any layer", l.Origins())
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  socket:
    path: /run/svcreg.sock
  admin:
    enabled: true
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.GetString("server.socket.path"); got != "/run/svcreg.sock" {
		t.Errorf("server.socket.path = %q", got)
	}
	if !l.GetBool("server.admin.enabled") {
		t.Error("server.admin.enabled should be true")
	}

	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") should not error, got: %v", err)
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("SVCREG_SERVER__SOCKET__PATH", "/tmp/env.sock")
	t.Setenv("SVCREG_SERVER__NOTIFY_TIMEOUT", "3s")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := l.GetString("server.socket.path"); got != "/tmp/env.sock" {
		t.Errorf("server.socket.path = %q", got)
	}
	if got := l.GetString("server.notify_timeout"); got != "3s" {
		t.Errorf("single underscores must stay in the key, server.notify_timeout = %q", got)
	}
}

func TestLoader_LoadEnv_CustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_LOG__LEVEL", "debug")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := l.GetString("log.level"); got != "debug" {
		t.Errorf("log.level = %q", got)
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"server.socket.path": "/from/flag.sock"}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	var cfg testConfig
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.Server.Socket.Path != "/from/flag.sock" {
		t.Errorf("dotted map keys should unmarshal as nested, got %q", cfg.Server.Socket.Path)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
server:
  socket:
    path: /from/file.sock
  notify_timeout: 2s
manifest:
  files: [a.yaml, b.yaml]
`)
	t.Setenv("SVCREG_SERVER__SOCKET__PATH", "/from/env.sock")

	var cfg testConfig
	cfg.Server.Admin.Enabled = true // default not touched by any source

	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Socket.Path != "/from/env.sock" {
		t.Errorf("Path = %q, env should override file", cfg.Server.Socket.Path)
	}
	if cfg.Server.NotifyTimeout != 2*time.Second {
		t.Errorf("NotifyTimeout = %v", cfg.Server.NotifyTimeout)
	}
	if len(cfg.Manifest.Files) != 2 {
		t.Errorf("Files = %v", cfg.Manifest.Files)
	}
	if !cfg.Server.Admin.Enabled {
		t.Error("defaults must survive Load()")
	}
}

func TestLoader_Load_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := NewLoader(WithConfigFile("/nonexistent.yaml")).Load(&cfg); err == nil {
		t.Error("Load() should fail for a missing config file")
	}
}

func TestLoader_DropIns(t *testing.T) {
	mainFile := writeConfig(t, `
server:
  socket:
    path: /from/main.sock
  notify_timeout: 1s
`)
	dir := t.TempDir()
	for name, body := range map[string]string{
		"20-timeout.yaml":      "server:\n  notify_timeout: 5s\n",
		"10-socket.yml":        "server:\n  socket:\n    path: /from/dropin.sock\n",
		"30-later.yaml":        "server:\n  notify_timeout: 7s\n",
		"README.txt":           "not yaml: [",
		"99-disabled.yaml.bak": "server: [",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("SVCREG_SERVER__ADMIN__ENABLED", "true")

	l := NewLoader(WithConfigFile(mainFile), WithDropInDir(dir))
	files, err := l.DropIns()
	if err != nil {
		t.Fatalf("DropIns() error = %v", err)
	}
	want := []string{
		filepath.Join(dir, "10-socket.yml"),
		filepath.Join(dir, "20-timeout.yaml"),
		filepath.Join(dir, "30-later.yaml"),
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("DropIns() (-want +got):\n%s", diff)
	}

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Socket.Path != "/from/dropin.sock" {
		t.Errorf("Path = %q", cfg.Server.Socket.Path)
	}
	if cfg.Server.NotifyTimeout != 7*time.Second {
		t.Errorf("NotifyTimeout = %v, last drop-in should win", cfg.Server.NotifyTimeout)
	}

	wantOrigins := map[string]string{
		"server.socket.path":    filepath.Join(dir, "10-socket.yml"),
		"server.notify_timeout": filepath.Join(dir, "30-later.yaml"),
		"server.admin.enabled":  OriginEnv,
	}
	if diff := cmp.Diff(wantOrigins, l.Origins()); diff != "" {
		t.Errorf("Origins() (-want +got):\n%s", diff)
	}
}

func TestLoader_DropIns_MissingDir(t *testing.T) {
	l := NewLoader(WithDropInDir(filepath.Join(t.TempDir(), "conf.d")))
	files, err := l.DropIns()
	if err != nil || len(files) != 0 {
		t.Errorf("DropIns() = %v, %v; want none", files, err)
	}
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}

func TestLoader_DropIns_BadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("server: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	var cfg testConfig
	if err := NewLoader(WithDropInDir(dir)).Load(&cfg); err == nil {
		t.Error("Load() should fail on a malformed drop-in")
	}
}
