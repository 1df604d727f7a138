package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/svcreg-go/internal/cli/config"
	"github.com/yndnr/svcreg-go/internal/cli/connection"
	"github.com/yndnr/svcreg-go/internal/cli/output"
	"github.com/yndnr/svcreg-go/internal/infra/buildinfo"
)

const (
	metaConfig = "cliConfig"
	metaClient = "socketClient"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "svcreg-cli",
		Usage:   "Inspect and watch the service registry",
		Version: buildinfo.Get().String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			PingCommand(),
			ListCommand(),
			GetCommand(),
			TransportCommand(),
			DumpCommand(),
			ManifestCommand(),
			WatchCommand(),
			AdminCommand(),
			ConfigCommand(),
		},
		Before: before,
		After:  after,
	}
}

// globalFlags returns the global CLI flags. Unset flags fall back to the
// CLI config file.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file",
			EnvVars: []string{"SVCREG_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "socket",
			Aliases: []string{"s"},
			Usage:   "Registry address (unix:///path, /path or host:port)",
			EnvVars: []string{"SVCREG_SOCKET"},
		},
		&cli.StringFlag{
			Name:    "admin",
			Aliases: []string{"a"},
			Usage:   "Admin HTTP server URL",
			EnvVars: []string{"SVCREG_ADMIN"},
		},
		&cli.StringFlag{
			Name:    "admin-ca",
			Usage:   "CA bundle verifying an https admin server",
			EnvVars: []string{"SVCREG_ADMIN_CA"},
		},
		&cli.StringFlag{
			Name:    "admin-cert",
			Usage:   "Client certificate for the admin server",
			EnvVars: []string{"SVCREG_ADMIN_CERT"},
		},
		&cli.StringFlag{
			Name:    "admin-key",
			Usage:   "Client key for the admin server",
			EnvVars: []string{"SVCREG_ADMIN_KEY"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			EnvVars: []string{"SVCREG_OUTPUT"},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "Per-command timeout",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "Omit table headers",
		},
	}
}

// GlobalFlags defines flags available to all commands, merged with the
// CLI config file.
type GlobalFlags struct {
	ConfigPath string
	Socket     string
	Admin      string
	AdminCA    string
	AdminCert  string
	AdminKey   string
	Output     output.Format
	Timeout    time.Duration
	Wide       bool
	NoHeaders  bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	cfg := cliConfig(c)
	flags := &GlobalFlags{
		ConfigPath: c.String("config"),
		Socket:     cfg.Socket,
		Admin:      cfg.Admin,
		AdminCA:    cfg.AdminCA,
		AdminCert:  cfg.AdminCert,
		AdminKey:   cfg.AdminKey,
		Output:     output.Format(cfg.Output),
		Timeout:    cfg.Timeout,
		Wide:       c.Bool("wide"),
		NoHeaders:  c.Bool("no-headers"),
	}
	if c.IsSet("socket") {
		flags.Socket = c.String("socket")
	}
	if c.IsSet("admin") {
		flags.Admin = c.String("admin")
	}
	if c.IsSet("admin-ca") {
		flags.AdminCA = c.String("admin-ca")
	}
	if c.IsSet("admin-cert") {
		flags.AdminCert = c.String("admin-cert")
	}
	if c.IsSet("admin-key") {
		flags.AdminKey = c.String("admin-key")
	}
	if c.IsSet("output") {
		flags.Output = output.Format(c.String("output"))
	}
	if c.IsSet("timeout") {
		flags.Timeout = c.Duration("timeout")
	}
	return flags
}

func before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[metaConfig] = cfg

	if _, err := output.ParseFormat(string(ParseGlobalFlags(c).Output)); err != nil {
		return err
	}
	return nil
}

func after(c *cli.Context) error {
	if client, ok := c.App.Metadata[metaClient].(*connection.SocketClient); ok {
		delete(c.App.Metadata, metaClient)
		return client.Close()
	}
	return nil
}

func cliConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// Client returns the socket client for this invocation, creating it on
// first use. It is closed when the app exits.
func Client(c *cli.Context) *connection.SocketClient {
	if client, ok := c.App.Metadata[metaClient].(*connection.SocketClient); ok {
		return client
	}
	client := connection.NewSocketClient(ParseGlobalFlags(c).Socket)
	c.App.Metadata[metaClient] = client
	return client
}

// commandContext bounds one command by the configured timeout.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	timeout := ParseGlobalFlags(c).Timeout
	if timeout <= 0 {
		return context.WithCancel(c.Context)
	}
	return context.WithTimeout(c.Context, timeout)
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	f := output.NewFormatter(flags.Output, flags.Wide)
	if tf, ok := f.(*output.TableFormatter); ok {
		tf.NoHeaders = flags.NoHeaders
	}
	return f.Format(c.App.Writer, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
