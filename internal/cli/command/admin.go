package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/svcreg-go/internal/cli/connection"
	"github.com/yndnr/svcreg-go/internal/infra/tlsroots"
)

type healthResult struct {
	Status string `json:"status" yaml:"status" table:"STATUS"`
	Time   string `json:"time" yaml:"time" table:"TIME"`
	Target string `json:"target" yaml:"target" table:"TARGET"`
}

type statsResult struct {
	Interfaces        int `json:"interfaces" yaml:"interfaces" table:"INTERFACES"`
	Entries           int `json:"entries" yaml:"entries" table:"ENTRIES"`
	Live              int `json:"live" yaml:"live" table:"LIVE"`
	PackageListeners  int `json:"package_listeners" yaml:"package_listeners" table:"PACKAGE_LISTENERS"`
	InstanceListeners int `json:"instance_listeners" yaml:"instance_listeners" table:"INSTANCE_LISTENERS"`
	Tokens            int `json:"tokens" yaml:"tokens" table:"TOKENS"`
}

type statusResult struct {
	Status    string `json:"status" yaml:"status" table:"STATUS"`
	Version   string `json:"version" yaml:"version" table:"VERSION"`
	Commit    string `json:"commit" yaml:"commit" table:"COMMIT,wide"`
	GoVersion string `json:"go_version" yaml:"go_version" table:"GO_VERSION,wide"`
	StartedAt string `json:"started_at" yaml:"started_at" table:"STARTED_AT"`
	Uptime    string `json:"uptime" yaml:"uptime" table:"UPTIME"`
}

// AdminCommand returns the admin subcommand group.
func AdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Query the admin HTTP server",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check server health",
				Action: adminProbe("/health"),
			},
			{
				Name:   "ready",
				Usage:  "Check server readiness",
				Action: adminProbe("/ready"),
			},
			{
				Name:   "stats",
				Usage:  "Show registry counters",
				Action: adminStats,
			},
			{
				Name:   "status",
				Usage:  "Show build and uptime information",
				Action: adminStatus,
			},
		},
	}
}

func adminClient(c *cli.Context) (*connection.HTTPClient, error) {
	flags := ParseGlobalFlags(c)
	if flags.AdminCA == "" && flags.AdminCert == "" && flags.AdminKey == "" {
		return connection.NewHTTPClient(flags.Admin), nil
	}
	tlsCfg, err := tlsroots.ClientConfig(flags.AdminCA, flags.AdminCert, flags.AdminKey)
	if err != nil {
		return nil, err
	}
	return connection.NewHTTPClient(flags.Admin, connection.WithTLSConfig(tlsCfg)), nil
}

func adminGet(c *cli.Context, path string, target any) (*connection.HTTPClient, error) {
	ctx, cancel := commandContext(c)
	defer cancel()

	client, err := adminClient(c)
	if err != nil {
		return nil, err
	}
	return client, client.GetJSON(ctx, path, target)
}

func adminProbe(path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		var result healthResult
		client, err := adminGet(c, path, &result)
		if err != nil {
			return err
		}
		result.Target = client.BaseURL()
		return render(c, result)
	}
}

func adminStats(c *cli.Context) error {
	var result statsResult
	if _, err := adminGet(c, "/debug/stats", &result); err != nil {
		return err
	}
	return render(c, result)
}

func adminStatus(c *cli.Context) error {
	var result statusResult
	if _, err := adminGet(c, "/debug/status", &result); err != nil {
		return err
	}
	return render(c, result)
}
