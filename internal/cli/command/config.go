package command

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/svcreg-go/internal/cli/config"
)

type configView struct {
	Path    string `json:"path" yaml:"path" table:"PATH"`
	Exists  bool   `json:"exists" yaml:"exists" table:"EXISTS"`
	Socket  string `json:"socket" yaml:"socket" table:"SOCKET"`
	Admin   string `json:"admin" yaml:"admin" table:"ADMIN"`
	AdminCA string `json:"admin_ca,omitempty" yaml:"admin_ca,omitempty" table:"ADMIN_CA,wide"`
	Output  string `json:"output" yaml:"output" table:"OUTPUT"`
	Timeout string `json:"timeout" yaml:"timeout" table:"TIMEOUT"`
}

// ConfigCommand returns the config command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: configShow,
			},
			{
				Name:  "init",
				Usage: "Write a configuration file from the current settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
		},
	}
}

func configPath(c *cli.Context) string {
	if p := c.String("config"); p != "" {
		return p
	}
	return config.DefaultConfigPath()
}

func configShow(c *cli.Context) error {
	path := configPath(c)
	_, err := os.Stat(path)
	flags := ParseGlobalFlags(c)

	return render(c, configView{
		Path:    path,
		Exists:  err == nil,
		Socket:  flags.Socket,
		Admin:   flags.Admin,
		AdminCA: flags.AdminCA,
		Output:  string(flags.Output),
		Timeout: flags.Timeout.String(),
	})
}

func configInit(c *cli.Context) error {
	path := configPath(c)
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return cli.Exit(fmt.Sprintf("%s already exists, use --force to overwrite", path), 1)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	flags := ParseGlobalFlags(c)
	cfg := &config.CLIConfig{
		Socket:    flags.Socket,
		Admin:     flags.Admin,
		AdminCA:   flags.AdminCA,
		AdminCert: flags.AdminCert,
		AdminKey:  flags.AdminKey,
		Output:    string(flags.Output),
		Timeout:   flags.Timeout,
	}
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Configuration written to %s\n", path)
	return nil
}
