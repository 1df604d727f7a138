package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

const defaultInstance = "default"

// serviceRow is one interface/instance pair.
type serviceRow struct {
	Interface string `json:"interface" yaml:"interface" table:"INTERFACE"`
	Instance  string `json:"instance" yaml:"instance" table:"INSTANCE"`
}

// dumpRow is a debug dump entry as shown in tables.
type dumpRow struct {
	PID       string `json:"pid" table:"PID"`
	Interface string `json:"interface" table:"INTERFACE"`
	Instance  string `json:"instance" table:"INSTANCE"`
	Clients   []int  `json:"client_pids" table:"CLIENT_PIDS,wide"`
}

type pingResult struct {
	Reply   string `json:"reply" yaml:"reply" table:"REPLY"`
	Target  string `json:"target" yaml:"target" table:"TARGET"`
	ConnID  string `json:"conn_id" yaml:"conn_id" table:"CONN_ID"`
	PID     int    `json:"pid" yaml:"pid" table:"PID"`
	Label   string `json:"label" yaml:"label" table:"LABEL"`
	Latency string `json:"latency" yaml:"latency" table:"LATENCY"`
}

type getResult struct {
	Interface string `json:"interface" yaml:"interface" table:"INTERFACE"`
	Instance  string `json:"instance" yaml:"instance" table:"INSTANCE"`
	Handle    string `json:"handle" yaml:"handle" table:"HANDLE"`
}

type transportResult struct {
	Interface string `json:"interface" yaml:"interface" table:"INTERFACE"`
	Instance  string `json:"instance" yaml:"instance" table:"INSTANCE"`
	Transport string `json:"transport" yaml:"transport" table:"TRANSPORT"`
}

// PingCommand returns the ping command.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:      "ping",
		Usage:     "Check the registry and show how it sees this client",
		ArgsUsage: "[MESSAGE]",
		Action:    pingAction,
	}
}

func pingAction(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	client := Client(c)
	start := time.Now()
	reply, err := client.Ping(ctx, c.Args().First())
	if err != nil {
		return err
	}
	latency := time.Since(start)

	id, err := client.Whoami(ctx)
	if err != nil {
		return err
	}

	return render(c, pingResult{
		Reply:   reply,
		Target:  client.Target(),
		ConnID:  id.ConnID,
		PID:     id.PID,
		Label:   id.Label,
		Latency: latency.Round(time.Microsecond).String(),
	})
}

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List registered services",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "interface",
				Aliases: []string{"i"},
				Usage:   "Only list instances of this fully-qualified interface",
			},
		},
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	rows := []serviceRow{}
	if iface := c.String("interface"); iface != "" {
		instances, err := Client(c).ListByInterface(ctx, iface)
		if err != nil {
			return err
		}
		for _, inst := range instances {
			rows = append(rows, serviceRow{Interface: iface, Instance: inst})
		}
		return render(c, rows)
	}

	names, err := Client(c).List(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		iface, inst, _ := strings.Cut(name, "/")
		rows = append(rows, serviceRow{Interface: iface, Instance: inst})
	}
	return render(c, rows)
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Look up a service",
		ArgsUsage: "INTERFACE [INSTANCE]",
		Action:    getAction,
	}
}

func getAction(c *cli.Context) error {
	iface, instance, err := ifaceArgs(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	handle, err := Client(c).Get(ctx, iface, instance)
	if err != nil {
		return err
	}
	if handle == "" {
		return cli.Exit("not found: "+iface+"/"+instance, 1)
	}
	return render(c, getResult{Interface: iface, Instance: instance, Handle: handle})
}

// TransportCommand returns the transport command.
func TransportCommand() *cli.Command {
	return &cli.Command{
		Name:      "transport",
		Usage:     "Show the transport the manifests declare for a service",
		ArgsUsage: "INTERFACE [INSTANCE]",
		Action:    transportAction,
	}
}

func transportAction(c *cli.Context) error {
	iface, instance, err := ifaceArgs(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	tr, err := Client(c).Transport(ctx, iface, instance)
	if err != nil {
		return err
	}
	return render(c, transportResult{Interface: iface, Instance: instance, Transport: tr.String()})
}

// DumpCommand returns the dump command.
func DumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "Dump every registry entry, passthrough-only ones included",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "interface",
				Aliases: []string{"i"},
				Usage:   "Only show interfaces starting with this prefix",
			},
		},
		Action: dumpAction,
	}
}

func dumpAction(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	infos, err := Client(c).DebugDump(ctx)
	if err != nil {
		return err
	}

	prefix := c.String("interface")
	kept := []domain.InstanceDebugInfo{}
	for _, info := range infos {
		if strings.HasPrefix(info.Interface, prefix) {
			kept = append(kept, info)
		}
	}

	if ParseGlobalFlags(c).Output != "table" {
		return render(c, kept)
	}
	rows := make([]dumpRow, 0, len(kept))
	for _, info := range kept {
		pid := "N/A"
		if info.PID != domain.NoPID {
			pid = strconv.Itoa(info.PID)
		}
		rows = append(rows, dumpRow{PID: pid, Interface: info.Interface, Instance: info.Instance, Clients: info.ClientPIDs})
	}
	return render(c, rows)
}

// ManifestCommand returns the manifest command.
func ManifestCommand() *cli.Command {
	return &cli.Command{
		Name:      "manifest",
		Usage:     "List the instances the device manifests declare for an interface",
		ArgsUsage: "INTERFACE",
		Action:    manifestAction,
	}
}

func manifestAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: manifest INTERFACE", 2)
	}
	iface := c.Args().First()

	ctx, cancel := commandContext(c)
	defer cancel()

	instances, err := Client(c).ListManifest(ctx, iface)
	if err != nil {
		return err
	}
	rows := make([]serviceRow, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, serviceRow{Interface: iface, Instance: inst})
	}
	return render(c, rows)
}

// ifaceArgs reads INTERFACE [INSTANCE], defaulting the instance.
func ifaceArgs(c *cli.Context) (iface, instance string, err error) {
	switch c.NArg() {
	case 1:
		return c.Args().Get(0), defaultInstance, nil
	case 2:
		return c.Args().Get(0), c.Args().Get(1), nil
	default:
		return "", "", cli.Exit("usage: "+c.Command.Name+" INTERFACE [INSTANCE]", 2)
	}
}
