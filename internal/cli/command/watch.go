package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/svcreg-go/internal/cli/connection"
	"github.com/yndnr/svcreg-go/internal/cli/output"
)

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Print registrations of an interface as they happen",
		ArgsUsage: "INTERFACE [INSTANCE]",
		Description: "Without INSTANCE every instance of INTERFACE is watched. Services\n" +
			"already registered are reported first, marked as preexisting.",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Exit after this many notifications (0 = run until interrupted)",
			},
			&cli.BoolFlag{
				Name:  "skip-existing",
				Usage: "Do not print services that were registered before the watch started",
			},
		},
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	var iface, instance string
	switch c.NArg() {
	case 1:
		iface = c.Args().Get(0)
	case 2:
		iface, instance = c.Args().Get(0), c.Args().Get(1)
	default:
		return cli.Exit("usage: watch INTERFACE [INSTANCE]", 2)
	}

	client := Client(c)
	if err := subscribe(c, client, iface, instance); err != nil {
		return err
	}

	count := c.Int("count")
	skip := c.Bool("skip-existing")
	format := ParseGlobalFlags(c).Output
	if format == output.FormatTable && !ParseGlobalFlags(c).NoHeaders {
		fmt.Fprintln(c.App.Writer, "TIME\tINTERFACE\tINSTANCE\tPREEXISTING")
	}

	for seen := 0; count == 0 || seen < count; {
		v, err := client.NextPush(c.Context)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		n, err := connection.ParseNotification(v)
		if err != nil {
			PrintError("%v", err)
			continue
		}
		if skip && n.Preexisting {
			continue
		}
		seen++

		if err := printNotification(c, format, n); err != nil {
			return err
		}
	}
	return nil
}

// subscribe exports a sink object and subscribes it, within the command
// timeout. The stream itself is not bounded by it.
func subscribe(c *cli.Context, client *connection.SocketClient, iface, instance string) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	sink, err := client.Object(ctx, connection.NotificationInterface...)
	if err != nil {
		return err
	}
	ok, err := client.Subscribe(ctx, iface, instance, sink)
	if err != nil {
		return err
	}
	if !ok {
		return cli.Exit("subscription refused for "+iface+": check the interface name and the find permission", 1)
	}
	return nil
}

func printNotification(c *cli.Context, format output.Format, n connection.Notification) error {
	switch format {
	case output.FormatJSON:
		return (&output.JSONFormatter{Lines: true}).Format(c.App.Writer, n)
	case output.FormatYAML:
		fmt.Fprintln(c.App.Writer, "---")
		return (&output.YAMLFormatter{}).Format(c.App.Writer, n)
	default:
		_, err := fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%t\n",
			time.Now().Format(time.RFC3339), n.Interface, n.Instance, n.Preexisting)
		return err
	}
}
