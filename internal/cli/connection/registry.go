package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/pkg/resp"
)

// NotificationInterface is the interface chain a watcher exports as its
// notification sink.
var NotificationInterface = []string{
	"android.hidl.manager@1.0::IServiceNotification",
	"android.hidl.base@1.0::IBase",
}

// Identity is the server's view of this connection.
type Identity struct {
	ConnID string `json:"conn_id" yaml:"conn_id"`
	PID    int    `json:"pid" yaml:"pid"`
	Label  string `json:"label" yaml:"label"`
}

// Notification is a decoded registration push.
type Notification struct {
	Sink        string `json:"sink" yaml:"sink"`
	Interface   string `json:"interface" yaml:"interface"`
	Instance    string `json:"instance" yaml:"instance"`
	Preexisting bool   `json:"preexisting" yaml:"preexisting"`
}

// ParseNotification decodes a "registration" push frame.
func ParseNotification(v resp.Value) (Notification, error) {
	items := v.Strings()
	if !v.IsPush() || len(items) != 5 || items[0] != "registration" {
		return Notification{}, fmt.Errorf("unexpected push frame %q", items)
	}
	return Notification{
		Sink:        items[1],
		Interface:   items[2],
		Instance:    items[3],
		Preexisting: items[4] == "1",
	}, nil
}

// Ping round-trips msg, or "PONG" when msg is empty.
func (c *SocketClient) Ping(ctx context.Context, msg string) (string, error) {
	args := []string{"PING"}
	if msg != "" {
		args = append(args, msg)
	}
	v, err := c.Do(ctx, args...)
	if err != nil {
		return "", err
	}
	return v.Str, nil
}

// Whoami returns the pid and label the server resolved for this connection.
func (c *SocketClient) Whoami(ctx context.Context) (Identity, error) {
	v, err := c.Do(ctx, "WHOAMI")
	if err != nil {
		return Identity{}, err
	}
	items := v.Strings()
	if len(items) != 3 {
		return Identity{}, fmt.Errorf("unexpected WHOAMI reply %q", items)
	}
	pid, err := strconv.Atoi(items[1])
	if err != nil {
		return Identity{}, fmt.Errorf("unexpected WHOAMI pid %q", items[1])
	}
	return Identity{ConnID: items[0], PID: pid, Label: items[2]}, nil
}

// List returns every "fqname/instance" the caller may see.
func (c *SocketClient) List(ctx context.Context) ([]string, error) {
	return c.strings(ctx, "LIST")
}

// ListByInterface returns the registered instances of iface.
func (c *SocketClient) ListByInterface(ctx context.Context, iface string) ([]string, error) {
	return c.strings(ctx, "LISTBYINTERFACE", iface)
}

// ListManifest returns the instances the manifests declare for iface.
func (c *SocketClient) ListManifest(ctx context.Context, iface string) ([]string, error) {
	return c.strings(ctx, "LISTMANIFEST", iface)
}

// Get returns the handle registered as iface/instance, or "" if none.
func (c *SocketClient) Get(ctx context.Context, iface, instance string) (string, error) {
	v, err := c.Do(ctx, "GET", iface, instance)
	if err != nil {
		return "", err
	}
	if v.Null {
		return "", nil
	}
	return v.Str, nil
}

// Transport returns the declared transport of iface/instance.
func (c *SocketClient) Transport(ctx context.Context, iface, instance string) (domain.Transport, error) {
	v, err := c.Do(ctx, "TRANSPORT", iface, instance)
	if err != nil {
		return domain.TransportEmpty, err
	}
	return domain.ParseTransport(v.Str), nil
}

// DebugDump returns every registry entry.
func (c *SocketClient) DebugDump(ctx context.Context) ([]domain.InstanceDebugInfo, error) {
	v, err := c.Do(ctx, "DEBUGDUMP")
	if err != nil {
		return nil, err
	}
	var rows []domain.InstanceDebugInfo
	if err := json.Unmarshal([]byte(v.Str), &rows); err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}
	return rows, nil
}

// Object exports a local object implementing chain and returns its handle.
func (c *SocketClient) Object(ctx context.Context, chain ...string) (string, error) {
	v, err := c.Do(ctx, append([]string{"OBJECT"}, chain...)...)
	if err != nil {
		return "", err
	}
	return v.Str, nil
}

// Subscribe registers sink for iface. An empty instance subscribes to the
// whole interface.
func (c *SocketClient) Subscribe(ctx context.Context, iface, instance, sink string) (bool, error) {
	if instance == "" {
		instance = "-"
	}
	v, err := c.Do(ctx, "SUBSCRIBE", iface, instance, sink)
	if err != nil {
		return false, err
	}
	return v.Int == 1, nil
}

func (c *SocketClient) strings(ctx context.Context, args ...string) ([]string, error) {
	v, err := c.Do(ctx, args...)
	if err != nil {
		return nil, err
	}
	return v.Strings(), nil
}
