package domain

// DeathKind tags what a liveness watch was registered for.
type DeathKind uint8

const (
	// DeathServiceDied fires when a registered service's process goes away.
	DeathServiceDied DeathKind = iota + 1

	// DeathPackageListenerDied fires when an interface-wide subscriber goes away.
	DeathPackageListenerDied

	// DeathServiceListenerDied fires when an instance subscriber goes away.
	DeathServiceListenerDied
)

// String returns the metric/log label for the kind.
func (k DeathKind) String() string {
	switch k {
	case DeathServiceDied:
		return "service"
	case DeathPackageListenerDied:
		return "package_listener"
	case DeathServiceListenerDied:
		return "service_listener"
	default:
		return "unknown"
	}
}

// DeathEvent is delivered once per (object, kind) link when the object dies.
type DeathEvent struct {
	Kind DeathKind
	Ref  WeakHandle
}

// Registration is what a notification sink receives.
type Registration struct {
	FQName      string
	Instance    string
	Preexisting bool
}

// Transport is the transport a manifest declares for an interface instance.
type Transport uint8

const (
	// TransportEmpty means neither manifest declares the instance.
	TransportEmpty Transport = iota
	// TransportHwbinder means the service is reached through the registry.
	TransportHwbinder
	// TransportPassthrough means the client loads the implementation in-process.
	TransportPassthrough
)

// String returns the wire name of the transport.
func (t Transport) String() string {
	switch t {
	case TransportHwbinder:
		return "hwbinder"
	case TransportPassthrough:
		return "passthrough"
	default:
		return "empty"
	}
}

// ParseTransport is the inverse of Transport.String. Unknown names map to
// TransportEmpty.
func ParseTransport(s string) Transport {
	switch s {
	case "hwbinder":
		return TransportHwbinder
	case "passthrough":
		return TransportPassthrough
	default:
		return TransportEmpty
	}
}

// NoPID marks a registration record without a live owning process.
const NoPID = -1

// InstanceDebugInfo is one row of the registry debug dump.
type InstanceDebugInfo struct {
	PID        int    `json:"pid" yaml:"pid"`
	Interface  string `json:"interface" yaml:"interface"`
	Instance   string `json:"instance" yaml:"instance"`
	ClientPIDs []int  `json:"client_pids" yaml:"client_pids"`
}
