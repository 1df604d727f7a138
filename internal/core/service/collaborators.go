package service

import (
	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// Caller identifies the process behind a registry call.
type Caller struct {
	PID int

	// Label is the security label captured when the connection was
	// accepted. Only add checks use it; find and list re-resolve the label.
	Label string
}

// Perm is a registry permission.
type Perm string

const (
	PermAdd  Perm = "add"
	PermFind Perm = "find"
	PermList Perm = "list"
)

// Notifier delivers a registration notification to a subscriber.
type Notifier interface {
	Notify(sink domain.Handle, reg domain.Registration) error
}

// Binder is the object transport the registry sits on.
type Binder interface {
	Notifier

	// InterfaceChain returns the interfaces ref implements, most derived first.
	InterfaceChain(ref domain.Handle) ([]string, error)

	// LinkToDeath arranges for a DeathEvent of the given kind to be
	// delivered when ref dies. Linking the same (ref, kind) twice is a no-op.
	LinkToDeath(ref domain.Handle, kind domain.DeathKind) error

	// UnlinkToDeath drops a link made by LinkToDeath.
	UnlinkToDeath(ref domain.Handle, kind domain.DeathKind)
}

// IdentityResolver maps a process to its security label.
type IdentityResolver interface {
	Label(pid int) (string, error)
}

// PolicyEngine decides whether source may exercise perm on target.
type PolicyEngine interface {
	Allow(source, target string, perm Perm) bool
}

// LabelMap maps an unversioned interface name ("pkg::IFoo") to the label
// protecting it.
type LabelMap interface {
	Lookup(iface string) (string, bool)
}

// ManifestOracle answers what the device manifests declare.
type ManifestOracle interface {
	Transport(name domain.FQName, instance string) domain.Transport
	Instances(name domain.FQName) []string
}

// Starter asks the platform to start whatever provides iface/instance.
// It is always called off the registry loop.
type Starter interface {
	Start(iface, instance string) error
}

// AuditRecord is emitted for every permission check.
type AuditRecord struct {
	Interface string
	PID       int
	Perm      Perm
	Source    string
	Target    string
	Granted   bool
}

// Auditor receives audit records. It must not block.
type Auditor interface {
	Audit(rec AuditRecord)
}

// Recorder receives counters for metrics. All labels are plain strings so
// the metrics package does not depend on this one.
type Recorder interface {
	Registration(iface string)
	ACLDecision(perm string, granted bool)
	Notification(kind string, delivered bool)
	Death(kind string)
	TokenReject(reason string)
	StartRequest(result string)
}

type nopRecorder struct{}

func (nopRecorder) Registration(string)       {}
func (nopRecorder) ACLDecision(string, bool)  {}
func (nopRecorder) Notification(string, bool) {}
func (nopRecorder) Death(string)              {}
func (nopRecorder) TokenReject(string)        {}
func (nopRecorder) StartRequest(string)       {}

// NopRecorder returns a Recorder that drops everything.
func NopRecorder() Recorder {
	return nopRecorder{}
}
