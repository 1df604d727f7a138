package service

import (
	"context"
	"log/slog"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// AccessControl gates registry operations.
//
// Every failure along the way (unparseable name, no label for the
// interface, unknown caller) is a deny. Nothing here returns an error.
type AccessControl struct {
	labels    LabelMap
	policy    PolicyEngine
	identity  IdentityResolver
	auditor   Auditor
	recorder  Recorder
	selfLabel string
	logger    *slog.Logger
}

// AccessControlConfig holds the collaborators of AccessControl.
type AccessControlConfig struct {
	Labels   LabelMap
	Policy   PolicyEngine
	Identity IdentityResolver

	// Auditor defaults to a LogAuditor on Logger.
	Auditor Auditor

	// Recorder defaults to NopRecorder.
	Recorder Recorder

	// SelfLabel is the registry's own label, the target of list checks.
	SelfLabel string

	Logger *slog.Logger
}

// NewAccessControl creates an AccessControl.
func NewAccessControl(cfg AccessControlConfig) *AccessControl {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auditor := cfg.Auditor
	if auditor == nil {
		auditor = NewLogAuditor(logger)
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = NopRecorder()
	}

	return &AccessControl{
		labels:    cfg.Labels,
		policy:    cfg.Policy,
		identity:  cfg.Identity,
		auditor:   auditor,
		recorder:  recorder,
		selfLabel: cfg.SelfLabel,
		logger:    logger,
	}
}

// CanAdd reports whether caller may register fqName.
func (a *AccessControl) CanAdd(fqName string, caller Caller) bool {
	name, err := domain.ParseFQName(fqName)
	if err != nil {
		a.logger.Error("add denied: bad interface name", "interface", fqName, "pid", caller.PID)
		return false
	}
	return a.checkTarget(caller.Label, caller.PID, name.Unversioned(), PermAdd)
}

// CanGet reports whether pid may look up fqName. The caller's label is
// resolved at call time.
func (a *AccessControl) CanGet(fqName string, pid int) bool {
	name, err := domain.ParseFQName(fqName)
	if err != nil {
		a.logger.Error("find denied: bad interface name", "interface", fqName, "pid", pid)
		return false
	}
	source, ok := a.callerLabel(pid)
	if !ok {
		return false
	}
	return a.checkTarget(source, pid, name.Unversioned(), PermFind)
}

// CanList reports whether pid may enumerate the registry.
func (a *AccessControl) CanList(pid int) bool {
	source, ok := a.callerLabel(pid)
	if !ok {
		return false
	}
	return a.checkPermission(source, pid, a.selfLabel, "", PermList)
}

func (a *AccessControl) callerLabel(pid int) (string, bool) {
	if a.identity == nil {
		a.logger.Error("no identity resolver configured", "pid", pid)
		return "", false
	}
	label, err := a.identity.Label(pid)
	if err != nil || label == "" {
		a.logger.Error("cannot resolve caller label", "pid", pid, "error", err)
		return "", false
	}
	return label, true
}

func (a *AccessControl) checkTarget(source string, pid int, iface string, perm Perm) bool {
	if a.labels == nil {
		a.logger.Error("no label map configured", "interface", iface)
		return false
	}
	target, ok := a.labels.Lookup(iface)
	if !ok {
		a.logger.Error("no label for interface", "interface", iface, "perm", perm)
		return false
	}
	return a.checkPermission(source, pid, target, iface, perm)
}

func (a *AccessControl) checkPermission(source string, pid int, target, iface string, perm Perm) bool {
	granted := source != "" && a.policy != nil && a.policy.Allow(source, target, perm)

	a.auditor.Audit(AuditRecord{
		Interface: iface,
		PID:       pid,
		Perm:      perm,
		Source:    source,
		Target:    target,
		Granted:   granted,
	})
	a.recorder.ACLDecision(string(perm), granted)
	return granted
}

// LogAuditor writes audit records to a logger. Denials are logged at
// warn, grants at debug.
type LogAuditor struct {
	logger *slog.Logger
}

// NewLogAuditor creates a LogAuditor.
func NewLogAuditor(logger *slog.Logger) *LogAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAuditor{logger: logger.With("component", "audit")}
}

// Audit implements Auditor.
func (l *LogAuditor) Audit(rec AuditRecord) {
	level := slog.LevelDebug
	msg := "avc: granted"
	if !rec.Granted {
		level = slog.LevelWarn
		msg = "avc: denied"
	}
	l.logger.Log(context.Background(), level, msg,
		"perm", string(rec.Perm),
		"interface", rec.Interface,
		"pid", rec.PID,
		"scontext", rec.Source,
		"tcontext", rec.Target,
	)
}
