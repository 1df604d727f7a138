package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FQName is a parsed fully-qualified interface name such as
// "android.hardware.foo@1.0::IFoo".
type FQName struct {
	Package   string
	Major     int
	Minor     int
	Interface string
}

// ParseFQName parses "package@major.minor::Interface".
//
// All four parts are required. Package components are dot separated
// identifiers; the interface is a single identifier.
func ParseFQName(s string) (FQName, error) {
	pkgVer, iface, ok := strings.Cut(s, "::")
	if !ok || iface == "" {
		return FQName{}, ErrInvalidFQName.WithDetails(s)
	}
	pkg, ver, ok := strings.Cut(pkgVer, "@")
	if !ok || pkg == "" || ver == "" {
		return FQName{}, ErrInvalidFQName.WithDetails(s)
	}
	majorStr, minorStr, ok := strings.Cut(ver, ".")
	if !ok {
		return FQName{}, ErrInvalidFQName.WithDetails(s)
	}
	major, err := strconv.Atoi(majorStr)
	if err != nil || major < 0 {
		return FQName{}, ErrInvalidFQName.WithDetails(s)
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil || minor < 0 {
		return FQName{}, ErrInvalidFQName.WithDetails(s)
	}
	for _, part := range strings.Split(pkg, ".") {
		if !isIdentifier(part) {
			return FQName{}, ErrInvalidFQName.WithDetails(s)
		}
	}
	if !isIdentifier(iface) {
		return FQName{}, ErrInvalidFQName.WithDetails(s)
	}

	return FQName{
		Package:   pkg,
		Major:     major,
		Minor:     minor,
		Interface: iface,
	}, nil
}

// String returns the canonical "pkg@M.m::IFoo" form.
func (n FQName) String() string {
	return fmt.Sprintf("%s@%d.%d::%s", n.Package, n.Major, n.Minor, n.Interface)
}

// Version returns "M.m".
func (n FQName) Version() string {
	return fmt.Sprintf("%d.%d", n.Major, n.Minor)
}

// Unversioned returns "pkg::IFoo", the key used for security label lookups.
func (n FQName) Unversioned() string {
	return n.Package + "::" + n.Interface
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
