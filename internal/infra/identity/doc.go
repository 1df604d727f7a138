// Package identity answers who is on the other end of a registry
// connection: the peer's pid from SO_PEERCRED and the security label the
// kernel reports for that pid.
package identity
