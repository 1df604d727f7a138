//go:build !linux

package identity

import "net"

// PeerPID is only implemented on Linux.
func PeerPID(net.Conn) (int, error) {
	return 0, ErrNoPeerCred
}
