// Package connection talks to a running registry.
//
// SocketClient speaks RESP on the registry socket (unix or tcp) and keeps
// push frames that arrive between replies. HTTPClient reads the admin
// endpoints.
package connection
