// Package resp implements the RESP framing used between the registry and
// its clients.
//
// Requests are arrays of bulk strings (inline commands are accepted for
// interactive use). Replies use the RESP2 types plus RESP3 push frames
// ('>') for unsolicited registration notifications, which a client tells
// apart from command replies by the frame type alone.
package resp
