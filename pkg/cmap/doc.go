// Package cmap provides a sharded concurrent map keyed by strings.
//
// The transport uses it as its live connection table: accept loops insert,
// connection goroutines delete on close, and the admin endpoints and
// shutdown path iterate while connections come and go.
//
// Usage:
//
//	conns := cmap.New[*Conn]()
//	conns.Set(c.ID(), c)
//	conns.Range(func(id string, c *Conn) bool { ...; return true })
//
// Keys are spread over shards with murmur3; every shard has its own RWMutex.
package cmap
