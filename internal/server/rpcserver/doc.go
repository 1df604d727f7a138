// Package rpcserver serves the registry over a RESP socket.
//
// Every connection stands for one client process. Its pid comes from the
// socket's peer credentials and its label from the identity resolver,
// both captured at accept time. A client exports local objects with
// OBJECT, passes their handles to ADD and SUBSCRIBE, and receives
// notifications for them as push frames:
//
//	>5 registration <sink-handle> <fq-name> <instance> <0|1>
//
// Closing the connection kills every object it exported, which drives
// the registry's death handling.
package rpcserver
