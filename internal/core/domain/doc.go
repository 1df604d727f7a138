// Package domain defines the core domain models for svcreg.
//
// Domain models are pure value types without any IO dependencies or
// framework coupling. This package contains:
//
//   - FQName: parsed fully-qualified interface names (pkg@1.0::IFoo)
//   - Handle / WeakHandle: references to remote objects
//   - DeathEvent: the tagged liveness notification
//   - Registration: the payload delivered to notification sinks
//   - Transport: the transport a manifest declares for an interface
//   - Errors: domain-specific error definitions
package domain
