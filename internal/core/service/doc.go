// Package service implements the registry core for svcreg.
//
// This package contains:
//
//   - ServiceManager: publish/resolve/enumerate/subscribe over the
//     interface → instance → ServiceEntry tree, plus death handling
//   - ServiceEntry / PackageInterfaceMap: registration records and their
//     subscriber fan-out
//   - TokenManager: exchanges a reference for an unforgeable token and back
//   - AccessControl: add/find/list checks against a pluggable PolicyEngine
//   - Dispatcher: the single goroutine every registry call runs on
//
// ServiceManager, ServiceEntry, PackageInterfaceMap and TokenManager hold
// no locks. They must only be touched from the Dispatcher loop, or from a
// test that owns a fresh instance.
package service
