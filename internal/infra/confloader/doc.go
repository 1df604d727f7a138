// Package confloader loads the server configuration and reloads the
// files the registry reads at runtime: label contexts, policy and the
// admin key pair.
//
// Sources are layered with koanf, later ones overriding earlier ones:
//
//  1. Default values (the target struct as passed in)
//  2. Configuration file (YAML)
//  3. Drop-in files (conf.d/*.yaml, lexical order)
//  4. Environment variables (SVCREG_ prefix)
//
// Environment keys map to config keys by lower-casing and turning a
// double underscore into a dot, so a single underscore stays part of the
// key: SVCREG_SERVER__NOTIFY_TIMEOUT sets server.notify_timeout.
//
// Watcher reloads Reloaders after their file has been quiet for a short
// debounce window.
package confloader
