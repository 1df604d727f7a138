// Package tlsroots loads the certificates of the admin HTTPS listener and
// of the clients that talk to it.
//
//   - pool.go: CA bundles and the server and client tls.Config
//   - keypair.go: the listener's key pair, reloadable while serving
package tlsroots
