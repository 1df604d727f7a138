// Package buildinfo reports the registry's build information.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/svcreg-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When they are not injected, Get falls back to the VCS stamps the Go
// toolchain embeds in the binary.
package buildinfo
