// Package buildinfo exposes version information injected at build time:
//
//	go build -ldflags "-X github.com/yndnr/pixelflut-go/internal/infra/buildinfo.Version=v1.0.0 \
//	    -X github.com/yndnr/pixelflut-go/internal/infra/buildinfo.Commit=abc123"
//
// When the ldflags are absent, Get falls back to the VCS data the Go
// toolchain embeds in the binary.
package buildinfo
