package config

import (
	"os"
	"sync"
)

var (
	inContainerOnce   sync.Once
	inContainerResult bool
)

// IsRunningInDocker reports whether the process runs inside a Docker
// container, detected by /.dockerenv. The result is cached.
func IsRunningInDocker() bool {
	inContainerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inContainerResult = err == nil
	})
	return inContainerResult
}

// ResolveHostForDocker maps a loopback database host to host.docker.internal
// when running in a container, so a directory database on the developer's
// machine stays reachable. Other hosts are returned unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1":
		return "host.docker.internal"
	}
	return host
}
