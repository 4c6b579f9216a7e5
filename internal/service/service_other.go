//go:build !windows

package service

import "fmt"

// registerService is a no-op supervision stub outside Windows: deployments
// on other platforms run dtgrepl under their own process supervisor
// (systemd, a container runtime) rather than through this marker-file
// protocol's Windows service registration.
func registerService(mapping string) error {
	return fmt.Errorf("service: windows service registration is unavailable on this platform; supervise dtgrepl %s directly", mapping)
}

func unregisterService(mapping string) error {
	return fmt.Errorf("service: windows service registration is unavailable on this platform")
}
