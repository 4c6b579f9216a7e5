//go:build windows

package service

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows/svc/mgr"
)

// registerService creates a Windows service entry for mapping, pointed at
// this binary's dtgrepl invocation (spec §6: Windows-only supervisor).
func registerService(mapping string) error {
	m, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()

	exe, err := os.Executable()
	if err != nil {
		return err
	}
	name := "dtgrepl-" + mapping
	s, err := m.CreateService(name, exe, mgr.Config{
		DisplayName: fmt.Sprintf("DTG Replication Engine (%s)", mapping),
		StartType:   mgr.StartAutomatic,
	}, mapping)
	if err != nil {
		return err
	}
	defer s.Close()
	return nil
}

// unregisterService deletes mapping's Windows service entry.
func unregisterService(mapping string) error {
	m, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()

	name := "dtgrepl-" + mapping
	s, err := m.OpenService(name)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Delete()
}
