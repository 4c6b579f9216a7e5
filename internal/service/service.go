// Package service implements the service-supervisor CLI surface (spec §6):
// install/remove a mapping's Windows service registration, guarded by the
// same run-/svc- marker-file protocol the replication engine itself uses.
package service

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths bundles the marker-file locations one install/remove call touches.
type Paths struct {
	ConfigDir string
	ReplDir   string
}

func (p Paths) mapFile(mapping string) string { return filepath.Join(p.ConfigDir, "map-"+mapping+".xml") }
func (p Paths) svcFile(mapping string) string { return filepath.Join(p.ConfigDir, "svc-"+mapping) }
func (p Paths) runFile(mapping string) string { return filepath.Join(p.ReplDir, "run-"+mapping) }

// Install registers mapping as a service. It requires the mapping's config
// file to already exist and refuses if the mapping is currently running or
// already installed (spec §6).
func Install(p Paths, mapping string) error {
	if _, err := os.Stat(p.mapFile(mapping)); err != nil {
		return fmt.Errorf("service: install %s: config/map-%s.xml does not exist", mapping, mapping)
	}
	if _, err := os.Stat(p.runFile(mapping)); err == nil {
		return fmt.Errorf("service: install %s: refused, repl/run-%s is present (engine running)", mapping, mapping)
	}
	if _, err := os.Stat(p.svcFile(mapping)); err == nil {
		return fmt.Errorf("service: install %s: refused, config/svc-%s already exists", mapping, mapping)
	}
	if err := registerService(mapping); err != nil {
		return fmt.Errorf("service: register %s: %w", mapping, err)
	}
	f, err := os.OpenFile(p.svcFile(mapping), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("service: create marker for %s: %w", mapping, err)
	}
	return f.Close()
}

// Remove unregisters mapping's service and removes its marker file.
func Remove(p Paths, mapping string) error {
	if err := unregisterService(mapping); err != nil {
		return fmt.Errorf("service: unregister %s: %w", mapping, err)
	}
	if err := os.Remove(p.svcFile(mapping)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("service: remove marker for %s: %w", mapping, err)
	}
	return nil
}

// RemoveAll removes every installed service marked under p.ConfigDir.
func RemoveAll(p Paths) error {
	entries, err := os.ReadDir(p.ConfigDir)
	if err != nil {
		return fmt.Errorf("service: read %s: %w", p.ConfigDir, err)
	}
	var firstErr error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || len(name) < 5 || name[:4] != "svc-" {
			continue
		}
		mapping := name[4:]
		if err := Remove(p, mapping); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
