package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

func statExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func runPath(replDir, mapping string) string { return filepath.Join(replDir, "run-"+mapping) }
func stopPath(replDir, mapping string) string { return filepath.Join(replDir, "stop-"+mapping) }
func errPath(replDir, mapping string) string { return filepath.Join(replDir, "err-"+mapping) }

// touchRun creates run-<mapping> on engine start (spec §6).
func touchRun(replDir, mapping string) error {
	path := runPath(replDir, mapping)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("engine: touch %s: %w", path, err)
	}
	return f.Close()
}

// removeRun removes run-<mapping> on clean exit.
func removeRun(replDir, mapping string) error {
	err := os.Remove(runPath(replDir, mapping))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// hasErrFile reports whether err-<mapping> is present; its presence on
// start refuses to run until an operator removes it (spec §6).
func hasErrFile(replDir, mapping string) bool {
	return statExists(errPath(replDir, mapping))
}

// writeErrFile creates err-<mapping> with one line per failed record id
// (spec §4.8 step 8, §7).
func writeErrFile(replDir, mapping string, failures []string) error {
	path := errPath(replDir, mapping)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("engine: open %s: %w", path, err)
	}
	defer f.Close()
	for _, id := range failures {
		if _, err := fmt.Fprintln(f, id); err != nil {
			return err
		}
	}
	return nil
}
