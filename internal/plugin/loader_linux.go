//go:build linux

package plugin

import (
	"fmt"
	goplugin "plugin"
	"os"
	"path/filepath"
	"sort"
)

// LoadDir enumerates dir non-recursively (spec §6, "Plugin directory
// protocol") and loads each .so file built with -buildmode=plugin,
// resolving the exported symbol "Adapter" of type Adapter. Files missing
// the symbol, or whose symbol isn't an Adapter, are logged and skipped
// rather than aborting the whole directory (spec §4.1: "If any required
// symbol is missing, log and skip").
//
// The Perforce-class plugin (the one satisfying FixFinder) is moved to the
// head of the returned list, matching spec §4.1/§6.
func LoadDir(dir string, onSkip func(file string, err error)) ([]Adapter, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".so" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var adapters []Adapter
	var perforceClass Adapter
	for _, name := range names {
		full := filepath.Join(dir, name)
		p, err := goplugin.Open(full)
		if err != nil {
			if onSkip != nil {
				onSkip(full, err)
			}
			continue
		}
		sym, err := p.Lookup("Adapter")
		if err != nil {
			if onSkip != nil {
				onSkip(full, fmt.Errorf("missing Adapter symbol: %w", err))
			}
			continue
		}
		a, ok := sym.(Adapter)
		if !ok {
			// Plugins commonly export *Adapter instead of Adapter; accept
			// either so the loader doesn't force a single export style.
			if ap, ok2 := sym.(*Adapter); ok2 && ap != nil {
				a = *ap
				ok = true
			}
		}
		if !ok {
			if onSkip != nil {
				onSkip(full, fmt.Errorf("exported Adapter symbol has wrong type"))
			}
			continue
		}
		if IsPerforceClass(a) && perforceClass == nil {
			perforceClass = a
			continue
		}
		adapters = append(adapters, a)
	}
	if perforceClass != nil {
		adapters = append([]Adapter{perforceClass}, adapters...)
	}
	return adapters, nil
}
