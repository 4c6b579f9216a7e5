package store

import (
	"fmt"
	"os"
	"strings"

	"dtg-replicator/internal/model"
)

// LoadAll scans dir for every src-*.xml and map-*.xml, loads them, and
// cross-resolves mappings to their sources into a fresh Registry (spec
// §4.2: "loading merges all source files and all mapping files ... and
// cross-resolves mappings to their sources").
func LoadAll(dir string) (*model.Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("store: read config dir %s: %w", dir, err)
	}

	reg := model.NewRegistry()

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasPrefix(name, "src-") && strings.HasSuffix(name, ".xml"):
			nickname := strings.TrimSuffix(strings.TrimPrefix(name, "src-"), ".xml")
			src, err := LoadSource(dir, nickname)
			if err != nil {
				return nil, err
			}
			reg.AddSource(src)
		}
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "map-") && strings.HasSuffix(name, ".xml") {
			id := strings.TrimSuffix(strings.TrimPrefix(name, "map-"), ".xml")
			m, err := LoadMapping(dir, id)
			if err != nil {
				return nil, err
			}
			if err := reg.AddMapping(m); err != nil {
				return nil, err
			}
		}
	}

	return reg, nil
}

// LoadMappingSettings loads one mapping together with its watermark
// settings, the pair the engine needs to start a single replication loop
// (cmd/dtgrepl takes exactly one mapping id).
func LoadMappingSettings(dir, id string) (*model.DataMapping, *model.DTGSettings, error) {
	reg, err := LoadAll(dir)
	if err != nil {
		return nil, nil, err
	}
	m, ok := reg.Mapping(id)
	if !ok {
		return nil, nil, fmt.Errorf("store: mapping %q not found in %s", id, dir)
	}
	settings, err := LoadSettings(dir, id)
	if err != nil {
		return nil, nil, err
	}
	return m, settings, nil
}
