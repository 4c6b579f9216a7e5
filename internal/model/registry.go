package model

import "fmt"

// Registry is the owner of all Sources; Mappings borrow references to
// Sources (and their FilterSets) by nickname rather than holding exclusive
// ownership, which is how the original breaks the Source<->Mapping
// quasi-cyclic reference (spec §9, "Quasi-cyclic references").
type Registry struct {
	sources  map[string]*Source
	mappings map[string]*DataMapping
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:  make(map[string]*Source),
		mappings: make(map[string]*DataMapping),
	}
}

// AddSource registers a Source, keyed by its nickname.
func (r *Registry) AddSource(s *Source) { r.sources[s.Nickname] = s }

// AddMapping registers a mapping and resolves its SCM/DTS source references
// by nickname. Returns an error if either nickname is unknown.
func (r *Registry) AddMapping(m *DataMapping) error {
	scm, ok := r.sources[m.SCMID]
	if !ok {
		return fmt.Errorf("mapping %s: unknown scm source %q", m.ID, m.SCMID)
	}
	dts, ok := r.sources[m.DTSID]
	if !ok {
		return fmt.Errorf("mapping %s: unknown dts source %q", m.ID, m.DTSID)
	}
	if scm.Kind != SCM {
		return fmt.Errorf("mapping %s: source %q is not kind SCM", m.ID, m.SCMID)
	}
	if dts.Kind != DTS {
		return fmt.Errorf("mapping %s: source %q is not kind DTS", m.ID, m.DTSID)
	}
	m.SCMSource = scm
	m.DTSSource = dts
	r.mappings[m.ID] = m
	return nil
}

// Source looks up a registered source by nickname.
func (r *Registry) Source(nickname string) (*Source, bool) {
	s, ok := r.sources[nickname]
	return s, ok
}

// Mapping looks up a registered mapping by id.
func (r *Registry) Mapping(id string) (*DataMapping, bool) {
	m, ok := r.mappings[id]
	return m, ok
}

// Mappings returns all registered mappings.
func (r *Registry) Mappings() []*DataMapping {
	out := make([]*DataMapping, 0, len(r.mappings))
	for _, m := range r.mappings {
		out = append(out, m)
	}
	return out
}

// RefCount computes how many mappings currently reference nickname, on
// demand rather than as a maintained counter, so a Source's refcnt can never
// drift from the live mapping set (spec §3: "refcnt enforces that a Source
// cannot be deleted while referenced").
func (r *Registry) RefCount(nickname string) int {
	n := 0
	for _, m := range r.mappings {
		if m.SCMID == nickname || m.DTSID == nickname {
			n++
		}
	}
	return n
}

// FilterRefCount computes how many mappings reference a named FilterSet on
// the given source.
func (r *Registry) FilterRefCount(sourceNickname, filterName string) int {
	n := 0
	for _, m := range r.mappings {
		if m.SCMID == sourceNickname && m.SCMFilter == filterName {
			n++
		}
		if m.DTSID == sourceNickname && m.DTSFilter == filterName {
			n++
		}
	}
	return n
}

// RemoveSource deletes a Source from the registry, refusing while it is
// still referenced by any mapping.
func (r *Registry) RemoveSource(nickname string) error {
	if n := r.RefCount(nickname); n > 0 {
		return fmt.Errorf("source %q still referenced by %d mapping(s)", nickname, n)
	}
	delete(r.sources, nickname)
	return nil
}

// Filter resolves a named FilterSet on a source, or (nil,false) if sourceName
// has no such filter (or filterName is empty, meaning "no filter").
func (r *Registry) Filter(sourceName, filterName string) (*FilterSet, bool) {
	if filterName == "" {
		return nil, false
	}
	s, ok := r.sources[sourceName]
	if !ok {
		return nil, false
	}
	for _, fs := range s.Filters {
		if fs.Name == filterName {
			return fs, true
		}
	}
	return nil, false
}
