package store

import (
	"fmt"
	"path/filepath"
	"time"

	"dtg-replicator/internal/model"
)

func mappingPath(dir, id string) string {
	return filepath.Join(dir, "map-"+id+".xml")
}

// LoadMapping reads map-<id>.xml. Source resolution (SCMSource/DTSSource)
// is left to the caller, which has the full registry.
func LoadMapping(dir, id string) (*model.DataMapping, error) {
	path := mappingPath(dir, id)
	var f mappingFile
	if err := readXML(path, &f); err != nil {
		return nil, fmt.Errorf("store: load mapping %s: %w", id, err)
	}
	return mappingFromXML(&f), nil
}

func mappingFromXML(f *mappingFile) *model.DataMapping {
	m := &model.DataMapping{
		ID:        f.ID,
		SCMID:     f.SCMID,
		DTSID:     f.DTSID,
		SCMFilter: f.SCMFilter,
		DTSFilter: f.DTSFilter,
		Conflict:  model.MirrorConflictPolicy(f.Conflict),
		Attrs:     map[string]string{},
	}
	for _, a := range f.Attrs {
		m.Attrs[a.Name] = a.Value
	}
	m.Mirror = copyRulesFromXML(f.Mirror)
	m.SCMToDTS = copyRulesFromXML(f.SCMToDTS)
	m.DTSToSCM = copyRulesFromXML(f.DTSToSCM)
	for _, xf := range f.Fixes {
		m.Fixes = append(m.Fixes, model.FixRule{
			DTSField:           xf.DTSField,
			Action:             model.FixAction(xf.Action),
			IncludeFiles:       xf.Files,
			IncludeChange:      xf.Change,
			IncludeDescription: xf.Description,
			IncludeFixedBy:     xf.FixedBy,
			IncludeFixedDate:   xf.FixedDate,
		})
	}
	return m
}

func copyRulesFromXML(xs []xmlCopy) []model.CopyRule {
	rules := make([]model.CopyRule, 0, len(xs))
	for _, x := range xs {
		cr := model.CopyRule{
			SCMField:       x.SCMField,
			DTSField:       x.DTSField,
			Type:           model.CopyType(x.Type),
			Truncate:       x.Truncate,
			MirrorConflict: model.MirrorConflictPolicy(x.MirrorConflict),
		}
		for _, v := range x.Values {
			cr.ValueMap = append(cr.ValueMap, model.CopyMapEntry{Value1: v.V1, Value2: v.V2})
		}
		rules = append(rules, cr)
	}
	return rules
}

// SaveMapping writes map-<id>.xml under dir, backup-first.
func SaveMapping(dir string, m *model.DataMapping, now func() time.Time) error {
	path := mappingPath(dir, m.ID)
	f := &mappingFile{
		Version:   schemaVersion,
		Updated:   formatTime(now()),
		ID:        m.ID,
		SCMID:     m.SCMID,
		DTSID:     m.DTSID,
		SCMFilter: m.SCMFilter,
		DTSFilter: m.DTSFilter,
		Conflict:  string(m.Conflict),
		Mirror:    copyRulesToXML(m.Mirror),
		SCMToDTS:  copyRulesToXML(m.SCMToDTS),
		DTSToSCM:  copyRulesToXML(m.DTSToSCM),
	}
	for _, fr := range m.Fixes {
		f.Fixes = append(f.Fixes, xmlFix{
			DTSField:    fr.DTSField,
			Action:      string(fr.Action),
			Files:       fr.IncludeFiles,
			Change:      fr.IncludeChange,
			Description: fr.IncludeDescription,
			FixedBy:     fr.IncludeFixedBy,
			FixedDate:   fr.IncludeFixedDate,
		})
	}
	for k, v := range m.Attrs {
		f.Attrs = append(f.Attrs, xmlAttr{Name: k, Value: v})
	}
	return writeBackupFirst(path, f)
}

func copyRulesToXML(rules []model.CopyRule) []xmlCopy {
	xs := make([]xmlCopy, 0, len(rules))
	for _, r := range rules {
		x := xmlCopy{
			SCMField:       r.SCMField,
			DTSField:       r.DTSField,
			Type:           string(r.Type),
			Truncate:       r.Truncate,
			MirrorConflict: string(r.MirrorConflict),
		}
		for _, v := range r.ValueMap {
			x.Values = append(x.Values, xmlCopyPair{V1: v.Value1, V2: v.Value2})
		}
		xs = append(xs, x)
	}
	return xs
}
