// Package validator cross-checks a mapping's rules against its sources'
// remote field schemas (spec §4.3), run once at engine start.
package validator

import (
	"fmt"

	"dtg-replicator/internal/model"
)

// Outcome is the result of validating one mapping.
type Outcome string

const (
	Valid         Outcome = "valid"
	ValidOverride Outcome = "valid_with_override"
	Invalid       Outcome = "invalid"
)

// Result carries the outcome plus every warning/fatal reason collected.
type Result struct {
	Outcome  Outcome
	Warnings []string
	Fatals   []string
}

func (r *Result) fatal(format string, args ...interface{}) {
	r.Fatals = append(r.Fatals, fmt.Sprintf(format, args...))
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate runs every check in spec §4.3 against m, using reg to resolve
// FilterSet names. It mutates m.RecheckOnNewSCM/RecheckOnNewDTS as a side
// effect, matching the original validator's behavior of deriving those
// flags during validation.
func Validate(m *model.DataMapping, reg *model.Registry) *Result {
	r := &Result{}

	scm, dts := m.SCMSource, m.DTSSource
	if scm == nil || dts == nil {
		r.fatal("mapping %s: unresolved source reference", m.ID)
		r.Outcome = Invalid
		return r
	}

	// SCM must be READY; DTS must be PASS or better.
	if scm.Ready() != model.StatusReady {
		r.fatal("scm source %s is not READY (status=%s)", scm.Nickname, scm.Status)
	}
	if dts.Status != model.StatusPass && dts.Status != model.StatusReady {
		r.fatal("dts source %s is not PASS or better (status=%s)", dts.Nickname, dts.Status)
	}

	// SCM with a filter requires DTG_MAPID (WORD, writable).
	if m.SCMFilter != "" {
		f, ok := scm.Field("DTG_MAPID")
		if !ok || f.Type != model.FieldWord || f.Readonly != model.ReadWrite {
			r.fatal("scm source %s missing writable WORD field DTG_MAPID required by filter %s", scm.Nickname, m.SCMFilter)
		}
	}

	// moddate/moduser fields must resolve with the right readonly marker.
	checkModField(r, scm, "scm", model.ModDateField)
	checkModField(r, scm, "scm", model.ModUserField)
	checkModField(r, dts, "dts", model.ModDateField)
	checkModField(r, dts, "dts", model.ModUserField)

	// Every CopyRule references fields that exist on the correct side.
	validateRules(r, m, m.Mirror, scm, dts, true)
	validateRules(r, m, m.SCMToDTS, scm, dts, false)
	validateRules(r, m, m.DTSToSCM, scm, dts, false)

	// No CopyRule remains UNMAP.
	if m.HasUnmapRule() {
		r.fatal("mapping %s: one or more select copy rules left as UNMAP", m.ID)
	}

	// FixRules target an existing writable DTS field.
	for _, fr := range m.Fixes {
		f, ok := dts.Field(fr.DTSField)
		if !ok || f.Readonly != model.ReadWrite {
			r.fatal("fix rule targets non-existent or non-writable dts field %s", fr.DTSField)
		}
	}

	// recheck_on_new_* derivation: any dts->scm rule reading a DefectID
	// field sets recheck_on_new_dts; symmetrically for scm->dts.
	for _, cr := range m.DTSToSCM {
		if f, ok := dts.Field(cr.DTSField); ok && f.Readonly == model.DefectIDField {
			m.RecheckOnNewDTS = true
		}
	}
	for _, cr := range m.SCMToDTS {
		if f, ok := scm.Field(cr.SCMField); ok && f.Readonly == model.DefectIDField {
			m.RecheckOnNewSCM = true
		}
	}

	// FilterSet names must exist and be non-empty. Only presence and
	// non-emptiness are checked; no package materializes the set into a
	// FieldDesc or installs it via the segment-filter capability.
	if m.SCMFilter != "" {
		fs, ok := reg.Filter(scm.Nickname, m.SCMFilter)
		if !ok || len(fs.Rules) == 0 {
			r.fatal("scm filter %s not found or empty", m.SCMFilter)
		}
	}
	if m.DTSFilter != "" {
		fs, ok := reg.Filter(dts.Nickname, m.DTSFilter)
		if !ok || len(fs.Rules) == 0 {
			r.fatal("dts filter %s not found or empty", m.DTSFilter)
		}
	}

	// Unicode compatibility matrix (applied after validation).
	checkUTF8(r, scm, dts)

	switch {
	case len(r.Fatals) > 0:
		r.Outcome = Invalid
	case len(r.Warnings) > 0:
		r.Outcome = ValidOverride
	default:
		r.Outcome = Valid
	}
	return r
}

func checkModField(r *Result, s *model.Source, side string, which model.ReadOnly) {
	name, want := s.ModDateField, model.ModDateField
	label := "moddate_field"
	if which == model.ModUserField {
		name, want, label = s.ModUserField, model.ModUserField, "moduser_field"
	}
	f, ok := s.Field(name)
	if !ok || f.Readonly != want {
		r.fatal("%s source %s: %s %q does not resolve to the expected field marker", side, s.Nickname, label, name)
	}
}

// validateRules checks field existence and, for mirror rules, writability
// on both sides (with the enable_write_to_readonly override for the SCM
// side producing a warning instead of a fatal).
func validateRules(r *Result, m *model.DataMapping, rules []model.CopyRule, scm, dts *model.Source, mirror bool) {
	for i := range rules {
		cr := &rules[i]
		scmField, scmOK := scm.Field(cr.SCMField)
		dtsField, dtsOK := dts.Field(cr.DTSField)
		if !scmOK {
			r.fatal("copy rule references missing scm field %s", cr.SCMField)
		}
		if !dtsOK {
			r.fatal("copy rule references missing dts field %s", cr.DTSField)
		}
		if !mirror {
			continue
		}
		if dtsOK && dtsField.Readonly != model.ReadWrite {
			r.fatal("mirror rule target dts field %s is not writable", cr.DTSField)
		}
		if scmOK && scmField.Readonly != model.ReadWrite {
			if m.EnableWriteToReadonly() {
				r.warn("mirror rule target scm field %s is read-only; enable_write_to_readonly=1 permits this", cr.SCMField)
			} else {
				r.fatal("mirror rule target scm field %s is not writable", cr.SCMField)
			}
		}
	}
}

// checkUTF8 applies the matrix from spec §4.3: scm_utf8=-1 is fatal;
// scm in {0,1} with dts_utf8=-1 is a directional warning; a strict 0/1
// mismatch is fatal.
func checkUTF8(r *Result, scm, dts *model.Source) {
	if scm.AcceptUTF8 == -1 {
		r.fatal("scm source %s: plugin predates utf-8 awareness", scm.Nickname)
		return
	}
	if dts.AcceptUTF8 == -1 {
		r.warn("dts source %s: plugin predates utf-8 awareness (scm is utf8=%d)", dts.Nickname, scm.AcceptUTF8)
		return
	}
	if scm.AcceptUTF8 != dts.AcceptUTF8 {
		r.fatal("utf-8 mismatch: scm=%d dts=%d", scm.AcceptUTF8, dts.AcceptUTF8)
	}
}
