// Package reconcile implements the per-record merge (spec §4.6) and the
// two record pipelines that drive it (spec §4.7).
package reconcile

import (
	"fmt"
	"time"

	"dtg-replicator/internal/convert"
	"dtg-replicator/internal/fixrender"
	"dtg-replicator/internal/logging"
	"dtg-replicator/internal/model"
	"dtg-replicator/internal/plugin"
)

// Status is a record's change state relative to the mapping's watermark.
type Status int

const (
	Unchanged Status = iota
	Changed
	New
)

// Sides bundles the two record handles and their change status for one
// reconciliation pass, plus the fix ids to render this round.
type Sides struct {
	SCM       plugin.Record
	DTS       plugin.Record
	SCMStatus Status
	DTSStatus Status

	AddedFixes   []plugin.FixDesc
	DeletedFixes []string

	SCMAdapter plugin.Adapter
	DTSAdapter plugin.Adapter

	// ModDates back the NEWER conflict policy; zero values are treated as
	// "older" so an absent timestamp never wins a tie.
	SCMModDate time.Time
	DTSModDate time.Time
}

// ErrMapIDMismatch is returned when a SCM record's DTG_MAPID disagrees with
// the mapping processing it; callers treat this as a per-record fatal.
var ErrMapIDMismatch = fmt.Errorf("reconcile: DTG_MAPID mismatch")

// Merge runs the four-step reconciliation (spec §4.6) against s, mutating
// s.SCM/s.DTS in place via Set. ids is threaded through to tag MAP-lookup
// log lines and the fatal mismatch check.
func Merge(m *model.DataMapping, s *Sides, ids convert.Ids, log *logging.Logger) error {
	if existing := s.SCM.Get("DTG_ERROR"); existing != "" {
		return nil // skipped entirely per spec §4.6
	}
	if mapid := s.SCM.Get("DTG_MAPID"); mapid != "" && mapid != m.ID {
		return ErrMapIDMismatch
	}

	// 1. Fix rules, always, if there's anything to render.
	if len(s.AddedFixes) > 0 || len(s.DeletedFixes) > 0 {
		for i := range m.Fixes {
			fr := &m.Fixes[i]
			current := s.DTS.Get(fr.DTSField)
			rendered := fixrender.Apply(fr, current, s.AddedFixes, s.DeletedFixes)
			setNormalized(s.DTS, fr.DTSField, rendered)
		}
	}

	// 2. Mirror rules.
	for i := range m.Mirror {
		mergeMirror(m, &m.Mirror[i], s, ids, log)
	}

	// 3. dts->scm: unconditional copy.
	for i := range m.DTSToSCM {
		cr := &m.DTSToSCM[i]
		v := convert.Convert(cr, s.DTS.Get(cr.DTSField), true, s.DTSAdapter, s.SCMAdapter, ids, log)
		writeIfWritable(m, s.SCM, cr.SCMField, v)
	}

	// 4. scm->dts: unconditional copy.
	for i := range m.SCMToDTS {
		cr := &m.SCMToDTS[i]
		v := convert.Convert(cr, s.SCM.Get(cr.SCMField), false, s.SCMAdapter, s.DTSAdapter, ids, log)
		setNormalized(s.DTS, cr.DTSField, v)
	}

	return nil
}

func mergeMirror(m *model.DataMapping, cr *model.CopyRule, s *Sides, ids convert.Ids, log *logging.Logger) {
	policy := cr.MirrorConflict
	if policy == "" {
		policy = m.Conflict
	}

	bothNew := s.SCMStatus == New && s.DTSStatus == New
	bothChanged := s.SCMStatus == Changed && s.DTSStatus == Changed

	switch {
	case bothChanged && !bothNew:
		winner := resolveConflict(policy, s, log, cr, ids)
		switch winner {
		case model.ConflictSCM:
			v := convert.Convert(cr, s.SCM.Get(cr.SCMField), false, s.SCMAdapter, s.DTSAdapter, ids, log)
			setNormalized(s.DTS, cr.DTSField, v)
		case model.ConflictDTS:
			v := convert.Convert(cr, s.DTS.Get(cr.DTSField), true, s.DTSAdapter, s.SCMAdapter, ids, log)
			writeIfWritable(m, s.SCM, cr.SCMField, v)
		}
	case bothNew:
		// Fresh pair: whichever side actually carries the CHANGED status
		// wins; if both report CHANGED on creation, SCM (the record that
		// triggered creation in the SCM-originated pipeline) is taken,
		// matching the DTS-originated pipeline's symmetric new-SCM case.
		if s.DTSStatus == Changed && s.SCMStatus != Changed {
			v := convert.Convert(cr, s.DTS.Get(cr.DTSField), true, s.DTSAdapter, s.SCMAdapter, ids, log)
			writeIfWritable(m, s.SCM, cr.SCMField, v)
		} else {
			v := convert.Convert(cr, s.SCM.Get(cr.SCMField), false, s.SCMAdapter, s.DTSAdapter, ids, log)
			setNormalized(s.DTS, cr.DTSField, v)
		}
	case s.SCMStatus == Changed:
		v := convert.Convert(cr, s.SCM.Get(cr.SCMField), false, s.SCMAdapter, s.DTSAdapter, ids, log)
		setNormalized(s.DTS, cr.DTSField, v)
	case s.DTSStatus == Changed:
		v := convert.Convert(cr, s.DTS.Get(cr.DTSField), true, s.DTSAdapter, s.SCMAdapter, ids, log)
		writeIfWritable(m, s.SCM, cr.SCMField, v)
	}
}

// resolveConflict applies the rule/mapping conflict policy. NEWER compares
// the moddates captured on Sides; a strict tie resolves to DTS (see
// DESIGN.md open question resolution). ERROR logs and
// applies neither side, leaving both records as last persisted.
func resolveConflict(policy model.MirrorConflictPolicy, s *Sides, log *logging.Logger, cr *model.CopyRule, ids convert.Ids) model.MirrorConflictPolicy {
	switch policy {
	case model.ConflictSCM, model.ConflictDTS:
		return policy
	case model.ConflictError:
		if log != nil {
			log.Errorf("mirror conflict on %s/%s: both sides changed (scm=%s dts=%s)", cr.SCMField, cr.DTSField, ids.SCMID, ids.DTSID)
		}
		return ""
	case model.ConflictNewer:
		// Inherited tie-break: equal moddates fall through to the same
		// branch as policy DTS.
		if s.SCMModDate.After(s.DTSModDate) {
			return model.ConflictSCM
		}
		return model.ConflictDTS
	default:
		return model.ConflictSCM
	}
}

// setNormalized writes to a DTS field only when the normalized value
// actually differs (spec §4.6).
func setNormalized(r plugin.Record, field, value string) {
	if convert.Normalize(r.Get(field)) == convert.Normalize(value) {
		return
	}
	r.Set(field, value)
}

// writeIfWritable applies the same normalized-diff suppression, plus the
// SCM read-only gate: a write to a read-only SCM field is dropped unless
// enable_write_to_readonly=1 (spec §4.6).
func writeIfWritable(m *model.DataMapping, r plugin.Record, field, value string) {
	if convert.Normalize(r.Get(field)) == convert.Normalize(value) {
		return
	}
	if m.SCMSource != nil {
		if fd, ok := m.SCMSource.Field(field); ok && fd.Readonly != model.ReadWrite && !m.EnableWriteToReadonly() {
			return
		}
	}
	r.Set(field, value)
}
