package reconcile

import (
	"context"
	"fmt"

	"dtg-replicator/internal/convert"
	"dtg-replicator/internal/logging"
	"dtg-replicator/internal/model"
	"dtg-replicator/internal/plugin"
)

// DTSOriginated runs the §4.7 "DTS-originated" pipeline for one changed DTS
// id. dtsUser is the configured DTS user whose own edits are ignored to
// avoid a replication echo.
func DTSOriginated(ctx context.Context, m *model.DataMapping, dtsID, dtsUser string, scm, dts Endpoint, wm Watermark, finder plugin.FixFinder, log *logging.Logger) Result {
	res := Result{DTSID: dtsID}

	rec, err := dts.Project.GetDefect(ctx, dtsID)
	if err != nil {
		res.Err = fmt.Errorf("load dts %s: %w", dtsID, err)
		return res
	}

	if fs := findFilter(m.DTSSource, m.DTSFilter); fs != nil && !fs.Matches(rec.Get(fs.Field)) {
		res.Skipped = true
		return res
	}

	if !wm.Force && dtsUser != "" && rec.Get(m.DTSSource.ModUserField) == dtsUser {
		res.Skipped = true
		return res
	}

	if !wm.Force {
		// An empty moddate extracts as the zero time, which is never newer
		// than the watermark, so such a record is skipped (inherited
		// behavior, kept as observed).
		modAt, ok := dts.Adapter.ExtractDate(rec.Get(m.DTSSource.ModDateField))
		if ok && !modAt.After(wm.LastDTS) {
			res.Skipped = true
			return res
		}
	}

	// The link lives on the SCM side: a linked SCM record carries this DTS
	// id in DTG_DTISSUE.
	var scmRec plugin.Record
	scmStatus := New
	if finder != nil {
		query := fmt.Sprintf("DTG_DTISSUE=%s AND DTG_MAPID=%s", dtsID, m.ID)
		ids, ferr := finder.FindDefects(ctx, scm.Project, 1, query)
		if ferr != nil {
			res.Err = fmt.Errorf("find_defects: %w", ferr)
			return res
		}
		if len(ids) > 0 {
			scmRec, err = scm.Project.GetDefect(ctx, ids[0])
			if err != nil {
				res.Err = fmt.Errorf("load scm %s: %w", ids[0], err)
				return res
			}
			if modAt, ok := scm.Adapter.ExtractDate(scmRec.Get(m.SCMSource.ModDateField)); ok && modAt.After(wm.LastSCM) {
				scmStatus = Changed
			} else {
				scmStatus = Unchanged
			}
		}
	}
	if scmRec == nil {
		scmRec, err = scm.Project.NewDefect(ctx)
		if err != nil {
			res.Err = fmt.Errorf("new scm record: %w", err)
			return res
		}
		res.NewSCM = true
		scmStatus = New
	}
	res.SCMID = scmRec.ID()

	if scmRec.Get("DTG_ERROR") != "" {
		res.Skipped = true
		return res
	}

	sides := &Sides{
		SCM: scmRec, DTS: rec,
		SCMStatus: scmStatus, DTSStatus: Changed,
		SCMAdapter: scm.Adapter, DTSAdapter: dts.Adapter,
	}
	ids := convert.Ids{SCMID: scmRec.ID(), DTSID: dtsID}
	if mergeErr := Merge(m, sides, ids, log); mergeErr != nil {
		res.Err = mergeErr
		return res
	}

	if fs := findFilter(m.SCMSource, m.SCMFilter); fs != nil && !fs.Matches(scmRec.Get(fs.Field)) {
		res.Err = fmt.Errorf("scm record %s fails filter %s after replication", scmRec.ID(), m.SCMFilter)
		return res
	}

	if _, err := dts.Project.Save(ctx, rec); err != nil {
		scmRec.Set("DTG_ERROR", fmt.Sprintf("dts save failed: %v", err))
		_, _ = scm.Project.Save(ctx, scmRec)
		res.Err = fmt.Errorf("save dts: %w", err)
		return res
	}

	newSCMID, err := scm.Project.Save(ctx, scmRec)
	if err != nil {
		res.Err = fmt.Errorf("save scm: %w", err)
		return res
	}
	res.SCMID = newSCMID

	if res.NewSCM {
		scmRec.Set("DTG_DTISSUE", dtsID)
		scmRec.Set("DTG_MAPID", m.ID)
		if _, err := scm.Project.Save(ctx, scmRec); err != nil {
			res.Err = fmt.Errorf("persist dtg_dtissue/mapid: %w", err)
			return res
		}
		if m.RecheckOnNewSCM {
			res.NeedsRetry = true
		}
	}

	return res
}
