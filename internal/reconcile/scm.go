package reconcile

import (
	"context"
	"fmt"
	"time"

	"dtg-replicator/internal/convert"
	"dtg-replicator/internal/logging"
	"dtg-replicator/internal/model"
	"dtg-replicator/internal/plugin"
)

// Endpoint bundles the handle/project pair and adapter the pipelines drive
// one side with.
type Endpoint struct {
	Adapter plugin.Adapter
	Handle  plugin.Handle
	Project plugin.Project
}

// FixDiffer computes the fix ids added/removed relative to a record's
// stored DTG_FIXES value; the engine supplies the real implementation
// (it owns the FixFinder capability probe and caches descriptions).
type FixDiffer func(ctx context.Context, scmID, storedFixes string) (added []plugin.FixDesc, removed []string, err error)

// Watermark is the subset of model.DTGSettings the pipelines need to decide
// CHANGED vs UNCHANGED.
type Watermark struct {
	LastSCM time.Time
	LastDTS time.Time
	Force   bool
}

// Result reports what a pipeline pass did, so the engine can queue a retry,
// count a failure, or note a new id for recheck.
type Result struct {
	SCMID      string
	DTSID      string
	Skipped    bool
	NeedsRetry bool
	NewSCM     bool
	NewDTS     bool
	Err        error
}

func findFilter(src *model.Source, name string) *model.FilterSet {
	if src == nil || name == "" {
		return nil
	}
	for _, fs := range src.Filters {
		if fs.Name == name {
			return fs
		}
	}
	return nil
}

// SCMOriginated runs the §4.7 "SCM-originated" pipeline for one changed SCM
// id. isRetry suppresses re-queueing on a second failure (the caller is
// already in the last-chance retry pass).
func SCMOriginated(ctx context.Context, m *model.DataMapping, scmID string, scm, dts Endpoint, wm Watermark, diff FixDiffer, isRetry bool, log *logging.Logger) Result {
	res := Result{SCMID: scmID}

	rec, err := scm.Project.GetDefect(ctx, scmID)
	if err != nil {
		res.Err = fmt.Errorf("load scm %s: %w", scmID, err)
		return res
	}

	if fs := findFilter(m.SCMSource, m.SCMFilter); fs != nil && !fs.Matches(rec.Get(fs.Field)) {
		res.Skipped = true
		return res
	}

	if mapid := rec.Get("DTG_MAPID"); mapid == "" {
		rec.Set("DTG_MAPID", m.ID)
	} else if mapid != m.ID {
		res.Err = fmt.Errorf("scm %s: DTG_MAPID %q does not match mapping %q", scmID, mapid, m.ID)
		return res
	}

	dtIssue := rec.Get("DTG_DTISSUE")
	var dtsRec plugin.Record
	dtsStatus := Unchanged
	if dtIssue == "" {
		dtsRec, err = dts.Project.NewDefect(ctx)
		if err != nil {
			res.Err = fmt.Errorf("new dts record: %w", err)
			return res
		}
		dtsStatus = New
		res.NewDTS = true
	} else {
		dtsRec, err = dts.Project.GetDefect(ctx, dtIssue)
		if err != nil {
			res.Err = fmt.Errorf("load dts %s: %w", dtIssue, err)
			return res
		}
		if modAt, ok := dts.Adapter.ExtractDate(dtsRec.Get(m.DTSSource.ModDateField)); ok && modAt.After(wm.LastDTS) {
			dtsStatus = Changed
		}
	}
	res.DTSID = dtsRec.ID()

	var added []plugin.FixDesc
	var removed []string
	if diff != nil {
		added, removed, err = diff(ctx, scmID, rec.Get("DTG_FIXES"))
		if err != nil {
			res.Err = fmt.Errorf("diff fixes: %w", err)
			return res
		}
	}

	scmStatus := New
	if dtIssue != "" {
		scmStatus = Changed
	}

	sides := &Sides{
		SCM: rec, DTS: dtsRec,
		SCMStatus: scmStatus, DTSStatus: dtsStatus,
		AddedFixes: added, DeletedFixes: removed,
		SCMAdapter: scm.Adapter, DTSAdapter: dts.Adapter,
	}
	ids := convert.Ids{SCMID: scmID, DTSID: dtsRec.ID()}
	if mergeErr := Merge(m, sides, ids, log); mergeErr != nil {
		res.Err = mergeErr
		return res
	}

	if fs := findFilter(m.DTSSource, m.DTSFilter); fs != nil && !fs.Matches(dtsRec.Get(fs.Field)) {
		res.Err = fmt.Errorf("dts record %s fails filter %s after replication", dtsRec.ID(), m.DTSFilter)
		return res
	}

	newDTSID, err := dts.Project.Save(ctx, dtsRec)
	if err != nil {
		res.Err = fmt.Errorf("save dts: %w", err)
		res.NeedsRetry = !isRetry
		return res
	}
	if dtIssue == "" {
		rec.Set("DTG_DTISSUE", newDTSID)
	}
	res.DTSID = newDTSID

	if _, err := scm.Project.Save(ctx, rec); err != nil {
		res.Err = fmt.Errorf("save scm: %w", err)
		res.NeedsRetry = !isRetry
		return res
	}

	return res
}
