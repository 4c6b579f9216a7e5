// Package engine implements the replication loop (spec §4.8): one process
// per mapping, cycling through clock fetch, DTS- and SCM-originated
// reconciliation, retry drain, and watermark persistence.
package engine

import (
	"context"
	"fmt"
	"time"

	"dtg-replicator/internal/config"
	"dtg-replicator/internal/logging"
	"dtg-replicator/internal/metrics"
	"dtg-replicator/internal/model"
	"dtg-replicator/internal/plugin"
	"dtg-replicator/internal/reconcile"
	"dtg-replicator/internal/store"
)

// Engine drives one mapping's replication loop end to end.
type Engine struct {
	Mapping  *model.DataMapping
	Settings *model.DTGSettings
	Cfg      *config.Config
	Log      *logging.Logger

	scmAdapter plugin.Adapter
	dtsAdapter plugin.Adapter

	scm reconcile.Endpoint
	dts reconcile.Endpoint

	scmBreaker *plugin.Breaker
	dtsBreaker *plugin.Breaker

	knownFixes map[string][]string
	retry      *RetryQueue

	cyclesSinceReset int
	stop             *StopWatcher
}

// New builds an Engine bound to one mapping. scmAdapter/dtsAdapter are the
// already-resolved plugin Adapters (the loader or a test fake); connections
// are established lazily on first Run.
func New(m *model.DataMapping, settings *model.DTGSettings, cfg *config.Config, log *logging.Logger, scmAdapter, dtsAdapter plugin.Adapter) *Engine {
	return &Engine{
		Mapping:    m,
		Settings:   settings,
		Cfg:        cfg,
		Log:        log,
		scmAdapter: scmAdapter,
		dtsAdapter: dtsAdapter,
		scmBreaker: plugin.NewBreaker(plugin.BreakerConfig{MaxFailures: 3, ResetTimeout: 30 * time.Second}),
		dtsBreaker: plugin.NewBreaker(plugin.BreakerConfig{MaxFailures: 3, ResetTimeout: 30 * time.Second}),
		knownFixes: map[string][]string{},
		retry:      NewRetryQueue(),
	}
}

// Run executes the replication loop until ctx is cancelled or a stop signal
// is observed. It implements spec §4.8 steps 1-11.
func (e *Engine) Run(ctx context.Context) error {
	replDir := e.Cfg.ReplDir()
	mapping := e.Mapping.ID

	if hasErrFile(replDir, mapping) {
		return fmt.Errorf("engine: err-%s present; replication refused until an operator removes it", mapping)
	}
	if err := touchRun(replDir, mapping); err != nil {
		return err
	}
	defer removeRun(replDir, mapping)

	e.stop = NewStopWatcher(replDir, mapping, e.Log)
	defer e.stop.Close()

	if err := e.connect(ctx); err != nil {
		return fmt.Errorf("engine: initial connect: %w", err)
	}
	defer e.teardown()

	for {
		if e.stop.Stopped() {
			e.Log.Infof("mapping %s: stop signal observed, exiting cleanly", mapping)
			return nil
		}

		cycleStart := time.Now()
		if err := e.runCycle(ctx); err != nil {
			if isOfflineErr(err) {
				exit, werr := e.handleOffline(ctx, err)
				if werr != nil {
					return werr
				}
				if exit {
					e.Log.Infof("mapping %s: wait_duration=-1 and no reconnect guidance, exiting", mapping)
					return nil
				}
				continue
			}
			return err
		}
		metrics.CycleDuration.WithLabelValues(mapping).Observe(time.Since(cycleStart).Seconds())

		e.cyclesSinceReset++
		if e.cyclesSinceReset >= e.Mapping.ConnectionReset() || e.Settings.Force {
			reason := "scheduled"
			if e.Settings.Force {
				reason = "force"
			}
			metrics.ConnectionResets.WithLabelValues(mapping, reason).Inc()
			e.teardown()
			if err := e.connect(ctx); err != nil {
				return fmt.Errorf("engine: reconnect: %w", err)
			}
			e.cyclesSinceReset = 0
		}

		if e.sleepWithEarlyWake(ctx, time.Duration(e.Mapping.PollingPeriod())*time.Second) {
			e.Log.Infof("mapping %s: stop signal observed during sleep, exiting cleanly", mapping)
			return nil
		}
	}
}

type offlineErr struct {
	side string
	err  error
}

func (e *offlineErr) Error() string { return fmt.Sprintf("%s offline: %v", e.side, e.err) }
func (e *offlineErr) Unwrap() error { return e.err }

func isOfflineErr(err error) bool {
	_, ok := err.(*offlineErr)
	return ok
}

// handleOffline implements spec §4.8 step 2's offline protocol for whichever
// side's clock fetch failed.
func (e *Engine) handleOffline(ctx context.Context, cause error) (exit bool, err error) {
	oe := cause.(*offlineErr)
	metrics.OfflineEvents.WithLabelValues(e.Mapping.ID, oe.side).Inc()

	h := e.scm.Handle
	if oe.side == "dts" {
		h = e.dts.Handle
	}
	seconds, shouldExit := plugin.OfflineWait(ctx, h, e.Mapping.WaitDuration())
	if shouldExit {
		return true, nil
	}
	if e.sleepWithEarlyWake(ctx, time.Duration(seconds)*time.Second) {
		return true, nil
	}
	return false, nil
}

// runCycle executes one pass of spec §4.8 steps 3-9 (step 1/11's stop-check
// and sleep live in Run; step 2's clock fetch happens here and can return an
// *offlineErr).
func (e *Engine) runCycle(ctx context.Context) error {
	var scmClock, dtsClock time.Time
	if err := e.scmBreaker.Execute(func() error {
		var err error
		scmClock, err = e.scm.Handle.ServerDate(ctx)
		return err
	}); err != nil {
		return &offlineErr{side: "scm", err: err}
	}
	if err := e.dtsBreaker.Execute(func() error {
		var err error
		dtsClock, err = e.dts.Handle.ServerDate(ctx)
		return err
	}); err != nil {
		return &offlineErr{side: "dts", err: err}
	}

	if e.Settings.Force {
		e.Settings.LastUpdateSCM = e.Settings.StartingDate
		e.Settings.LastUpdateDTS = e.Settings.StartingDate
	}
	wm := reconcile.Watermark{LastSCM: e.Settings.LastUpdateSCM, LastDTS: e.Settings.LastUpdateDTS, Force: e.Settings.Force}

	var failures []string

	finder, _ := e.scmAdapter.(plugin.FixFinder)
	diff := e.fixDiffer(finder)

	dtsIDs, err := e.dts.Project.ListChangedDefects(ctx, 0, wm.LastDTS, e.Mapping.DTSSource.ModDateField, e.Mapping.DTSSource.ModUserField, "")
	if err != nil {
		return &offlineErr{side: "dts", err: err}
	}
	for _, id := range dtsIDs {
		if e.stop.Stopped() {
			break
		}
		res := reconcile.DTSOriginated(ctx, e.Mapping, id, e.Mapping.DTSSource.User, e.scm, e.dts, wm, finder, e.Log)
		e.recordOutcome("dts", res, &failures)
		if res.NeedsRetry {
			e.retry.Add(res.SCMID)
		}
	}

	scmIDs, err := e.scm.Project.ListChangedDefects(ctx, 0, wm.LastSCM, e.Mapping.SCMSource.ModDateField, e.Mapping.SCMSource.ModUserField, "")
	if err != nil {
		return &offlineErr{side: "scm", err: err}
	}
	for _, id := range scmIDs {
		if e.stop.Stopped() {
			break
		}
		res := reconcile.SCMOriginated(ctx, e.Mapping, id, e.scm, e.dts, wm, diff, false, e.Log)
		e.recordOutcome("scm", res, &failures)
		if res.NeedsRetry {
			e.retry.Add(id)
		}
	}

	retryIDs := e.retry.Drain()
	failed := runRetryPass(ctx, e.Mapping, retryIDs, e.scm, e.dts, wm, diff, e.Log)
	failed = quarantine(ctx, e.scm, failed)
	failures = append(failures, failed...)

	if len(failures) > 0 {
		metrics.FatalRecords.WithLabelValues(e.Mapping.ID).Add(float64(len(failures)))
		if err := writeErrFile(e.Cfg.ReplDir(), e.Mapping.ID, failures); err != nil {
			return fmt.Errorf("engine: write err file: %w", err)
		}
		return fmt.Errorf("engine: %d record(s) failed terminally this cycle", len(failures))
	}

	e.Settings.LastUpdateSCM = scmClock
	e.Settings.LastUpdateDTS = dtsClock
	e.Settings.Force = false
	if err := store.SaveSettingsLocked(e.Cfg.ConfigDir(), e.Settings, time.Now); err != nil {
		return fmt.Errorf("engine: persist settings: %w", err)
	}
	metrics.WatermarkLagSeconds.WithLabelValues(e.Mapping.ID, "scm").Set(time.Since(e.Settings.LastUpdateSCM).Seconds())
	metrics.WatermarkLagSeconds.WithLabelValues(e.Mapping.ID, "dts").Set(time.Since(e.Settings.LastUpdateDTS).Seconds())

	return nil
}

func (e *Engine) recordOutcome(origin string, res reconcile.Result, failures *[]string) {
	outcome := "ok"
	switch {
	case res.Err != nil:
		outcome = "failed"
		if res.Err != nil {
			e.Log.Errorf("%s record %s/%s: %v", origin, res.SCMID, res.DTSID, res.Err)
		}
	case res.Skipped:
		outcome = "skipped"
	case res.NeedsRetry:
		outcome = "retried"
	}
	metrics.CycleRecordsTotal.WithLabelValues(e.Mapping.ID, origin, outcome).Inc()
}

// fixDiffer builds the fix-diff closure reconcile.SCMOriginated needs, based
// on the SCM adapter's FixFinder capability probe result. Rather than
// parsing ids back out of the rendered DTG_FIXES text (prose, not a
// machine-readable list — see internal/fixrender), the engine tracks each
// record's last-seen fix id set in memory across cycles within this
// process's lifetime; a freshly started engine treats every existing fix as
// newly "added" once, which is harmless since fixrender's APPEND/REPLACE
// both tolerate re-application of an already-present block.
func (e *Engine) fixDiffer(finder plugin.FixFinder) reconcile.FixDiffer {
	if finder == nil {
		return nil
	}
	return func(ctx context.Context, scmID, storedFixes string) ([]plugin.FixDesc, []string, error) {
		ids, err := finder.ListFixes(ctx, e.scm.Project, scmID)
		if err != nil {
			return nil, nil, err
		}
		prev := e.knownFixes[scmID]
		prevSet := make(map[string]bool, len(prev))
		for _, id := range prev {
			prevSet[id] = true
		}
		curSet := make(map[string]bool, len(ids))
		for _, id := range ids {
			curSet[id] = true
		}

		var added []plugin.FixDesc
		for _, id := range ids {
			if prevSet[id] {
				continue
			}
			d, derr := finder.DescribeFix(ctx, e.scm.Project, id)
			if derr != nil {
				continue
			}
			added = append(added, d)
		}
		var removed []string
		for _, id := range prev {
			if !curSet[id] {
				removed = append(removed, id)
			}
		}
		e.knownFixes[scmID] = ids
		return added, removed, nil
	}
}

// sleepWithEarlyWake sleeps up to d, waking early (returning true) if the
// stop signal appears or ctx is cancelled.
func (e *Engine) sleepWithEarlyWake(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-timer.C:
			return false
		case <-ctx.Done():
			return true
		case <-ticker.C:
			if e.stop.Stopped() {
				return true
			}
		}
	}
}
