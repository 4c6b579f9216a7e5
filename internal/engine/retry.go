package engine

import (
	"context"

	"dtg-replicator/internal/logging"
	"dtg-replicator/internal/metrics"
	"dtg-replicator/internal/model"
	"dtg-replicator/internal/reconcile"
)

// RetryQueue accumulates SCM ids that need a second, last-chance pass at
// the end of a cycle (spec §4.7 "Retry pass"): per-record save failures
// from the SCM-originated pipeline, and new SCM records the DTS-originated
// pipeline flagged via recheck_on_new_scm.
type RetryQueue struct {
	ids []string
	seen map[string]bool
}

// NewRetryQueue returns an empty queue.
func NewRetryQueue() *RetryQueue {
	return &RetryQueue{seen: map[string]bool{}}
}

// Add enqueues id if it isn't already queued.
func (q *RetryQueue) Add(id string) {
	if id == "" || q.seen[id] {
		return
	}
	q.seen[id] = true
	q.ids = append(q.ids, id)
}

// Drain returns and clears the queued ids.
func (q *RetryQueue) Drain() []string {
	ids := q.ids
	q.ids = nil
	q.seen = map[string]bool{}
	return ids
}

// Len reports the current queue depth, for metrics sampling.
func (q *RetryQueue) Len() int { return len(q.ids) }

// runRetryPass reprocesses every queued id once with last_chance=true via
// the SCM-originated pipeline. A second failure is terminal: the id is
// returned in failed, and the caller passes it to quarantine (which writes
// DTG_ERROR on the record) and then to the err-file.
func runRetryPass(ctx context.Context, m *model.DataMapping, queue []string, scm, dts reconcile.Endpoint, wm reconcile.Watermark, diff reconcile.FixDiffer, log *logging.Logger) (failed []string) {
	metrics.RetryQueueDepth.WithLabelValues(m.ID).Set(float64(len(queue)))
	for _, id := range queue {
		res := reconcile.SCMOriginated(ctx, m, id, scm, dts, wm, diff, true, log)
		if res.Err != nil {
			if log != nil {
				log.Errorf("retry pass: %s terminal failure: %v (scm=%s dts=%s)", id, res.Err, res.SCMID, res.DTSID)
			}
			failed = append(failed, id)
			metrics.CycleRecordsTotal.WithLabelValues(m.ID, "scm", "failed").Inc()
			continue
		}
		metrics.CycleRecordsTotal.WithLabelValues(m.ID, "scm", "retried_ok").Inc()
	}
	return failed
}

// quarantine sets DTG_ERROR on each failed SCM record (best effort — the
// record may itself be unreachable) and returns every failed id, marked or
// not, for the err-file (spec §4.8 step 7, §7).
func quarantine(ctx context.Context, scm reconcile.Endpoint, failed []string) []string {
	var marked []string
	for _, id := range failed {
		rec, err := scm.Project.GetDefect(ctx, id)
		if err != nil {
			marked = append(marked, id)
			continue
		}
		rec.Set("DTG_ERROR", "replication failed after retry")
		if _, err := scm.Project.Save(ctx, rec); err != nil {
			marked = append(marked, id)
			continue
		}
		marked = append(marked, id)
	}
	return marked
}
