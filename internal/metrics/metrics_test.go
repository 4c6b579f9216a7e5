package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCycleRecordsTotalIncrementsByLabelSet(t *testing.T) {
	CycleRecordsTotal.Reset()
	CycleRecordsTotal.WithLabelValues("m1", "scm", "ok").Inc()
	CycleRecordsTotal.WithLabelValues("m1", "scm", "ok").Inc()
	CycleRecordsTotal.WithLabelValues("m1", "dts", "skipped").Inc()

	if got := testutil.ToFloat64(CycleRecordsTotal.WithLabelValues("m1", "scm", "ok")); got != 2 {
		t.Errorf("got %v, want 2", got)
	}
	if got := testutil.ToFloat64(CycleRecordsTotal.WithLabelValues("m1", "dts", "skipped")); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
}

func TestWatermarkLagSecondsSetsGaugePerSide(t *testing.T) {
	WatermarkLagSeconds.Reset()
	WatermarkLagSeconds.WithLabelValues("m1", "scm").Set(12.5)
	WatermarkLagSeconds.WithLabelValues("m1", "dts").Set(3)

	if got := testutil.ToFloat64(WatermarkLagSeconds.WithLabelValues("m1", "scm")); got != 12.5 {
		t.Errorf("got %v, want 12.5", got)
	}
}

func TestRetryQueueDepthAndConnectionResetsAreIndependentPerLabel(t *testing.T) {
	RetryQueueDepth.Reset()
	ConnectionResets.Reset()
	RetryQueueDepth.WithLabelValues("m1").Set(4)
	RetryQueueDepth.WithLabelValues("m2").Set(9)
	ConnectionResets.WithLabelValues("m1", "scheduled").Inc()
	ConnectionResets.WithLabelValues("m1", "force").Add(2)

	if got := testutil.ToFloat64(RetryQueueDepth.WithLabelValues("m1")); got != 4 {
		t.Errorf("got %v, want 4", got)
	}
	if got := testutil.ToFloat64(RetryQueueDepth.WithLabelValues("m2")); got != 9 {
		t.Errorf("got %v, want 9", got)
	}
	if got := testutil.ToFloat64(ConnectionResets.WithLabelValues("m1", "force")); got != 2 {
		t.Errorf("got %v, want 2", got)
	}
}
