package engine

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"dtg-replicator/internal/config"
	"dtg-replicator/internal/logging"
	"dtg-replicator/internal/model"
	"dtg-replicator/internal/plugin"
	"dtg-replicator/internal/plugin/fake"
)

// offlineAdapter wraps a fake.Adapter so a test can force ServerDate to fail
// on demand, exercising the offline protocol without a real plugin.
type offlineAdapter struct {
	*fake.Adapter
	fail atomic.Bool
}

func (o *offlineAdapter) Connect(ctx context.Context, server, user, pass string, attrs []model.Attr) (plugin.Handle, error) {
	return &offlineHandle{Adapter: o.Adapter, parent: o}, nil
}

type offlineHandle struct {
	*fake.Adapter
	parent *offlineAdapter
}

func (h *offlineHandle) ServerDate(ctx context.Context) (time.Time, error) {
	if h.parent.fail.Load() {
		return time.Time{}, errors.New("server unreachable")
	}
	return h.Adapter.ServerDate(ctx)
}

// ServerOffline overrides the embedded fake's "0 seconds, online" default so
// the offline tests exercise the mapping's own wait_duration fallback
// instead of looping on an always-online plugin opinion.
func (h *offlineHandle) ServerOffline(ctx context.Context, hh plugin.Handle) (int, error) {
	return -1, nil
}

func newTestEngine(t *testing.T, scmAdapter, dtsAdapter plugin.Adapter, m *model.DataMapping) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	for _, sub := range []string{"config", "repl", "plugins"} {
		if err := os.MkdirAll(root+"/"+sub, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := config.Load(root)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	settings := &model.DTGSettings{ID: m.ID, StartingDate: time.Now().UTC().Add(-time.Hour)}
	e := New(m, settings, cfg, logging.Noop(), scmAdapter, dtsAdapter)
	return e, root
}

func testMapping() *model.DataMapping {
	return &model.DataMapping{
		ID:        "m1",
		SCMSource: &model.Source{Kind: model.SCM, Nickname: "p4", ModDateField: "ModDate", ModUserField: "ModUser"},
		DTSSource: &model.Source{Kind: model.DTS, Nickname: "jira", ModDateField: "Updated", ModUserField: "Updater"},
		SCMToDTS:  []model.CopyRule{{SCMField: "Desc", DTSField: "Summary", Type: model.CopyText}},
		Attrs:     map[string]string{model.AttrPollingPeriod: "1"},
	}
}

func TestRunRefusesWhenErrFilePresent(t *testing.T) {
	m := testMapping()
	e, root := newTestEngine(t, fake.New("p4", nil), fake.New("jira", nil), m)
	if err := os.WriteFile(root+"/repl/err-m1", []byte("100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background()); err == nil {
		t.Fatal("expected Run to refuse while err-m1 is present")
	}
}

func TestRunExitsCleanlyWhenStopAlreadySignaled(t *testing.T) {
	m := testMapping()
	e, root := newTestEngine(t, fake.New("p4", nil), fake.New("jira", nil), m)
	if err := os.WriteFile(root+"/repl/stop-m1", nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("expected a clean exit, got %v", err)
	}
	if _, err := os.Stat(root + "/repl/run-m1"); err == nil {
		t.Error("expected run-m1 to be removed on exit")
	}
}

func TestRunSingleCycleReplicatesAndPersistsWatermark(t *testing.T) {
	m := testMapping()
	scmAdapter := fake.New("p4", nil)
	dtsAdapter := fake.New("jira", nil)
	scmAdapter.SeedRecord("100", map[string]string{"Desc": "hello world"})

	e, _ := newTestEngine(t, scmAdapter, dtsAdapter, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	replicated := false
	for time.Now().Before(deadline) {
		scmFields := scmAdapter.GetRecordFields("100")
		if scmFields["DTG_DTISSUE"] != "" {
			replicated = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !replicated {
		cancel()
		<-done
		t.Fatal("expected the scm record to be linked to a new dts record within the deadline")
	}

	dtsID := scmAdapter.GetRecordFields("100")["DTG_DTISSUE"]
	dtsFields := dtsAdapter.GetRecordFields(dtsID)
	if dtsFields["Summary"] != "hello world" {
		t.Errorf("got %q, want hello world propagated to dts Summary", dtsFields["Summary"])
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected Run to exit cleanly on context cancellation, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}

	if e.Settings.LastUpdateSCM.IsZero() {
		t.Error("expected the watermark to be persisted after a cycle")
	}
}

func TestRunOfflineWithNegativeWaitDurationExitsCleanly(t *testing.T) {
	m := testMapping()
	m.Attrs[model.AttrWaitDuration] = "-1"
	scmAdapter := &offlineAdapter{Adapter: fake.New("p4", nil)}
	dtsAdapter := fake.New("jira", nil)

	e, _ := newTestEngine(t, scmAdapter, dtsAdapter, m)

	// Connect succeeds (fail is false), then flip to failing before the loop
	// reaches its first clock fetch by setting it up front: the first
	// runCycle call will observe fail=true.
	scmAdapter.fail.Store(true)

	err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("expected a clean exit when wait_duration=-1, got %v", err)
	}
}

func TestFixDifferReportsAddedAndRemoved(t *testing.T) {
	m := testMapping()
	scmAdapter := fake.New("p4", nil)
	dtsAdapter := fake.New("jira", nil)
	e, _ := newTestEngine(t, scmAdapter, dtsAdapter, m)

	scmAdapter.SeedFixes("100", plugin.FixDesc{Change: "1", User: "bob", Desc: "first fix", Files: []string{"//depot/a"}})
	finder, _ := e.scmAdapter.(plugin.FixFinder)
	diff := e.fixDiffer(finder)
	if diff == nil {
		t.Fatal("expected a non-nil differ when the scm adapter implements FixFinder")
	}

	added, removed, err := diff(context.Background(), "100", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(added) != 1 || added[0].Change != "1" {
		t.Errorf("got added=%+v, want one fix with change 1", added)
	}
	if len(removed) != 0 {
		t.Errorf("got removed=%v, want none on first call", removed)
	}

	// Second call with the same fix set reports nothing new.
	added, removed, err = diff(context.Background(), "100", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(added) != 0 || len(removed) != 0 {
		t.Errorf("expected no changes on a repeat call, got added=%v removed=%v", added, removed)
	}

	// Now the fix disappears (e.g. reverted) — report it removed.
	scmAdapter.SeedFixes("100")
	added, removed, err = diff(context.Background(), "100", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(added) != 0 || len(removed) != 1 || removed[0] != "1" {
		t.Errorf("got added=%v removed=%v, want removed=[1]", added, removed)
	}
}

func TestFixDifferNilWhenAdapterLacksFixFinder(t *testing.T) {
	m := testMapping()
	e, _ := newTestEngine(t, fake.New("p4", nil), fake.New("jira", nil), m)
	if diff := e.fixDiffer(nil); diff != nil {
		t.Error("expected a nil differ when no FixFinder is available")
	}
}

func TestSleepWithEarlyWakeReturnsTrueOnContextCancel(t *testing.T) {
	m := testMapping()
	e, root := newTestEngine(t, fake.New("p4", nil), fake.New("jira", nil), m)
	e.stop = NewStopWatcher(root+"/repl", "m1", nil)
	defer e.stop.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !e.sleepWithEarlyWake(ctx, time.Second) {
		t.Error("expected sleepWithEarlyWake to wake early on a cancelled context")
	}
}

func TestSleepWithEarlyWakeReturnsFalseWhenDurationElapses(t *testing.T) {
	m := testMapping()
	e, root := newTestEngine(t, fake.New("p4", nil), fake.New("jira", nil), m)
	e.stop = NewStopWatcher(root+"/repl", "m1", nil)
	defer e.stop.Close()

	if e.sleepWithEarlyWake(context.Background(), 10*time.Millisecond) {
		t.Error("expected sleepWithEarlyWake to return false once the duration elapses undisturbed")
	}
}
