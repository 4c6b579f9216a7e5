// Package fake is an in-memory Adapter/Handle/Project implementation used
// by the engine and reconciler tests, built the way the teacher's
// internal/monitors/test_helpers.go builds fakes for its monitor interfaces.
package fake

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"dtg-replicator/internal/model"
	"dtg-replicator/internal/plugin"
)

// Record is a simple field-bag implementation of plugin.Record.
type Record struct {
	id     string
	fields map[string]string
	dirty  bool
}

func NewRecord(id string) *Record {
	return &Record{id: id, fields: map[string]string{}}
}

func (r *Record) ID() string             { return r.id }
func (r *Record) Get(field string) string { return r.fields[field] }
func (r *Record) Set(field, value string) {
	if r.fields[field] == value {
		return
	}
	r.fields[field] = value
	r.dirty = true
}
func (r *Record) Dirty() bool { return r.dirty }

// ClearDirty resets the dirty flag after a simulated save.
func (r *Record) ClearDirty() { r.dirty = false }

// Adapter is an in-memory Adapter/Handle/Project/FixFinder all in one,
// sufficient to drive the engine's end-to-end scenario tests (spec §8).
type Adapter struct {
	NameStr    string
	mu         sync.Mutex
	records    map[string]*Record
	nextID     int
	fields     []model.FieldDesc
	serverDate time.Time
	offlineFor int // seconds ServerOffline reports; 0 = online

	// fixes[scmID] = ordered fix ids known for that record.
	fixes map[string][]string
	fixDescs map[string]plugin.FixDesc
}

func New(name string, fields []model.FieldDesc) *Adapter {
	return &Adapter{
		NameStr:    name,
		records:    map[string]*Record{},
		fields:     fields,
		serverDate: time.Now().UTC(),
		fixes:      map[string][]string{},
		fixDescs:   map[string]plugin.FixDesc{},
	}
}

func (a *Adapter) Name() string          { return a.NameStr }
func (a *Adapter) ModuleVersion() string { return "fake-1.0" }

func (a *Adapter) ExtractDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (a *Adapter) FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (a *Adapter) Connect(ctx context.Context, server, user, pass string, attrs []model.Attr) (plugin.Handle, error) {
	return a, nil
}

// Handle methods.
func (a *Adapter) ServerVersion(ctx context.Context) (string, error) { return "1.0", nil }
func (a *Adapter) ServerWarnings(ctx context.Context) ([]string, error) { return nil, nil }
func (a *Adapter) ServerDate(ctx context.Context) (time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.serverDate, nil
}
func (a *Adapter) SetServerDate(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.serverDate = t
}
func (a *Adapter) ListProjects(ctx context.Context) ([]string, error) { return []string{"proj"}, nil }
func (a *Adapter) GetProject(ctx context.Context, name string) (plugin.Project, error) { return a, nil }
func (a *Adapter) Close() error { return nil }

// Project methods (Adapter doubles as its own single Project).
func (a *Adapter) ListFields(ctx context.Context) ([]model.FieldDesc, error) {
	return a.fields, nil
}

func (a *Adapter) ListChangedDefects(ctx context.Context, max int, since time.Time, modDateField, modByField, excludeUser string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var ids []string
	for id, r := range a.records {
		modStr := r.Get(modDateField)
		modAt, ok := a.ExtractDate(modStr)
		if !ok || (!modAt.IsZero() && !modAt.After(since)) {
			continue
		}
		if excludeUser != "" && r.Get(modByField) == excludeUser {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

func (a *Adapter) GetDefect(ctx context.Context, id string) (plugin.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.records[id]
	if !ok {
		return nil, fmt.Errorf("no such record %q", id)
	}
	cp := &Record{id: r.id, fields: map[string]string{}}
	for k, v := range r.fields {
		cp.fields[k] = v
	}
	return cp, nil
}

func (a *Adapter) NewDefect(ctx context.Context) (plugin.Record, error) {
	return &Record{fields: map[string]string{}}, nil
}

func (a *Adapter) Save(ctx context.Context, rec plugin.Record) (string, error) {
	r := rec.(*Record)
	a.mu.Lock()
	defer a.mu.Unlock()
	if r.id == "" {
		a.nextID++
		r.id = fmt.Sprintf("%d", a.nextID)
	}
	stored := &Record{id: r.id, fields: map[string]string{}}
	for k, v := range r.fields {
		stored.fields[k] = v
	}
	a.records[r.id] = stored
	r.dirty = false
	return r.id, nil
}

// SeedRecord inserts/overwrites a record directly, bypassing Save, for test
// setup.
func (a *Adapter) SeedRecord(id string, fields map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := &Record{id: id, fields: map[string]string{}}
	for k, v := range fields {
		r.fields[k] = v
	}
	a.records[id] = r
}

// GetRecordFields returns a snapshot of a record's fields, for assertions.
func (a *Adapter) GetRecordFields(id string) map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := map[string]string{}
	if r, ok := a.records[id]; ok {
		for k, v := range r.fields {
			out[k] = v
		}
	}
	return out
}

// --- optional capabilities --------------------------------------------------

func (a *Adapter) AcceptUTF8(ctx context.Context, h plugin.Handle) (int, error) { return 1, nil }

func (a *Adapter) ServerOffline(ctx context.Context, h plugin.Handle) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offlineFor, nil
}

func (a *Adapter) SetOffline(seconds int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offlineFor = seconds
}

// SeedFixes records the fix ids and descriptions list_fixes/describe_fix
// report for scmID, implementing the FixFinder trio.
func (a *Adapter) SeedFixes(scmID string, descs ...plugin.FixDesc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(descs))
	for _, d := range descs {
		ids = append(ids, d.Change)
		a.fixDescs[scmID+"/"+d.Change] = d
	}
	a.fixes[scmID] = ids
}

func (a *Adapter) FindDefects(ctx context.Context, p plugin.Project, max int, query string) ([]string, error) {
	// query is "DTG_DTISSUE=<id>[ AND DTG_MAPID=<mapping>]"; the fake parses
	// it just enough to support the DTS-originated pipeline lookup.
	a.mu.Lock()
	defer a.mu.Unlock()
	parts := strings.Split(query, " AND ")
	want := map[string]string{}
	for _, p := range parts {
		kv := strings.SplitN(strings.TrimSpace(p), "=", 2)
		if len(kv) == 2 {
			want[kv[0]] = kv[1]
		}
	}
	var ids []string
	for id, r := range a.records {
		ok := true
		for k, v := range want {
			if r.Get(k) != v {
				ok = false
				break
			}
		}
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

func (a *Adapter) ListFixes(ctx context.Context, p plugin.Project, id string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.fixes[id]...), nil
}

func (a *Adapter) DescribeFix(ctx context.Context, p plugin.Project, fix string) (plugin.FixDesc, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, d := range a.fixDescs {
		if strings.HasSuffix(k, "/"+fix) {
			return d, nil
		}
	}
	return plugin.FixDesc{}, fmt.Errorf("no such fix %q", fix)
}
