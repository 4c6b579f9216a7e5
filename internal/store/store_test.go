package store

import (
	"os"
	"strings"
	"testing"
	"time"

	"dtg-replicator/internal/model"
)

func fixedNow() time.Time { return time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC) }

func readFileT(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func contains(s, substr string) bool { return strings.Contains(s, substr) }

func TestSourceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := &model.Source{
		Kind:         model.SCM,
		Nickname:     "p4",
		Plugin:       "p4dtg-p4",
		Server:       "p4.example.com:1666",
		User:         "svc",
		Password:     "hunter2",
		Module:       "depot",
		ModDateField: "ModDate",
		ModUserField: "ModUser",
		Attrs:        []model.Attr{{Name: "charset", Value: "utf8"}},
		Filters:      []*model.FilterSet{{Name: "active", Field: "Status", Rules: []model.FilterRule{{Field: "Status", Pattern: "open"}}}},
	}

	if err := SaveSource(dir, src, fixedNow); err != nil {
		t.Fatalf("SaveSource: %v", err)
	}

	loaded, err := LoadSource(dir, "p4")
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if loaded.Password != "hunter2" {
		t.Errorf("got password %q, want hunter2 (epassword round trip)", loaded.Password)
	}
	if loaded.Server != src.Server || loaded.Module != src.Module {
		t.Errorf("got %+v, want server/module to match", loaded)
	}
	if len(loaded.Filters) != 1 || loaded.Filters[0].Name != "active" {
		t.Errorf("expected filter 'active' to round-trip, got %+v", loaded.Filters)
	}
	if loaded.AcceptUTF8 != -1 {
		t.Errorf("expected AcceptUTF8 to reset to -1 on load, got %d", loaded.AcceptUTF8)
	}
}

func TestSourceSaveWritesEPasswordNotPlainPassword(t *testing.T) {
	dir := t.TempDir()
	src := &model.Source{Kind: model.DTS, Nickname: "jira", Server: "jira.example.com", Password: "secret"}
	if err := SaveSource(dir, src, fixedNow); err != nil {
		t.Fatalf("SaveSource: %v", err)
	}
	data := readFileT(t, sourcePath(dir, "jira"))
	if contains(data, "<password>") {
		t.Error("expected no plaintext <password> element in the saved file")
	}
	if !contains(data, "<epassword>") {
		t.Error("expected an <epassword> element in the saved file")
	}
}

func TestMappingRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := &model.DataMapping{
		ID:        "m1",
		SCMID:     "p4",
		DTSID:     "jira",
		SCMFilter: "active",
		Conflict:  model.ConflictNewer,
		Mirror:    []model.CopyRule{{SCMField: "Status", DTSField: "Status", Type: model.CopyMap, ValueMap: []model.CopyMapEntry{{Value1: "Open", Value2: "1"}}}},
		Fixes:     []model.FixRule{{DTSField: "FixLog", Action: model.FixAppend, IncludeChange: true}},
		Attrs:     map[string]string{model.AttrPollingPeriod: "10"},
	}

	if err := SaveMapping(dir, m, fixedNow); err != nil {
		t.Fatalf("SaveMapping: %v", err)
	}
	loaded, err := LoadMapping(dir, "m1")
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	if loaded.SCMID != "p4" || loaded.DTSID != "jira" || loaded.Conflict != model.ConflictNewer {
		t.Errorf("got %+v, want core fields to round trip", loaded)
	}
	if len(loaded.Mirror) != 1 || loaded.Mirror[0].ValueMap[0].Value1 != "Open" {
		t.Errorf("expected mirror copy rule with value map to round trip, got %+v", loaded.Mirror)
	}
	if len(loaded.Fixes) != 1 || loaded.Fixes[0].DTSField != "FixLog" {
		t.Errorf("expected fix rule to round trip, got %+v", loaded.Fixes)
	}
	if loaded.Attrs[model.AttrPollingPeriod] != "10" {
		t.Errorf("expected attrs to round trip, got %+v", loaded.Attrs)
	}
}

func TestSettingsLegacyLastUpdateMigration(t *testing.T) {
	dir := t.TempDir()
	legacy := &settingsFile{
		Version:      schemaVersion,
		ID:           "m1",
		StartingDate: formatTime(fixedNow()),
		LastUpdate:   formatTime(fixedNow()),
	}
	if err := writeBackupFirst(settingsPath(dir, "m1"), legacy); err != nil {
		t.Fatalf("write legacy settings: %v", err)
	}

	settings, err := LoadSettings(dir, "m1")
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if settings.LastUpdateSCM.IsZero() || settings.LastUpdateDTS.IsZero() {
		t.Fatal("expected legacy LastUpdate to migrate into both watermarks")
	}
	if !settings.LastUpdateSCM.Equal(settings.LastUpdateDTS) {
		t.Error("expected both watermarks to adopt the same legacy value")
	}
}

func TestSettingsRoundTripDropsLegacyField(t *testing.T) {
	dir := t.TempDir()
	s := &model.DTGSettings{ID: "m1", StartingDate: fixedNow(), LastUpdateSCM: fixedNow(), LastUpdateDTS: fixedNow()}
	if err := SaveSettings(dir, s, fixedNow); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	data := readFileT(t, settingsPath(dir, "m1"))
	if contains(data, "<last_update>") {
		t.Error("expected no legacy <last_update> element after a fresh save")
	}
}

func TestWriteBackupFirstPreservesPreviousContentAsOld(t *testing.T) {
	dir := t.TempDir()
	s := &model.DTGSettings{ID: "m1", StartingDate: fixedNow()}
	if err := SaveSettings(dir, s, fixedNow); err != nil {
		t.Fatalf("first save: %v", err)
	}
	s.Force = true
	if err := SaveSettings(dir, s, fixedNow); err != nil {
		t.Fatalf("second save: %v", err)
	}
	oldData := readFileT(t, settingsPath(dir, "m1")+".old")
	if contains(oldData, "<force>true</force>") {
		t.Error("expected .old backup to hold the pre-update content, not the new one")
	}
}

func TestLockExcludesConcurrentLock(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/set-m1.xml"
	l1, err := Lock(path)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	defer l1.Unlock()

	if f, err := os.OpenFile(path+"-lock", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644); err == nil {
		f.Close()
		t.Fatal("expected the lock file to already exist and block a second exclusive create")
	}
}

func TestLoadAllCrossResolvesMappingToSources(t *testing.T) {
	dir := t.TempDir()
	scm := &model.Source{Kind: model.SCM, Nickname: "p4", Module: "depot"}
	dts := &model.Source{Kind: model.DTS, Nickname: "jira"}
	if err := SaveSource(dir, scm, fixedNow); err != nil {
		t.Fatal(err)
	}
	if err := SaveSource(dir, dts, fixedNow); err != nil {
		t.Fatal(err)
	}
	m := &model.DataMapping{ID: "m1", SCMID: "p4", DTSID: "jira"}
	if err := SaveMapping(dir, m, fixedNow); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadAll(dir)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	loaded, ok := reg.Mapping("m1")
	if !ok {
		t.Fatal("expected mapping m1 to load")
	}
	if loaded.SCMSource == nil || loaded.SCMSource.Nickname != "p4" {
		t.Errorf("expected SCMSource resolved to p4, got %+v", loaded.SCMSource)
	}
	if loaded.DTSSource == nil || loaded.DTSSource.Nickname != "jira" {
		t.Errorf("expected DTSSource resolved to jira, got %+v", loaded.DTSSource)
	}
}

func TestLoadMappingSettingsMissingMapping(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := LoadMappingSettings(dir, "nope"); err == nil {
		t.Fatal("expected an error for a missing mapping id")
	}
}
