package model

import "testing"

func TestFilterSetMatches(t *testing.T) {
	fs := &FilterSet{
		Name:  "active",
		Field: "Status",
		Rules: []FilterRule{{Field: "Status", Pattern: "open"}, {Field: "Status", Pattern: "started"}},
	}
	if !fs.Matches("open") {
		t.Error("expected open to match")
	}
	if fs.Matches("closed") {
		t.Error("did not expect closed to match")
	}
}

func TestFilterSetValues(t *testing.T) {
	fs := &FilterSet{Rules: []FilterRule{{Pattern: "a"}, {Pattern: "b"}, {Pattern: "a"}}}
	got := fs.Values()
	want := []string{"a", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSourceReadyRequiresAllThreeReservedFields(t *testing.T) {
	base := func() *Source {
		return &Source{
			Kind:   SCM,
			Status: StatusPass,
			Fields: []FieldDesc{
				{Name: "DTG_DTISSUE", Type: FieldWord, Readonly: ReadWrite},
				{Name: "DTG_FIXES", Type: FieldText, Readonly: ReadWrite},
				{Name: "DTG_ERROR", Type: FieldText, Readonly: ReadWrite},
			},
		}
	}

	s := base()
	if got := s.Ready(); got != StatusReady {
		t.Fatalf("expected READY with all three reserved fields present, got %s", got)
	}

	s = base()
	s.Fields = s.Fields[:2] // drop DTG_ERROR
	if got := s.Ready(); got != StatusPass {
		t.Fatalf("expected PASS when a reserved field is missing, got %s", got)
	}

	s = base()
	s.Fields[0].Readonly = ReadOnlyField // DTG_DTISSUE not writable
	if got := s.Ready(); got != StatusPass {
		t.Fatalf("expected PASS when a reserved field is read-only, got %s", got)
	}

	// DTS sources never reach READY; Ready() is a no-op pass-through.
	dts := &Source{Kind: DTS, Status: StatusPass}
	if got := dts.Ready(); got != StatusPass {
		t.Fatalf("expected DTS Ready() to pass through status unchanged, got %s", got)
	}
}

func TestSourceField(t *testing.T) {
	s := &Source{Fields: []FieldDesc{{Name: "Status", Type: FieldSelect}}}
	f, ok := s.Field("Status")
	if !ok || f.Type != FieldSelect {
		t.Fatalf("expected to find Status field, got %+v, %v", f, ok)
	}
	if _, ok := s.Field("Missing"); ok {
		t.Fatal("did not expect Missing to be found")
	}
}

func TestCopyRuleLookup(t *testing.T) {
	r := &CopyRule{ValueMap: []CopyMapEntry{{Value1: "Open", Value2: "1"}, {Value1: "Closed", Value2: "2"}}}

	got, ok := r.Lookup("open", false)
	if !ok || got != "1" {
		t.Fatalf("expected case-insensitive forward lookup to hit, got %q, %v", got, ok)
	}

	got, ok = r.Lookup("2", true)
	if !ok || got != "Closed" {
		t.Fatalf("expected reverse lookup to hit, got %q, %v", got, ok)
	}

	if got, ok := r.Lookup("", false); !ok || got != "" {
		t.Fatalf("expected empty value to pass through unmatched, got %q, %v", got, ok)
	}

	if _, ok := r.Lookup("nope", false); ok {
		t.Fatal("expected unmatched non-empty value to report ok=false")
	}
}

func TestHasUnmapRule(t *testing.T) {
	m := &DataMapping{SCMToDTS: []CopyRule{{Type: CopyText}}}
	if m.HasUnmapRule() {
		t.Fatal("did not expect an UNMAP rule")
	}
	m.DTSToSCM = append(m.DTSToSCM, CopyRule{Type: CopyUnmap})
	if !m.HasUnmapRule() {
		t.Fatal("expected an UNMAP rule to be detected")
	}
}
