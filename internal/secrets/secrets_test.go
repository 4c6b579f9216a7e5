package secrets

import "testing"

func TestObfuscateRoundTrips(t *testing.T) {
	got := Obfuscate("p4", "server:1666", "hunter2")
	back, err := Deobfuscate("p4", "server:1666", got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back != "hunter2" {
		t.Errorf("got %q, want hunter2", back)
	}
}

func TestObfuscateEmptyPasswordPassesThrough(t *testing.T) {
	if got := Obfuscate("p4", "server", ""); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestObfuscateOverLongPasswordPassesThroughInClear(t *testing.T) {
	long := ""
	for i := 0; i < 65; i++ {
		long += "a"
	}
	if got := Obfuscate("p4", "server", long); got != long {
		t.Errorf("expected a >64-char password to be stored unchanged, got %q", got)
	}
}

func TestResolvePasswordPrefersEPassword(t *testing.T) {
	enc := Obfuscate("p4", "server", "secret")
	attrs := map[string]string{"password": "plaintext", "epassword": enc}
	got, err := ResolvePassword("p4", "server", attrs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "secret" {
		t.Errorf("got %q, want secret (epassword should supersede password)", got)
	}
}

func TestResolvePasswordFallsBackToPlain(t *testing.T) {
	attrs := map[string]string{"password": "plaintext"}
	got, err := ResolvePassword("p4", "server", attrs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "plaintext" {
		t.Errorf("got %q, want plaintext", got)
	}
}

func TestRepeatingKeyHandlesEmptySeed(t *testing.T) {
	// nickname+server both empty: must not panic on an empty seed string.
	got := Obfuscate("", "", "x")
	if got == "" {
		t.Fatal("expected a non-empty obfuscated result")
	}
	back, err := Deobfuscate("", "", got)
	if err != nil || back != "x" {
		t.Fatalf("got %q, %v; want x, nil", back, err)
	}
}
