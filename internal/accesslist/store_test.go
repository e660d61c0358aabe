package accesslist

import (
	"path/filepath"
	"testing"
)

func TestAddRemovePersist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.json")

	l, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Add("pk1", "trusted partner"); err != nil {
		t.Fatal(err)
	}
	if !l.Contains("pk1") {
		t.Fatal("expected pk1 to be present")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.Contains("pk1") {
		t.Fatal("expected persisted entry to survive reload")
	}

	if err := l.Remove("pk1"); err != nil {
		t.Fatal(err)
	}
	if l.Contains("pk1") {
		t.Fatal("expected pk1 removed")
	}
}

func TestGatePolicies(t *testing.T) {
	l, _ := Load("")
	l.Add("pk-allowed", "")

	if !Gate(false, PolicyStrict, l, "anything") {
		t.Fatal("disabled gate should always admit")
	}
	if !Gate(true, PolicyStrict, l, "pk-allowed") {
		t.Fatal("allowlisted key should be admitted under strict policy")
	}
	if Gate(true, PolicyStrict, l, "pk-unknown") {
		t.Fatal("unknown key should be rejected under strict policy")
	}
	if !Gate(true, PolicyOpen, l, "pk-unknown") {
		t.Fatal("unknown key should be admitted under open policy")
	}
}

func TestAdminKeyConstantTime(t *testing.T) {
	if ValidAdminKey("", "whatever") {
		t.Fatal("empty configured key must never validate")
	}
	if !ValidAdminKey("secret", "secret") {
		t.Fatal("matching key should validate")
	}
	if ValidAdminKey("secret", "wrong") {
		t.Fatal("mismatched key should not validate")
	}
}
