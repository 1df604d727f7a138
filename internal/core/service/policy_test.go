package service

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryPolicy(t *testing.T) {
	p := NewMemoryPolicy()
	if p.Allow("a", "b", PermAdd) {
		t.Fatal("empty policy must deny")
	}

	p.Grant("a", "b", PermAdd, PermFind)
	if !p.Allow("a", "b", PermAdd) || !p.Allow("a", "b", PermFind) {
		t.Error("granted perms should be allowed")
	}
	if p.Allow("a", "b", PermList) || p.Allow("b", "a", PermAdd) {
		t.Error("ungranted perms should be denied")
	}

	p.Revoke("a", "b", PermAdd)
	if p.Allow("a", "b", PermAdd) {
		t.Error("revoked perm should be denied")
	}
}

const testPolicyYAML = `
allow:
  - source: "u:r:*"
    target: "u:object_r:*_service"
    perms: [find]
  - source: "u:r:camera"
    target: "u:object_r:camera_service"
    perms: [add, find]
  - source: "u:r:shell"
    target: "u:r:svcreg"
    perms: [list]
deny:
  - source: "u:r:untrusted*"
    target: "**"
    perms: [add, find, list]
`

func TestPolicyTable(t *testing.T) {
	table, err := ParsePolicyTable([]byte(testPolicyYAML))
	if err != nil {
		t.Fatalf("ParsePolicyTable() error = %v", err)
	}
	if len(table.Grants) != 3 || len(table.Denials) != 1 {
		t.Fatalf("parsed %d allow and %d deny rules, want 3 and 1", len(table.Grants), len(table.Denials))
	}

	tests := []struct {
		source, target string
		perm           Perm
		want           bool
	}{
		{"u:r:camera", "u:object_r:camera_service", PermAdd, true},
		{"u:r:app", "u:object_r:camera_service", PermFind, true},
		{"u:r:app", "u:object_r:camera_service", PermAdd, false},
		{"u:r:shell", "u:r:svcreg", PermList, true},
		{"u:r:app", "u:r:svcreg", PermList, false},
		{"u:r:untrusted_app", "u:object_r:camera_service", PermFind, false},
		{"u:r:app", "u:object_r:camera_hal", PermFind, false},
	}

	for _, tt := range tests {
		t.Run(tt.source+"/"+tt.target+"/"+string(tt.perm), func(t *testing.T) {
			if got := table.Allow(tt.source, tt.target, tt.perm); got != tt.want {
				t.Errorf("Allow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePolicyTable_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown perm":  "allow:\n  - {source: a, target: b, perms: [write]}\n",
		"bad pattern":   "allow:\n  - {source: \"[\", target: b, perms: [add]}\n",
		"unknown field": "permit:\n  - {source: a, target: b, perms: [add]}\n",
		"not yaml":      "allow: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParsePolicyTable([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}

	empty, err := ParsePolicyTable(nil)
	if err != nil {
		t.Fatalf("empty policy error = %v", err)
	}
	if empty.Allow("a", "b", PermAdd) {
		t.Error("empty table must deny")
	}
}

func TestFilePolicy_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	write := func(s string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	write("allow:\n  - {source: a, target: b, perms: [add]}\n")
	p, err := LoadFilePolicy(path)
	if err != nil {
		t.Fatalf("LoadFilePolicy() error = %v", err)
	}
	if p.Path() != path {
		t.Errorf("Path() = %q", p.Path())
	}
	if !p.Allow("a", "b", PermAdd) {
		t.Fatal("initial rule should allow")
	}

	write("allow:\n  - {source: a, target: b, perms: [find]}\n")
	if err := p.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if p.Allow("a", "b", PermAdd) || !p.Allow("a", "b", PermFind) {
		t.Error("reload did not swap the table")
	}

	write("allow: [")
	if err := p.Reload(); err == nil {
		t.Fatal("Reload() of a broken file should fail")
	}
	if !p.Allow("a", "b", PermFind) {
		t.Error("failed reload must keep the previous table")
	}

	if _, err := LoadFilePolicy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}
