package scope

import (
	"os"
	"path/filepath"
	"testing"
)

func compiled(t *testing.T, p *Policy) *Policy {
	t.Helper()
	if err := p.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	return p
}

func TestEvaluateNilPolicyAllowsEverything(t *testing.T) {
	var p *Policy
	v := p.Evaluate("anything/at/all.go")
	if !v.InScope {
		t.Fatalf("nil policy denied %q: %s", "anything/at/all.go", v.Reason)
	}
}

func TestEvaluateAllowPatterns(t *testing.T) {
	p := compiled(t, &Policy{Allow: []string{"src/auth/session.*"}})

	cases := []struct {
		path string
		want bool
	}{
		{"src/auth/session.go", true},
		{"src/auth/session.ts", true},
		{"src/auth/oauth.go", false},
		{"src/billing/invoice.go", false},
		{"./src/auth/session.go", true}, // normalized before matching
	}
	for _, tc := range cases {
		if v := p.Evaluate(tc.path); v.InScope != tc.want {
			t.Errorf("Evaluate(%q) = %v (%s), want %v", tc.path, v.InScope, v.Reason, tc.want)
		}
	}
}

func TestEvaluateDenyWinsOverAllow(t *testing.T) {
	p := compiled(t, &Policy{
		Allow: []string{"src/**"},
		Deny:  []string{"src/generated/**"},
	})

	if v := p.Evaluate("src/handlers/login.go"); !v.InScope {
		t.Fatalf("allowed path denied: %s", v.Reason)
	}
	v := p.Evaluate("src/generated/api.pb.go")
	if v.InScope {
		t.Fatal("deny pattern did not win over allow")
	}
	if v.Pattern != "src/generated/**" {
		t.Fatalf("verdict pattern = %q", v.Pattern)
	}
}

func TestEvaluateLiteralAndFragmentMatch(t *testing.T) {
	p := compiled(t, &Policy{Allow: []string{"internal/config"}})

	if v := p.Evaluate("internal/config/loader.go"); !v.InScope {
		t.Fatalf("path fragment match failed: %s", v.Reason)
	}
	if v := p.Evaluate("internal/logger/logger.go"); v.InScope {
		t.Fatal("unrelated path allowed")
	}
}

func TestCompileRejectsBadPattern(t *testing.T) {
	p := &Policy{Allow: []string{"src/[unterminated"}}
	if err := p.Compile(); err == nil {
		t.Fatal("expected compile error for malformed pattern")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scope.yaml")
	data := []byte("task: fix-session-expiry\nallow:\n  - \"src/auth/session.*\"\ndeny:\n  - \"src/auth/legacy/**\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p == nil {
		t.Fatal("expected policy")
	}
	if p.Task != "fix-session-expiry" {
		t.Fatalf("task = %q", p.Task)
	}
	if v := p.Evaluate("src/auth/session.go"); !v.InScope {
		t.Fatalf("loaded policy denied allowed path: %s", v.Reason)
	}
	if v := p.Evaluate("src/auth/legacy/md5.go"); v.InScope {
		t.Fatal("loaded policy allowed denied path")
	}
}

func TestLoadFromFileMissingIsUnscoped(t *testing.T) {
	p, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing policy file should not error: %v", err)
	}
	if p != nil {
		t.Fatal("missing policy file should yield nil policy")
	}
}
