package service

import (
	"testing"

	"github.com/loopwarden/loopwarden/internal/domain/scope"
)

func TestCheckCommand(t *testing.T) {
	g := NewGuard(nil, discard())

	if d := g.CheckCommand(""); !d.Allow {
		t.Fatalf("empty command denied: %s", d.Reason)
	}
	if d := g.CheckCommand("go test ./..."); !d.Allow {
		t.Fatalf("benign command denied: %s", d.Reason)
	}

	d := g.CheckCommand("rm -rf / --no-preserve-root")
	if d.Allow {
		t.Fatal("destructive command allowed")
	}
	if d.Code != "danger.rm_root" {
		t.Fatalf("code = %s", d.Code)
	}
}

func TestCheckPath(t *testing.T) {
	policy := &scope.Policy{Allow: []string{"internal/**"}}
	if err := policy.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	g := NewGuard(policy, discard())

	if d := g.CheckPath(""); !d.Allow {
		t.Fatalf("empty path denied: %s", d.Reason)
	}
	if d := g.CheckPath("internal/service/guard.go"); !d.Allow {
		t.Fatalf("in-scope path denied: %s", d.Reason)
	}

	d := g.CheckPath("cmd/main.go")
	if d.Allow {
		t.Fatal("out-of-scope path allowed")
	}
	if d.Code != "scope.out_of_scope" {
		t.Fatalf("code = %s", d.Code)
	}
}

func TestCheckPathUnscoped(t *testing.T) {
	g := NewGuard(nil, discard())
	if g.Scoped() {
		t.Fatal("nil policy reported as scoped")
	}
	if d := g.CheckPath("anything/anywhere.go"); !d.Allow {
		t.Fatalf("unscoped path denied: %s", d.Reason)
	}
}
