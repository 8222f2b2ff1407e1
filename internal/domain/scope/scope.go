// Package scope defines the file-scope policy for a unit of work: the
// declared set of path patterns the work is permitted to touch. The policy
// is a loaded artifact, consulted but never mutated.
package scope

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Policy is an allow-list (and optional deny-list) of file patterns for the
// currently active unit of work. A nil Policy means no scope is declared and
// every path is in scope (default-allow, used for unscoped work).
type Policy struct {
	Task  string   `yaml:"task,omitempty" json:"task,omitempty"`
	Allow []string `yaml:"allow" json:"allow"`
	Deny  []string `yaml:"deny,omitempty" json:"deny,omitempty"`

	allowGlobs []glob.Glob
	denyGlobs  []glob.Glob
}

// Verdict is the result of evaluating a path against a Policy.
type Verdict struct {
	InScope bool   `json:"in_scope"`
	Pattern string `json:"pattern,omitempty"`
	Reason  string `json:"reason"`
}

// Compile validates the pattern lists and precompiles the globs.
func (p *Policy) Compile() error {
	compile := func(patterns []string) ([]glob.Glob, error) {
		globs := make([]glob.Glob, 0, len(patterns))
		for _, pat := range patterns {
			g, err := glob.Compile(pat, '/')
			if err != nil {
				return nil, fmt.Errorf("bad scope pattern %q: %w", pat, err)
			}
			globs = append(globs, g)
		}
		return globs, nil
	}

	var err error
	if p.allowGlobs, err = compile(p.Allow); err != nil {
		return err
	}
	if p.denyGlobs, err = compile(p.Deny); err != nil {
		return err
	}
	return nil
}

// Evaluate answers whether path is inside the declared scope. A path is in
// scope only if it matches one of the allow patterns (glob, literal, or
// substring match against the normalized path) and none of the deny patterns.
func (p *Policy) Evaluate(path string) Verdict {
	if p == nil {
		return Verdict{InScope: true, Reason: "no scope policy declared; default allow"}
	}

	norm := Normalize(path)

	for i, g := range p.denyGlobs {
		if g.Match(norm) || matchLoose(p.Deny[i], norm) {
			return Verdict{InScope: false, Pattern: p.Deny[i], Reason: fmt.Sprintf("path matches deny pattern %q", p.Deny[i])}
		}
	}
	for i, g := range p.allowGlobs {
		if g.Match(norm) || matchLoose(p.Allow[i], norm) {
			return Verdict{InScope: true, Pattern: p.Allow[i], Reason: fmt.Sprintf("path matches allow pattern %q", p.Allow[i])}
		}
	}
	return Verdict{InScope: false, Reason: "path matches no declared allow pattern"}
}

// matchLoose covers the literal and substring matches the glob misses:
// an exact pattern, or a pattern that is a path fragment of the candidate.
func matchLoose(pattern, norm string) bool {
	pat := Normalize(pattern)
	if pat == norm {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[{") && strings.Contains(norm, pat) {
		return true
	}
	return false
}

// Normalize cleans a path and forces forward slashes so patterns match the
// same way on every platform.
func Normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(strings.TrimSpace(path)))
}
