package ruleset

import (
	"regexp"
	"strings"
)

// CompletionMarkers is the fixed set of literal markers a caller must emit
// for the exit gate to sanction a voluntary exit in autonomous mode.
var CompletionMarkers = []string{
	"ALL TASKS COMPLETE",
	"SPRINT COMPLETE",
	"EXECUTION COMPLETE",
	"AUTONOMOUS RUN COMPLETE",
}

// HasCompletionMarker reports whether text contains one of the accepted
// completion markers. Markers are matched literally, case-sensitive: they
// are a protocol token, not prose.
func HasCompletionMarker(text string) bool {
	for _, m := range CompletionMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// failurePatterns classify an action's result text as a failure. Checked
// before successPatterns: an explicit failure wins over an incidental "ok".
var failurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(error|fatal|panic)\b`),
	regexp.MustCompile(`(?i)\b(test|build|lint|compilation) (failed|failure)\b`),
	regexp.MustCompile(`(?i)\bFAIL\b`),
	regexp.MustCompile(`(?i)\bexit (status|code) [1-9]\d*\b`),
	regexp.MustCompile(`(?i)\b(command|operation) (failed|aborted)\b`),
	regexp.MustCompile(`(?i)\bsegmentation fault\b|\bstack trace\b|\btraceback \(most recent call last\)`),
}

// ClassifyResult reports whether an action's result text looks like a
// failure. Empty output is treated as success: many tools are silent on
// success and this boundary favors robustness over strictness.
func ClassifyResult(text string) (failed bool, code string) {
	for _, p := range failurePatterns {
		if p.MatchString(text) {
			return true, "result.failure"
		}
	}
	return false, "result.success"
}
