package ruleset

import "regexp"

// AbandonKind classifies how the agent is disengaging.
type AbandonKind string

const (
	AbandonGivingUp       AbandonKind = "giving_up"
	AbandonPassiveHandoff AbandonKind = "passive_handoff"
	AbandonConfirmSeeking AbandonKind = "confirm_seeking"
)

// AbandonRule flags output text as an abandonment attempt: the agent giving
// up, handing the problem back, or stalling for confirmation instead of
// working. Matching is heuristic; the table stays data-driven so rules can
// be extended without touching control flow.
type AbandonRule struct {
	Code    string
	Kind    AbandonKind
	Pattern *regexp.Regexp
	Reason  string
}

var abandonRules = []AbandonRule{
	{
		Code:    "abandon.giving_up",
		Kind:    AbandonGivingUp,
		Pattern: regexp.MustCompile(`(?i)\b(i (give up|cannot|can't) (fix\w*|solv\w*|resolv\w*|figur\w*)|giving up( on this)?|this (seems|appears to be) (impossible|unfixable)|out of (ideas|options))\b`),
		Reason:  "declares the problem unsolvable instead of trying another approach",
	},
	{
		Code:    "abandon.handoff",
		Kind:    AbandonPassiveHandoff,
		Pattern: regexp.MustCompile(`(?i)\b(you (may|might|can|should|could) (want to|need to|try|check|investigate|look into)|left (as an exercise|for you)|manual (intervention|steps?) (is |are )?(required|needed)|over to you)\b`),
		Reason:  "hands the remaining work back to the human",
	},
	{
		Code:    "abandon.confirm",
		Kind:    AbandonConfirmSeeking,
		Pattern: regexp.MustCompile(`(?i)\b(please confirm|let me know (if|when|how)|shall i (proceed|continue)|would you like me to|waiting for (your )?(confirmation|approval|input)|do you want me to)\b`),
		Reason:  "stalls for confirmation instead of continuing autonomously",
	},
	{
		Code:    "abandon.premature_wrap",
		Kind:    AbandonPassiveHandoff,
		Pattern: regexp.MustCompile(`(?i)\b(that('s| is) (everything|all) for now|stopping here|i('ll| will) (stop|pause) (here|for now)|remaining (work|items|tasks) (is|are) left)\b`),
		Reason:  "wraps up with work still outstanding",
	},
}

// MatchAbandon returns the first abandonment rule matching the text, or nil.
func MatchAbandon(text string) *AbandonRule {
	for i := range abandonRules {
		if abandonRules[i].Pattern.MatchString(text) {
			return &abandonRules[i]
		}
	}
	return nil
}

// AbandonRules returns the rule table, for diagnostics and tests.
func AbandonRules() []AbandonRule {
	out := make([]AbandonRule, len(abandonRules))
	copy(out, abandonRules)
	return out
}
