// Package ruleset holds the data-driven rule tables the guard matches
// against: destructive command patterns and abandonment phrasings. Rules are
// plain data so the set can be extended without touching control-flow code.
package ruleset

import "regexp"

// DangerRule flags a shell command as destructive. Matches are denied
// unconditionally, regardless of scope policy, mode, or escalation state.
type DangerRule struct {
	Code    string
	Pattern *regexp.Regexp
	Reason  string
}

// dangerRules is the fixed deny-list of highly destructive command shapes.
var dangerRules = []DangerRule{
	{
		Code:    "danger.rm_root",
		Pattern: regexp.MustCompile(`\brm\s+(-[a-zA-Z]*r[a-zA-Z]*f|-[a-zA-Z]*f[a-zA-Z]*r)[a-zA-Z]*\s+(/|~|\$HOME)(\s|$|/\*)`),
		Reason:  "recursive forced deletion of the filesystem root or home directory",
	},
	{
		Code:    "danger.rm_wildcard_root",
		Pattern: regexp.MustCompile(`\brm\s+-[a-zA-Z]*rf?[a-zA-Z]*\s+/\S*\*`),
		Reason:  "recursive deletion with a wildcard under the filesystem root",
	},
	{
		Code:    "danger.force_push_protected",
		Pattern: regexp.MustCompile(`\bgit\s+push\s+[^|;&]*(--force|-f)\b[^|;&]*\b(main|master|release/\S*)\b|\bgit\s+push\s+[^|;&]*\b(main|master|release/\S*)\b[^|;&]*(--force|-f)\b`),
		Reason:  "forced history rewrite on a protected branch",
	},
	{
		Code:    "danger.hard_reset_upstream",
		Pattern: regexp.MustCompile(`\bgit\s+reset\s+--hard\s+origin/(main|master)\b`),
		Reason:  "discards local history against a protected upstream branch",
	},
	{
		Code:    "danger.credential_exfiltration",
		Pattern: regexp.MustCompile(`\b(curl|wget|nc|ncat)\b[^|;&]*(\.env\b|id_rsa|\.aws/credentials|\.ssh/|AWS_SECRET|API_KEY)`),
		Reason:  "sends credential material to an external destination",
	},
	{
		Code:    "danger.credential_read_pipe",
		Pattern: regexp.MustCompile(`\b(cat|base64)\s+[^|;&]*(id_rsa|\.aws/credentials)\b[^|;&]*\|\s*(curl|wget|nc)\b`),
		Reason:  "pipes credential files into a network client",
	},
	{
		Code:    "danger.fork_bomb",
		Pattern: regexp.MustCompile(`:\(\)\s*\{\s*:\|:\s*&\s*\}\s*;\s*:|\bfork\s*\(\s*\)\s*while\s*\(1\)`),
		Reason:  "fork bomb",
	},
	{
		Code:    "danger.raw_disk_write",
		Pattern: regexp.MustCompile(`\b(dd|mkfs(\.\w+)?|shred)\b[^|;&]*\s(of=)?/dev/(sd[a-z]|nvme\d+n\d+|disk\d+)`),
		Reason:  "writes directly to a raw block device",
	},
	{
		Code:    "danger.chmod_root",
		Pattern: regexp.MustCompile(`\bchmod\s+-R\s+\d+\s+/(\s|$)`),
		Reason:  "recursive permission change on the filesystem root",
	},
}

// MatchDanger returns the first destructive rule matching the command, or
// nil when the command trips none of them.
func MatchDanger(command string) *DangerRule {
	for i := range dangerRules {
		if dangerRules[i].Pattern.MatchString(command) {
			return &dangerRules[i]
		}
	}
	return nil
}

// DangerRules returns the rule table, for diagnostics and tests.
func DangerRules() []DangerRule {
	out := make([]DangerRule, len(dangerRules))
	copy(out, dangerRules)
	return out
}
