// Package service implements the execution controller and the scope &
// command guard: the policy-enforcement pipeline behind every interception
// event.
package service

// Decision is the controller's primary output channel. A denial is a
// successful evaluation that happened to conclude "no": a value, not an
// error, and it always carries a reason suitable for injection back into the
// ongoing work.
type Decision struct {
	Allow  bool   `json:"allow"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason"`
}

func allowed(reason string) Decision {
	return Decision{Allow: true, Reason: reason}
}

func denied(code, reason string) Decision {
	return Decision{Allow: false, Code: code, Reason: reason}
}
