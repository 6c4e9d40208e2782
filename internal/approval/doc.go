// Package approval is the human-in-the-loop gateway. It formats an artifact
// awaiting sign-off into a request for the approval channel and normalizes
// inbound responses into a structured decision (approve, reject,
// request_revision). It never mutates runs; the run engine applies decisions.
package approval
