// Package stage defines the contract shared by every pipeline worker and the
// run engine: the Worker interface, its Input and Result, the typed Artifacts
// carried between workers, and the ApprovalSpec a worker returns when its
// output needs human sign-off.
package stage
