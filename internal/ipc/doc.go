// Package ipc is the CLI's client for the daemon's local HTTP API.
//
// It owns the request DTOs shared with the daemon server, so both sides of
// the wire agree on field names. Responses reuse the api package types.
// Every call carries the configured bearer token and a short timeout so CLI
// commands fail fast when the daemon is offline.
package ipc
