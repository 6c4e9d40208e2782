// Package logs reads the daemon's JSON log file for the CLI.
//
// Tail returns the last lines of the file or the lines written after a byte
// offset, optionally waiting for new output in follow mode. Records decode
// each JSON line so callers can filter by run, worker or level and print a
// compact console form.
package logs
