// Command contentfactory is the operator CLI for the content factory.
//
// Pipeline commands (run, podcast, seo, heal, batch, pending, approve,
// reject, revise) execute in-process against the local database and print
// the result. With --async they are submitted to the running daemon
// instead. Read commands (runs, show, approvals, status) go through the
// daemon API when it answers and read the database directly otherwise.
package main
