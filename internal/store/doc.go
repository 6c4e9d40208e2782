// Package store persists the Content Factory records in SQLite: topics,
// content pieces, pipeline runs with their log entries, approvals, and the
// scheduler's fired-trigger marks.
//
// The Store manages the database connection, schema initialization, and busy
// retries. Run and approval rows are the durable state the run engine rebuilds
// from after a restart; artifacts and run options are stored as JSON documents
// owned by the pipeline package.
//
// Schema changes bump the version in schema.go; users delete the database to
// adopt the new schema.
package store
