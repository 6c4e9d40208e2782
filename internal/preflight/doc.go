// Package preflight provides readiness checks for the external services
// and filesystem paths the content factory depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check.
//   - The CLI "contentfactory preflight" command prints RunAll, the
//     integration summary and each worker's own health check.
//
// Network checks are skipped for integrations that are not configured.
package preflight
