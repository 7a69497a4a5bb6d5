// Package preflight provides readiness checks for the local state
// directories, the queue database, the backend, and the stored session.
//
// These checks run in two contexts:
//   - The CLI "fieldsync doctor" command runs RunAll and exits non-zero when
//     a check fails.
//   - The CLI "fieldsync status" command uses individual check functions
//     (CheckBackendFromConfig, CheckNetworkWatch) to display health lines.
//
// No check mutates state; a missing queue database is reported, not created.
package preflight
